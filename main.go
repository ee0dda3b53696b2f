package main

import (
	_ "time/tzdata"

	"github.com/jingjing529/ai-calendar-agent/cmd"
)

// version will be set by goreleaser during build
var version = "dev"

func main() {
	// Set the version from build-time variable
	cmd.SetVersion(version)

	// Execute the root command
	cmd.Execute()
}
