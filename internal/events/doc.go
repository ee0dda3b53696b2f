// Package events publishes a notification for every calendar action the
// dispatcher applies, so other systems can react to agent-made changes.
//
// Events are JSON ActionEvent documents sent to a Redis pub/sub channel, to an
// HTTP webhook, or both. Publishing retries with exponential backoff and is
// best effort: callers log failures and carry on.
package events
