package instrumentation

// Cardinality helpers keep label values bounded. Agent output is untrusted, so
// anything derived from it must pass through these before becoming a label.

// NormalizeAction maps an action kind to a bounded label value.
func NormalizeAction(action string) string {
	switch action {
	case "insert", "edit", "delete":
		return action
	}
	return "unknown"
}

// NormalizeRoute returns the route pattern used as the path label.
// Unmatched requests share a single label.
func NormalizeRoute(pattern string) string {
	if pattern == "" {
		return "unmatched"
	}
	return pattern
}

// Google Calendar operation names.
const (
	OperationList   = "list"
	OperationInsert = "insert"
	OperationPatch  = "patch"
	OperationDelete = "delete"
)
