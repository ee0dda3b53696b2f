// Package dispatch applies decoded agent actions to Google Calendar.
//
// A Dispatcher validates each action.Descriptor, calls the matching events
// API method, and records the outcome as a metric, a trace span, an audit log
// entry and a published events.ActionEvent. Validation failures wrap
// ErrMissingEvent or ErrMissingEventID; IsValidationError separates them from
// calendar API failures.
package dispatch
