// Package action decodes the structured metadata that follows the stream
// marker into a calendar action descriptor.
//
// Wire shape:
//
//	{"action":"insert|edit|delete|unknown","eventId":"..."|null,"event":{...}|null}
//
// Anything that does not decode into insert, edit or delete means "no action".
package action
