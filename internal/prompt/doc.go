// Package prompt renders the instructions sent to the calendar agent with
// each user message: the user's timezone and local time, their upcoming
// events, the last event the agent helped with, and the two-part reply format
// that the stream splitter expects.
package prompt
