// Package chat runs one conversational turn against the calendar agent.
//
// A Runner builds the prompt from the user's message, timezone, upcoming
// events and last assisted event, opens the agent's streaming reply, splits it
// on the metadata marker while forwarding message fragments, and decodes the
// action once the reply has completed. It never applies the action; callers
// pass Outcome.Action to a dispatch.Dispatcher.
package chat
