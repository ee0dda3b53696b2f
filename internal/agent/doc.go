// Package agent is the HTTP client for the LLM agent backend.
//
// The backend accepts POST {"message": prompt} and answers with a chunked
// text/plain body: the user-facing reply, optionally followed by the metadata
// marker and a JSON action descriptor. The same framing is produced by the
// server's /api/message relay, so a Client can point at either.
//
// A Reply implements stream.Source. Each Next call is bounded by the read
// timeout; a stalled agent surfaces as ErrReadTimeout rather than as the end
// of the reply.
package agent
