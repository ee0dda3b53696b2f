// Package stream splits an incremental agent reply into a live message
// sub-stream and a buffered metadata tail.
//
// The agent writes its reply as plain text, then the literal Marker, then a
// compact JSON action descriptor. Fragments arrive with arbitrary boundaries,
// so the marker may be split across any number of them. The Splitter matches
// against its accumulated buffer and withholds the last len(Marker)-1 bytes
// while scanning, releasing everything before that immediately.
//
// Example:
//
//	res, err := stream.Split(ctx, src, func(fragment string) error {
//	    _, err := io.WriteString(w, fragment)
//	    return err
//	})
//	if err != nil {
//	    return err // no metadata, nothing is dispatched
//	}
//	desc, ok := action.Decode(res.Metadata)
package stream
