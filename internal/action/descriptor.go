package action

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Kind is the calendar mutation requested by the agent.
type Kind string

const (
	KindInsert  Kind = "insert"
	KindEdit    Kind = "edit"
	KindDelete  Kind = "delete"
	KindUnknown Kind = "unknown"
)

// Valid reports whether k names an actionable mutation.
func (k Kind) Valid() bool {
	switch k {
	case KindInsert, KindEdit, KindDelete:
		return true
	}
	return false
}

// Descriptor is the decoded action metadata of one agent reply.
type Descriptor struct {
	Action Kind
	// EventID targets an existing event for edit and delete.
	EventID *string
	// Event holds the Google Calendar event fields, passed through verbatim.
	Event json.RawMessage
}

// ID returns the target event ID or "".
func (d *Descriptor) ID() string {
	if d == nil || d.EventID == nil {
		return ""
	}
	return *d.EventID
}

// HasEvent reports whether an event payload is present.
func (d *Descriptor) HasEvent() bool {
	return d != nil && len(d.Event) > 0
}

// wire is the JSON shape exchanged with the agent and clients.
type wire struct {
	Action  Kind            `json:"action"`
	EventID *string         `json:"eventId"`
	Event   json.RawMessage `json:"event"`
}

var fencedJSON = regexp.MustCompile("(?is)```json(.*?)```")

// Decode parses agent metadata. It returns false for empty input, malformed
// input and the unknown action; a failed decode is never an error because the
// message has already been delivered.
func Decode(metadata string) (*Descriptor, bool) {
	metadata = strings.TrimSpace(metadata)
	if metadata == "" {
		return nil, false
	}

	for _, candidate := range candidates(metadata) {
		var w wire
		if err := json.Unmarshal([]byte(candidate), &w); err != nil {
			continue
		}
		return fromWire(w)
	}
	return nil, false
}

// candidates lists the spans worth parsing: a fenced json block, the text
// itself, and the outermost brace span.
func candidates(text string) []string {
	var out []string
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		out = append(out, strings.TrimSpace(m[1]))
	}
	out = append(out, text)
	first := strings.Index(text, "{")
	last := strings.LastIndex(text, "}")
	if first >= 0 && last > first {
		if span := text[first : last+1]; span != text {
			out = append(out, span)
		}
	}
	return out
}

func fromWire(w wire) (*Descriptor, bool) {
	if !w.Action.Valid() {
		return nil, false
	}

	d := &Descriptor{Action: w.Action}
	if w.EventID != nil && *w.EventID != "" {
		id := *w.EventID
		d.EventID = &id
	}
	if raw := bytes.TrimSpace(w.Event); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		d.Event = append(json.RawMessage(nil), raw...)
	}
	return d, true
}

// Unknown returns the descriptor sent when no action could be decoded.
func Unknown() *Descriptor {
	return &Descriptor{Action: KindUnknown}
}

// Encode renders d in the compact wire form written after the marker.
func Encode(d *Descriptor) (string, error) {
	if d == nil {
		d = Unknown()
	}

	w := wire{Action: d.Action, EventID: d.EventID}
	if len(d.Event) > 0 {
		var buf bytes.Buffer
		if err := json.Compact(&buf, d.Event); err != nil {
			return "", fmt.Errorf("failed to compact event: %w", err)
		}
		w.Event = buf.Bytes()
	}

	var out bytes.Buffer
	enc := json.NewEncoder(&out)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(w); err != nil {
		return "", fmt.Errorf("failed to encode action: %w", err)
	}
	return strings.TrimRight(out.String(), "\n"), nil
}
