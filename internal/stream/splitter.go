package stream

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Marker separates the human-readable reply from the action metadata.
const Marker = "---JSON_META---"

// DefaultMaxMetadataBytes caps how much metadata a single reply may carry.
const DefaultMaxMetadataBytes = 64 * 1024

// State is the lifecycle state of a Splitter.
type State int

const (
	// StateScanning means the marker has not been seen yet.
	StateScanning State = iota
	// StateMetadataCapture means the marker was seen and all further input is metadata.
	StateMetadataCapture
	// StateClosed is terminal.
	StateClosed
)

// String returns the state name used in logs and metrics.
func (s State) String() string {
	switch s {
	case StateScanning:
		return "scanning"
	case StateMetadataCapture:
		return "metadata_capture"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithMaxMetadataBytes sets the metadata cap. Zero or a negative value disables it.
func WithMaxMetadataBytes(n int) Option {
	return func(s *Splitter) {
		s.maxMetadata = n
	}
}

// Splitter separates one upstream reply into message text and metadata.
//
// A Splitter is owned by a single request and is not safe for concurrent use.
type Splitter struct {
	state State
	buf   strings.Builder

	// started is set once a non-space message byte has been emitted.
	started bool
	// pending holds trailing whitespace that is only emitted if more text follows.
	pending string

	markerSeen      bool
	metadataDropped bool
	maxMetadata     int
}

// NewSplitter returns a Splitter in the scanning state.
func NewSplitter(opts ...Option) *Splitter {
	s := &Splitter{
		state:       StateScanning,
		maxMetadata: DefaultMaxMetadataBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state.
func (s *Splitter) State() State {
	return s.state
}

// MarkerSeen reports whether the marker has been observed.
func (s *Splitter) MarkerSeen() bool {
	return s.markerSeen
}

// MetadataDropped reports whether the metadata exceeded the configured cap.
func (s *Splitter) MetadataDropped() bool {
	return s.metadataDropped
}

// Feed appends a fragment and returns the message text that is now safe to emit.
// The returned string is empty when nothing can be released yet.
func (s *Splitter) Feed(fragment string) (string, error) {
	switch s.state {
	case StateClosed:
		return "", ErrClosed
	case StateMetadataCapture:
		s.captureMetadata(fragment)
		return "", nil
	}

	s.buf.WriteString(fragment)
	text := s.buf.String()

	if idx := strings.Index(text, Marker); idx >= 0 {
		out := s.shape(text[:idx], true)
		s.markerSeen = true
		s.state = StateMetadataCapture
		s.buf.Reset()
		s.captureMetadata(text[idx+len(Marker):])
		return out, nil
	}

	// Withhold a possible marker prefix at the tail.
	cut := len(text) - (len(Marker) - 1)
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	if cut <= 0 {
		return "", nil
	}

	out := s.shape(text[:cut], false)
	tail := text[cut:]
	s.buf.Reset()
	s.buf.WriteString(tail)
	return out, nil
}

// Close ends the stream. It returns the remaining message text and, if the
// marker was seen, the trimmed metadata.
func (s *Splitter) Close() (message, metadata string, err error) {
	switch s.state {
	case StateClosed:
		return "", "", ErrClosed
	case StateScanning:
		message = s.shape(s.buf.String(), true)
	case StateMetadataCapture:
		if !s.metadataDropped {
			metadata = strings.TrimSpace(s.buf.String())
		}
	}
	s.release()
	return message, metadata, nil
}

// Abort moves the splitter to the closed state without producing metadata.
func (s *Splitter) Abort() {
	s.release()
}

func (s *Splitter) release() {
	s.state = StateClosed
	s.buf.Reset()
	s.pending = ""
}

func (s *Splitter) captureMetadata(text string) {
	if s.metadataDropped || text == "" {
		return
	}
	if s.maxMetadata > 0 && s.buf.Len()+len(text) > s.maxMetadata {
		s.metadataDropped = true
		s.buf.Reset()
		return
	}
	s.buf.WriteString(text)
}

// shape trims the message as a whole: leading whitespace is dropped until the
// first visible byte, and trailing whitespace is held until more text follows.
// final drops any held whitespace instead of carrying it forward.
func (s *Splitter) shape(text string, final bool) string {
	if !s.started {
		text = strings.TrimLeftFunc(text, unicode.IsSpace)
		if text == "" {
			return ""
		}
		s.started = true
	}

	text = s.pending + text
	s.pending = ""

	trimmed := strings.TrimRightFunc(text, unicode.IsSpace)
	if !final {
		s.pending = text[len(trimmed):]
	}
	return trimmed
}
