package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrClosed is returned when a closed Splitter receives more input.
	ErrClosed = errors.New("splitter is closed")

	// ErrUpstream wraps failures reported by the upstream source.
	ErrUpstream = errors.New("upstream stream failed")

	// ErrCanceled is returned when the context ends before the stream completes.
	ErrCanceled = errors.New("stream canceled")

	// ErrDownstream wraps failures writing message fragments to the client.
	ErrDownstream = errors.New("downstream write failed")
)

// Source yields the fragments of one upstream reply.
// Next returns io.EOF once the reply has completed; any other error is a failure.
type Source interface {
	Next(ctx context.Context) (string, error)
}

// EmitFunc receives message fragments in order.
type EmitFunc func(fragment string) error

// Result describes a stream that completed.
type Result struct {
	// Metadata is the trimmed text after the marker, empty if there was none.
	Metadata string
	// MarkerSeen reports whether the marker appeared.
	MarkerSeen bool
	// MetadataDropped reports that metadata exceeded the cap and was discarded.
	MetadataDropped bool
	// Fragments is the number of message fragments emitted.
	Fragments int
	// MessageBytes is the total size of the emitted message.
	MessageBytes int
}

// Split reads src until it completes, forwarding message fragments to emit as
// soon as they are known not to belong to the marker.
//
// A Result is only returned when the source reported a clean end of stream and
// every fragment was written. On cancellation, upstream failure or a failed
// write the splitter is aborted and no metadata is produced.
func Split(ctx context.Context, src Source, emit EmitFunc, opts ...Option) (*Result, error) {
	s := NewSplitter(opts...)
	res := &Result{}

	write := func(fragment string) error {
		if fragment == "" {
			return nil
		}
		if err := emit(fragment); err != nil {
			return fmt.Errorf("%w: %w", ErrDownstream, err)
		}
		res.Fragments++
		res.MessageBytes += len(fragment)
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			s.Abort()
			return nil, fmt.Errorf("%w: %w", ErrCanceled, err)
		}

		fragment, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			if fragment != "" {
				// Sources may return a final fragment together with EOF.
				out, ferr := s.Feed(fragment)
				if ferr != nil {
					return nil, ferr
				}
				if werr := write(out); werr != nil {
					s.Abort()
					return nil, werr
				}
			}
			break
		}
		if err != nil {
			s.Abort()
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("%w: %w", ErrCanceled, ctxErr)
			}
			return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
		}

		out, err := s.Feed(fragment)
		if err != nil {
			return nil, err
		}
		if err := write(out); err != nil {
			s.Abort()
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		s.Abort()
		return nil, fmt.Errorf("%w: %w", ErrCanceled, err)
	}

	message, metadata, err := s.Close()
	if err != nil {
		return nil, err
	}
	if err := write(message); err != nil {
		return nil, err
	}

	res.Metadata = metadata
	res.MarkerSeen = s.MarkerSeen()
	res.MetadataDropped = s.MetadataDropped()
	return res, nil
}

// SplitString splits a complete reply in one step.
func SplitString(reply string, opts ...Option) (message, metadata string) {
	s := NewSplitter(opts...)
	head, _ := s.Feed(reply)
	tail, metadata, _ := s.Close()
	return head + tail, metadata
}
