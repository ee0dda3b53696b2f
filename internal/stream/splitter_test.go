package stream

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// feedAll runs fragments through a fresh Splitter and returns every emitted
// fragment plus the metadata.
func feedAll(t *testing.T, fragments []string, opts ...Option) ([]string, string) {
	t.Helper()

	s := NewSplitter(opts...)
	var emitted []string
	for _, f := range fragments {
		out, err := s.Feed(f)
		require.NoError(t, err)
		if out != "" {
			emitted = append(emitted, out)
		}
	}
	tail, metadata, err := s.Close()
	require.NoError(t, err)
	if tail != "" {
		emitted = append(emitted, tail)
	}
	return emitted, metadata
}

func bytewise(s string) []string {
	out := make([]string, 0, len(s))
	for i := 0; i < len(s); i++ {
		out = append(out, s[i:i+1])
	}
	return out
}

func TestSplitter_EndToEndScenario(t *testing.T) {
	fragments := []string{
		"Hello",
		", I sch",
		"eduled it.---JSON",
		"_META---",
		`{"action":"insert","eventId":null,"event":{"summary":"X"}}`,
	}

	emitted, metadata := feedAll(t, fragments)

	assert.Equal(t, "Hello, I scheduled it.", strings.Join(emitted, ""))
	assert.Equal(t, `{"action":"insert","eventId":null,"event":{"summary":"X"}}`, metadata)
}

func TestSplitter_MarkerSplittingAcrossPartitions(t *testing.T) {
	msg := "  Sure! I moved your dentist appointment to Friday at 3 PM.  \n"
	meta := "\n" + `{"action":"edit","eventId":"abc123","event":{"start":{"dateTime":"2026-10-23T15:00:00"}}}` + " \n"
	input := msg + Marker + meta

	wantMessage := strings.TrimSpace(msg)
	wantMetadata := strings.TrimSpace(meta)

	check := func(t *testing.T, fragments []string) {
		t.Helper()
		emitted, metadata := feedAll(t, fragments)
		joined := strings.Join(emitted, "")
		if joined != wantMessage || metadata != wantMetadata {
			t.Fatalf("fragments %q: message = %q, metadata = %q", fragments, joined, metadata)
		}
		for _, e := range emitted {
			if strings.TrimSpace(e) == "" {
				t.Fatalf("fragments %q: emitted blank fragment %q", fragments, e)
			}
			if strings.Contains(e, "-") {
				t.Fatalf("fragments %q: emitted marker bytes %q", fragments, e)
			}
		}
	}

	t.Run("single fragment", func(t *testing.T) {
		check(t, []string{input})
	})

	t.Run("byte at a time", func(t *testing.T) {
		check(t, bytewise(input))
	})

	t.Run("two way cuts", func(t *testing.T) {
		for i := 0; i <= len(input); i++ {
			check(t, []string{input[:i], input[i:]})
		}
	})

	t.Run("three way cuts", func(t *testing.T) {
		for i := 0; i <= len(input); i++ {
			for j := i; j <= len(input); j++ {
				check(t, []string{input[:i], input[i:j], input[j:]})
			}
		}
	})
}

func TestSplitter_NoMarker(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "plain reply", input: "I can only help with calendar tasks."},
		{name: "surrounding whitespace", input: "\n\n  Which meeting do you mean?  \n"},
		{name: "interior whitespace kept", input: "Line one.\n\n   Line two.   Done."},
		{name: "dashes that are not the marker", input: "Agenda -- intro --- wrap up ---JSON_MET"},
		{name: "shorter than marker", input: "ok"},
		{name: "whitespace only", input: " \t\n "},
		{name: "empty", input: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := strings.TrimSpace(tt.input)

			for i := 0; i <= len(tt.input); i++ {
				emitted, metadata := feedAll(t, []string{tt.input[:i], tt.input[i:]})
				assert.Equal(t, want, strings.Join(emitted, ""), "cut at %d", i)
				assert.Empty(t, metadata)
			}

			emitted, metadata := feedAll(t, bytewise(tt.input))
			assert.Equal(t, want, strings.Join(emitted, ""))
			assert.Empty(t, metadata)
		})
	}
}

func TestSplitter_IncrementalDelivery(t *testing.T) {
	s := NewSplitter()

	out, err := s.Feed("Your meeting with the design team is booked for tomorrow.")
	require.NoError(t, err)
	assert.NotEmpty(t, out, "message must be released before end of stream")
	assert.Equal(t, StateScanning, s.State())

	// The possible marker prefix at the tail is withheld.
	out, err = s.Feed(" See you ---JSON_")
	require.NoError(t, err)
	assert.NotContains(t, out, "---JSON_")

	out, err = s.Feed("META---{}")
	require.NoError(t, err)
	assert.NotContains(t, out, "-")
	assert.Equal(t, StateMetadataCapture, s.State())
	assert.True(t, s.MarkerSeen())
}

func TestSplitter_OnlyFirstMarkerCounts(t *testing.T) {
	input := "Done." + Marker + `{"action":"delete","eventId":"a","event":null}` + Marker + "trailing"

	emitted, metadata := feedAll(t, bytewise(input))

	assert.Equal(t, "Done.", strings.Join(emitted, ""))
	assert.Equal(t, `{"action":"delete","eventId":"a","event":null}`+Marker+"trailing", metadata)
}

func TestSplitter_BlankMessageBeforeMarker(t *testing.T) {
	for _, input := range []string{
		Marker + `{"action":"unknown"}`,
		"   \n\t" + Marker + `{"action":"unknown"}`,
	} {
		emitted, metadata := feedAll(t, bytewise(input))
		assert.Empty(t, emitted)
		assert.Equal(t, `{"action":"unknown"}`, metadata)
	}
}

func TestSplitter_EmptyStream(t *testing.T) {
	emitted, metadata := feedAll(t, nil)
	assert.Empty(t, emitted)
	assert.Empty(t, metadata)

	emitted, metadata = feedAll(t, []string{"", "", ""})
	assert.Empty(t, emitted)
	assert.Empty(t, metadata)
}

func TestSplitter_ClosedIsTerminal(t *testing.T) {
	s := NewSplitter()

	out, err := s.Feed("All set." + Marker + `{"action":"unknown"}`)
	require.NoError(t, err)
	assert.Equal(t, "All set.", out)

	_, metadata, err := s.Close()
	require.NoError(t, err)
	assert.Equal(t, `{"action":"unknown"}`, metadata)
	assert.Equal(t, StateClosed, s.State())

	out, err = s.Feed("more text")
	assert.ErrorIs(t, err, ErrClosed)
	assert.Empty(t, out)

	message, metadata, err := s.Close()
	assert.ErrorIs(t, err, ErrClosed)
	assert.Empty(t, message)
	assert.Empty(t, metadata)
}

func TestSplitter_AbortDiscardsMetadata(t *testing.T) {
	s := NewSplitter()

	_, err := s.Feed("Deleting it." + Marker + `{"action":"delete","eventId":"abc","event":null}`)
	require.NoError(t, err)

	s.Abort()
	assert.Equal(t, StateClosed, s.State())

	_, metadata, err := s.Close()
	assert.ErrorIs(t, err, ErrClosed)
	assert.Empty(t, metadata)
}

func TestSplitter_MetadataCap(t *testing.T) {
	big := `{"action":"insert","eventId":null,"event":{"description":"` + strings.Repeat("x", 200) + `"}}`

	emitted, metadata := feedAll(t, []string{"Booked.", Marker, big}, WithMaxMetadataBytes(64))
	assert.Equal(t, "Booked.", strings.Join(emitted, ""))
	assert.Empty(t, metadata)

	s := NewSplitter(WithMaxMetadataBytes(64))
	_, _ = s.Feed("Booked." + Marker + big)
	assert.True(t, s.MetadataDropped())

	emitted, metadata = feedAll(t, []string{"Booked.", Marker, big}, WithMaxMetadataBytes(0))
	assert.Equal(t, "Booked.", strings.Join(emitted, ""))
	assert.Equal(t, big, metadata)
}

func TestSplitter_KeepsRunesWhole(t *testing.T) {
	input := "好的，我已经把会议改到明天下午三点 ★ café ✓" + Marker + `{"action":"unknown"}`

	emitted, metadata := feedAll(t, bytewise(input))

	for _, e := range emitted {
		assert.True(t, utf8.ValidString(e), "fragment %q is not valid UTF-8", e)
	}
	assert.Equal(t, "好的，我已经把会议改到明天下午三点 ★ café ✓", strings.Join(emitted, ""))
	assert.Equal(t, `{"action":"unknown"}`, metadata)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "scanning", StateScanning.String())
	assert.Equal(t, "metadata_capture", StateMetadataCapture.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestSplitString(t *testing.T) {
	message, metadata := SplitString("  Hi there. \n" + Marker + "\n{\"action\":\"unknown\"}\n")
	assert.Equal(t, "Hi there.", message)
	assert.Equal(t, `{"action":"unknown"}`, metadata)
}
