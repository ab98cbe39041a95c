package stream_test

import (
	"errors"
	"io"
	"math/rand"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docdash/internal/model"
	"docdash/internal/stream"
)

const helloStream = `data:{"type":"chunk","content":"Hel"}` + "\n\n" +
	`data:{"type":"chunk","content":"lo"}` + "\n\n" +
	`data:{"type":"end","message":{"id":"m1","role":"assistant","content":"Hello","created_at":"t"},` +
	`"conversation":{"id":"c1","title":"Hi","message_count":2,"updated_at":"t"}}` + "\n\n"

var frameCmp = cmp.AllowUnexported(model.Timestamp{})

func decodeAll(t *testing.T, segments ...string) []stream.Frame {
	t.Helper()
	dec := stream.NewDecoder(nil)
	var frames []stream.Frame
	for _, s := range segments {
		frames = append(frames, dec.FeedString(s)...)
	}
	dec.Close()
	return frames
}

func TestDecoder_Example(t *testing.T) {
	frames := decodeAll(t, helloStream)
	require.Len(t, frames, 3)

	assert.Equal(t, stream.ChunkFrame{Content: "Hel"}, frames[0])
	assert.Equal(t, stream.ChunkFrame{Content: "lo"}, frames[1])

	end, ok := frames[2].(stream.EndFrame)
	require.True(t, ok, "third frame should be an end frame")
	require.NotNil(t, end.Message)
	require.NotNil(t, end.Conversation)
	assert.Equal(t, "m1", end.Message.ID)
	assert.Equal(t, model.RoleAssistant, end.Message.Role)
	assert.Equal(t, "Hello", end.Message.Content)
	assert.Equal(t, "c1", end.Conversation.ID)
	assert.Equal(t, 2, end.Conversation.MessageCount)
	assert.Nil(t, end.UserMessage)
}

func TestDecoder_SplitInsidePayload(t *testing.T) {
	frames := decodeAll(t, `data:{"type":"ch`, `unk","content":"X"}`+"\n\n")
	require.Len(t, frames, 1)
	assert.Equal(t, stream.ChunkFrame{Content: "X"}, frames[0])
}

func TestDecoder_SplitInsideBoundary(t *testing.T) {
	dec := stream.NewDecoder(nil)
	assert.Empty(t, dec.FeedString(`data:{"type":"chunk","content":"a"}`+"\n"))
	frames := dec.FeedString("\n")
	require.Len(t, frames, 1)
	assert.Equal(t, stream.ChunkFrame{Content: "a"}, frames[0])
	assert.Zero(t, dec.Buffered())
}

// Every way of cutting the stream must decode to the same frames as feeding it whole.
func TestDecoder_ReassemblyProperty(t *testing.T) {
	input := ": keep-alive\n\n" + helloStream +
		`data:{"type":"chunk","content":"ünïcode ✓"}` + "\n\n" +
		`data:{"type":"error","error":"boom"}` + "\n\n"
	want := decodeAll(t, input)
	require.Len(t, want, 5)

	t.Run("Every two-way split", func(t *testing.T) {
		for i := 1; i < len(input); i++ {
			got := decodeAll(t, input[:i], input[i:])
			if diff := cmp.Diff(want, got, frameCmp); diff != "" {
				t.Fatalf("split at %d mismatch (-want +got):\n%s", i, diff)
			}
		}
	})

	t.Run("Byte at a time", func(t *testing.T) {
		segments := make([]string, 0, len(input))
		for i := 0; i < len(input); i++ {
			segments = append(segments, input[i:i+1])
		}
		if diff := cmp.Diff(want, decodeAll(t, segments...), frameCmp); diff != "" {
			t.Fatalf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Random splits", func(t *testing.T) {
		rng := rand.New(rand.NewSource(42))
		for round := 0; round < 200; round++ {
			var segments []string
			rest := input
			for len(rest) > 0 {
				n := 1 + rng.Intn(min(len(rest), 40))
				segments = append(segments, rest[:n])
				rest = rest[n:]
			}
			if diff := cmp.Diff(want, decodeAll(t, segments...), frameCmp); diff != "" {
				t.Fatalf("round %d mismatch (-want +got):\n%s", round, diff)
			}
		}
	})
}

func TestDecoder_NoPartialEmission(t *testing.T) {
	dec := stream.NewDecoder(nil)
	frames := dec.FeedString(`data:{"type":"chunk","content":"done"}` + "\n\n" + `data:{"type":"chunk","content":"cut`)
	require.Len(t, frames, 1)

	assert.Positive(t, dec.Buffered())
	dropped := dec.Close()
	assert.Equal(t, len(`data:{"type":"chunk","content":"cut`), dropped)
	assert.Zero(t, dec.Buffered())
	assert.Equal(t, dropped, dec.Stats().Discarded)

	// A complete frame without its trailing blank line is also never emitted.
	frames = decodeAll(t, `data:{"type":"chunk","content":"whole"}`+"\n")
	assert.Empty(t, frames)
}

func TestDecoder_Leniency(t *testing.T) {
	dec := stream.NewDecoder(nil)
	frames := dec.FeedString(
		`data:{"type":"chunk","content":"a"}` + "\n\n" +
			`data:{not json` + "\n\n" +
			`data:{"type":"mystery"}` + "\n\n" +
			`event: ping` + "\n\n" +
			`data:{"type":"chunk","content":"b"}` + "\n\n",
	)

	require.Len(t, frames, 2)
	assert.Equal(t, stream.ChunkFrame{Content: "a"}, frames[0])
	assert.Equal(t, stream.ChunkFrame{Content: "b"}, frames[1])

	stats := dec.Stats()
	assert.Equal(t, 2, stats.Frames)
	assert.Equal(t, 2, stats.Malformed)
	assert.Equal(t, 1, stats.Ignored)
}

func TestDecoder_TrimsAndAcceptsSpaceAfterMarker(t *testing.T) {
	frames := decodeAll(t, "\r\n  data: {\"type\":\"chunk\",\"content\":\"x\"}  \n\n")
	require.Len(t, frames, 1)
	assert.Equal(t, stream.ChunkFrame{Content: "x"}, frames[0])
}

func TestDecoder_Frames(t *testing.T) {
	t.Run("Reads lazily until EOF", func(t *testing.T) {
		dec := stream.NewDecoder(nil)
		r := iotest.OneByteReader(strings.NewReader(helloStream + `data:{"type":"chunk"`))

		var got []stream.Frame
		for f, err := range dec.Frames(r) {
			require.NoError(t, err)
			got = append(got, f)
		}
		assert.Len(t, got, 3)
		assert.Positive(t, dec.Stats().Discarded)
	})

	t.Run("Read errors end the sequence", func(t *testing.T) {
		boom := errors.New("connection reset")
		r := io.MultiReader(strings.NewReader(`data:{"type":"chunk","content":"a"}`+"\n\n"), iotest.ErrReader(boom))

		var frames int
		var gotErr error
		for f, err := range stream.NewDecoder(nil).Frames(r) {
			if err != nil {
				gotErr = err
				continue
			}
			assert.NotNil(t, f)
			frames++
		}
		assert.Equal(t, 1, frames)
		assert.ErrorIs(t, gotErr, boom)
	})

	t.Run("Stops when the consumer breaks", func(t *testing.T) {
		var count int
		for range stream.NewDecoder(nil).Frames(strings.NewReader(helloStream)) {
			count++
			break
		}
		assert.Equal(t, 1, count)
	})
}
