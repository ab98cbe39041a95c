package stream_test

import (
	"errors"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docdash/internal/model"
	"docdash/internal/stream"
)

func TestWriter_RoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()
	stream.PrepareHeaders(rec.Header())
	w := stream.NewWriter(rec)

	created := model.NewTimestamp(time.Date(2025, 11, 9, 10, 0, 0, 0, time.UTC))
	frames := []stream.Frame{
		stream.ChunkFrame{Content: "Hel"},
		stream.ChunkFrame{Content: ""},
		stream.EndFrame{
			Message:      &model.ChatMessage{ID: "m1", Role: model.RoleAssistant, Content: "Hel", CreatedAt: created},
			Conversation: &model.ConversationSummary{ID: "c1", Title: "Hi", MessageCount: 2, UpdatedAt: created},
			UserMessage:  &model.ChatMessage{ID: "u1", Role: model.RoleUser, Content: "Hi", CreatedAt: created},
		},
		stream.ErrorFrame{Message: "boom"},
	}

	require.NoError(t, w.WriteKeepAlive())
	for _, f := range frames {
		require.NoError(t, w.WriteFrame(f))
	}

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.True(t, rec.Flushed)
	assert.Contains(t, rec.Body.String(), `data:{"type":"chunk","content":""}`+"\n\n")

	got := decodeAll(t, rec.Body.String())
	if diff := cmp.Diff(frames, got, cmp.AllowUnexported(model.Timestamp{})); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

type countingWriter struct {
	pings atomic.Int32
	fail  bool
}

func (c *countingWriter) WriteKeepAlive() error {
	c.pings.Add(1)
	if c.fail {
		return errors.New("closed")
	}
	return nil
}

func TestKeepAlive(t *testing.T) {
	t.Run("Pings until stopped", func(t *testing.T) {
		w := &countingWriter{}
		ka := stream.NewKeepAlive(5 * time.Millisecond)
		stopped := ka.Start(w, nil)

		assert.Eventually(t, func() bool { return w.pings.Load() >= 2 }, time.Second, time.Millisecond)
		ka.Stop()
		ka.Stop()
		<-stopped
	})

	t.Run("Stops itself on write failure", func(t *testing.T) {
		w := &countingWriter{fail: true}
		stopped := stream.NewKeepAlive(time.Millisecond).Start(w, nil)

		select {
		case <-stopped:
		case <-time.After(time.Second):
			t.Fatal("keep-alive did not stop after a failed write")
		}
		assert.Equal(t, int32(1), w.pings.Load())
	})

	t.Run("Disabled interval", func(t *testing.T) {
		stopped := stream.NewKeepAlive(0).Start(&countingWriter{}, nil)
		_, open := <-stopped
		assert.False(t, open)
	})
}
