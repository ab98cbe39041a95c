package stream

import (
	"bytes"
	"errors"
	"io"
	"iter"
	"log/slog"
)

const (
	dataMarker = "data:"
	readSize   = 4096
)

var boundary = []byte("\n\n")

// Stats counts what a Decoder did with the blocks it resolved.
type Stats struct {
	Frames    int // blocks decoded into frames
	Ignored   int // blocks without the data: marker, e.g. keep-alive comments
	Malformed int // data: blocks whose payload was not a valid frame
	Discarded int // bytes dropped by Close because no boundary followed them
}

// Decoder reassembles frames from text that arrives at arbitrary boundaries.
//
// It holds one buffer of bytes received but not yet resolved into a block.
// Malformed payloads are logged and skipped; they never stop decoding.
// A Decoder is not safe for concurrent use.
type Decoder struct {
	buf     []byte
	scanned int
	stats   Stats
	logger  *slog.Logger
}

// NewDecoder returns an empty Decoder. A nil logger means slog.Default().
func NewDecoder(logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{logger: logger}
}

// Feed appends segment to the buffer and returns, in order, every frame
// whose terminating blank line is now present.
func (d *Decoder) Feed(segment []byte) []Frame {
	d.buf = append(d.buf, segment...)

	var frames []Frame
	consumed := 0
	for {
		// A boundary may straddle the previous segment, so back up one byte.
		from := max(consumed, d.scanned-1)
		i := bytes.Index(d.buf[from:], boundary)
		if i < 0 {
			break
		}
		end := from + i
		if f, ok := d.resolve(d.buf[consumed:end]); ok {
			frames = append(frames, f)
		}
		consumed = end + len(boundary)
		d.scanned = consumed
	}

	if consumed > 0 {
		d.buf = append(d.buf[:0], d.buf[consumed:]...)
	}
	d.scanned = len(d.buf)
	return frames
}

// FeedString is Feed for callers that already hold decoded text.
func (d *Decoder) FeedString(segment string) []Frame {
	return d.Feed([]byte(segment))
}

// Close signals end of input. Any unterminated remainder is dropped, never
// emitted; the number of dropped bytes is returned.
func (d *Decoder) Close() int {
	n := len(bytes.TrimSpace(d.buf))
	if n > 0 {
		d.logger.Debug("Discarding unterminated stream data", "bytes", n)
		d.stats.Discarded += n
	}
	d.buf = d.buf[:0]
	d.scanned = 0
	return n
}

// Buffered reports how many bytes are waiting for a boundary.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Stats returns the decoder's counters so far.
func (d *Decoder) Stats() Stats {
	return d.stats
}

// Frames reads r to exhaustion and yields decoded frames lazily, one read at
// a time. Only read failures are yielded as errors; after an error or EOF
// the sequence ends.
func (d *Decoder) Frames(r io.Reader) iter.Seq2[Frame, error] {
	return func(yield func(Frame, error) bool) {
		buf := make([]byte, readSize)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				for _, f := range d.Feed(buf[:n]) {
					if !yield(f, nil) {
						return
					}
				}
			}
			if errors.Is(err, io.EOF) {
				d.Close()
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
		}
	}
}

func (d *Decoder) resolve(block []byte) (Frame, bool) {
	text := bytes.TrimSpace(block)
	if !bytes.HasPrefix(text, []byte(dataMarker)) {
		d.stats.Ignored++
		return nil, false
	}

	payload := bytes.TrimSpace(text[len(dataMarker):])
	f, err := ParseFrame(payload)
	if err != nil {
		d.stats.Malformed++
		d.logger.Warn("Skipping malformed stream frame", "bytes", len(payload), "error", err)
		return nil, false
	}

	d.stats.Frames++
	return f, true
}
