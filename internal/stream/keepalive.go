package stream

import (
	"log/slog"
	"sync"
	"time"
)

// KeepAliveWriter is the part of Writer that KeepAlive needs.
type KeepAliveWriter interface {
	WriteKeepAlive() error
}

// KeepAlive pings a stream on a fixed interval so proxies don't close an
// idle connection while the model is thinking.
type KeepAlive struct {
	interval time.Duration
	done     chan struct{}
	once     sync.Once
}

// NewKeepAlive returns a stopped KeepAlive. An interval <= 0 disables it.
func NewKeepAlive(interval time.Duration) *KeepAlive {
	return &KeepAlive{
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start pings w until Stop is called or a write fails. The returned channel
// closes when the pinging goroutine exits.
func (k *KeepAlive) Start(w KeepAliveWriter, logger *slog.Logger) <-chan struct{} {
	stopped := make(chan struct{})
	if k.interval <= 0 {
		close(stopped)
		return stopped
	}
	if logger == nil {
		logger = slog.Default()
	}

	go func() {
		defer close(stopped)
		ticker := time.NewTicker(k.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := w.WriteKeepAlive(); err != nil {
					logger.Warn("keep-alive write failed, stopping", "error", err)
					return
				}
			case <-k.done:
				return
			}
		}
	}()

	return stopped
}

// Stop ends the pinging. Safe to call more than once.
func (k *KeepAlive) Stop() {
	k.once.Do(func() { close(k.done) })
}
