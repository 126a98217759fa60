package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	sharedErrors "github.com/khanhnv2901/seca-switch/internal/shared/errors"
)

const (
	readBufferSize = 4096
	chunkBacklog   = 256
)

// stream pumps bytes from the device into a channel so reads can be bounded by
// an idle window and abandoned on cancellation.
type stream struct {
	chunks    chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu  sync.Mutex
	err error
}

func newStream(r io.Reader) *stream {
	s := &stream{
		chunks: make(chan []byte, chunkBacklog),
		done:   make(chan struct{}),
	}
	go s.pump(r)
	return s
}

func (s *stream) pump(r io.Reader) {
	defer close(s.chunks)

	buf := make([]byte, readBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case s.chunks <- chunk:
			case <-s.done:
				return
			}
		}
		if err != nil {
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
			return
		}
	}
}

func (s *stream) readErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil || errors.Is(s.err, io.EOF) {
		return sharedErrors.ErrSessionClosed
	}
	return fmt.Errorf("%w: %v", sharedErrors.ErrSessionClosed, s.err)
}

// ReceiveUntil implements Transport.
func (s *stream) ReceiveUntil(ctx context.Context, match func([]byte) bool, idle time.Duration) ([]byte, error) {
	var buf []byte

	timer := time.NewTimer(idle)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return buf, ctx.Err()
		case <-s.done:
			return buf, sharedErrors.ErrSessionClosed
		case chunk, ok := <-s.chunks:
			if !ok {
				return buf, s.readErr()
			}
			buf = append(buf, chunk...)
			if match != nil && match(buf) {
				return buf, nil
			}
			timer.Reset(idle)
		case <-timer.C:
			return buf, sharedErrors.ErrReadTimeout
		}
	}
}

// Discard implements Transport.
func (s *stream) Discard() int {
	dropped := 0
	for {
		select {
		case chunk, ok := <-s.chunks:
			if !ok {
				return dropped
			}
			dropped += len(chunk)
		default:
			return dropped
		}
	}
}

func (s *stream) close() {
	s.closeOnce.Do(func() { close(s.done) })
}
