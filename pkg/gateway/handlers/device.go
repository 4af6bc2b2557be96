package handlers

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/replitone/replitone/pkg/core/capture"
)

// streamDevice adapts websocket audio_chunk frames into a capture device.
// Bytes pushed while no stream is acquired are dropped, matching a microphone
// that is not currently recording.
type streamDevice struct {
	mu  sync.Mutex
	cur *chunkStream
}

func (d *streamDevice) Acquire(ctx context.Context) (capture.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cur != nil {
		return nil, errors.New("input stream already acquired")
	}
	s := &chunkStream{
		owner:    d,
		data:     make(chan []byte, 32),
		released: make(chan struct{}),
	}
	d.cur = s
	return s, nil
}

// Push forwards one chunk of client audio to the acquired stream, if any.
func (d *streamDevice) Push(p []byte) {
	d.mu.Lock()
	s := d.cur
	d.mu.Unlock()
	if s != nil {
		s.push(p)
	}
}

func (d *streamDevice) detach(s *chunkStream) {
	d.mu.Lock()
	if d.cur == s {
		d.cur = nil
	}
	d.mu.Unlock()
}

type chunkStream struct {
	owner *streamDevice

	data        chan []byte
	released    chan struct{}
	releaseOnce sync.Once
	rest        []byte
}

func (s *chunkStream) push(p []byte) {
	buf := make([]byte, len(p))
	copy(buf, p)
	select {
	case s.data <- buf:
	case <-s.released:
	default:
		// Buffer full; drop the chunk rather than block the reader loop.
	}
}

func (s *chunkStream) Read(p []byte) (int, error) {
	if len(s.rest) > 0 {
		n := copy(p, s.rest)
		s.rest = s.rest[n:]
		return n, nil
	}
	select {
	case chunk := <-s.data:
		n := copy(p, chunk)
		s.rest = chunk[n:]
		return n, nil
	case <-s.released:
		// Drain chunks that landed before release so no tail audio is lost.
		select {
		case chunk := <-s.data:
			n := copy(p, chunk)
			s.rest = chunk[n:]
			return n, nil
		default:
			return 0, io.EOF
		}
	}
}

func (s *chunkStream) Release() error {
	s.releaseOnce.Do(func() {
		close(s.released)
		s.owner.detach(s)
	})
	return nil
}
