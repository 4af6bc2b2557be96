package capture

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/replitone/replitone/pkg/core/types"
)

// fakeStream feeds queued chunks to the reader and then blocks until released.
type fakeStream struct {
	mu       sync.Mutex
	chunks   [][]byte
	released bool
	wake     chan struct{}
}

func newFakeStream(chunks ...[]byte) *fakeStream {
	return &fakeStream{chunks: chunks, wake: make(chan struct{}, 1)}
}

func (s *fakeStream) Read(p []byte) (int, error) {
	for {
		s.mu.Lock()
		if len(s.chunks) > 0 {
			n := copy(p, s.chunks[0])
			s.chunks = s.chunks[1:]
			s.mu.Unlock()
			return n, nil
		}
		released := s.released
		s.mu.Unlock()
		if released {
			return 0, io.EOF
		}
		select {
		case <-s.wake:
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (s *fakeStream) Release() error {
	s.mu.Lock()
	s.released = true
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

type fakeDevice struct {
	stream     *fakeStream
	acquireErr error
	acquired   int
}

func (d *fakeDevice) Acquire(ctx context.Context) (Stream, error) {
	if d.acquireErr != nil {
		return nil, d.acquireErr
	}
	d.acquired++
	return d.stream, nil
}

func TestBeginEndBuffersData(t *testing.T) {
	dev := &fakeDevice{stream: newFakeStream([]byte("hel"), []byte("lo"))}
	c := NewController(dev)

	h, err := c.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	// Give the reader goroutine time to drain the queued chunks.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		dev.stream.mu.Lock()
		drained := len(dev.stream.chunks) == 0
		dev.stream.mu.Unlock()
		if drained {
			break
		}
		time.Sleep(time.Millisecond)
	}

	payload, err := c.End(h)
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if payload.Kind != types.AudioCaptured {
		t.Fatalf("payload kind=%q, want %q", payload.Kind, types.AudioCaptured)
	}
	if got := string(payload.Data); got != "hello" {
		t.Fatalf("payload=%q, want %q", got, "hello")
	}
	if c.Active() {
		t.Fatal("controller still active after End")
	}
}

func TestBeginTwiceFailsAlreadyCapturing(t *testing.T) {
	dev := &fakeDevice{stream: newFakeStream()}
	c := NewController(dev)

	h, err := c.Begin(context.Background())
	if err != nil {
		t.Fatalf("first Begin: %v", err)
	}
	if _, err := c.Begin(context.Background()); !types.IsFault(err, types.FaultAlreadyCapturing) {
		t.Fatalf("second Begin err=%v, want AlreadyCapturing", err)
	}
	// The first capture is unaffected.
	if _, err := c.End(h); err != nil {
		t.Fatalf("End after rejected Begin: %v", err)
	}
}

func TestBeginDeviceUnavailable(t *testing.T) {
	dev := &fakeDevice{acquireErr: errors.New("permission denied")}
	c := NewController(dev)
	if _, err := c.Begin(context.Background()); !types.IsFault(err, types.FaultDeviceUnavailable) {
		t.Fatalf("Begin err=%v, want DeviceUnavailable", err)
	}
	if c.Active() {
		t.Fatal("controller active after failed Begin")
	}
}

func TestEndInactiveHandleInvalidState(t *testing.T) {
	dev := &fakeDevice{stream: newFakeStream()}
	c := NewController(dev)

	if _, err := c.End(&Handle{}); !types.IsFault(err, types.FaultInvalidState) {
		t.Fatalf("End of inactive handle err=%v, want InvalidState", err)
	}

	h, err := c.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := c.End(h); err != nil {
		t.Fatalf("End: %v", err)
	}
	if _, err := c.End(h); !types.IsFault(err, types.FaultInvalidState) {
		t.Fatalf("double End err=%v, want InvalidState", err)
	}
}

func TestEndImmediatelyYieldsEmptyPayload(t *testing.T) {
	dev := &fakeDevice{stream: newFakeStream()}
	c := NewController(dev)

	h, err := c.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	payload, err := c.End(h)
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if !payload.Empty() {
		t.Fatalf("payload len=%d, want empty", len(payload.Data))
	}
}
