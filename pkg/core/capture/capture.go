// Package capture owns the lifecycle of a single recording session: acquire
// the input device, buffer samples, and finalize the accumulated data into one
// payload.
package capture

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/replitone/replitone/pkg/core/types"
)

// Device abstracts the audio input device. Acquire must grant exclusive access
// or fail; the returned Stream delivers raw captured bytes until released.
type Device interface {
	Acquire(ctx context.Context) (Stream, error)
}

// Stream is an acquired input stream. Read blocks until data is available or
// the stream is released; Release unblocks any pending Read.
type Stream interface {
	io.Reader
	Release() error
}

// Handle identifies one active capture. It is only valid between Begin and the
// matching End.
type Handle struct {
	stream Stream

	mu  sync.Mutex
	buf bytes.Buffer

	stopOnce sync.Once
	stopped  chan struct{}
	done     chan struct{}
}

func (h *Handle) appendChunk(p []byte) {
	h.mu.Lock()
	h.buf.Write(p)
	h.mu.Unlock()
}

func (h *Handle) payload() types.AudioPayload {
	h.mu.Lock()
	defer h.mu.Unlock()
	data := make([]byte, h.buf.Len())
	copy(data, h.buf.Bytes())
	return types.AudioPayload{Kind: types.AudioCaptured, Data: data}
}

// Controller enforces at-most-one active capture and finalizes buffered data.
type Controller struct {
	device Device

	mu     sync.Mutex
	active *Handle
}

// NewController creates a capture controller over the given device.
func NewController(device Device) *Controller {
	return &Controller{device: device}
}

// Begin requests exclusive access to the input device and starts buffering.
// A second Begin before End fails with an AlreadyCapturing fault; a device
// that cannot be acquired fails with DeviceUnavailable.
func (c *Controller) Begin(ctx context.Context) (*Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		return nil, types.NewFault(types.FaultAlreadyCapturing, "a capture is already active")
	}
	if c.device == nil {
		return nil, types.NewFault(types.FaultDeviceUnavailable, "no input device configured")
	}

	stream, err := c.device.Acquire(ctx)
	if err != nil {
		return nil, types.WrapFault(types.FaultDeviceUnavailable, "acquire input device", err)
	}

	h := &Handle{
		stream:  stream,
		stopped: make(chan struct{}),
		done:    make(chan struct{}),
	}
	c.active = h

	go func() {
		defer close(h.done)
		chunk := make([]byte, 4096)
		for {
			n, err := stream.Read(chunk)
			if n > 0 {
				select {
				case <-h.stopped:
					// Finalization already started; drop late data.
				default:
					h.appendChunk(chunk[:n])
				}
			}
			if err != nil {
				return
			}
		}
	}()

	return h, nil
}

// End stops buffering, releases the device, and finalizes the accumulated
// data into one payload. Ending a handle that is not the active capture fails
// with InvalidState. Zero buffered bytes still yields an empty payload;
// downstream recognition treats that as "no speech detected", not an error.
func (c *Controller) End(h *Handle) (types.AudioPayload, error) {
	c.mu.Lock()
	if h == nil || c.active != h {
		c.mu.Unlock()
		return types.AudioPayload{}, types.NewFault(types.FaultInvalidState, "handle is not the active capture")
	}
	c.active = nil
	c.mu.Unlock()

	h.stopOnce.Do(func() { close(h.stopped) })
	// Release unblocks the reader goroutine if it is parked in Read.
	releaseErr := h.stream.Release()
	<-h.done

	payload := h.payload()
	if releaseErr != nil {
		return payload, types.WrapFault(types.FaultDeviceUnavailable, "release input device", releaseErr)
	}
	return payload, nil
}

// Active reports whether a capture is currently in progress.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}
