package handlers

import (
	"sync"
	"time"

	"github.com/replitone/replitone/pkg/core/engine"
	"github.com/replitone/replitone/pkg/core/types"
)

const wavHeaderBytes = 44

// timedPlayer paces playback in real time so the session's output state
// mirrors a client-side audio element playing the rendered clip. The clip
// itself travels to the client as a turn_audio frame; the player only tracks
// when it would finish.
type timedPlayer struct {
	sampleRate int
	minTime    time.Duration
}

func newTimedPlayer(sampleRate int) *timedPlayer {
	return &timedPlayer{sampleRate: sampleRate, minTime: 50 * time.Millisecond}
}

func (p *timedPlayer) Start(payload types.AudioPayload) (engine.PlayerHandle, error) {
	h := &timedHandle{done: make(chan error, 1)}
	h.timer = time.AfterFunc(p.duration(payload), h.complete)
	return h, nil
}

// duration estimates play time from the payload, assuming 16-bit mono WAV.
func (p *timedPlayer) duration(payload types.AudioPayload) time.Duration {
	n := len(payload.Data) - wavHeaderBytes
	if n <= 0 || p.sampleRate <= 0 {
		return p.minTime
	}
	d := time.Duration(n/2) * time.Second / time.Duration(p.sampleRate)
	if d < p.minTime {
		return p.minTime
	}
	return d
}

type timedHandle struct {
	done  chan error
	timer *time.Timer
	once  sync.Once
}

func (h *timedHandle) Done() <-chan error { return h.done }

func (h *timedHandle) complete() {
	h.once.Do(func() { close(h.done) })
}

func (h *timedHandle) Stop() {
	h.once.Do(func() {
		h.timer.Stop()
		close(h.done)
	})
}
