package engine

import (
	"github.com/replitone/replitone/pkg/core/types"
)

// Player abstracts the audio output device. Start begins sounding the payload
// and returns a handle for the one active output.
type Player interface {
	Start(payload types.AudioPayload) (PlayerHandle, error)
}

// PlayerHandle is one sounding output. Done settles exactly once: nil on
// natural end, an error on device failure, and nil promptly after Stop.
type PlayerHandle interface {
	Done() <-chan error
	Stop()
}

// playback owns at most one sounding output plus the session-scoped map from
// turn ID to synthesized payload. It is driven only from the engine loop, so
// it needs no locking of its own.
type playback struct {
	player Player

	audio   map[string]types.AudioPayload
	current string
	handle  PlayerHandle
	gen     uint64
}

func newPlayback(player Player) *playback {
	return &playback{
		player: player,
		audio:  make(map[string]types.AudioPayload),
	}
}

func (p *playback) attach(turnID string, payload types.AudioPayload) {
	if payload.Empty() {
		return
	}
	p.audio[turnID] = payload
}

func (p *playback) playing() string {
	return p.current
}

// start stops any current output, then begins the new one. It returns the
// handle's done channel and the generation tag the caller should use to
// recognize this playback's completion. A turn without audio is a no-op
// (started=false, no error); a device failure returns a PlaybackError.
func (p *playback) start(turnID string) (done <-chan error, gen uint64, started bool, err error) {
	payload, ok := p.audio[turnID]
	if !ok || payload.Empty() {
		return nil, 0, false, nil
	}
	if p.player == nil {
		return nil, 0, false, types.NewFault(types.FaultPlaybackError, "no output device configured")
	}

	// Stop-and-rewind the current output before the new one starts.
	p.stop()

	handle, startErr := p.player.Start(payload)
	if startErr != nil {
		return nil, 0, false, types.WrapFault(types.FaultPlaybackError, "start output", startErr)
	}

	p.gen++
	p.current = turnID
	p.handle = handle
	return handle.Done(), p.gen, true, nil
}

// stop halts the current output, if any. Completion events for the stopped
// handle carry a stale generation and are discarded by the loop.
func (p *playback) stop() {
	if p.handle != nil {
		p.handle.Stop()
	}
	p.handle = nil
	p.current = ""
}

// finish clears state when the playback tagged gen settles. Stale generations
// are ignored.
func (p *playback) finish(gen uint64) bool {
	if gen != p.gen || p.handle == nil {
		return false
	}
	p.handle = nil
	p.current = ""
	return true
}
