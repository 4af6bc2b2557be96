// Package synthesis converts assistant text plus an optional voice identity
// into a playable audio payload.
//
// Voice selection is deterministic: the same identity token always maps to
// the same underlying voice within a session, so a cloned identity sounds
// consistent across turns. Requests are serialized through a single worker so
// at most one synthesis is in flight per adapter; concurrent requests queue.
package synthesis

import (
	"context"
	"hash/fnv"
	"log/slog"
	"strings"

	"github.com/replitone/replitone/pkg/core/types"
)

// Voice is one selectable output voice.
type Voice struct {
	ID   string
	Name string
}

// Provider renders text with a concrete voice. Implementations may be real
// TTS backends or the built-in tone generator.
type Provider interface {
	Name() string
	Voices() []Voice
	Render(ctx context.Context, text string, voice Voice) (types.AudioPayload, error)
}

type request struct {
	ctx    context.Context
	text   string
	voice  Voice
	result chan response
}

type response struct {
	payload types.AudioPayload
	err     error
}

// Adapter selects a voice for an identity and serializes synthesis requests.
type Adapter struct {
	provider Provider
	logger   *slog.Logger

	requests chan request
	done     chan struct{}
}

// NewAdapter creates an adapter over the provider and starts its worker.
// Call Close when the session ends.
func NewAdapter(provider Provider, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Adapter{
		provider: provider,
		logger:   logger,
		requests: make(chan request, 8),
		done:     make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Adapter) run() {
	for {
		select {
		case req := <-a.requests:
			payload, err := a.provider.Render(req.ctx, req.text, req.voice)
			select {
			case req.result <- response{payload: payload, err: err}:
			case <-req.ctx.Done():
			}
		case <-a.done:
			return
		}
	}
}

// Close stops the worker. Queued requests that have not started are dropped.
func (a *Adapter) Close() {
	select {
	case <-a.done:
	default:
		close(a.done)
	}
}

// VoiceFor returns the voice the adapter will use for the given identity.
// An unset identity maps to the provider's first (default) voice; otherwise a
// stable index is derived from the token bytes.
func (a *Adapter) VoiceFor(identity types.VoiceIdentity) Voice {
	voices := a.provider.Voices()
	if len(voices) == 0 {
		return Voice{}
	}
	if identity.Zero() {
		return voices[0]
	}
	h := fnv.New32a()
	h.Write([]byte(identity.Token))
	return voices[h.Sum32()%uint32(len(voices))]
}

// Synthesize renders text into a synthesized payload using the voice selected
// for identity. Empty text yields an empty payload without error. Provider
// failure surfaces as a SynthesisUnavailable fault; the caller degrades the
// turn to text-only rather than aborting delivery.
func (a *Adapter) Synthesize(ctx context.Context, text string, identity types.VoiceIdentity) (types.AudioPayload, error) {
	if strings.TrimSpace(text) == "" {
		return types.AudioPayload{Kind: types.AudioSynthesized}, nil
	}
	if a.provider == nil || len(a.provider.Voices()) == 0 {
		return types.AudioPayload{}, types.NewFault(types.FaultSynthesisUnavailable, "no synthesis voices available")
	}

	req := request{
		ctx:    ctx,
		text:   text,
		voice:  a.VoiceFor(identity),
		result: make(chan response, 1),
	}

	select {
	case a.requests <- req:
	case <-a.done:
		return types.AudioPayload{}, types.NewFault(types.FaultSynthesisUnavailable, "synthesis adapter closed")
	case <-ctx.Done():
		return types.AudioPayload{}, types.WrapFault(types.FaultSynthesisUnavailable, "synthesis canceled", ctx.Err())
	}

	select {
	case resp := <-req.result:
		if resp.err != nil {
			return types.AudioPayload{}, types.WrapFault(types.FaultSynthesisUnavailable, "render speech", resp.err)
		}
		resp.payload.Kind = types.AudioSynthesized
		return resp.payload, nil
	case <-ctx.Done():
		return types.AudioPayload{}, types.WrapFault(types.FaultSynthesisUnavailable, "synthesis canceled", ctx.Err())
	}
}
