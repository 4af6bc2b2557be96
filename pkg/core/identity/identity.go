// Package identity registers cloned voice identities. Cloning is simulated:
// a successful request maps the sample to a fresh opaque token after a
// configurable processing delay, with an observable in-flight state so the UI
// boundary can show progress.
package identity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/replitone/replitone/pkg/core/types"
)

// State is the registry's cloning state, observable by callers.
type State string

const (
	StateIdle    State = "idle"
	StateCloning State = "cloning"
	StateCloned  State = "cloned"
)

// Validator inspects a voice sample before cloning. The default accepts any
// non-empty sample; a backend-backed build can reject unusable audio here
// without changing the Clone contract.
type Validator func(sample types.AudioPayload) error

// Registry maps registered voice samples to stable identity tokens.
type Registry struct {
	delay    time.Duration
	validate Validator
	logger   *slog.Logger
	now      func() time.Time

	mu         sync.Mutex
	state      State
	identities map[string]types.VoiceIdentity
}

// Option configures a Registry.
type Option func(*Registry)

// WithDelay overrides the simulated processing delay.
func WithDelay(d time.Duration) Option {
	return func(r *Registry) { r.delay = d }
}

// WithValidator installs a sample validator.
func WithValidator(v Validator) Option {
	return func(r *Registry) { r.validate = v }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates an empty registry. The default clone delay matches the
// original demo's three-second simulation.
func NewRegistry(logger *slog.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		delay:      3 * time.Second,
		logger:     logger,
		now:        time.Now,
		state:      StateIdle,
		identities: make(map[string]types.VoiceIdentity),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the current cloning state.
func (r *Registry) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Clone registers the sample and returns a new voice identity. An empty
// sample fails with EmptySample and leaves the registry unchanged. The call
// blocks for the simulated processing delay, honoring ctx cancellation.
func (r *Registry) Clone(ctx context.Context, sample types.AudioPayload) (types.VoiceIdentity, error) {
	if sample.Empty() {
		return types.VoiceIdentity{}, types.NewFault(types.FaultEmptySample, "no voice sample provided")
	}
	if r.validate != nil {
		if err := r.validate(sample); err != nil {
			return types.VoiceIdentity{}, types.WrapFault(types.FaultEmptySample, "sample rejected", err)
		}
	}

	r.mu.Lock()
	r.state = StateCloning
	r.mu.Unlock()

	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			r.mu.Lock()
			r.state = StateIdle
			r.mu.Unlock()
			return types.VoiceIdentity{}, ctx.Err()
		}
	}

	id := types.VoiceIdentity{
		Token:     "voice_" + uuid.NewString()[:8],
		CreatedAt: r.now(),
	}

	r.mu.Lock()
	r.identities[id.Token] = id
	r.state = StateCloned
	r.mu.Unlock()

	r.logger.Info("voice cloned", "token", id.Token, "sample_bytes", len(sample.Data))
	return id, nil
}

// Lookup returns the identity registered under token.
func (r *Registry) Lookup(token string) (types.VoiceIdentity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.identities[token]
	return id, ok
}

// Len returns the number of registered identities.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.identities)
}
