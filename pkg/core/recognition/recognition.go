// Package recognition converts a finalized audio payload into text.
//
// Recognition is best-effort: the adapter walks a fallback chain of
// strategies and treats failure as a content outcome (an apology string)
// rather than a session fault. The only true failure is an empty payload
// with no strategy able to proceed.
package recognition

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/replitone/replitone/pkg/core/types"
)

// Apology is returned when every strategy fails on a non-empty payload.
// Recognition failure degrades to content, never to a session fault.
const Apology = "I heard your voice but couldn't transcribe it. For better results, try speaking clearly or typing your question."

// ErrUnsupported is reported by a strategy that cannot run in the current
// environment (for example, no live recognizer is available).
var ErrUnsupported = errors.New("recognition strategy unsupported")

// ErrNoResult is reported by a strategy that ran but produced no transcript.
var ErrNoResult = errors.New("recognition produced no result")

// Strategy is one way of turning audio into text.
type Strategy interface {
	Name() string
	Recognize(ctx context.Context, payload types.AudioPayload) (string, error)
}

// Adapter tries each strategy in order and falls back to an apology string
// when all of them fail.
type Adapter struct {
	strategies []Strategy
	logger     *slog.Logger
}

// NewAdapter creates an adapter over the given strategy chain. Strategies are
// tried in the order given.
func NewAdapter(logger *slog.Logger, strategies ...Strategy) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{strategies: strategies, logger: logger}
}

// Recognize converts the payload into text. A strategy that errors or returns
// an empty transcript hands over to the next one. When the whole chain fails
// on a non-empty payload the fixed Apology is returned as a normal result.
// An empty payload that no strategy handled fails with RecognitionUnavailable;
// the caller substitutes an empty-string turn.
func (a *Adapter) Recognize(ctx context.Context, payload types.AudioPayload) (string, error) {
	for _, s := range a.strategies {
		text, err := s.Recognize(ctx, payload)
		if err != nil {
			level := slog.LevelWarn
			if errors.Is(err, ErrUnsupported) || errors.Is(err, ErrNoResult) {
				level = slog.LevelDebug
			}
			a.logger.Log(ctx, level, "recognition strategy failed", "strategy", s.Name(), "error", err)
			continue
		}
		if strings.TrimSpace(text) != "" {
			return text, nil
		}
	}

	if payload.Empty() || len(a.strategies) == 0 {
		return "", types.NewFault(types.FaultRecognitionUnavailable, "no recognition strategy could proceed")
	}
	return Apology, nil
}

// Func adapts a plain function into a Strategy.
type Func struct {
	StrategyName string
	Fn           func(ctx context.Context, payload types.AudioPayload) (string, error)
}

// Name returns the strategy identifier.
func (f Func) Name() string { return f.StrategyName }

// Recognize invokes the wrapped function.
func (f Func) Recognize(ctx context.Context, payload types.AudioPayload) (string, error) {
	return f.Fn(ctx, payload)
}

// PromptFallback is the terminal strategy: it acknowledges the audio without
// transcribing it, directing the user toward text input. It requires a
// non-empty payload so that silence still surfaces as RecognitionUnavailable.
type PromptFallback struct{}

// Name returns the strategy identifier.
func (PromptFallback) Name() string { return "prompt_fallback" }

// Recognize returns the fixed acknowledgment for non-empty audio.
func (PromptFallback) Recognize(_ context.Context, payload types.AudioPayload) (string, error) {
	if payload.Empty() {
		return "", ErrNoResult
	}
	return Apology, nil
}
