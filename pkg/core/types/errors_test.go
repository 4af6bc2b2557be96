package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestFaultKindOf(t *testing.T) {
	f := NewFault(FaultDeviceUnavailable, "microphone permission denied")
	if got := FaultKindOf(f); got != FaultDeviceUnavailable {
		t.Fatalf("FaultKindOf=%q, want %q", got, FaultDeviceUnavailable)
	}

	wrapped := fmt.Errorf("begin capture: %w", f)
	if got := FaultKindOf(wrapped); got != FaultDeviceUnavailable {
		t.Fatalf("wrapped FaultKindOf=%q, want %q", got, FaultDeviceUnavailable)
	}

	if got := FaultKindOf(errors.New("plain")); got != "" {
		t.Fatalf("plain error FaultKindOf=%q, want empty", got)
	}
	if got := FaultKindOf(nil); got != "" {
		t.Fatalf("nil FaultKindOf=%q, want empty", got)
	}
}

func TestFaultUnwrap(t *testing.T) {
	cause := errors.New("stream closed")
	f := WrapFault(FaultPlaybackError, "output device", cause)
	if !errors.Is(f, cause) {
		t.Fatal("fault should unwrap to its cause")
	}
	if !IsFault(f, FaultPlaybackError) {
		t.Fatal("IsFault should match the fault kind")
	}
	if IsFault(f, FaultEmptySample) {
		t.Fatal("IsFault should not match a different kind")
	}
}

func TestAudioPayloadEmpty(t *testing.T) {
	if !(AudioPayload{Kind: AudioCaptured}).Empty() {
		t.Fatal("zero-length payload should be empty")
	}
	if (AudioPayload{Kind: AudioSynthesized, Data: []byte{1}}).Empty() {
		t.Fatal("non-empty payload reported empty")
	}
}

func TestTurnHasAudio(t *testing.T) {
	turn := &Turn{ID: "a_1", Role: RoleAssistant, Text: "hi"}
	if turn.HasAudio() {
		t.Fatal("turn without audio reported HasAudio")
	}
	turn.Audio = &AudioPayload{Kind: AudioSynthesized, Data: []byte{0, 1}}
	if !turn.HasAudio() {
		t.Fatal("turn with audio reported no audio")
	}
}
