package engine

import (
	"github.com/replitone/replitone/pkg/core/types"
)

// InputState is the session's input axis.
type InputState string

const (
	InputIdle       InputState = "idle"
	InputRecording  InputState = "recording"
	InputProcessing InputState = "processing"
)

// OutputState is the session's output axis. TurnID is set while playing.
type OutputState struct {
	Playing bool
	TurnID  string
}

// Session is an observable snapshot of the conversation state. Turns are
// deep-enough copies: callers must not mutate the audio payloads.
type Session struct {
	Turns       []types.Turn
	InputState  InputState
	OutputState OutputState
	Draft       string
	Voice       types.VoiceIdentity
}

// EventKind identifies an engine event.
type EventKind string

const (
	// EventTurnAdded fires when a turn is appended to the transcript.
	EventTurnAdded EventKind = "turn_added"
	// EventTurnAudio fires when audio is attached to an existing turn.
	EventTurnAudio EventKind = "turn_audio"
	// EventInputState fires on input-axis transitions.
	EventInputState EventKind = "input_state"
	// EventOutputState fires on output-axis transitions.
	EventOutputState EventKind = "output_state"
	// EventNotice reports a degraded-but-handled failure.
	EventNotice EventKind = "notice"
	// EventVoiceChanged fires when the session's voice identity changes.
	EventVoiceChanged EventKind = "voice_changed"
)

// Event is one observable change, consumed by the presentation boundary.
type Event struct {
	Kind        EventKind
	Turn        *types.Turn
	InputState  InputState
	OutputState OutputState
	FaultKind   types.FaultKind
	Notice      string
	Voice       types.VoiceIdentity
}
