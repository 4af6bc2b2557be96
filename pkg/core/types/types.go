// Package types defines the conversation domain model shared by the core
// components: turns, history messages, audio payloads, and voice identities.
package types

import (
	"strings"
	"time"
)

// Role identifies who produced a turn or history message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// AudioKind distinguishes captured microphone audio from synthesized speech.
// The two are never aliased: a captured payload is consumed by recognition and
// dropped; a synthesized payload is retained on the assistant turn it belongs to.
type AudioKind string

const (
	AudioCaptured    AudioKind = "captured"
	AudioSynthesized AudioKind = "synthesized"
)

// AudioPayload is an opaque finalized audio buffer. The producer owns release
// of any underlying device resources; consumers only read Data.
type AudioPayload struct {
	Kind AudioKind
	Data []byte
}

// Empty reports whether the payload carries no audio data.
func (p AudioPayload) Empty() bool {
	return len(p.Data) == 0
}

// Turn is one message in the transcript, optionally carrying audio.
// Turns are append-only and ordered by creation; the only permitted mutation
// after creation is attaching Audio once synthesis settles.
type Turn struct {
	ID        string
	Role      Role
	Text      string
	CreatedAt time.Time
	Audio     *AudioPayload
}

// HasAudio reports whether the turn has playable audio attached.
func (t *Turn) HasAudio() bool {
	return t != nil && t.Audio != nil && !t.Audio.Empty()
}

// Message is one entry of the conversation history fed to the responder
// capability.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// VoiceIdentity is a capability-selection key produced by voice cloning.
// It carries no biometric structure; the token alone selects a consistent
// synthesized voice for the rest of the session.
type VoiceIdentity struct {
	Token     string
	CreatedAt time.Time
}

// Zero reports whether the identity is unset.
func (v VoiceIdentity) Zero() bool {
	return strings.TrimSpace(v.Token) == ""
}
