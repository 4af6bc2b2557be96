package engine

import "github.com/replitone/replitone/pkg/core/types"

// historyLog is the ordered conversation fed to the responder capability.
// It only grows: one user entry per exchange, then one assistant entry once
// the exchange settles (a failed generation appends the failure text, so the
// log stays in lockstep with the transcript).
type historyLog struct {
	entries []types.Message
}

func newHistoryLog(initial []types.Message) *historyLog {
	entries := make([]types.Message, len(initial), len(initial)+16)
	copy(entries, initial)
	return &historyLog{entries: entries}
}

func (h *historyLog) appendUser(text string) {
	h.entries = append(h.entries, types.Message{Role: types.RoleUser, Content: text})
}

func (h *historyLog) appendAssistant(text string) {
	h.entries = append(h.entries, types.Message{Role: types.RoleAssistant, Content: text})
}

func (h *historyLog) snapshot() []types.Message {
	out := make([]types.Message, len(h.entries))
	copy(out, h.entries)
	return out
}
