// Package responder abstracts the capability that produces the next
// assistant reply from the conversation history. Implementations range from
// the built-in canned responder to real model backends; all plug in behind
// the same interface without engine changes.
package responder

import (
	"context"
	"math/rand"
	"strings"
	"sync"

	"github.com/replitone/replitone/pkg/core/types"
)

// SystemPreamble seeds every conversation history.
const SystemPreamble = "You are a smart, natural-sounding AI assistant who answers questions in a helpful and conversational way. You respond only to the user's actual question or statement, and always stay on topic."

// WelcomeText is the assistant turn every fresh session opens with.
const WelcomeText = "Hello! I'm your AI assistant. How can I help you today?"

// Apology is substituted when the capability fails; the failure still becomes
// a normal assistant turn so the conversation keeps moving.
const Apology = "I'm having trouble connecting to my brain right now. Please try again in a moment."

// Capability produces the next assistant text from the full history. It must
// be side-effect-free with respect to engine state.
type Capability interface {
	Name() string
	Generate(ctx context.Context, history []types.Message) (string, error)
}

// InitialHistory returns a fresh history holding only the system preamble.
func InitialHistory() []types.Message {
	return []types.Message{{Role: types.RoleSystem, Content: SystemPreamble}}
}

var cannedReplies = []string{
	"That's a great question. From what I understand, the short answer is yes, with a couple of caveats worth knowing about.",
	"Interesting! Let me think about that for a second. I'd say the key thing to focus on is what you want out of it.",
	"I hear you. A lot of people ask about that, and the honest answer is that it depends on the details of your situation.",
	"Good point. If I were in your position I'd probably start small and see how it goes before committing further.",
	"Thanks for sharing that. Is there a specific part you'd like me to dig into more?",
	"I can help with that. Could you tell me a little more about what you've tried so far?",
	"That reminds me of a classic trade-off: speed versus thoroughness. Which matters more to you here?",
	"Absolutely. The way I'd approach it is to break the problem into smaller pieces and tackle them one at a time.",
}

var emptyPromptReplies = []string{
	"I didn't catch anything that time. Could you say it again, or type it instead?",
	"It sounds like that came through empty. Want to try once more?",
}

// Canned replies from a fixed table using an injectable pseudo-random source,
// so tests can seed determinism. It never fails.
type Canned struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewCanned creates a canned responder seeded from seed.
func NewCanned(seed int64) *Canned {
	return &Canned{rng: rand.New(rand.NewSource(seed))}
}

// Name returns the capability identifier.
func (c *Canned) Name() string { return "canned" }

// Generate picks a reply from the canned table. An empty or missing last user
// entry draws from the empty-prompt table instead.
func (c *Canned) Generate(_ context.Context, history []types.Message) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	last := ""
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == types.RoleUser {
			last = strings.TrimSpace(history[i].Content)
			break
		}
	}
	if last == "" {
		return emptyPromptReplies[c.rng.Intn(len(emptyPromptReplies))], nil
	}
	return cannedReplies[c.rng.Intn(len(cannedReplies))], nil
}
