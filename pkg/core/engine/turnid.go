package engine

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/replitone/replitone/pkg/core/types"
)

// TurnIDSource mints transcript turn IDs. IDs are role-prefixed monotonic
// ULIDs, so lexical order matches creation order even within one millisecond.
type TurnIDSource struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

// NewTurnIDSource creates a source seeded from seed. Tests can fix both the
// seed and the clock for reproducible IDs.
func NewTurnIDSource(seed int64, now func() time.Time) *TurnIDSource {
	if now == nil {
		now = time.Now
	}
	return &TurnIDSource{
		entropy: ulid.Monotonic(rand.New(rand.NewSource(seed)), 0),
		now:     now,
	}
}

// Next returns a fresh ID for a turn with the given role.
func (s *TurnIDSource) Next(role types.Role) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := "u"
	if role == types.RoleAssistant {
		prefix = "a"
	}
	id := ulid.MustNew(ulid.Timestamp(s.now()), s.entropy)
	return prefix + "_" + id.String()
}
