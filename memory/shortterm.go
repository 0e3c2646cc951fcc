package memory

import (
	"github.com/becomeliminal/mnemo/core"
)

// DefaultWindowSize is the short-term capacity when none is configured.
const DefaultWindowSize = 10

// ShortTerm is the bounded recency buffer of raw conversation turns for one
// active session. Appending beyond capacity evicts the oldest turn (FIFO),
// so len(Window()) <= capacity always holds and the newest turn is last.
//
// ShortTerm is scoped to a single session processed turn-by-turn and is not
// safe for concurrent mutation; the agent serializes turns per session.
type ShortTerm struct {
	capacity int
	turns    []core.Turn
}

// NewShortTerm creates a window with the given capacity.
// Non-positive capacities fall back to DefaultWindowSize.
func NewShortTerm(capacity int) *ShortTerm {
	if capacity <= 0 {
		capacity = DefaultWindowSize
	}
	return &ShortTerm{
		capacity: capacity,
		turns:    make([]core.Turn, 0, capacity),
	}
}

// Append adds a turn, evicting the oldest when full.
// Malformed turns are rejected without mutating the window.
func (s *ShortTerm) Append(t core.Turn) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if len(s.turns) == s.capacity {
		copy(s.turns, s.turns[1:])
		s.turns = s.turns[:len(s.turns)-1]
	}
	s.turns = append(s.turns, t)
	return nil
}

// Window returns the buffered turns in arrival order, oldest first.
// The returned slice is a copy; callers cannot mutate the buffer through it.
func (s *ShortTerm) Window() []core.Turn {
	out := make([]core.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len returns the number of buffered turns.
func (s *ShortTerm) Len() int { return len(s.turns) }

// Clear resets the window to empty. Long-term state is unaffected.
func (s *ShortTerm) Clear() {
	s.turns = s.turns[:0]
}
