// Package workflow implements the fixed six-stage state machine that
// sequences memory reads and writes around response generation:
//
//	ingest -> retrieve -> generate -> analyze -> [store] -> finalize
//
// The store stage is entered only when triage produced candidates; otherwise
// the machine transitions straight to finalize (a skipped transition, not a
// no-op call). The machine is re-invoked fresh per turn and carries forward
// only the short-term window and the session identity.
package workflow

import "fmt"

// State is a stage of the per-turn machine.
type State int

const (
	// StateIngest appends the user turn to short-term memory.
	StateIngest State = iota

	// StateRetrieve queries long-term memory with the user turn.
	StateRetrieve

	// StateGenerate calls the generation collaborator.
	StateGenerate

	// StateAnalyze runs triage over the completed exchange.
	StateAnalyze

	// StateStore persists triage candidates. Conditional.
	StateStore

	// StateFinalize appends the agent turn, touches the session, and
	// returns the response.
	StateFinalize

	// StateDone is the successful terminal state.
	StateDone

	// StateFailed is the error terminal state. Reached from ingest on
	// malformed input and from generate on a fatal generation error.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIngest:
		return "ingest"
	case StateRetrieve:
		return "retrieve"
	case StateGenerate:
		return "generate"
	case StateAnalyze:
		return "analyze"
	case StateStore:
		return "store"
	case StateFinalize:
		return "finalize"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether the machine halts in s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Outcome is what happened inside a stage, as seen by the transition
// function.
type Outcome int

const (
	// OutcomeOK: the stage completed.
	OutcomeOK Outcome = iota

	// OutcomeInvalid: ingest rejected malformed input.
	OutcomeInvalid

	// OutcomeDegraded: retrieve failed and degraded to an empty result
	// set. Non-fatal.
	OutcomeDegraded

	// OutcomeFatal: generate failed. Terminal for this turn.
	OutcomeFatal

	// OutcomeCandidates: analyze produced at least one candidate.
	OutcomeCandidates

	// OutcomeNoCandidates: analyze produced nothing; store is skipped.
	OutcomeNoCandidates
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeDegraded:
		return "degraded"
	case OutcomeFatal:
		return "fatal"
	case OutcomeCandidates:
		return "candidates"
	case OutcomeNoCandidates:
		return "no_candidates"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Next is the pure transition function. It consults no collaborator and is
// testable in isolation. Unknown combinations fail closed.
func Next(current State, outcome Outcome) State {
	switch current {
	case StateIngest:
		if outcome == OutcomeInvalid {
			return StateFailed
		}
		return StateRetrieve
	case StateRetrieve:
		// Degraded retrieval continues with an empty result set.
		return StateGenerate
	case StateGenerate:
		if outcome == OutcomeFatal {
			return StateFailed
		}
		return StateAnalyze
	case StateAnalyze:
		if outcome == OutcomeCandidates {
			return StateStore
		}
		return StateFinalize
	case StateStore:
		// Store failures are logged and skipped, never fatal.
		return StateFinalize
	case StateFinalize:
		return StateDone
	default:
		return StateFailed
	}
}
