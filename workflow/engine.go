package workflow

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/becomeliminal/mnemo/core"
	"github.com/becomeliminal/mnemo/memory"
)

// Generator is the text-generation collaborator. Implementations:
// agent.AnthropicGenerator (production), test stubs.
type Generator interface {
	// Generate produces the agent response from the system context, the
	// short-term history, and the retrieved long-term memories.
	Generate(ctx context.Context, systemContext string, history []core.Turn, memories []memory.Scored) (string, error)
}

// Toucher updates session activity bookkeeping during finalize.
// Implemented by directory.Directory.
type Toucher interface {
	Touch(sessionID string) error
}

// Config holds Engine tuning.
type Config struct {
	// TopK and Threshold parameterize the retrieve stage.
	TopK      int
	Threshold float32

	// GenerateTimeout bounds the generation call. Expiry aborts this turn
	// only; the user turn already in short-term memory is preserved.
	// Default: 60s
	GenerateTimeout time.Duration
}

// DefaultConfig returns the engine defaults.
var DefaultConfig = &Config{
	TopK:            5,
	Threshold:       0.2,
	GenerateTimeout: 60 * time.Second,
}

// Engine runs the per-turn state machine. It holds no per-session state;
// everything session-scoped arrives in the Request. All collaborators are
// explicit, no hidden singletons.
type Engine struct {
	manager   *memory.Manager
	generator Generator
	directory Toucher
	config    *Config
}

// NewEngine creates an engine. A nil config uses DefaultConfig.
func NewEngine(manager *memory.Manager, generator Generator, directory Toucher, config *Config) *Engine {
	if config == nil {
		config = DefaultConfig
	}
	return &Engine{
		manager:   manager,
		generator: generator,
		directory: directory,
		config:    config,
	}
}

// Request is one turn's input. ShortTerm and the session identity are the
// only state carried across invocations.
type Request struct {
	UserID    string
	SessionID string
	UserText  string

	// SystemContext is the base system prompt; retrieved memories are
	// appended to it before generation.
	SystemContext string

	// ShortTerm is the session's window, owned by the caller.
	ShortTerm *memory.ShortTerm
}

// Result is one turn's output.
type Result struct {
	// Response is the generated agent text.
	Response string

	// Retrieved are the long-term memories surfaced for this turn.
	Retrieved []memory.Scored

	// Stored are the records persisted during the store stage.
	Stored []*memory.Record

	// Path lists the states entered, in order, ending in a terminal state.
	Path []State
}

// Run executes one turn through the machine. Stages run strictly in order;
// no state is re-entered. On a fatal generation error Run returns the error
// and a Result whose Path ends in the failed state, with the user turn still
// recorded in short-term memory.
func (e *Engine) Run(ctx context.Context, req *Request) (*Result, error) {
	res := &Result{}
	state := StateIngest

	var candidates []memory.Candidate
	var userTurn core.Turn

	for !state.Terminal() {
		res.Path = append(res.Path, state)
		var outcome Outcome

		switch state {
		case StateIngest:
			outcome = OutcomeOK
			userTurn = core.NewTurn(core.RoleUser, req.UserText)
			if err := req.ShortTerm.Append(userTurn); err != nil {
				res.Path = append(res.Path, StateFailed)
				return res, err
			}

		case StateRetrieve:
			outcome = OutcomeOK
			retrieved, err := e.manager.Retrieve(ctx, req.UserID, req.SessionID,
				req.UserText, e.config.TopK, e.config.Threshold)
			if err != nil {
				// Degrades to "no memories found", never fatal.
				log.Printf("[WORKFLOW] Retrieval failed, continuing without memories: %v", err)
				outcome = OutcomeDegraded
				retrieved = nil
			}
			res.Retrieved = retrieved

		case StateGenerate:
			outcome = OutcomeOK
			genCtx := ctx
			if e.config.GenerateTimeout > 0 {
				var cancel context.CancelFunc
				genCtx, cancel = context.WithTimeout(ctx, e.config.GenerateTimeout)
				defer cancel()
			}

			// History excludes the current user turn; it is passed as the
			// final message by the generator.
			history := req.ShortTerm.Window()
			response, err := e.generator.Generate(genCtx, req.SystemContext, history, res.Retrieved)
			if err != nil {
				res.Path = append(res.Path, StateFailed)
				return res, fmt.Errorf("generate response: %w", err)
			}
			res.Response = response

		case StateAnalyze:
			candidates = e.manager.Suggest(userTurn, req.ShortTerm.Window())
			if len(candidates) > 0 {
				outcome = OutcomeCandidates
			} else {
				outcome = OutcomeNoCandidates
			}

		case StateStore:
			outcome = OutcomeOK
			for _, c := range candidates {
				rec, err := e.manager.Store(ctx, req.UserID, req.SessionID, c.Text, c.Type)
				if err != nil {
					// Reported, not rolled back: the turn already applied
					// to short-term memory stands.
					log.Printf("[WORKFLOW] Failed to store %s candidate: %v", c.Type, err)
					continue
				}
				res.Stored = append(res.Stored, rec)
			}

		case StateFinalize:
			outcome = OutcomeOK
			agentTurn := core.NewTurn(core.RoleAgent, res.Response)
			if err := req.ShortTerm.Append(agentTurn); err != nil {
				log.Printf("[WORKFLOW] Failed to append agent turn: %v", err)
			}
			if e.directory != nil {
				if err := e.directory.Touch(req.SessionID); err != nil {
					log.Printf("[WORKFLOW] Failed to touch session %s: %v", req.SessionID, err)
				}
			}
		}

		state = Next(state, outcome)
	}

	res.Path = append(res.Path, state)
	return res, nil
}
