// Package agent assembles the conversational agent: the user/session
// directory, the two-tier memory system, and the per-turn workflow engine.
package agent

import (
	"context"
	"sync"

	"github.com/becomeliminal/mnemo/core"
	"github.com/becomeliminal/mnemo/directory"
	"github.com/becomeliminal/mnemo/memory"
	"github.com/becomeliminal/mnemo/workflow"
)

// DefaultSystemContext is the base system prompt.
const DefaultSystemContext = `You are a helpful assistant with two tiers of memory.

Short-term memory holds the recent turns of the current conversation.
Long-term memory holds facts, preferences, experiences, and knowledge the
user shared in past sessions; the relevant ones are surfaced to you each turn.

GUIDELINES:
- Be conversational and concise
- When a memory is relevant, use it naturally instead of quoting it
- Never claim to remember something that is not in your memories`

// Config holds Agent tuning.
type Config struct {
	// WindowSize is the short-term capacity per session.
	// Default: memory.DefaultWindowSize
	WindowSize int

	// SystemContext overrides the base system prompt.
	SystemContext string

	// Engine overrides the workflow engine tuning.
	Engine *workflow.Config
}

// Agent serves conversation turns. Distinct sessions process turns
// concurrently; turns within one session are serialized.
type Agent struct {
	directory *directory.Directory
	manager   *memory.Manager
	engine    *workflow.Engine

	windowSize    int
	systemContext string

	mu       sync.Mutex
	sessions map[string]*sessionState
}

// sessionState is the per-session mutable state. Its mutex serializes turns.
type sessionState struct {
	mu        sync.Mutex
	shortTerm *memory.ShortTerm
}

// New creates an agent. A nil config uses defaults.
func New(dir *directory.Directory, manager *memory.Manager, generator workflow.Generator, cfg *Config) *Agent {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = memory.DefaultWindowSize
	}
	if cfg.SystemContext == "" {
		cfg.SystemContext = DefaultSystemContext
	}

	return &Agent{
		directory:     dir,
		manager:       manager,
		engine:        workflow.NewEngine(manager, generator, dir, cfg.Engine),
		windowSize:    cfg.WindowSize,
		systemContext: cfg.SystemContext,
		sessions:      make(map[string]*sessionState),
	}
}

// Directory returns the user/session registry.
func (a *Agent) Directory() *directory.Directory { return a.directory }

// ProcessTurn runs one full conversation turn through the workflow and
// returns the generated response with its retrieval and storage record.
func (a *Agent) ProcessTurn(ctx context.Context, userID, sessionID, text string) (*workflow.Result, error) {
	sess, err := a.directory.Session(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.UserID != userID {
		return nil, core.Isolationf("session %s does not belong to user %s", sessionID, userID)
	}

	state := a.sessionState(sessionID)
	state.mu.Lock()
	defer state.mu.Unlock()

	return a.engine.Run(ctx, &workflow.Request{
		UserID:        userID,
		SessionID:     sessionID,
		UserText:      text,
		SystemContext: a.systemContext,
		ShortTerm:     state.shortTerm,
	})
}

// Stats reports the long-term composition of one (user, session) pair.
func (a *Agent) Stats(ctx context.Context, userID, sessionID string) (*memory.PartitionStats, error) {
	return a.manager.Stats(ctx, userID, sessionID)
}

// ClearShortTerm empties a session's window. Long-term memory is unaffected.
func (a *Agent) ClearShortTerm(sessionID string) {
	state := a.sessionState(sessionID)
	state.mu.Lock()
	defer state.mu.Unlock()
	state.shortTerm.Clear()
}

// ForgetSession drops the session's long-term partition and removes it from
// the directory. This is the only path that deletes stored memories in bulk;
// stale-session cleanup never reaches here.
func (a *Agent) ForgetSession(ctx context.Context, userID, sessionID string) error {
	if err := a.manager.Forget(ctx, userID, sessionID); err != nil {
		return err
	}
	if err := a.directory.RemoveSession(sessionID); err != nil {
		return err
	}

	a.mu.Lock()
	delete(a.sessions, sessionID)
	a.mu.Unlock()
	return nil
}

// sessionState returns (creating if needed) the per-session state.
func (a *Agent) sessionState(sessionID string) *sessionState {
	a.mu.Lock()
	defer a.mu.Unlock()

	state, ok := a.sessions[sessionID]
	if !ok {
		state = &sessionState{shortTerm: memory.NewShortTerm(a.windowSize)}
		a.sessions[sessionID] = state
	}
	return state
}
