package agent_test

import (
	"context"
	"testing"
	"time"

	"github.com/becomeliminal/mnemo/agent"
	"github.com/becomeliminal/mnemo/core"
	"github.com/becomeliminal/mnemo/directory"
	"github.com/becomeliminal/mnemo/memory"
	"github.com/becomeliminal/mnemo/memory/embedder/mock"
	"github.com/becomeliminal/mnemo/memory/store/chromem"
)

// echoGenerator records what it saw and answers with a canned line.
type echoGenerator struct {
	lastSystem string
	lastTurns  []core.Turn
}

func (g *echoGenerator) Generate(ctx context.Context, systemContext string, history []core.Turn, memories []memory.Scored) (string, error) {
	g.lastSystem = systemContext
	g.lastTurns = history
	return "Understood!", nil
}

func newTestAgent(t *testing.T) (*agent.Agent, *directory.Directory, *echoGenerator) {
	t.Helper()
	store, err := chromem.New()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	mgr := memory.NewManager(store, mock.New(), nil, &memory.Config{
		TopK:          5,
		MinSimilarity: 0.2,
		RetryBackoff:  time.Millisecond,
	})

	dir, err := directory.New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}

	gen := &echoGenerator{}
	return agent.New(dir, mgr, gen, nil), dir, gen
}

func TestAgent_RemembersAcrossSessions(t *testing.T) {
	ctx := context.Background()
	ag, dir, _ := newTestAgent(t)

	alice, err := dir.GetOrCreateUser("alice")
	if err != nil {
		t.Fatalf("GetOrCreateUser failed: %v", err)
	}
	sess, err := dir.StartSession(alice.ID)
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	result, err := ag.ProcessTurn(ctx, alice.ID, sess.ID, "I am vegetarian")
	if err != nil {
		t.Fatalf("ProcessTurn failed: %v", err)
	}
	if len(result.Stored) != 1 {
		t.Fatalf("Stored = %v, want one record", result.Stored)
	}
	if result.Stored[0].Type != memory.TypePreference || result.Stored[0].Importance != 0.8 {
		t.Errorf("Stored record = %+v, want preference with importance 0.8", result.Stored[0])
	}

	// Same session, later turn: the stored preference comes back
	result, err = ag.ProcessTurn(ctx, alice.ID, sess.ID, "I am vegetarian, what can I eat?")
	if err != nil {
		t.Fatalf("ProcessTurn failed: %v", err)
	}
	found := false
	for _, m := range result.Retrieved {
		if m.Record.Text == "I am vegetarian" {
			found = true
		}
	}
	if !found {
		t.Errorf("Retrieved = %v, want the stored preference surfaced", result.Retrieved)
	}

	stats, err := ag.Stats(ctx, alice.ID, sess.ID)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Count < 1 || stats.TypeCounts[memory.TypePreference] < 1 {
		t.Errorf("Stats = %+v", stats)
	}
}

func TestAgent_SessionOwnershipEnforced(t *testing.T) {
	ctx := context.Background()
	ag, dir, _ := newTestAgent(t)

	alice, _ := dir.GetOrCreateUser("alice")
	bob, _ := dir.GetOrCreateUser("bob")
	aliceSess, _ := dir.StartSession(alice.ID)

	_, err := ag.ProcessTurn(ctx, bob.ID, aliceSess.ID, "let me in")
	if err == nil {
		t.Fatal("Expected error for cross-user session access")
	}
	if core.KindOf(err) != core.KindIsolation {
		t.Errorf("Expected isolation kind, got %v", err)
	}
}

func TestAgent_CrossUserMemoryIsolation(t *testing.T) {
	ctx := context.Background()
	ag, dir, _ := newTestAgent(t)

	alice, _ := dir.GetOrCreateUser("alice")
	bob, _ := dir.GetOrCreateUser("bob")
	aliceSess, _ := dir.StartSession(alice.ID)
	bobSess, _ := dir.StartSession(bob.ID)

	if _, err := ag.ProcessTurn(ctx, alice.ID, aliceSess.ID, "My name is Alice Anderson"); err != nil {
		t.Fatalf("ProcessTurn failed: %v", err)
	}

	result, err := ag.ProcessTurn(ctx, bob.ID, bobSess.ID, "My name is Alice Anderson")
	if err != nil {
		t.Fatalf("ProcessTurn failed: %v", err)
	}
	// Bob's first turn: nothing in his partition yet, alice's record must
	// never surface
	if len(result.Retrieved) != 0 {
		t.Errorf("Bob retrieved %v from another user's partition", result.Retrieved)
	}
}

func TestAgent_ClearShortTermKeepsLongTerm(t *testing.T) {
	ctx := context.Background()
	ag, dir, gen := newTestAgent(t)

	alice, _ := dir.GetOrCreateUser("alice")
	sess, _ := dir.StartSession(alice.ID)

	if _, err := ag.ProcessTurn(ctx, alice.ID, sess.ID, "I like jazz"); err != nil {
		t.Fatalf("ProcessTurn failed: %v", err)
	}

	ag.ClearShortTerm(sess.ID)

	// Next turn starts with a window holding only itself
	if _, err := ag.ProcessTurn(ctx, alice.ID, sess.ID, "which genre was it again?"); err != nil {
		t.Fatalf("ProcessTurn failed: %v", err)
	}
	if len(gen.lastTurns) != 1 {
		t.Errorf("Generator saw %d turns after clear, want 1", len(gen.lastTurns))
	}

	stats, err := ag.Stats(ctx, alice.ID, sess.ID)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Count != 1 {
		t.Errorf("Long-term count after clear = %d, want 1", stats.Count)
	}
}

func TestAgent_ForgetSessionDropsEverything(t *testing.T) {
	ctx := context.Background()
	ag, dir, _ := newTestAgent(t)

	alice, _ := dir.GetOrCreateUser("alice")
	sess, _ := dir.StartSession(alice.ID)

	if _, err := ag.ProcessTurn(ctx, alice.ID, sess.ID, "remember that I hate mondays"); err != nil {
		t.Fatalf("ProcessTurn failed: %v", err)
	}

	if err := ag.ForgetSession(ctx, alice.ID, sess.ID); err != nil {
		t.Fatalf("ForgetSession failed: %v", err)
	}

	if _, err := dir.Session(sess.ID); err == nil {
		t.Error("Session still in directory after forget")
	}
	stats, err := ag.Stats(ctx, alice.ID, sess.ID)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Count != 0 {
		t.Errorf("Partition count after forget = %d, want 0", stats.Count)
	}
}

func TestAgent_SessionTouchOnTurn(t *testing.T) {
	ctx := context.Background()
	ag, dir, _ := newTestAgent(t)

	alice, _ := dir.GetOrCreateUser("alice")
	sess, _ := dir.StartSession(alice.ID)

	if _, err := ag.ProcessTurn(ctx, alice.ID, sess.ID, "hello"); err != nil {
		t.Fatalf("ProcessTurn failed: %v", err)
	}

	got, err := dir.Session(sess.ID)
	if err != nil {
		t.Fatalf("Session lookup failed: %v", err)
	}
	if got.MessageCount != 1 {
		t.Errorf("MessageCount = %d, want 1 after one turn", got.MessageCount)
	}
}

func TestAgent_WindowStaysBounded(t *testing.T) {
	ctx := context.Background()

	store, err := chromem.New()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()
	mgr := memory.NewManager(store, mock.New(), nil, nil)

	dir, err := directory.New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}

	gen := &echoGenerator{}
	ag := agent.New(dir, mgr, gen, &agent.Config{WindowSize: 4})

	alice, _ := dir.GetOrCreateUser("alice")
	sess, _ := dir.StartSession(alice.ID)

	for i := 0; i < 10; i++ {
		if _, err := ag.ProcessTurn(ctx, alice.ID, sess.ID, "turn number "+string(rune('a'+i))); err != nil {
			t.Fatalf("ProcessTurn failed: %v", err)
		}
	}

	// The generator sees the window as it was when the user turn landed:
	// at most the configured capacity.
	if len(gen.lastTurns) > 4 {
		t.Errorf("Generator saw %d turns, capacity is 4", len(gen.lastTurns))
	}
}
