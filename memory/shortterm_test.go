package memory_test

import (
	"fmt"
	"testing"

	"github.com/becomeliminal/mnemo/core"
	"github.com/becomeliminal/mnemo/memory"
)

func TestShortTerm_AppendAndWindow(t *testing.T) {
	st := memory.NewShortTerm(3)

	for i := 0; i < 3; i++ {
		if err := st.Append(core.NewTurn(core.RoleUser, fmt.Sprintf("turn %d", i))); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	window := st.Window()
	if len(window) != 3 {
		t.Fatalf("Expected 3 turns, got %d", len(window))
	}
	if window[0].Text != "turn 0" || window[2].Text != "turn 2" {
		t.Errorf("Window out of order: %v", window)
	}
}

func TestShortTerm_EvictsOldestAtCapacity(t *testing.T) {
	st := memory.NewShortTerm(3)

	for i := 0; i < 5; i++ {
		if err := st.Append(core.NewTurn(core.RoleUser, fmt.Sprintf("turn %d", i))); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	window := st.Window()
	if len(window) != 3 {
		t.Fatalf("Expected window capped at 3, got %d", len(window))
	}
	// Oldest two evicted, order preserved
	expected := []string{"turn 2", "turn 3", "turn 4"}
	for i, want := range expected {
		if window[i].Text != want {
			t.Errorf("window[%d] = %q, want %q", i, window[i].Text, want)
		}
	}
}

func TestShortTerm_RejectsInvalidTurn(t *testing.T) {
	st := memory.NewShortTerm(3)

	tests := []struct {
		name string
		turn core.Turn
	}{
		{"empty text", core.NewTurn(core.RoleUser, "   ")},
		{"unknown role", core.NewTurn(core.Role("system"), "hello")},
		{"zero timestamp", core.Turn{Role: core.RoleUser, Text: "hello"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := st.Append(tt.turn)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !core.IsValidation(err) {
				t.Errorf("Expected validation kind, got %v", err)
			}
		})
	}

	if st.Len() != 0 {
		t.Errorf("Rejected turns must not mutate the window, len = %d", st.Len())
	}
}

func TestShortTerm_Clear(t *testing.T) {
	st := memory.NewShortTerm(3)
	_ = st.Append(core.NewTurn(core.RoleUser, "hello"))
	_ = st.Append(core.NewTurn(core.RoleAgent, "hi"))

	st.Clear()
	if st.Len() != 0 {
		t.Errorf("Expected empty window after Clear, got %d", st.Len())
	}

	// Still usable after clearing
	if err := st.Append(core.NewTurn(core.RoleUser, "again")); err != nil {
		t.Fatalf("Append after Clear failed: %v", err)
	}
}

func TestShortTerm_DefaultCapacity(t *testing.T) {
	st := memory.NewShortTerm(0)
	for i := 0; i < 15; i++ {
		_ = st.Append(core.NewTurn(core.RoleUser, fmt.Sprintf("turn %d", i)))
	}
	if st.Len() != memory.DefaultWindowSize {
		t.Errorf("Expected default capacity %d, got %d", memory.DefaultWindowSize, st.Len())
	}
}

func TestShortTerm_WindowIsCopy(t *testing.T) {
	st := memory.NewShortTerm(3)
	_ = st.Append(core.NewTurn(core.RoleUser, "original"))

	window := st.Window()
	window[0].Text = "mutated"

	if st.Window()[0].Text != "original" {
		t.Error("Window must return a copy, not the internal buffer")
	}
}
