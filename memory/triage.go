package memory

import (
	"strings"

	"github.com/becomeliminal/mnemo/core"
)

// KeywordTriage classifies candidate snippets by matching the latest user
// turn against per-type phrase sets. It is a pure function of the text:
// deterministic, no I/O, and often returns nothing.
//
// The phrase sets are deliberately simple; swap in a custom Triage for
// LLM-backed extraction.
type KeywordTriage struct{}

// NewKeywordTriage returns the default heuristic triage.
func NewKeywordTriage() *KeywordTriage { return &KeywordTriage{} }

var (
	// Possessive or preference phrasing.
	preferencePhrases = []string{
		"i like", "i prefer", "i don't like", "i hate",
		"my favorite", "my favourite", "i love", "i enjoy",
		"i am vegetarian", "i am vegan", "i am allergic",
	}

	// Declarative personal facts.
	factPhrases = []string{
		"my name is", "i am called", "i work", "i live",
		"my job", "my birthday", "i was born",
	}

	// Explicit remember-this markers.
	knowledgePhrases = []string{
		"remember that", "don't forget", "note that", "keep in mind",
	}

	// First-person past-tense experiences.
	experiencePhrases = []string{
		"i went", "i visited", "i tried", "last time i", "yesterday i",
	}
)

// Suggest inspects the latest exchange and proposes snippets to persist.
// A turn can yield at most one candidate per type; agent turns yield none.
func (k *KeywordTriage) Suggest(latest core.Turn, window []core.Turn) []Candidate {
	if latest.Role != core.RoleUser {
		return nil
	}
	text := strings.ToLower(latest.Text)

	var out []Candidate
	if matchAny(text, preferencePhrases) {
		out = append(out, Candidate{Text: latest.Text, Type: TypePreference})
	}
	if matchAny(text, factPhrases) {
		out = append(out, Candidate{Text: latest.Text, Type: TypeFact})
	}
	if matchAny(text, knowledgePhrases) {
		out = append(out, Candidate{Text: latest.Text, Type: TypeKnowledge})
	}
	if matchAny(text, experiencePhrases) {
		out = append(out, Candidate{Text: latest.Text, Type: TypeExperience})
	}
	return out
}

func matchAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
