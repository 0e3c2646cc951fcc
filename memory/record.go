package memory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type classifies a long-term memory record.
type Type string

const (
	TypeFact       Type = "fact"
	TypePreference Type = "preference"
	TypeExperience Type = "experience"
	TypeKnowledge  Type = "knowledge"
)

// importanceByType is the fixed importance table. Importance is assigned at
// creation and never changes afterwards.
var importanceByType = map[Type]float64{
	TypeFact:       0.9,
	TypePreference: 0.8,
	TypeExperience: 0.7,
	TypeKnowledge:  0.6,
}

// Valid reports whether t is a known memory type.
func (t Type) Valid() bool {
	_, ok := importanceByType[t]
	return ok
}

// Importance returns the fixed importance for this type.
func (t Type) Importance() float64 {
	return importanceByType[t]
}

// Record is a single long-term memory entry. Records are created by the
// Manager, owned by the Store, and never mutated after creation.
type Record struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"-"`
	Type       Type      `json:"memory_type"`
	Importance float64   `json:"importance"`
	CreatedAt  time.Time `json:"created_at"`
	Partition  string    `json:"partition_key"`
}

// NewRecord creates a record with a fresh ID and the importance fixed by its
// type. The embedding is attached by the Manager before storage.
func NewRecord(partition, text string, typ Type) (*Record, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("unknown memory type %q", typ)
	}
	return &Record{
		ID:         uuid.NewString(),
		Text:       text,
		Type:       typ,
		Importance: typ.Importance(),
		CreatedAt:  time.Now().UTC(),
		Partition:  partition,
	}, nil
}

// Scored pairs a retrieved record with its query similarity.
type Scored struct {
	Record     *Record
	Similarity float32
}

// Format renders the record for prompt injection.
func (s Scored) Format() string {
	return fmt.Sprintf("[%s] %s [similarity: %.2f]", s.Record.Type, s.Record.Text, s.Similarity)
}
