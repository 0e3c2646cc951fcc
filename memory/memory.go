package memory

import (
	"context"

	"github.com/becomeliminal/mnemo/core"
)

// Store is the vector partition backend.
// Implementations: chromem.Store (embedded, in-memory).
//
// Partitions are opaque namespaces; the Store never interprets them beyond
// routing. Isolation is the contract: a record upserted into one partition
// must never be visible to a query against another.
type Store interface {
	// Upsert saves a record with its embedding into a partition.
	// The record must have its embedding set before calling Upsert.
	Upsert(ctx context.Context, partition string, rec *Record) error

	// Query retrieves the topK nearest records by vector similarity,
	// ordered by descending similarity. Returns fewer than topK when the
	// partition holds fewer records, and nil for an empty partition.
	Query(ctx context.Context, partition string, embedding []float32, topK int) ([]Scored, error)

	// Delete removes a single record permanently.
	Delete(ctx context.Context, partition string, id string) error

	// DropPartition removes a whole partition and everything in it.
	// Used only by the explicit forget-session operation.
	DropPartition(ctx context.Context, partition string) error

	// Stats reports size and composition of a partition.
	Stats(ctx context.Context, partition string) (*PartitionStats, error)

	// Close releases resources.
	Close() error
}

// PartitionStats summarizes one partition.
type PartitionStats struct {
	Count         int
	TypeCounts    map[Type]int
	AvgImportance float64
}

// Embedder converts text to vector embeddings.
// Implementations: mock.Embedder (testing), onnx.Embedder (local SDK).
// Failures on quota or network issues surface as core transient errors.
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// Candidate is a snippet the triage stage proposes for persistence.
type Candidate struct {
	Text string
	Type Type
}

// Triage decides which conversational content is worth persisting.
// Implementations must be pure functions of the text content: deterministic,
// no I/O, and free to return nothing.
//
// The SDK ships KeywordTriage; custom implementations can swap in LLM-backed
// extraction without touching the workflow.
type Triage interface {
	Suggest(latest core.Turn, window []core.Turn) []Candidate
}
