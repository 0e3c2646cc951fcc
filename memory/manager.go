package memory

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/becomeliminal/mnemo/core"
)

// Manager orchestrates long-term memory: triage, conditional persistence,
// and dual-strategy retrieval, always through the partition of one
// (user, session) pair.
type Manager struct {
	store    Store
	embedder Embedder // Internal: the workflow never sees this
	triage   Triage
	config   *Config
}

// Config holds Manager tuning.
type Config struct {
	// TopK is the maximum records returned per retrieval.
	// Default: 5
	TopK int

	// MinSimilarity is the retrieval threshold [0.0-1.0]. Results below it
	// are dropped unless nothing clears it, in which case the plain top-k
	// fallback applies.
	// Default: 0.2 (tiny local models produce low absolute scores)
	MinSimilarity float32

	// RetryBackoff is the wait before the single retry on a transient
	// embedding failure during storage and retrieval.
	// Default: 200ms
	RetryBackoff time.Duration
}

// DefaultConfig returns the local SDK defaults.
var DefaultConfig = &Config{
	TopK:          5,
	MinSimilarity: 0.2,
	RetryBackoff:  200 * time.Millisecond,
}

// NewManager creates a Manager. A nil config uses DefaultConfig; a nil
// triage uses KeywordTriage.
func NewManager(store Store, embedder Embedder, triage Triage, config *Config) *Manager {
	if config == nil {
		config = DefaultConfig
	}
	if triage == nil {
		triage = NewKeywordTriage()
	}
	return &Manager{
		store:    store,
		embedder: embedder,
		triage:   triage,
		config:   config,
	}
}

// Suggest runs triage over the latest exchange. Deterministic, may be empty.
func (m *Manager) Suggest(latest core.Turn, window []core.Turn) []Candidate {
	return m.triage.Suggest(latest, window)
}

// Store embeds text, assigns the per-type importance, and writes the record
// into the partition for (userID, sessionID). One insert per call.
func (m *Manager) Store(ctx context.Context, userID, sessionID, text string, typ Type) (*Record, error) {
	partition, err := PartitionKey(userID, sessionID)
	if err != nil {
		return nil, err
	}

	rec, err := NewRecord(partition, text, typ)
	if err != nil {
		return nil, err
	}

	embedding, err := m.embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed record: %w", err)
	}
	rec.Embedding = embedding

	if err := m.store.Upsert(ctx, partition, rec); err != nil {
		return nil, fmt.Errorf("upsert record: %w", err)
	}

	log.Printf("[MEMORY] Stored %s (importance %.1f) in %s: %q",
		rec.Type, rec.Importance, partition, truncateLog(text, 50))
	return rec, nil
}

// Retrieve performs dual-strategy search against the pair's partition:
// threshold-filtered nearest neighbors first, then the unconditional top-k
// fallback when nothing clears the threshold. Results are ordered by
// descending similarity, ties broken by most recent creation.
func (m *Manager) Retrieve(ctx context.Context, userID, sessionID, query string, topK int, threshold float32) ([]Scored, error) {
	partition, err := PartitionKey(userID, sessionID)
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = m.config.TopK
	}

	embedding, err := m.embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	neighbors, err := m.store.Query(ctx, partition, embedding, topK)
	if err != nil {
		return nil, fmt.Errorf("query partition: %w", err)
	}

	filtered := neighbors[:0:0]
	for _, n := range neighbors {
		if n.Similarity >= threshold {
			filtered = append(filtered, n)
		}
	}
	// Best-effort relevance over strict silence: with no neighbor above the
	// threshold, return the plain top-k instead of nothing.
	if len(filtered) == 0 {
		filtered = neighbors
	}
	if len(filtered) > topK {
		filtered = filtered[:topK]
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].Similarity != filtered[j].Similarity {
			return filtered[i].Similarity > filtered[j].Similarity
		}
		return filtered[i].Record.CreatedAt.After(filtered[j].Record.CreatedAt)
	})

	log.Printf("[MEMORY] Retrieved %d memories from %s for %q",
		len(filtered), partition, truncateLog(query, 50))
	return filtered, nil
}

// Stats reports count, per-type histogram, and average importance for the
// pair's partition.
func (m *Manager) Stats(ctx context.Context, userID, sessionID string) (*PartitionStats, error) {
	partition, err := PartitionKey(userID, sessionID)
	if err != nil {
		return nil, err
	}
	return m.store.Stats(ctx, partition)
}

// Forget drops the pair's whole partition. Only the explicit forget-session
// operation calls this; session cleanup never cascades here.
func (m *Manager) Forget(ctx context.Context, userID, sessionID string) error {
	partition, err := PartitionKey(userID, sessionID)
	if err != nil {
		return err
	}
	log.Printf("[MEMORY] Dropping partition %s", partition)
	return m.store.DropPartition(ctx, partition)
}

// embed calls the embedder, retrying once with backoff on transient failure.
func (m *Manager) embed(ctx context.Context, text string) ([]float32, error) {
	embedding, err := m.embedder.Embed(ctx, text)
	if err == nil {
		return embedding, nil
	}
	if !core.IsTransient(err) {
		return nil, err
	}

	log.Printf("[MEMORY] Transient embed failure, retrying in %s: %v", m.config.RetryBackoff, err)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(m.config.RetryBackoff):
	}
	return m.embedder.Embed(ctx, text)
}

// truncateLog truncates text for logging.
func truncateLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
