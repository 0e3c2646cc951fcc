// Package chromem implements the vector partition store on chromem-go, a
// pure Go embedded vector database. One chromem collection backs each
// partition, so (user, session) pairs can never see each other's records.
package chromem

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/becomeliminal/mnemo/core"
	"github.com/becomeliminal/mnemo/memory"
)

// Store wraps chromem-go as a memory.Store.
type Store struct {
	db          *chromem.DB
	mu          sync.RWMutex
	collections map[string]*chromem.Collection
	composition map[string]map[string]docMeta // partition -> record id -> meta
}

// docMeta mirrors the per-record fields needed for partition stats, kept in
// the wrapper because chromem collections cannot be enumerated.
type docMeta struct {
	typ        memory.Type
	importance float64
}

// New creates an in-memory chromem store.
func New() (*Store, error) {
	return &Store{
		db:          chromem.NewDB(),
		collections: make(map[string]*chromem.Collection),
		composition: make(map[string]map[string]docMeta),
	}, nil
}

// getOrCreateCollection returns the collection backing a partition.
func (s *Store) getOrCreateCollection(partition string) (*chromem.Collection, error) {
	s.mu.RLock()
	col, exists := s.collections[partition]
	s.mu.RUnlock()
	if exists {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring the write lock
	if col, exists := s.collections[partition]; exists {
		return col, nil
	}

	// No embedding func and default cosine distance: embeddings are always
	// supplied by the caller.
	col, err := s.db.CreateCollection(partition, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	s.collections[partition] = col
	s.composition[partition] = make(map[string]docMeta)
	return col, nil
}

// Upsert saves a record into a partition.
func (s *Store) Upsert(ctx context.Context, partition string, rec *memory.Record) error {
	if len(rec.Embedding) == 0 {
		return fmt.Errorf("record %s has no embedding", rec.ID)
	}
	col, err := s.getOrCreateCollection(partition)
	if err != nil {
		return err
	}

	doc := chromem.Document{
		ID:        rec.ID,
		Content:   rec.Text,
		Embedding: rec.Embedding,
		Metadata: map[string]string{
			"memory_type": string(rec.Type),
			"importance":  strconv.FormatFloat(rec.Importance, 'f', -1, 64),
			"created_at":  rec.CreatedAt.Format(time.RFC3339Nano),
			"partition":   partition,
		},
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}

	s.mu.Lock()
	s.composition[partition][rec.ID] = docMeta{typ: rec.Type, importance: rec.Importance}
	s.mu.Unlock()
	return nil
}

// Query retrieves the topK nearest records in a partition.
func (s *Store) Query(ctx context.Context, partition string, embedding []float32, topK int) ([]memory.Scored, error) {
	col, err := s.getOrCreateCollection(partition)
	if err != nil {
		return nil, err
	}

	// chromem rejects nResults larger than the collection
	if n := col.Count(); topK > n {
		topK = n
	}
	if topK == 0 {
		return nil, nil
	}

	results, err := col.QueryEmbedding(ctx, embedding, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	scored := make([]memory.Scored, 0, len(results))
	for _, result := range results {
		rec, err := recordFromResult(result)
		if err != nil {
			return nil, err
		}
		// A record surfacing outside its own partition is a defect, never
		// a runtime condition to tolerate.
		if rec.Partition != partition {
			return nil, core.Isolationf("record %s from partition %s leaked into query against %s",
				rec.ID, rec.Partition, partition)
		}
		scored = append(scored, memory.Scored{Record: rec, Similarity: result.Similarity})
	}
	return scored, nil
}

// Delete removes one record permanently.
func (s *Store) Delete(ctx context.Context, partition string, id string) error {
	col, err := s.getOrCreateCollection(partition)
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("chromem delete: %w", err)
	}
	s.mu.Lock()
	delete(s.composition[partition], id)
	s.mu.Unlock()
	return nil
}

// DropPartition removes a whole partition and everything in it.
func (s *Store) DropPartition(ctx context.Context, partition string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.collections[partition]; !exists {
		return nil
	}
	if err := s.db.DeleteCollection(partition); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	delete(s.collections, partition)
	delete(s.composition, partition)
	return nil
}

// Stats reports size and composition of a partition. Unknown partitions
// report as empty.
func (s *Store) Stats(ctx context.Context, partition string) (*memory.PartitionStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &memory.PartitionStats{TypeCounts: make(map[memory.Type]int)}
	metas, exists := s.composition[partition]
	if !exists {
		return stats, nil
	}

	var sum float64
	for _, meta := range metas {
		stats.Count++
		stats.TypeCounts[meta.typ]++
		sum += meta.importance
	}
	if stats.Count > 0 {
		stats.AvgImportance = sum / float64(stats.Count)
	}
	return stats, nil
}

// Close releases resources. chromem keeps everything in memory.
func (s *Store) Close() error {
	return nil
}

// recordFromResult rebuilds a memory.Record from a chromem result.
func recordFromResult(result chromem.Result) (*memory.Record, error) {
	typ := memory.Type(result.Metadata["memory_type"])
	if !typ.Valid() {
		return nil, fmt.Errorf("record %s has unknown memory type %q", result.ID, result.Metadata["memory_type"])
	}
	importance, err := strconv.ParseFloat(result.Metadata["importance"], 64)
	if err != nil {
		return nil, fmt.Errorf("record %s has bad importance: %w", result.ID, err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, result.Metadata["created_at"])
	if err != nil {
		return nil, fmt.Errorf("record %s has bad created_at: %w", result.ID, err)
	}

	return &memory.Record{
		ID:         result.ID,
		Text:       result.Content,
		Embedding:  result.Embedding,
		Type:       typ,
		Importance: importance,
		CreatedAt:  createdAt,
		Partition:  result.Metadata["partition"],
	}, nil
}
