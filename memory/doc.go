// Package memory implements the two memory tiers of the agent.
//
// Short-term memory is a bounded FIFO window of raw conversation turns for
// one active session. It is not semantically indexed and never persisted.
//
// Long-term memory is a durable, semantically searchable store of curated
// snippets with typed importance. Records live in vector partitions, one
// partition per (user, session) pair, so no query can ever cross user or
// session boundaries.
//
// Architecture:
//   - Store: vector partition backend (chromem-go for the local SDK)
//   - Embedder: text-to-vector conversion (mock for tests, ONNX local model)
//   - Triage: pluggable heuristic deciding what is worth persisting
//   - Manager: orchestrates store, dual-strategy retrieval, and stats
//
// Dual-strategy retrieval keeps neighbors at or above the similarity
// threshold, and when nothing clears it, falls back to the plain top-k so a
// non-empty partition always yields best-effort context.
package memory
