// Package repositories implements SQLite persistence for batch history.
//
// Each repository handles CRUD operations with atomic sequence generation for human-readable ordering.
//
// Key Implementations:
//   - [BatchRepository] : One row per reconciliation batch with its counts and playlist outcome
//   - [OutcomeRepository] : One row per input track, keeping failures for remediation
//   - [History] : Records [tasks.BatchResult] values and answers the history command
//
// Sequence numbers provide stable, human-readable ordering (e.g., batch #42) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
