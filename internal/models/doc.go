// Package models defines domain entities and persistence interfaces for libsync.
//
// The package contains two categories of types:
//
// 1. Reconciliation values passed between pipeline stages
//   - [Tags] : Raw title/artist/album-artist/album read from an audio file
//   - [Track] : An imported file with canonical attribution, library path and remote id
//   - [Candidate] : A media server search hit considered during matching
//   - [Playlist] : A remote playlist and its membership
//
// 2. Persistent Entities: Database-backed batch history
//   - [BatchRun] : One reconciliation batch and its playlist outcome
//   - [TrackOutcomeRecord] : The terminal state of one track in a batch
//
// Persistent entities implement the Model interface providing ID generation, timestamps and validation.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
