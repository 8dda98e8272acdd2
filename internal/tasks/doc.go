// Package tasks reconciles batches of imported audio files with a media server, reporting progress
// as it goes.
//
// # Core Operations
//
// The [Reconciler] interface defines three operations:
//
//  1. [Reconciler.Run] : import batch
//     - Verifies the library root is writable
//     - Reads tags, resolves the canonical artist and files each source under root/artist/album/
//     - Requests one library rescan and waits for it with [IndexWaiter]
//     - Matches each filed track to a server id
//     - Appends the resolved ids to the batch playlist and verifies the member count
//
//  2. [Reconciler.RunManual] : matches operator supplied artist and title pairs already on the server
//
//  3. [Reconciler.SyncLibrary] : adds every server song missing from a playlist
//
// # Deferred Errors
//
// Tracks that cannot be attributed, filed or matched do not stop the batch. Their errors stay on the
// [TrackOutcome] and, after the playlist is written, are returned together as a [*BatchError].
// Anything that prevents the playlist from being trusted (an unwritable root, a rescan timeout, a
// server failure, a count mismatch) stops the batch and is returned directly.
//
// # Progress Reporting
//
// # All operations use non-blocking channels for progress updates
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # History
//
// The optional [Recorder] interface persists every finished batch, including stopped ones.
// Recording failures are logged and never change the batch result.
package tasks
