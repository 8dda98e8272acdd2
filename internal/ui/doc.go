// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow around reconciliation batches:
//  1. [HistoryView] : Browse recorded batches, newest first
//  2. [OutcomeView] : Inspect every track of one batch, failures first
//  3. [ConfirmView] : Confirm starting a new import batch
//  4. [RunView] : Monitor real-time progress with a spinner and progress bar
//  5. [ResultView] : Display the playlist summary and the unresolved tracks
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the reconcile engine, providing non-blocking status reporting during batches.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, s, y/n, r, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
