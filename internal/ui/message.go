package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/libsync/internal/models"
	"github.com/desertthunder/libsync/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgHistoryLoaded MsgKind = iota
	MsgOutcomesLoaded
	MsgProgressUpdate
	MsgBatchComplete
)

type historyLoaded struct {
	batches []*models.BatchRun
	err     error
}

type outcomesLoaded struct {
	batch    *models.BatchRun
	outcomes []*models.TrackOutcomeRecord
	err      error
}

type batchComplete struct {
	result *tasks.BatchResult
	err    error
}

// historyLoadedMsg is the constructor for [MsgHistoryLoaded]
func historyLoadedMsg(batches []*models.BatchRun, err error) Msg {
	return Msg{kind: MsgHistoryLoaded, data: historyLoaded{batches, err}}
}

// outcomesLoadedMsg is the constructor for [MsgOutcomesLoaded]
func outcomesLoadedMsg(batch *models.BatchRun, outcomes []*models.TrackOutcomeRecord, err error) Msg {
	return Msg{kind: MsgOutcomesLoaded, data: outcomesLoaded{batch, outcomes, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// batchCompleteMsg is the constructor for [MsgBatchComplete]
func batchCompleteMsg(result *tasks.BatchResult, err error) Msg {
	return Msg{kind: MsgBatchComplete, data: batchComplete{result, err}}
}
