package ui

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/libsync/internal/models"
	"github.com/desertthunder/libsync/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	HistoryView ViewState = iota
	OutcomeView
	ConfirmView
	RunView
	ResultView
)

// History is the read side of the batch history store.
type History interface {
	Recent(limit int) ([]*models.BatchRun, error)
	Lookup(ref string) (*models.BatchRun, []*models.TrackOutcomeRecord, error)
}

// BatchFunc starts one batch, reporting progress on the channel. It must not close the channel.
type BatchFunc func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*tasks.BatchResult, error)

// Options configures a [Model].
type Options struct {
	History History
	Run     BatchFunc
	// Description is shown when confirming a new batch, e.g. the import directory and playlist.
	Description string
	// Limit caps the number of batches listed. Defaults to 50.
	Limit int
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	cancel       context.CancelFunc
	view         ViewState
	opts         Options
	width        int
	height       int
	batchList    list.Model
	outcomeList  list.Model
	selected     *models.BatchRun
	progressChan chan tasks.ProgressUpdate
	done         chan batchComplete
	progress     tasks.ProgressUpdate
	matched      int
	unresolved   int
	result       *tasks.BatchResult
	err          error
	spinner      spinner.Model
	bar          progress.Model
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, opts Options) *Model {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	return &Model{
		ctx:         ctx,
		view:        HistoryView,
		opts:        opts,
		batchList:   newList("Batches", nil),
		outcomeList: newList("Tracks", nil),
		spinner:     spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.accent)),
		bar:         progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		help:        help.New(),
		keys:        newKeyMap(),
	}
}

func newList(title string, items []list.Item) list.Model {
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	return l
}

// Init loads the batch history.
func (m *Model) Init() tea.Cmd {
	return m.loadHistory()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.batchList.SetSize(msg.Width-4, msg.Height-8)
		m.outcomeList.SetSize(msg.Width-4, msg.Height-8)
		if w := msg.Width - 8; w > 0 && w < 80 {
			m.bar.Width = w
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case HistoryView:
			return m.handleHistoryKeys(msg)
		case OutcomeView:
			return m.handleOutcomeKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case RunView:
			return m.handleRunKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case spinner.TickMsg:
		if m.view != RunView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgHistoryLoaded:
		data := msg.data.(historyLoaded)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		items := make([]list.Item, len(data.batches))
		for i, b := range data.batches {
			items[i] = batchItem{batch: b}
		}
		m.batchList.SetItems(items)
		return m, nil

	case MsgOutcomesLoaded:
		data := msg.data.(outcomesLoaded)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.selected = data.batch
		m.outcomeList.SetItems(outcomeItems(data.outcomes))
		m.outcomeList.Title = fmt.Sprintf("Batch #%d • %s", data.batch.Sequence(), data.batch.PlaylistName)
		m.view = OutcomeView
		return m, nil

	case MsgProgressUpdate:
		update := msg.data.(tasks.ProgressUpdate)
		m.progress = update
		if update.Phase == tasks.MatchTracks {
			if out, ok := update.Data.(*tasks.TrackOutcome); ok {
				if out.Resolved() {
					m.matched++
				} else if out.Err != nil {
					m.unresolved++
				}
			}
		}
		return m, waitForProgress(m.progressChan, m.done)

	case MsgBatchComplete:
		data := msg.data.(batchComplete)
		m.result = data.result
		m.err = data.err
		m.view = ResultView
		m.progressChan = nil
		m.done = nil
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		return m, nil
	}
	return m, nil
}

// outcomeItems lists failures before resolved tracks, each group in input order.
func outcomeItems(outcomes []*models.TrackOutcomeRecord) []list.Item {
	sorted := make([]*models.TrackOutcomeRecord, len(outcomes))
	copy(sorted, outcomes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Status != models.OutcomeResolved && sorted[j].Status == models.OutcomeResolved
	})

	items := make([]list.Item, len(sorted))
	for i, o := range sorted {
		items[i] = outcomeItem{outcome: o}
	}
	return items
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case HistoryView:
		return m.renderHistory()
	case OutcomeView:
		return m.renderOutcomes()
	case ConfirmView:
		return m.renderConfirm()
	case RunView:
		return m.renderRun()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleHistoryKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.batchList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.batchList, cmd = m.batchList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.start):
		if m.opts.Run != nil {
			m.view = ConfirmView
		}
		return m, nil
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.batchList.SelectedItem().(batchItem); ok {
			return m, m.loadOutcomes(item.batch.ID())
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.batchList, cmd = m.batchList.Update(msg)
	return m, cmd
}

func (m *Model) handleOutcomeKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.outcomeList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.outcomeList, cmd = m.outcomeList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = HistoryView
		m.selected = nil
		return m, nil
	}

	var cmd tea.Cmd
	m.outcomeList, cmd = m.outcomeList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		m.view = RunView
		return m, m.startBatch()
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.quit):
		m.view = HistoryView
	}
	return m, nil
}

// handleRunKeys cancels the batch on quit. The engine still records what it has done.
func (m *Model) handleRunKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.quit) && m.cancel != nil {
		m.cancel()
		m.progress.Message = "Cancelling..."
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart):
		m.view = HistoryView
		m.result = nil
		m.err = nil
		return m, m.loadHistory()
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case HistoryView:
		m.batchList, cmd = m.batchList.Update(msg)
	case OutcomeView:
		m.outcomeList, cmd = m.outcomeList.Update(msg)
	}
	return m, cmd
}

func (m *Model) loadHistory() tea.Cmd {
	history, limit := m.opts.History, m.opts.Limit
	return func() tea.Msg {
		if history == nil {
			return historyLoadedMsg(nil, nil)
		}
		batches, err := history.Recent(limit)
		return historyLoadedMsg(batches, err)
	}
}

func (m *Model) loadOutcomes(id string) tea.Cmd {
	history := m.opts.History
	return func() tea.Msg {
		batch, outcomes, err := history.Lookup(id)
		return outcomesLoadedMsg(batch, outcomes, err)
	}
}

func (m *Model) startBatch() tea.Cmd {
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	m.done = make(chan batchComplete, 1)
	m.progress = tasks.ProgressUpdate{Message: "Starting batch..."}
	m.matched, m.unresolved = 0, 0

	progressChan, done, run := m.progressChan, m.done, m.opts.Run
	go func() {
		result, err := run(ctx, progressChan)
		close(progressChan)
		done <- batchComplete{result: result, err: err}
	}()

	return tea.Batch(m.spinner.Tick, waitForProgress(progressChan, done))
}

// waitForProgress relays one update, or the batch result once the channel is closed.
func waitForProgress(progressChan <-chan tasks.ProgressUpdate, done <-chan batchComplete) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-progressChan
		if !ok {
			complete := <-done
			return batchCompleteMsg(complete.result, complete.err)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) helpView() string {
	return m.help.ShortHelpView(m.keys.forView(m.view, m.opts.Run != nil))
}

func (m *Model) renderHistory() string {
	return fmt.Sprintf("%s\n\n%s", m.batchList.View(), m.helpView())
}

func (m *Model) renderOutcomes() string {
	return fmt.Sprintf("%s\n\n%s", m.outcomeList.View(), m.helpView())
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render("Start a new batch?")
	info := styles.box.Render(m.opts.Description)
	return fmt.Sprintf("%s\n%s\n\n%s", title, info, m.helpView())
}

func (m *Model) renderRun() string {
	title := styles.title.Render("Reconciling")

	var phase string
	switch m.progress.Phase {
	case tasks.VerifyLibrary:
		phase = "Checking library root"
	case tasks.FileTracks:
		phase = fmt.Sprintf("Filing tracks (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.RefreshIndex:
		phase = "Waiting for library rescan"
	case tasks.MatchTracks:
		phase = fmt.Sprintf("Matching tracks (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.FetchLibrary:
		phase = "Fetching server library"
	case tasks.SyncPlaylist:
		phase = "Writing playlist"
	case tasks.PurgeSources:
		phase = "Removing imported files"
	default:
		phase = "Processing"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s\n%s %s\n", title, m.spinner.View(), phase))
	if m.progress.Total > 0 {
		b.WriteString(m.bar.ViewAs(float64(m.progress.Step)/float64(m.progress.Total)) + "\n")
	}
	b.WriteString(styles.help.Render(m.progress.Message) + "\n")
	if m.matched+m.unresolved > 0 {
		b.WriteString(fmt.Sprintf("\n%s  %s\n",
			styles.ok.Render(fmt.Sprintf("%d matched", m.matched)),
			styles.warn.Render(fmt.Sprintf("%d unresolved", m.unresolved))))
	}
	b.WriteString("\n" + m.helpView())
	return b.String()
}

func (m *Model) renderResult() string {
	helpView := m.helpView()

	var batchErr *tasks.BatchError
	if m.err != nil && !errors.As(m.err, &batchErr) {
		return styles.err.Render(fmt.Sprintf("Batch failed: %v", m.err)) + "\n\n" + helpView
	}
	if m.result == nil {
		return styles.err.Render("No result available") + "\n\n" + helpView
	}

	r := m.result
	title := styles.ok.Render("✓ Batch Complete!")
	if len(r.Failed()) > 0 {
		title = styles.warn.Render("! Batch Complete With Unresolved Tracks")
	}

	info := fmt.Sprintf(
		"\nPlaylist: %s\nAdded: %d (now %d tracks)\nResolved: %d/%d (%.1f%%)",
		r.PlaylistName,
		r.Added,
		r.FinalCount,
		len(r.Resolved()),
		len(r.Outcomes),
		r.MatchPercentage(),
	)

	var failed string
	if n := len(r.Failed()); n > 0 {
		failed = fmt.Sprintf("\n\n%s", styles.warn.Render(fmt.Sprintf("Unresolved %d tracks:", n)))
		for _, o := range r.Failed() {
			failed += fmt.Sprintf("\n  • %s %s", o.Label(), styles.help.Render("("+o.Kind()+")"))
		}
	}

	return fmt.Sprintf("%s\n%s%s\n\n%s", title, info, failed, helpView)
}
