package app

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/carein/callboard/internal/api"
	"github.com/carein/callboard/internal/ui"
)

// PanelFocus tracks which panel has keyboard focus.
type PanelFocus int

const (
	FocusList PanelFocus = iota
	FocusForm
)

// listState is the visual state of the summary list.
type listState int

const (
	listLoading listState = iota
	listError
	listPopulated
)

// rerunStatus is the per-row state of the rerun control.
type rerunStatus int

const (
	rerunIdle rerunStatus = iota
	rerunRunning
	rerunFailed
)

type rerunState struct {
	status rerunStatus
	err    string
}

// row is one entry of the list. Rows with a TempID are optimistic
// placeholders for a submission the server has not answered yet.
type row struct {
	Summary api.Summary
	TempID  string
}

func (r row) pending() bool { return r.TempID != "" }

// Options configures a Model.
type Options struct {
	Service api.Service
	// BaseURL is shown in the header.
	BaseURL          string
	Limit            int
	Timeout          time.Duration
	NoticeTTL        time.Duration
	OptimisticInsert bool
	Logger           logrus.FieldLogger
	// Scheduler delivers delayed messages; defaults to tea.Tick.
	Scheduler Scheduler
}

// Model is the root bubbletea model: the summary list, with the
// submission form and commlog panels as children.
type Model struct {
	svc      api.Service
	log      logrus.FieldLogger
	baseURL  string
	limit    int
	timeout  time.Duration
	ttl      time.Duration
	schedule Scheduler

	// List state
	rows    []row
	loading bool
	loaded  bool // a load has succeeded at least once
	listErr string
	listSeq uint64

	// Per-row state
	reruns   map[int64]rerunState
	expanded map[int64]commlogPanel

	// seq is the last request token handed out.
	seq uint64

	// Children
	form   formModel
	toasts toastQueue

	// UI state
	focusedPanel PanelFocus
	cursor       int
	width        int
	height       int
	spinner      spinner.Model
	spinning     bool
}

// New creates a Model. The first list load is already marked in flight;
// Init issues it.
func New(opts Options) Model {
	log := opts.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	if opts.Limit <= 0 {
		opts.Limit = api.DefaultLimit
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.NoticeTTL <= 0 {
		opts.NoticeTTL = 5 * time.Second
	}
	if opts.Scheduler == nil {
		opts.Scheduler = tickScheduler
	}

	sp := spinner.New(
		spinner.WithSpinner(spinner.MiniDot),
		spinner.WithStyle(ui.SpinnerStyle),
	)

	m := Model{
		svc:          opts.Service,
		log:          log,
		baseURL:      opts.BaseURL,
		limit:        opts.Limit,
		timeout:      opts.Timeout,
		ttl:          opts.NoticeTTL,
		schedule:     opts.Scheduler,
		reruns:       make(map[int64]rerunState),
		expanded:     make(map[int64]commlogPanel),
		form:         newFormModel(opts.Service, opts.Timeout, opts.NoticeTTL, opts.OptimisticInsert, opts.Scheduler, log),
		focusedPanel: FocusList,
		spinner:      sp,
	}
	m.seq = 1
	m.listSeq = 1
	m.loading = true
	m.spinning = true
	return m
}

// Init issues the first list load.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		loadSummariesCmd(m.svc, m.timeout, m.listSeq, m.limit),
		m.spinner.Tick,
	)
}

func (m *Model) nextSeq() uint64 {
	m.seq++
	return m.seq
}

// loadSummaries starts a list fetch that supersedes any in flight.
func (m *Model) loadSummaries() tea.Cmd {
	m.listSeq = m.nextSeq()
	m.loading = true
	m.listErr = ""
	m.log.WithField("seq", m.listSeq).Debug("loading summaries")
	return tea.Batch(
		loadSummariesCmd(m.svc, m.timeout, m.listSeq, m.limit),
		m.startSpinner(),
	)
}

// rerunSummary starts a rerun for id unless one is already in flight.
func (m *Model) rerunSummary(id int64) tea.Cmd {
	if m.reruns[id].status == rerunRunning {
		return nil
	}
	m.reruns[id] = rerunState{status: rerunRunning}
	m.log.WithField("summary_id", id).Info("rerun requested")
	return tea.Batch(rerunCmd(m.svc, m.timeout, id), m.startSpinner())
}

// toggleLog expands or collapses the commlog panel of id. Expanding
// mounts a fresh panel, which fetches once.
func (m *Model) toggleLog(id int64) tea.Cmd {
	if _, ok := m.expanded[id]; ok {
		delete(m.expanded, id)
		return nil
	}
	p := newCommlogPanel(id, m.nextSeq())
	m.expanded[id] = p
	return tea.Batch(loadCommlogCmd(m.svc, m.timeout, id, p.seq), m.startSpinner())
}

// pushToast queues a notification and schedules its expiry.
func (m *Model) pushToast(kind noticeKind, text string) tea.Cmd {
	id := m.toasts.push(kind, text)
	return m.schedule(m.ttl, ToastExpiredMsg{ID: id})
}

func (m *Model) startSpinner() tea.Cmd {
	if m.spinning {
		return nil
	}
	m.spinning = true
	return m.spinner.Tick
}

// busy reports whether anything on screen is waiting on the network.
func (m Model) busy() bool {
	if m.loading || m.form.submitting {
		return true
	}
	for _, r := range m.reruns {
		if r.status == rerunRunning {
			return true
		}
	}
	for _, p := range m.expanded {
		if p.state == panelLoading {
			return true
		}
	}
	return false
}

// state projects the list onto its three exclusive visual states.
func (m Model) state() listState {
	switch {
	case m.loading:
		return listLoading
	case m.listErr != "":
		return listError
	default:
		return listPopulated
	}
}

// selected returns the row under the cursor.
func (m Model) selected() (row, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return row{}, false
	}
	return m.rows[m.cursor], true
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.form.setWidth(msg.Width - 4)
		return m, nil

	case spinner.TickMsg:
		if !m.busy() {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case SummariesLoadedMsg:
		m.applySummaries(msg)
		return m, nil

	case SummaryRerunMsg:
		return m, m.applyRerun(msg)

	case CommlogLoadedMsg:
		p, ok := m.expanded[msg.SummaryID]
		if !ok || p.seq != msg.Seq {
			m.log.WithFields(logrus.Fields{
				"summary_id": msg.SummaryID,
				"seq":        msg.Seq,
			}).Debug("discarding stale commlog")
			return m, nil
		}
		p.apply(msg)
		m.expanded[msg.SummaryID] = p
		return m, nil

	case submitResultMsg:
		return m, m.form.handleResult(msg)

	case noticeExpiredMsg:
		m.form.handleExpired(msg)
		return m, nil

	case SummaryPendingMsg:
		hadRows := len(m.rows) > 0
		placeholder := row{
			TempID:  msg.TempID,
			Summary: api.Summary{Transcript: msg.Transcript, CreatedAt: api.NewTimestamp(time.Now())},
		}
		m.rows = append([]row{placeholder}, m.rows...)
		if hadRows {
			m.cursor++
		}
		return m, nil

	case SummaryCreatedMsg:
		m.reconcile(msg)
		return m, m.loadSummaries()

	case SubmitFailedMsg:
		m.removePlaceholder(msg.TempID)
		return m, nil

	case ToastExpiredMsg:
		m.toasts.expire(msg.ID)
		return m, nil
	}

	if m.focusedPanel == FocusForm {
		return m, m.form.update(msg)
	}
	return m, nil
}

// applySummaries installs a list response if it answers the latest request.
func (m *Model) applySummaries(msg SummariesLoadedMsg) {
	if msg.Seq != m.listSeq {
		m.log.WithFields(logrus.Fields{
			"seq":    msg.Seq,
			"latest": m.listSeq,
		}).Debug("discarding stale summaries")
		return
	}
	m.loading = false

	placeholders := m.placeholders()
	if msg.Err != nil {
		m.listErr = api.Message(msg.Err)
		m.log.WithError(msg.Err).Warn("load summaries failed")
		if !m.loaded {
			m.rows = placeholders
			m.clampCursor()
		}
		return
	}

	sorted := make([]api.Summary, len(msg.Summaries))
	copy(sorted, msg.Summaries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ID > sorted[j].ID
	})

	rows := placeholders
	for _, s := range sorted {
		rows = append(rows, row{Summary: s})
	}
	m.rows = rows
	m.listErr = ""
	m.loaded = true
	m.clampCursor()
}

// applyRerun replaces exactly the rerun row with the server's version.
func (m *Model) applyRerun(msg SummaryRerunMsg) tea.Cmd {
	if m.reruns[msg.ID].status != rerunRunning {
		return nil
	}

	log := m.log.WithField("summary_id", msg.ID)
	if msg.Err != nil {
		text := api.Message(msg.Err)
		m.reruns[msg.ID] = rerunState{status: rerunFailed, err: text}
		log.WithError(msg.Err).Warn("rerun failed")
		return m.pushToast(noticeError, fmt.Sprintf("Re-run of summary %d failed: %s", msg.ID, text))
	}

	delete(m.reruns, msg.ID)
	for i, r := range m.rows {
		if !r.pending() && r.Summary.ID == msg.ID {
			m.rows[i] = row{Summary: msg.Summary}
			break
		}
	}
	log.Info("rerun complete")
	return nil
}

// reconcile swaps an optimistic placeholder for the created summary.
func (m *Model) reconcile(msg SummaryCreatedMsg) {
	if msg.TempID == "" {
		return
	}
	for _, r := range m.rows {
		if !r.pending() && r.Summary.ID == msg.Summary.ID {
			m.removePlaceholder(msg.TempID)
			return
		}
	}
	for i, r := range m.rows {
		if r.TempID == msg.TempID {
			m.rows[i] = row{Summary: msg.Summary}
			return
		}
	}
}

func (m *Model) removePlaceholder(tempID string) {
	for i, r := range m.rows {
		if r.TempID == tempID {
			m.rows = append(m.rows[:i:i], m.rows[i+1:]...)
			if m.cursor > i {
				m.cursor--
			}
			m.clampCursor()
			return
		}
	}
}

func (m Model) placeholders() []row {
	var out []row
	for _, r := range m.rows {
		if r.pending() {
			out = append(out, r)
		}
	}
	return out
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == KeyCtrlC {
		return m, tea.Quit
	}

	if m.focusedPanel == FocusForm {
		switch key {
		case KeyTab, KeyEsc:
			m.form.blur()
			m.focusedPanel = FocusList
			return m, nil
		case KeySubmit:
			cmd := m.form.submit()
			if m.form.submitting {
				cmd = tea.Batch(cmd, m.startSpinner())
			}
			return m, cmd
		}
		return m, m.form.update(msg)
	}

	switch key {
	case KeyQuit, KeyQuitUpper:
		return m, tea.Quit

	case KeyTab:
		m.focusedPanel = FocusForm
		return m, m.form.focus()

	case KeyJ, KeyDown:
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
		return m, nil

	case KeyK, KeyUp:
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case KeyHome:
		m.cursor = 0
		return m, nil

	case KeyEnd:
		m.cursor = max(0, len(m.rows)-1)
		return m, nil

	case KeyRefresh:
		if m.loading {
			return m, nil
		}
		return m, m.loadSummaries()

	case KeyEnter, KeyToggleLog:
		r, ok := m.selected()
		if !ok || r.pending() || m.state() != listPopulated {
			return m, nil
		}
		return m, m.toggleLog(r.Summary.ID)

	case KeyRerun:
		r, ok := m.selected()
		if !ok || r.pending() || m.state() != listPopulated {
			return m, nil
		}
		return m, m.rerunSummary(r.Summary.ID)
	}

	return m, nil
}
