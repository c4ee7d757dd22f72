package app

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/carein/callboard/internal/api"
)

// fakeService is an in-memory api.Service that counts calls.
type fakeService struct {
	mu sync.Mutex

	list      []api.Summary
	listErr   error
	listCalls int
	lastLimit int

	created     api.Summary
	createErr   error
	createCalls int
	transcripts []string

	rerun      map[int64]api.Summary
	rerunErr   error
	rerunCalls []int64

	commlog      map[int64][]api.CommlogEntry
	commlogErr   error
	commlogCalls []int64
}

func (f *fakeService) ListSummaries(_ context.Context, limit int) ([]api.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	f.lastLimit = limit
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]api.Summary(nil), f.list...), nil
}

func (f *fakeService) CreateSummary(_ context.Context, transcript string) (api.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	f.transcripts = append(f.transcripts, transcript)
	if f.createErr != nil {
		return api.Summary{}, f.createErr
	}
	return f.created, nil
}

func (f *fakeService) RerunSummary(_ context.Context, id int64) (api.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rerunCalls = append(f.rerunCalls, id)
	if f.rerunErr != nil {
		return api.Summary{}, f.rerunErr
	}
	return f.rerun[id], nil
}

func (f *fakeService) Commlog(_ context.Context, summaryID int64) ([]api.CommlogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commlogCalls = append(f.commlogCalls, summaryID)
	if f.commlogErr != nil {
		return nil, f.commlogErr
	}
	return f.commlog[summaryID], nil
}

// scheduled records every delayed message instead of starting timers.
type scheduled struct {
	d   time.Duration
	msg tea.Msg
}

func newTestModel(svc api.Service, optimistic bool) (Model, *[]scheduled) {
	var timers []scheduled
	m := New(Options{
		Service:          svc,
		OptimisticInsert: optimistic,
		Scheduler: func(d time.Duration, msg tea.Msg) tea.Cmd {
			timers = append(timers, scheduled{d: d, msg: msg})
			return nil
		},
	})
	m.width = 100
	m.height = 60
	return m, &timers
}

// run executes cmd and any batched commands, returning the resulting
// messages. Spinner ticks are dropped so nothing waits on the clock.
func run(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	switch msg := msg.(type) {
	case nil:
		return nil
	case tea.BatchMsg:
		var out []tea.Msg
		for _, c := range msg {
			out = append(out, run(c)...)
		}
		return out
	case spinner.TickMsg:
		return nil
	default:
		return []tea.Msg{msg}
	}
}

func applyUpdate(m Model, msg tea.Msg) (Model, tea.Cmd) {
	updated, cmd := m.Update(msg)
	return updated.(Model), cmd
}

// settle feeds msgs into m, running every resulting command until
// nothing is left.
func settle(m Model, msgs ...tea.Msg) Model {
	for len(msgs) > 0 {
		msg := msgs[0]
		msgs = msgs[1:]
		var cmd tea.Cmd
		m, cmd = applyUpdate(m, msg)
		msgs = append(msgs, run(cmd)...)
	}
	return m
}

func key(k string) tea.KeyMsg {
	switch k {
	case KeyEnter:
		return tea.KeyMsg{Type: tea.KeyEnter}
	case KeyTab:
		return tea.KeyMsg{Type: tea.KeyTab}
	case KeyEsc:
		return tea.KeyMsg{Type: tea.KeyEsc}
	case KeySubmit:
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	case KeyDown:
		return tea.KeyMsg{Type: tea.KeyDown}
	case KeyUp:
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func summary(id int64, transcript string) api.Summary {
	return api.Summary{
		ID:         id,
		Transcript: transcript,
		CreatedAt:  api.NewTimestamp(time.Date(2024, 5, 1, 12, 0, int(id), 0, time.UTC)),
	}
}

// loadedModel returns a model whose first load has completed with list.
func loadedModel(t *testing.T, svc *fakeService, list ...api.Summary) Model {
	t.Helper()
	svc.list = list
	m, _ := newTestModel(svc, false)
	m = settle(m, run(m.Init())...)
	if m.state() != listPopulated {
		t.Fatalf("state = %v, want populated", m.state())
	}
	return m
}

func rowIDs(m Model) []int64 {
	var ids []int64
	for _, r := range m.rows {
		ids = append(ids, r.Summary.ID)
	}
	return ids
}

func TestNewModel(t *testing.T) {
	m, _ := newTestModel(&fakeService{}, false)
	if !m.loading {
		t.Error("new model should be loading")
	}
	if m.state() != listLoading {
		t.Errorf("state = %v, want loading", m.state())
	}
	if m.focusedPanel != FocusList {
		t.Error("new model should focus the list")
	}
	if m.limit != api.DefaultLimit {
		t.Errorf("limit = %d, want %d", m.limit, api.DefaultLimit)
	}
}

func TestLoadSortsDescendingByID(t *testing.T) {
	svc := &fakeService{}
	m := loadedModel(t, svc, summary(3, "c"), summary(10, "j"), summary(1, "a"), summary(7, "g"))

	want := []int64{10, 7, 3, 1}
	if got := rowIDs(m); !reflect.DeepEqual(got, want) {
		t.Errorf("ids = %v, want %v", got, want)
	}
	if svc.listCalls != 1 {
		t.Errorf("list calls = %d, want 1", svc.listCalls)
	}
	if svc.lastLimit != 20 {
		t.Errorf("limit = %d, want 20", svc.lastLimit)
	}
	if m.listErr != "" {
		t.Errorf("listErr = %q, want empty", m.listErr)
	}
}

func TestInitialLoadFailureShowsErrorAndEmptyList(t *testing.T) {
	svc := &fakeService{listErr: &api.Error{Kind: api.KindHTTP, Status: 500, Fallback: "HTTP error! status: 500"}}
	m, _ := newTestModel(svc, false)
	m = settle(m, run(m.Init())...)

	if len(m.rows) != 0 {
		t.Errorf("rows = %d, want 0", len(m.rows))
	}
	if m.state() != listError {
		t.Errorf("state = %v, want error", m.state())
	}
	if m.listErr != "HTTP error! status: 500" {
		t.Errorf("listErr = %q", m.listErr)
	}
	if !strings.Contains(m.View(), "HTTP error! status: 500") {
		t.Error("view should show the error")
	}
	if strings.Contains(m.View(), "No summaries found") {
		t.Error("error state should take precedence over the empty list")
	}
}

func TestFailedReloadKeepsPreviousList(t *testing.T) {
	svc := &fakeService{}
	m := loadedModel(t, svc, summary(1, "a"), summary(2, "b"))

	svc.listErr = errors.New("connection refused")
	m, cmd := applyUpdate(m, key(KeyRefresh))
	if !m.loading {
		t.Fatal("refresh should start loading")
	}
	m = settle(m, run(cmd)...)

	if got := rowIDs(m); !reflect.DeepEqual(got, []int64{2, 1}) {
		t.Errorf("ids = %v, want previous list kept", got)
	}
	if m.state() != listError {
		t.Errorf("state = %v, want error", m.state())
	}

	svc.listErr = nil
	m, cmd = applyUpdate(m, key(KeyRefresh))
	m = settle(m, run(cmd)...)
	if m.state() != listPopulated || m.listErr != "" {
		t.Errorf("successful reload should clear the error, got %q", m.listErr)
	}
}

func TestRefreshIgnoredWhileLoading(t *testing.T) {
	m, _ := newTestModel(&fakeService{}, false)

	_, cmd := applyUpdate(m, key(KeyRefresh))
	if cmd != nil {
		t.Error("refresh while loading should not issue a request")
	}
}

func TestStaleListResponseIsDiscarded(t *testing.T) {
	svc := &fakeService{}
	m := loadedModel(t, svc, summary(1, "a"))

	m.loadSummaries()
	first := m.listSeq
	m.loadSummaries()
	second := m.listSeq
	if second <= first {
		t.Fatalf("sequence did not advance: %d then %d", first, second)
	}

	m, _ = applyUpdate(m, SummariesLoadedMsg{Seq: second, Summaries: []api.Summary{summary(5, "new")}})
	m, _ = applyUpdate(m, SummariesLoadedMsg{Seq: first, Summaries: []api.Summary{summary(4, "old")}})

	if got := rowIDs(m); !reflect.DeepEqual(got, []int64{5}) {
		t.Errorf("ids = %v, want the latest response only", got)
	}
	if m.loading {
		t.Error("latest response should end loading")
	}
}

func TestRerunReplacesOnlyTargetRow(t *testing.T) {
	updated := summary(2, "b")
	updated.Summary = api.StringPtr("fresh summary")
	updated.UpdatedAt = api.TimestampPtr(time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC))
	svc := &fakeService{rerun: map[int64]api.Summary{2: updated}}

	first := summary(3, "c")
	first.Summary = api.StringPtr("old summary")
	m := loadedModel(t, svc, first, summary(2, "b"), summary(1, "a"))

	before := append([]row(nil), m.rows...)

	m, _ = applyUpdate(m, key(KeyJ))
	m, cmd := applyUpdate(m, key(KeyRerun))
	if m.reruns[2].status != rerunRunning {
		t.Fatalf("row 2 should be running")
	}
	m = settle(m, run(cmd)...)

	if !reflect.DeepEqual(m.rows[1].Summary, updated) {
		t.Errorf("row 2 = %+v, want server version %+v", m.rows[1].Summary, updated)
	}
	if !reflect.DeepEqual(m.rows[0], before[0]) || !reflect.DeepEqual(m.rows[2], before[2]) {
		t.Error("other rows must be unchanged")
	}
	if _, ok := m.reruns[2]; ok {
		t.Error("rerun state should be cleared on success")
	}
	if !reflect.DeepEqual(svc.rerunCalls, []int64{2}) {
		t.Errorf("rerun calls = %v", svc.rerunCalls)
	}
}

func TestRerunInFlightBlocksDuplicateButNotOtherRows(t *testing.T) {
	svc := &fakeService{rerun: map[int64]api.Summary{2: summary(2, "b"), 3: summary(3, "c")}}
	m := loadedModel(t, svc, summary(3, "c"), summary(2, "b"))

	m, _ = applyUpdate(m, key(KeyJ))
	m, first := applyUpdate(m, key(KeyRerun))
	if first == nil {
		t.Fatal("first rerun should issue a request")
	}
	if !strings.Contains(m.View(), "Re-running...") {
		t.Error("busy row should be labelled")
	}

	m, dup := applyUpdate(m, key(KeyRerun))
	if msgs := run(dup); len(msgs) != 0 {
		t.Errorf("duplicate rerun produced %d messages", len(msgs))
	}

	m, _ = applyUpdate(m, key(KeyK))
	m, other := applyUpdate(m, key(KeyRerun))
	if other == nil {
		t.Fatal("rerun for another row should be allowed")
	}

	m = settle(m, append(run(first), run(other)...)...)
	if !reflect.DeepEqual(svc.rerunCalls, []int64{2, 3}) {
		t.Errorf("rerun calls = %v, want [2 3]", svc.rerunCalls)
	}
	if m.busy() {
		t.Error("nothing should be busy after both reruns finish")
	}
}

func TestRerunFailureMarksRowAndQueuesToast(t *testing.T) {
	svc := &fakeService{rerunErr: &api.Error{Kind: api.KindHTTP, Status: 503, Fallback: "Failed to re-run summary (status: 503)"}}
	m := loadedModel(t, svc, summary(1, "a"))
	timers := &[]scheduled{}
	m.schedule = func(d time.Duration, msg tea.Msg) tea.Cmd {
		*timers = append(*timers, scheduled{d: d, msg: msg})
		return nil
	}

	m, cmd := applyUpdate(m, key(KeyRerun))
	m = settle(m, run(cmd)...)

	st := m.reruns[1]
	if st.status != rerunFailed {
		t.Fatalf("status = %v, want failed", st.status)
	}
	if st.err != "Failed to re-run summary (status: 503)" {
		t.Errorf("err = %q", st.err)
	}
	if m.toasts.len() != 1 {
		t.Fatalf("toasts = %d, want 1", m.toasts.len())
	}
	view := m.View()
	if !strings.Contains(view, "Failed to re-run. Please try again.") {
		t.Error("row should show the failure")
	}
	if !strings.Contains(view, "status: 503") {
		t.Error("toast should show the server message")
	}

	if len(*timers) != 1 || (*timers)[0].d != 5*time.Second {
		t.Fatalf("timers = %+v, want one 5s expiry", *timers)
	}
	m, _ = applyUpdate(m, (*timers)[0].msg)
	if m.toasts.len() != 0 {
		t.Error("toast should expire")
	}

	svc.rerunErr = nil
	svc.rerun = map[int64]api.Summary{1: summary(1, "a")}
	m, cmd = applyUpdate(m, key(KeyRerun))
	if cmd == nil {
		t.Fatal("failed row should allow a manual retry")
	}
	m = settle(m, run(cmd)...)
	if len(svc.rerunCalls) != 2 {
		t.Errorf("rerun calls = %d, want 2", len(svc.rerunCalls))
	}
	if _, ok := m.reruns[1]; ok {
		t.Error("successful retry should clear the failure")
	}
}

func TestRerunResultForVanishedRowIsHarmless(t *testing.T) {
	svc := &fakeService{}
	m := loadedModel(t, svc, summary(1, "a"))

	m.reruns[9] = rerunState{status: rerunRunning}
	m, _ = applyUpdate(m, SummaryRerunMsg{ID: 9, Summary: summary(9, "gone")})

	if got := rowIDs(m); !reflect.DeepEqual(got, []int64{1}) {
		t.Errorf("ids = %v, want [1]", got)
	}
}

func TestToggleLogTwiceLeavesNoDanglingFetch(t *testing.T) {
	svc := &fakeService{commlog: map[int64][]api.CommlogEntry{
		2: {{ID: 1, CallSummaryID: 2, Action: "created"}},
	}}
	m := loadedModel(t, svc, summary(2, "b"), summary(1, "a"))

	m, expand := applyUpdate(m, key(KeyEnter))
	if _, ok := m.expanded[2]; !ok {
		t.Fatal("enter should expand row 2")
	}
	m, collapse := applyUpdate(m, key(KeyEnter))
	if collapse != nil {
		t.Error("collapse should not issue a request")
	}
	if len(m.expanded) != 0 {
		t.Fatal("second enter should collapse")
	}

	// The first fetch lands after the collapse.
	m = settle(m, run(expand)...)
	if len(m.expanded) != 0 {
		t.Error("late response must not re-open the panel")
	}

	// Re-expand, then deliver a response from the earlier mount.
	m, reexpand := applyUpdate(m, key(KeyEnter))
	p := m.expanded[2]
	m, _ = applyUpdate(m, CommlogLoadedMsg{SummaryID: 2, Seq: p.seq - 1, Entries: []api.CommlogEntry{{ID: 99, Action: "stale"}}})
	if m.expanded[2].state != panelLoading {
		t.Error("response from an older mount must be discarded")
	}

	m = settle(m, run(reexpand)...)
	got := m.expanded[2]
	if got.state != panelPopulated || len(got.entries) != 1 || got.entries[0].ID != 1 {
		t.Errorf("panel = %+v, want the current mount's entries", got)
	}
	if len(svc.commlogCalls) != 2 {
		t.Errorf("commlog calls = %d, want one per expand", len(svc.commlogCalls))
	}
}

func TestMultiplePanelsCanBeOpen(t *testing.T) {
	svc := &fakeService{commlog: map[int64][]api.CommlogEntry{
		2: {{ID: 20, CallSummaryID: 2, Action: "created"}},
		1: {{ID: 10, CallSummaryID: 1, Action: "rerun"}},
	}}
	m := loadedModel(t, svc, summary(2, "b"), summary(1, "a"))

	m, a := applyUpdate(m, key(KeyEnter))
	m, _ = applyUpdate(m, key(KeyJ))
	m, b := applyUpdate(m, key(KeyToggleLog))

	m = settle(m, append(run(b), run(a)...)...)

	if len(m.expanded) != 2 {
		t.Fatalf("expanded = %d, want 2", len(m.expanded))
	}
	if m.expanded[2].entries[0].ID != 20 || m.expanded[1].entries[0].ID != 10 {
		t.Error("each panel should hold its own summary's entries")
	}
}

func TestPendingRowIgnoresRowActions(t *testing.T) {
	svc := &fakeService{}
	m := loadedModel(t, svc, summary(1, "a"))

	m, _ = applyUpdate(m, SummaryPendingMsg{TempID: "tmp-1", Transcript: "hi"})
	m.cursor = 0

	if _, cmd := applyUpdate(m, key(KeyRerun)); cmd != nil {
		t.Error("pending rows cannot be rerun")
	}
	if _, cmd := applyUpdate(m, key(KeyEnter)); cmd != nil {
		t.Error("pending rows have no commlog")
	}
}

func TestCursorNavigation(t *testing.T) {
	m := loadedModel(t, &fakeService{}, summary(3, "c"), summary(2, "b"), summary(1, "a"))

	m, _ = applyUpdate(m, key(KeyK))
	if m.cursor != 0 {
		t.Errorf("cursor = %d, want 0", m.cursor)
	}
	m, _ = applyUpdate(m, key(KeyEnd))
	if m.cursor != 2 {
		t.Errorf("cursor = %d, want 2", m.cursor)
	}
	m, _ = applyUpdate(m, key(KeyJ))
	if m.cursor != 2 {
		t.Errorf("cursor = %d, want 2 at the bottom", m.cursor)
	}
	m, _ = applyUpdate(m, key(KeyHome))
	if m.cursor != 0 {
		t.Errorf("cursor = %d, want 0", m.cursor)
	}
}

func TestQuitKeys(t *testing.T) {
	m := loadedModel(t, &fakeService{}, summary(1, "a"))

	_, cmd := applyUpdate(m, key(KeyQuit))
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should return tea.Quit")
	}

	m, _ = applyUpdate(m, key(KeyTab))
	_, cmd = applyUpdate(m, key(KeyQuit))
	if cmd != nil {
		if _, ok := cmd().(tea.QuitMsg); ok {
			t.Error("q in the form should type, not quit")
		}
	}
}

func TestSpinnerStopsWhenIdle(t *testing.T) {
	m := loadedModel(t, &fakeService{}, summary(1, "a"))

	m, cmd := applyUpdate(m, spinner.TickMsg{})
	if cmd != nil {
		t.Error("idle model should not keep ticking")
	}
	if m.spinning {
		t.Error("spinning should stop when idle")
	}
}
