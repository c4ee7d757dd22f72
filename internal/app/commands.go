package app

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/carein/callboard/internal/api"
)

// Each command runs one request with its own timeout and reports back as a
// message tagged with whatever identifies the request.

// loadSummariesCmd fetches the summary list for request seq.
func loadSummariesCmd(svc api.Service, timeout time.Duration, seq uint64, limit int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		summaries, err := svc.ListSummaries(ctx, limit)
		return SummariesLoadedMsg{Seq: seq, Summaries: summaries, Err: err}
	}
}

// rerunCmd regenerates the summary of id.
func rerunCmd(svc api.Service, timeout time.Duration, id int64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		summary, err := svc.RerunSummary(ctx, id)
		return SummaryRerunMsg{ID: id, Summary: summary, Err: err}
	}
}

// loadCommlogCmd fetches the commlog of summaryID for panel mount seq.
func loadCommlogCmd(svc api.Service, timeout time.Duration, summaryID int64, seq uint64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		entries, err := svc.Commlog(ctx, summaryID)
		return CommlogLoadedMsg{SummaryID: summaryID, Seq: seq, Entries: entries, Err: err}
	}
}

// submitCmd creates a summary from transcript.
func submitCmd(svc api.Service, timeout time.Duration, transcript, tempID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		summary, err := svc.CreateSummary(ctx, transcript)
		return submitResultMsg{TempID: tempID, Summary: summary, Err: err}
	}
}

// emit wraps msg in a command so a child model can notify its parent.
func emit(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}

// Scheduler delivers msg after d. Tests replace it to control time.
type Scheduler func(d time.Duration, msg tea.Msg) tea.Cmd

// tickScheduler is the real Scheduler, backed by tea.Tick.
func tickScheduler(d time.Duration, msg tea.Msg) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return msg
	})
}
