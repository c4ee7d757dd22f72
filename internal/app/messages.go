package app

import "github.com/carein/callboard/internal/api"

// SummariesLoadedMsg carries the result of a list fetch. Seq identifies the
// request; only the latest one is applied.
type SummariesLoadedMsg struct {
	Seq       uint64
	Summaries []api.Summary
	Err       error
}

// SummaryRerunMsg carries the result of a rerun for one summary.
type SummaryRerunMsg struct {
	ID      int64
	Summary api.Summary
	Err     error
}

// CommlogLoadedMsg carries the commlog of one summary. Seq identifies the
// panel mount that asked for it.
type CommlogLoadedMsg struct {
	SummaryID int64
	Seq       uint64
	Entries   []api.CommlogEntry
	Err       error
}

// SummaryPendingMsg is emitted by the form when a submission starts and
// optimistic insertion is on.
type SummaryPendingMsg struct {
	TempID     string
	Transcript string
}

// SummaryCreatedMsg is emitted by the form after the server accepted a
// transcript. The list reloads in response.
type SummaryCreatedMsg struct {
	TempID  string
	Summary api.Summary
}

// SubmitFailedMsg is emitted by the form when a submission with a pending
// placeholder fails.
type SubmitFailedMsg struct {
	TempID string
}

// ToastExpiredMsg removes one toast from the notification queue.
type ToastExpiredMsg struct {
	ID uint64
}

// submitResultMsg carries the create response back to the form.
type submitResultMsg struct {
	TempID  string
	Summary api.Summary
	Err     error
}

// noticeExpiredMsg dismisses the form notice of generation Gen.
type noticeExpiredMsg struct {
	Gen uint64
}
