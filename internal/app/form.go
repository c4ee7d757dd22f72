package app

import (
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/carein/callboard/internal/api"
)

// ErrEmptyTranscript rejects a submission with no visible text.
var ErrEmptyTranscript = errors.New("transcript cannot be empty")

// Form notice texts.
const (
	msgSubmitted       = "Transcript submitted successfully! Summary is being generated."
	msgEmptyTranscript = "Transcript cannot be empty."
)

// validateTranscript returns ErrEmptyTranscript for blank input.
func validateTranscript(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyTranscript
	}
	return nil
}

// formModel is the transcript submission form.
type formModel struct {
	input      textarea.Model
	submitting bool
	focused    bool
	notice     notice
	gen        uint64

	svc        api.Service
	timeout    time.Duration
	ttl        time.Duration
	optimistic bool
	schedule   Scheduler
	log        logrus.FieldLogger
}

func newFormModel(svc api.Service, timeout, ttl time.Duration, optimistic bool, schedule Scheduler, log logrus.FieldLogger) formModel {
	ta := textarea.New()
	ta.Placeholder = "Paste or type the call transcript..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(4)
	ta.Cursor.SetMode(cursor.CursorStatic)
	ta.Blur()

	return formModel{
		input:      ta,
		svc:        svc,
		timeout:    timeout,
		ttl:        ttl,
		optimistic: optimistic,
		schedule:   schedule,
		log:        log,
	}
}

// Value returns the current transcript text.
func (f formModel) Value() string {
	return f.input.Value()
}

func (f *formModel) setWidth(w int) {
	f.input.SetWidth(max(20, w))
}

func (f *formModel) focus() tea.Cmd {
	f.focused = true
	if f.submitting {
		return nil
	}
	return f.input.Focus()
}

func (f *formModel) blur() {
	f.focused = false
	f.input.Blur()
}

// setNotice replaces the current notice and schedules its dismissal.
func (f *formModel) setNotice(kind noticeKind, text string) tea.Cmd {
	f.gen++
	f.notice = notice{kind: kind, text: text, gen: f.gen}
	return f.schedule(f.ttl, noticeExpiredMsg{Gen: f.gen})
}

// clearNotice hides the notice and invalidates its pending timer.
func (f *formModel) clearNotice() {
	f.gen++
	f.notice = notice{}
}

// submit validates and sends the transcript. Nothing is sent while a
// previous submission is in flight.
func (f *formModel) submit() tea.Cmd {
	if f.submitting {
		return nil
	}

	text := f.input.Value()
	if err := validateTranscript(text); err != nil {
		f.log.WithError(err).Debug("submission rejected")
		return f.setNotice(noticeError, msgEmptyTranscript)
	}

	f.clearNotice()
	f.submitting = true
	f.input.Blur()

	var tempID string
	if f.optimistic {
		tempID = uuid.NewString()
	}
	cmds := []tea.Cmd{submitCmd(f.svc, f.timeout, text, tempID)}
	if tempID != "" {
		cmds = append(cmds, emit(SummaryPendingMsg{TempID: tempID, Transcript: text}))
	}
	f.log.WithField("temp_id", tempID).Info("submitting transcript")
	return tea.Batch(cmds...)
}

// handleResult applies the create response. On success the field is
// cleared and SummaryCreatedMsg is emitted so the list can refresh.
func (f *formModel) handleResult(msg submitResultMsg) tea.Cmd {
	f.submitting = false

	var cmds []tea.Cmd
	if f.focused {
		cmds = append(cmds, f.input.Focus())
	}

	if msg.Err != nil {
		text := api.Message(msg.Err)
		f.log.WithError(msg.Err).Warn("submission failed")
		cmds = append(cmds, f.setNotice(noticeError, text))
		if msg.TempID != "" {
			cmds = append(cmds, emit(SubmitFailedMsg{TempID: msg.TempID}))
		}
		return tea.Batch(cmds...)
	}

	f.input.Reset()
	f.log.WithField("summary_id", msg.Summary.ID).Info("transcript submitted")
	cmds = append(cmds,
		f.setNotice(noticeSuccess, msgSubmitted),
		emit(SummaryCreatedMsg{TempID: msg.TempID, Summary: msg.Summary}),
	)
	return tea.Batch(cmds...)
}

// handleExpired dismisses the notice if msg belongs to it.
func (f *formModel) handleExpired(msg noticeExpiredMsg) {
	if msg.Gen == f.notice.gen {
		f.notice = notice{}
	}
}

// update forwards input to the text field unless a submission is in flight.
func (f *formModel) update(msg tea.Msg) tea.Cmd {
	if f.submitting {
		return nil
	}
	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	return cmd
}
