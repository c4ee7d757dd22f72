package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"

	"github.com/carein/callboard/internal/ui"
)

// transcriptPreviewLines caps how much of each transcript the list shows.
const transcriptPreviewLines = 3

// formHeight is the number of lines the form section occupies.
const formHeight = 7

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	divider := ui.DividerStyle.Render(strings.Repeat("─", m.width))

	var sections []string
	sections = append(sections, m.renderHeader())
	sections = append(sections, divider)
	sections = append(sections, m.renderForm())
	sections = append(sections, divider)
	sections = append(sections, m.renderList(m.listHeight()))
	sections = append(sections, divider)
	if m.toasts.len() > 0 {
		sections = append(sections, m.renderToasts())
	}
	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n")
}

func (m Model) listHeight() int {
	if m.height == 0 {
		return 20
	}
	// header, three dividers, form, toasts, footer
	reserved := 1 + 3 + formHeight + m.toasts.len() + 1
	return max(5, m.height-reserved)
}

func (m Model) renderHeader() string {
	title := ui.TitleStyle.Render("CALLBOARD")
	sub := ui.DimStyle.Render(" · AI Call Summary Dashboard")
	if m.baseURL != "" {
		sub += ui.DimStyle.Render(" · " + m.baseURL)
	}
	return truncateToWidth(title+sub, m.width)
}

func (m Model) renderForm() string {
	var title string
	if m.focusedPanel == FocusForm {
		title = ui.PanelTitleActiveStyle.Render("SUBMIT TRANSCRIPT")
	} else {
		title = ui.PanelTitleStyle.Render("SUBMIT TRANSCRIPT") + ui.DimStyle.Render("  (Tab to edit)")
	}

	var button string
	if m.form.submitting {
		button = m.spinner.View() + ui.BusyStyle.Render(" Submitting...")
	} else {
		button = ui.FooterKeyStyle.Render("[ctrl+s]") + ui.ButtonStyle.Render(" Submit Transcript")
	}

	var status string
	if n := m.form.notice; n.visible() {
		if n.kind == noticeError {
			status = ui.ErrorTextStyle.Render(n.text)
		} else {
			status = ui.SuccessStyle.Render(n.text)
		}
	}

	lines := []string{title, m.form.input.View(), button, truncateToWidth(status, m.width)}
	return strings.Join(lines, "\n")
}

func (m Model) renderList(height int) string {
	title := fmt.Sprintf("CALL SUMMARIES (%d)", len(m.rows))
	var header string
	if m.focusedPanel == FocusList {
		header = ui.PanelTitleActiveStyle.Render(title)
	} else {
		header = ui.PanelTitleStyle.Render(title)
	}
	if m.loading {
		header += "  " + m.spinner.View() + ui.BusyStyle.Render(" Refreshing...")
	} else {
		header += "  " + ui.FooterKeyStyle.Render("[r]") + ui.ButtonStyle.Render(" Refresh")
	}

	lines := []string{header}
	contentHeight := height - 1

	switch m.state() {
	case listLoading:
		lines = append(lines, m.spinner.View()+ui.DimStyle.Render(" Loading summaries..."))
	case listError:
		lines = append(lines, ui.ErrorStyle.Render("Error loading summaries: ")+ui.ErrorTextStyle.Render(m.listErr))
		lines = append(lines, ui.DimStyle.Render("Press r to retry."))
	case listPopulated:
		if len(m.rows) == 0 {
			lines = append(lines, ui.DimStyle.Render("No summaries found. Submit a transcript to get started!"))
			break
		}
		var body []string
		selStart, selEnd := 0, 0
		for i, r := range m.rows {
			start := len(body)
			body = append(body, m.rowLines(i, r)...)
			if i == m.cursor {
				// The trailing blank line may fall off the bottom.
				selStart, selEnd = start, len(body)-1
			}
		}
		top := max(0, selEnd-contentHeight)
		if top > selStart {
			top = selStart
		}
		end := min(len(body), top+contentHeight)
		lines = append(lines, body[top:end]...)
	}

	for len(lines) < height {
		lines = append(lines, "")
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	return strings.Join(lines, "\n")
}

// rowLines renders one summary block, trailing blank line included.
func (m Model) rowLines(i int, r row) []string {
	width := max(20, m.width-4)
	isSelected := i == m.cursor && m.focusedPanel == FocusList

	marker := "  "
	if isSelected {
		marker = ui.SelectedStyle.Render("> ")
	}

	var head string
	if r.pending() {
		head = ui.PendingStyle.Render("ID: pending") + "  " + ui.TimestampStyle.Render("Created: "+formatTime(r.Summary.CreatedAt.Time))
	} else {
		id := fmt.Sprintf("ID: %d", r.Summary.ID)
		if isSelected {
			id = ui.SelectedStyle.Render(id)
		} else {
			id = ui.LabelStyle.Render(id)
		}
		head = id + "  " + ui.TimestampStyle.Render("Created: "+formatTime(r.Summary.CreatedAt.Time))
	}

	lines := []string{marker + head}

	lines = append(lines, "    "+ui.LabelStyle.Render("Transcript:"))
	transcript := wrapLines(r.Summary.Transcript, width-4)
	if len(transcript) > transcriptPreviewLines {
		transcript = transcript[:transcriptPreviewLines]
		transcript[len(transcript)-1] += "…"
	}
	for _, l := range transcript {
		lines = append(lines, "    "+l)
	}

	lines = append(lines, "    "+ui.LabelStyle.Render("Summary:"))
	if r.Summary.HasSummary() {
		for _, l := range wrapLines(*r.Summary.Summary, width-4) {
			lines = append(lines, "    "+l)
		}
	} else {
		lines = append(lines, "    "+ui.DimStyle.Render("No summary generated yet."))
	}
	if r.Summary.UpdatedAt != nil {
		lines = append(lines, "    "+ui.TimestampStyle.Render("Updated: "+formatTime(r.Summary.UpdatedAt.Time)))
	}

	if r.pending() {
		lines = append(lines, "    "+m.spinner.View()+ui.PendingStyle.Render(" Submitting..."))
		return append(lines, "")
	}

	lines = append(lines, "    "+m.rerunLabel(r.Summary.ID)+"   "+m.logLabel(r.Summary.ID))

	if p, ok := m.expanded[r.Summary.ID]; ok {
		for _, l := range p.lines(width-6, m.spinner.View()) {
			lines = append(lines, "      "+l)
		}
	}
	return append(lines, "")
}

func (m Model) rerunLabel(id int64) string {
	switch st := m.reruns[id]; st.status {
	case rerunRunning:
		return m.spinner.View() + ui.BusyStyle.Render(" Re-running...")
	case rerunFailed:
		return ui.FooterKeyStyle.Render("[x]") + ui.ButtonStyle.Render(" Re-run Summary ") +
			ui.ErrorTextStyle.Render("Failed to re-run. Please try again.")
	default:
		return ui.FooterKeyStyle.Render("[x]") + ui.ButtonStyle.Render(" Re-run Summary")
	}
}

func (m Model) logLabel(id int64) string {
	if _, ok := m.expanded[id]; ok {
		return ui.FooterKeyStyle.Render("[enter]") + ui.ButtonStyle.Render(" Hide Commlog")
	}
	return ui.FooterKeyStyle.Render("[enter]") + ui.ButtonStyle.Render(" Show Commlog")
}

func (m Model) renderToasts() string {
	var lines []string
	for _, t := range m.toasts.items {
		var line string
		if t.kind == noticeError {
			line = ui.ErrorStyle.Render("! ") + ui.ErrorTextStyle.Render(t.text)
		} else {
			line = ui.SuccessStyle.Render("✓ " + t.text)
		}
		lines = append(lines, truncateToWidth(line, m.width))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderFooter() string {
	var parts []string

	if m.focusedPanel == FocusForm {
		parts = append(parts, ui.FooterKeyStyle.Render("ctrl+s")+ui.FooterDescStyle.Render(" Submit"))
		parts = append(parts, ui.FooterKeyStyle.Render("Tab/Esc")+ui.FooterDescStyle.Render(" List"))
		parts = append(parts, ui.FooterKeyStyle.Render("ctrl+c")+ui.FooterDescStyle.Render(" Quit"))
		return strings.Join(parts, "  ")
	}

	parts = append(parts, ui.FooterKeyStyle.Render("j/k")+ui.FooterDescStyle.Render(" Nav"))
	parts = append(parts, ui.FooterKeyStyle.Render("Enter")+ui.FooterDescStyle.Render(" Commlog"))
	parts = append(parts, ui.FooterKeyStyle.Render("x")+ui.FooterDescStyle.Render(" Re-run"))
	parts = append(parts, ui.FooterKeyStyle.Render("r")+ui.FooterDescStyle.Render(" Refresh"))
	parts = append(parts, ui.FooterKeyStyle.Render("Tab")+ui.FooterDescStyle.Render(" Submit form"))
	parts = append(parts, ui.FooterKeyStyle.Render("q")+ui.FooterDescStyle.Render(" Quit"))

	return strings.Join(parts, "  ")
}

// Helpers

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func wrapLines(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}
	return strings.Split(wordwrap.String(text, width), "\n")
}

func truncateToWidth(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	return truncate.StringWithTail(s, uint(width), "…")
}
