package app

import (
	"strings"

	"github.com/muesli/reflow/wordwrap"

	"github.com/carein/callboard/internal/api"
	"github.com/carein/callboard/internal/ui"
)

// panelState is the visual state of a commlog panel.
type panelState int

const (
	panelLoading panelState = iota
	panelError
	panelPopulated
)

// commlogPanel shows the log entries of one summary. A panel is created
// on expand and fetches exactly once; seq ties the response to this mount.
type commlogPanel struct {
	summaryID int64
	seq       uint64
	state     panelState
	entries   []api.CommlogEntry
	err       string
}

func newCommlogPanel(summaryID int64, seq uint64) commlogPanel {
	return commlogPanel{summaryID: summaryID, seq: seq, state: panelLoading}
}

// apply stores the fetch result. Entries keep the server's order.
func (p *commlogPanel) apply(msg CommlogLoadedMsg) {
	if msg.Err != nil {
		p.state = panelError
		p.err = api.Message(msg.Err)
		p.entries = nil
		return
	}
	p.state = panelPopulated
	p.err = ""
	p.entries = msg.Entries
}

// lines renders the panel at the given width. spin is the current spinner
// frame, shown while loading.
func (p commlogPanel) lines(width int, spin string) []string {
	lines := []string{ui.CommlogTitleStyle.Render("Communication Log:")}

	switch p.state {
	case panelLoading:
		lines = append(lines, ui.SpinnerStyle.Render(spin)+ui.DimStyle.Render(" Loading commlog..."))
	case panelError:
		lines = append(lines, ui.ErrorStyle.Render("Error: ")+ui.ErrorTextStyle.Render(p.err))
	case panelPopulated:
		if len(p.entries) == 0 {
			lines = append(lines, ui.DimStyle.Render("No commlog entries found."))
			break
		}
		for _, e := range p.entries {
			head := ui.ActionStyle.Render("["+strings.ToUpper(e.Action)+"]") + " " +
				ui.TimestampStyle.Render(formatTime(e.CreatedAt.Time))
			lines = append(lines, head)

			if e.Message == nil || *e.Message == "" {
				lines = append(lines, "  "+ui.DimStyle.Render("No message."))
				continue
			}
			for _, wl := range strings.Split(wordwrap.String(*e.Message, max(10, width-2)), "\n") {
				lines = append(lines, "  "+wl)
			}
		}
	}
	return lines
}
