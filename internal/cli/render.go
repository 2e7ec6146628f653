package cli

import (
	"fmt"
	"io"

	"github.com/bastiangx/ordsok/internal/logger"
	"github.com/bastiangx/ordsok/pkg/search"
	"github.com/bastiangx/ordsok/pkg/suggest"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

var (
	wordStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	labelStyle = lipgloss.NewStyle().Faint(true)
	linkStyle  = lipgloss.NewStyle().Italic(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	titleStyle = lipgloss.NewStyle().Bold(true)
)

// Printer writes human readable output. It logs through charm log without
// timestamps so the REPL and the lookup command share one look.
type Printer struct {
	log       *log.Logger
	showLinks bool
	link      func(word string) string
}

// NewPrinter creates a printer on w. link may be nil when showLinks is false.
func NewPrinter(w io.Writer, showLinks bool, link func(string) string) *Printer {
	return &Printer{
		log:       logger.NewWithConfig(w, "", log.InfoLevel, false, false, log.TextFormatter),
		showLinks: showLinks && link != nil,
		link:      link,
	}
}

// List prints a numbered suggestion list
func (p *Printer) List(list suggest.List, term string) {
	if len(list) == 0 {
		p.log.Printf("No suggestions found for '%s'", term)
		return
	}
	p.log.Printf("Found %d suggestions for '%s':", len(list), term)
	for i, s := range list {
		p.log.Printf("%2d. %-30s %s", i+1, wordStyle.Render(s.Word()), labelStyle.Render(s.Label()))
	}
}

// Selection prints the detail view of a picked word
func (p *Printer) Selection(sel search.Selection) {
	p.log.Print(titleStyle.Render(sel.Suggestion.Word()) + "  " + labelStyle.Render(sel.Suggestion.Label()))
	if p.showLinks {
		p.log.Print(linkStyle.Render(sel.Link))
	}
}

// State prints the parts of a session state that matter after a command
func (p *Printer) State(st search.State) {
	if st.Failed() {
		p.Error(st.ErrorMessage())
		return
	}
	term := st.Query
	if st.Mode == search.PatternMode {
		term = st.PatternString()
	}
	p.List(st.Suggestions, term)
}

// Status prints the mode line shown by :status
func (p *Printer) Status(st search.State) {
	p.log.Print("", "mode", st.Mode, "pattern", st.PatternString(), "len", st.LetterCount, "query", st.Query)
	if len(st.Areas) > 0 {
		names := make([]string, len(st.Areas))
		for i, a := range st.Areas {
			names[i] = a.Name
		}
		p.log.Print("", "areas", names)
	}
}

// Error prints a user facing error line
func (p *Printer) Error(msg string) {
	p.log.Print(errStyle.Render(msg))
}

// Printf prints a plain line
func (p *Printer) Printf(format string, args ...any) {
	p.log.Print(fmt.Sprintf(format, args...))
}
