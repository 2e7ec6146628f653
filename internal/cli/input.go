// Package cli handles cmd line input and suggestions for DBG and testing the search session
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bastiangx/ordsok/internal/utils"
	"github.com/bastiangx/ordsok/pkg/query"
	"github.com/bastiangx/ordsok/pkg/search"
	"github.com/bastiangx/ordsok/pkg/suggest"
	"github.com/charmbracelet/log"
)

// errQuit ends the loop without an error
var errQuit = errors.New("quit")

const helpText = `commands:
  <text>            search (text mode) or set the whole pattern (pattern mode, . or _ for unknown)
  :mode text|pattern
  :len N            target length, same N again turns it off
  :set I C          set pattern slot I (from 1) to letter C, no C clears it
  :add | :rm        add or remove a pattern slot
  :clear            clear every pattern slot
  :area add|rm ID   select or drop a category (all, fugl, fisk, dyr, plante, elv)
  :pick N           open suggestion N
  :history [P]      recently picked words starting with P
  :status           show the current filters
  :help | :quit`

// InputHandler drives a search session from line based input.
// Every command runs to completion, lookups included, before the next line is read.
type InputHandler struct {
	session  *search.Session
	history  *suggest.History
	printer  *Printer
	in       io.Reader
	noFilter bool
}

// NewInputHandler handles initialization of the InputHandler
func NewInputHandler(session *search.Session, history *suggest.History, printer *Printer, in io.Reader, noFilter bool) *InputHandler {
	return &InputHandler{
		session:  session,
		history:  history,
		printer:  printer,
		in:       in,
		noFilter: noFilter,
	}
}

// Start begins the interface loop.
// It reads lines until EOF or :quit and hands each one to handleInput.
func (h *InputHandler) Start() error {
	h.printer.Printf("OrdSøk CLI [BETA]")
	h.printer.Printf("type a word or a pattern and press Enter, :help for commands (Ctrl+C to exit)")

	scanner := bufio.NewScanner(h.in)
	for {
		h.printer.Printf("%s> ", h.session.Mode())
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := h.handleInput(line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			h.printer.Error(err.Error())
		}
	}
}

// handleInput runs one line. Errors are meant for the user and do not end the loop.
func (h *InputHandler) handleInput(line string) error {
	if !strings.HasPrefix(line, ":") {
		return h.search(line)
	}

	fields := strings.Fields(line[1:])
	if len(fields) == 0 {
		return errors.New("empty command, try :help")
	}
	cmd, args := fields[0], fields[1:]
	log.Debug("Command", "cmd", cmd, "args", args)

	switch cmd {
	case "q", "quit", "exit":
		return errQuit
	case "h", "help":
		h.printer.Printf("%s", helpText)
		return nil
	case "mode":
		if len(args) != 1 {
			return errors.New("usage: :mode text|pattern")
		}
		kind, ok := query.ParseKind(args[0])
		if !ok {
			return fmt.Errorf("unknown mode %q", args[0])
		}
		return h.session.SetMode(kind)
	case "len":
		n, err := intArg(args, 0)
		if err != nil {
			return err
		}
		if err := h.session.SetLetterCount(n); err != nil {
			return err
		}
		st := h.session.Snapshot()
		if st.Mode == search.TextMode && st.Query != "" {
			// look up right away instead of after the keystroke delay
			if err := h.session.Submit(); err != nil {
				return err
			}
			return h.refresh()
		}
		h.printer.Printf("length filter %d, pattern %s", st.LetterCount, st.PatternString())
		return nil
	case "set":
		i, err := intArg(args, 0)
		if err != nil {
			return err
		}
		value := ""
		if len(args) > 1 {
			value = args[1]
		}
		if err := h.session.SetLetter(i-1, value); err != nil {
			return err
		}
		return h.refresh()
	case "add":
		if err := h.session.AddSlot(); err != nil {
			return err
		}
		h.printer.Printf("pattern %s", h.session.Snapshot().PatternString())
		return nil
	case "rm":
		if err := h.session.RemoveSlot(); err != nil {
			return err
		}
		return h.refresh()
	case "clear":
		if err := h.session.ClearPattern(); err != nil {
			return err
		}
		return h.refresh()
	case "area":
		if len(args) != 2 {
			return errors.New("usage: :area add|rm ID")
		}
		switch args[0] {
		case "add":
			return h.session.SelectArea(args[1])
		case "rm":
			return h.session.RemoveArea(args[1])
		}
		return errors.New("usage: :area add|rm ID")
	case "pick":
		n, err := intArg(args, 0)
		if err != nil {
			return err
		}
		sel, err := h.session.Select(n - 1)
		if err != nil {
			return err
		}
		h.printer.Selection(sel)
		return nil
	case "history":
		if h.history == nil {
			return errors.New("history is disabled")
		}
		prefix := ""
		if len(args) > 0 {
			prefix = args[0]
		}
		h.printer.List(h.history.Recent(prefix, 20), prefix)
		return nil
	case "status":
		h.printer.Status(h.session.Snapshot())
		if h.history != nil {
			h.printer.Printf("history %d words", h.history.Len())
		}
		return nil
	}
	return fmt.Errorf("unknown command :%s, try :help", cmd)
}

// search runs a plain line in the current mode
func (h *InputHandler) search(line string) error {
	if h.session.Mode() == search.PatternMode {
		if err := h.session.SetPattern(line); err != nil {
			return err
		}
		return h.refresh()
	}

	// input filtering by default (unless --no-filter flag is used)
	if !h.noFilter && !utils.IsValidInput(line) {
		h.printer.Printf("No results found for '%s'", line)
		return nil
	}
	if err := h.session.Type(line); err != nil {
		return err
	}
	if err := h.session.Submit(); err != nil {
		return err
	}
	return h.refresh()
}

// refresh waits for running lookups and prints the result
func (h *InputHandler) refresh() error {
	h.session.Wait()
	h.printer.State(h.session.Snapshot())
	return nil
}

func intArg(args []string, i int) (int, error) {
	if len(args) <= i {
		return 0, errors.New("missing number")
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", args[i])
	}
	return n, nil
}
