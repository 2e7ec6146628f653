package search

import (
	"errors"
	"strings"

	"github.com/bastiangx/ordsok/pkg/ordbok"
	"github.com/bastiangx/ordsok/pkg/suggest"
)

// Area is a topical category the user can narrow a search to
type Area struct {
	ID   string
	Name string
}

// AllAreas is the id of the catch-all category
const AllAreas = "all"

// Areas lists every selectable category in display order
var Areas = []Area{
	{ID: AllAreas, Name: "Alle kategorier"},
	{ID: "fugl", Name: "Fugl"},
	{ID: "fisk", Name: "Fisk"},
	{ID: "dyr", Name: "Dyr"},
	{ID: "plante", Name: "Plante"},
	{ID: "elv", Name: "Elv"},
}

// LookupArea finds an area by id, case insensitive
func LookupArea(id string) (Area, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, a := range Areas {
		if a.ID == id {
			return a, true
		}
	}
	return Area{}, false
}

// State is a point-in-time copy of a session. Nothing in it aliases session internals.
type State struct {
	Mode        Mode
	Query       string
	Pattern     []string
	LetterCount int
	Areas       []Area
	Suggestions suggest.List
	Selected    *Selection
	Loading     bool
	Err         error

	// Generation is the number of the latest started lookup
	Generation uint64
	// Version increases with every state change; listeners use it to drop out-of-order snapshots
	Version uint64
}

// Failed reports whether the latest lookup failed
func (st State) Failed() bool { return st.Err != nil }

// ErrorMessage is the text shown to the user for a failed lookup, "" otherwise.
func (st State) ErrorMessage() string {
	if st.Err == nil {
		return ""
	}
	var fe *ordbok.FetchError
	if errors.As(st.Err, &fe) {
		return fe.UserMessage()
	}
	return ordbok.UserMessage
}

// PatternString renders the pattern with "_" for unknown slots
func (st State) PatternString() string {
	var b strings.Builder
	for _, s := range st.Pattern {
		if s == "" {
			b.WriteByte('_')
			continue
		}
		b.WriteString(s)
	}
	return b.String()
}

func (s *Session) snapshotLocked() State {
	areas := make([]Area, 0, len(s.areas))
	for _, id := range s.areas {
		if a, ok := LookupArea(id); ok {
			areas = append(areas, a)
		}
	}
	var sel *Selection
	if s.selected != nil {
		cp := *s.selected
		sel = &cp
	}
	// lists are replaced wholesale and never mutated, so sharing the backing array is safe
	return State{
		Mode:        s.mode,
		Query:       s.text,
		Pattern:     s.pattern.Slots(),
		LetterCount: s.letterCount,
		Areas:       areas,
		Suggestions: s.suggestions,
		Selected:    sel,
		Loading:     s.loading,
		Err:         s.err,
		Generation:  s.gen,
		Version:     s.version,
	}
}
