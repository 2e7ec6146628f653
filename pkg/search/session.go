/*
Package search drives one interactive search: the state behind a search box.

A Session is in exactly one of two modes. In PatternMode the user edits a row
of letter slots and every edit looks the pattern up at once. In TextMode every
keystroke is debounced and only the last one in a quiet window is looked up.

	s := search.NewSession(client,
		search.WithDebounce(300*time.Millisecond),
		search.WithOnChange(render))
	defer s.Close()

	s.SetMode(search.TextMode)
	s.Type("f")
	s.Type("fi")
	s.Type("fisk") // one lookup, for "fisk"

Every lookup gets a generation number when it starts. A response is applied
only if no newer lookup was started since, so a slow answer for "fi" can never
replace the list for "fisk". Starting a lookup also cancels the previous one.
*/
package search

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bastiangx/ordsok/pkg/debounce"
	"github.com/bastiangx/ordsok/pkg/ordbok"
	"github.com/bastiangx/ordsok/pkg/query"
	"github.com/bastiangx/ordsok/pkg/suggest"
	"github.com/charmbracelet/log"
)

// Mode is the active search mode
type Mode = query.Kind

const (
	TextMode    = query.KindText
	PatternMode = query.KindPattern
)

var (
	ErrUnknownArea   = errors.New("unknown search area")
	ErrNoSuggestion  = errors.New("no such suggestion")
	ErrWrongMode     = errors.New("operation not available in this mode")
	ErrLetterCount   = errors.New("letter count out of range")
	ErrSlotRange     = query.ErrSlotRange
	ErrSessionClosed = errors.New("session closed")
)

// Selection is the detail view of a picked suggestion
type Selection struct {
	Suggestion suggest.Suggestion
	Link       string
}

// Session holds the search state of one user. It is safe for concurrent use.
type Session struct {
	mu       sync.Mutex
	fetcher  suggest.Fetcher
	debounce *debounce.Debouncer[scheduled]
	history  *suggest.History
	link     func(word string) string
	onChange func(State)

	mode        Mode
	text        string
	pattern     query.Pattern
	letterCount int
	maxLetters  int
	areas       []string
	suggestions suggest.List
	selected    *Selection
	loading     bool
	err         error

	gen      uint64
	// pending numbers debounced lookups; a fired lookup runs only if it is still the latest
	pending  uint64
	version  uint64
	cancel   context.CancelFunc
	inflight sync.WaitGroup
	closed   bool
}

// scheduled is a debounced lookup waiting for its quiet interval
type scheduled struct {
	q   query.Query
	seq uint64
}

// Option configures a Session
type Option func(*sessionOptions)

type sessionOptions struct {
	debounce   time.Duration
	mode       Mode
	patternLen int
	maxLetters int
	history    *suggest.History
	link       func(string) string
	onChange   func(State)
}

// WithDebounce sets the keystroke quiet interval
func WithDebounce(d time.Duration) Option {
	return func(o *sessionOptions) { o.debounce = d }
}

// WithMode sets the initial mode
func WithMode(m Mode) Option {
	return func(o *sessionOptions) { o.mode = m }
}

// WithPatternLen sets the initial number of pattern slots
func WithPatternLen(n int) Option {
	return func(o *sessionOptions) { o.patternLen = n }
}

// WithMaxLetters bounds the letter count filter
func WithMaxLetters(n int) Option {
	return func(o *sessionOptions) { o.maxLetters = n }
}

// WithHistory records selected suggestions in h
func WithHistory(h *suggest.History) Option {
	return func(o *sessionOptions) { o.history = h }
}

// WithLinker builds the outbound detail link for a selected word
func WithLinker(link func(word string) string) Option {
	return func(o *sessionOptions) { o.link = link }
}

// WithOnChange registers a listener called with a snapshot after every state change.
// It runs on the goroutine that made the change and must not block for long.
func WithOnChange(fn func(State)) Option {
	return func(o *sessionOptions) { o.onChange = fn }
}

// NewSession creates a session in pattern mode with a 3 slot pattern unless configured otherwise.
func NewSession(fetcher suggest.Fetcher, opts ...Option) *Session {
	o := sessionOptions{
		debounce:   debounce.DefaultInterval,
		mode:       PatternMode,
		patternLen: 3,
		maxLetters: query.MaxLength,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxLetters < 1 || o.maxLetters > query.MaxLength {
		o.maxLetters = query.MaxLength
	}
	if o.link == nil {
		o.link = func(word string) string { return ordbok.DetailURL("", word) }
	}

	s := &Session{
		fetcher:     fetcher,
		history:     o.history,
		link:        o.link,
		onChange:    o.onChange,
		mode:        o.mode,
		pattern:     query.NewPattern(o.patternLen),
		maxLetters:  o.maxLetters,
		suggestions: suggest.List{},
	}
	s.debounce = debounce.New(o.debounce, s.fireScheduled)
	return s
}

// Mode returns the active mode
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode switches between text and pattern mode.
// Switching clears the suggestions and drops pending lookups; the letter count is kept.
func (s *Session) SetMode(m Mode) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if m == s.mode {
		s.mu.Unlock()
		return nil
	}
	s.mode = m
	s.invalidateLocked()
	s.pending++
	s.suggestions = suggest.List{}
	s.loading = false
	s.err = nil
	st := s.changedLocked()
	s.mu.Unlock()

	s.debounce.Cancel()
	s.notify(st)
	return nil
}

// Type records a keystroke in text mode and schedules a debounced lookup.
// It also closes any open detail view.
func (s *Session) Type(text string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.mode != TextMode {
		s.mu.Unlock()
		return ErrWrongMode
	}
	s.text = text
	s.selected = nil
	next := s.scheduleLocked(query.NewFreeText(text, s.letterCount))
	st := s.changedLocked()
	s.mu.Unlock()

	s.notify(st)
	s.debounce.Trigger(next)
	return nil
}

// Submit looks up the current query of the active mode right away.
func (s *Session) Submit() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	q := s.currentQueryLocked()
	s.pending++
	s.mu.Unlock()

	s.debounce.Cancel()
	s.startFetch(q)
	return nil
}

// SetLetter edits pattern slot i and looks the pattern up immediately.
// An empty value clears the slot.
func (s *Session) SetLetter(i int, value string) error {
	return s.editPattern(true, func(p *query.Pattern) error {
		return p.Set(i, value)
	})
}

// SetPattern replaces the whole pattern, one slot per rune of s, and looks it up.
func (s *Session) SetPattern(pattern string) error {
	p := query.ParsePattern(pattern)
	if p.Len() == 0 {
		return ErrSlotRange
	}
	return s.editPattern(true, func(cur *query.Pattern) error {
		*cur = p
		return nil
	})
}

// AddSlot appends an unknown slot to the pattern. It does not trigger a lookup.
func (s *Session) AddSlot() error {
	return s.editPattern(false, func(p *query.Pattern) error {
		if !p.Grow() {
			return ErrSlotRange
		}
		return nil
	})
}

// RemoveSlot drops the last slot and looks the shorter pattern up.
// The last remaining slot cannot be removed.
func (s *Session) RemoveSlot() error {
	return s.editPattern(true, func(p *query.Pattern) error {
		if !p.Shrink() {
			return ErrSlotRange
		}
		return nil
	})
}

// ClearPattern empties every slot and looks the blank pattern up.
func (s *Session) ClearPattern() error {
	return s.editPattern(true, func(p *query.Pattern) error {
		p.Clear()
		return nil
	})
}

func (s *Session) editPattern(fetch bool, edit func(p *query.Pattern) error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.mode != PatternMode {
		s.mu.Unlock()
		return ErrWrongMode
	}
	if err := edit(&s.pattern); err != nil {
		s.mu.Unlock()
		return err
	}
	if fetch {
		q := query.FromPattern(s.pattern)
		s.mu.Unlock()
		s.startFetch(q)
		return nil
	}
	st := s.changedLocked()
	s.mu.Unlock()

	s.notify(st)
	return nil
}

// SetLetterCount selects the target word length. Selecting the active count
// again turns the filter off. A non-zero count resets the pattern to that many
// empty slots, and in text mode a non-empty query is looked up again (debounced).
func (s *Session) SetLetterCount(n int) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if n < 0 || n > s.maxLetters {
		s.mu.Unlock()
		return ErrLetterCount
	}
	if n == s.letterCount {
		n = 0
	}
	s.letterCount = n
	if n > 0 {
		s.pattern = query.NewPattern(n)
	}
	refetch := s.mode == TextMode && s.text != ""
	var next scheduled
	if refetch {
		next = s.scheduleLocked(query.NewFreeText(s.text, n))
	}
	st := s.changedLocked()
	s.mu.Unlock()

	s.notify(st)
	if refetch {
		s.debounce.Trigger(next)
	}
	return nil
}

// SelectArea adds an area to the selection. Selecting it twice is a no-op.
func (s *Session) SelectArea(id string) error {
	area, ok := LookupArea(id)
	if !ok {
		return ErrUnknownArea
	}
	id = area.ID
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	for _, have := range s.areas {
		if have == id {
			s.mu.Unlock()
			return nil
		}
	}
	s.areas = append(s.areas, id)
	st := s.changedLocked()
	s.mu.Unlock()

	s.notify(st)
	return nil
}

// RemoveArea drops an area from the selection
func (s *Session) RemoveArea(id string) error {
	area, ok := LookupArea(id)
	if !ok {
		return ErrUnknownArea
	}
	id = area.ID
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	kept := s.areas[:0]
	for _, have := range s.areas {
		if have != id {
			kept = append(kept, have)
		}
	}
	s.areas = kept
	st := s.changedLocked()
	s.mu.Unlock()

	s.notify(st)
	return nil
}

// Select opens the detail view for suggestion i of the current list.
// The query takes the selected word and the list is cleared.
func (s *Session) Select(i int) (Selection, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Selection{}, ErrSessionClosed
	}
	if i < 0 || i >= len(s.suggestions) {
		s.mu.Unlock()
		return Selection{}, ErrNoSuggestion
	}
	picked := s.suggestions[i]
	sel := Selection{Suggestion: picked, Link: s.link(picked.Word())}
	s.selected = &sel
	s.text = picked.Word()
	s.suggestions = suggest.List{}
	s.loading = false
	s.invalidateLocked()
	s.pending++
	st := s.changedLocked()
	s.mu.Unlock()

	s.debounce.Cancel()
	if s.history != nil {
		s.history.Record(picked)
	}
	s.notify(st)
	return sel, nil
}

// Snapshot returns a copy of the current state
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Wait blocks until lookups already started have finished.
// Debounced lookups that have not fired yet are not waited for.
func (s *Session) Wait() {
	s.inflight.Wait()
}

// Close cancels pending and in-flight lookups and waits for them to return.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.invalidateLocked()
	s.pending++
	s.mu.Unlock()

	s.debounce.Stop()
	s.inflight.Wait()
}

// scheduleLocked numbers a debounced lookup of q, superseding any scheduled before
func (s *Session) scheduleLocked(q query.Query) scheduled {
	s.pending++
	return scheduled{q: q, seq: s.pending}
}

// fireScheduled runs a debounced lookup. The timer may fire just as a mode switch
// or a selection takes over, so the lookup is dropped unless it is still the
// latest one scheduled and matches the active mode.
func (s *Session) fireScheduled(next scheduled) {
	s.lookup(next.q, func() bool {
		return next.seq == s.pending && next.q.Kind() == s.mode
	})
}

// startFetch begins a lookup for q tagged with a fresh generation.
// Blank queries clear the list without a lookup.
func (s *Session) startFetch(q query.Query) {
	s.lookup(q, nil)
}

// lookup starts q unless current, checked under the lock, reports it superseded
func (s *Session) lookup(q query.Query, current func() bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if current != nil && !current() {
		s.mu.Unlock()
		log.Debug("Dropping superseded lookup", "mode", q.Kind(), "q", q.Term())
		return
	}
	s.invalidateLocked()
	gen := s.gen

	if q.IsEmpty() {
		s.suggestions = suggest.List{}
		s.loading = false
		s.err = nil
		st := s.changedLocked()
		s.mu.Unlock()
		s.notify(st)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.loading = true
	s.err = nil
	st := s.changedLocked()
	s.inflight.Add(1)
	s.mu.Unlock()

	s.notify(st)
	log.Debug("Lookup started", "gen", gen, "mode", q.Kind(), "q", q.Term())

	go func() {
		defer s.inflight.Done()
		defer cancel()
		list, err := s.fetcher.Fetch(ctx, q)
		s.finish(gen, list, err)
	}()
}

// finish applies a lookup result unless a newer lookup was started meanwhile.
func (s *Session) finish(gen uint64, list suggest.List, err error) {
	s.mu.Lock()
	if s.closed || gen != s.gen {
		latest := s.gen
		s.mu.Unlock()
		log.Debug("Discarding stale response", "gen", gen, "latest", latest)
		return
	}
	s.cancel = nil
	s.loading = false
	if err != nil {
		log.Warnf("Lookup failed: %v", err)
		s.err = err
		s.suggestions = suggest.List{}
	} else {
		s.err = nil
		if list == nil {
			list = suggest.List{}
		}
		s.suggestions = list
	}
	st := s.changedLocked()
	s.mu.Unlock()

	s.notify(st)
}

// invalidateLocked makes every started lookup stale and cancels the running one
func (s *Session) invalidateLocked() {
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Session) currentQueryLocked() query.Query {
	if s.mode == PatternMode {
		return query.FromPattern(s.pattern)
	}
	return query.NewFreeText(s.text, s.letterCount)
}

// changedLocked bumps the state version and returns the snapshot to publish
func (s *Session) changedLocked() State {
	s.version++
	return s.snapshotLocked()
}

func (s *Session) notify(st State) {
	if s.onChange != nil {
		s.onChange(st)
	}
}
