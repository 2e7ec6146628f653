/*
Package query models what a user asks the dictionary for.

A query is either free text, typed character by character, or a pattern: a
fixed number of letter slots where empty slots stand for any single character.

	q := query.NewFreeText("fisk", 0)
	p := query.ParsePattern("f.s_")  // 4 slots, 2 unknown
	p.Set(1, "I")
	q = query.FromPattern(p)

Patterns are edited in place through Set, Grow, Shrink and Clear. A Query built
from a pattern holds a copy, so later edits never change an issued query.
*/
package query

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Wildcard is the single character token the suggest service reads as "any character".
const Wildcard = '_'

// MaxLength bounds both pattern size and the free text target length.
const MaxLength = 30

// ErrSlotRange is returned when a pattern slot index is out of bounds
var ErrSlotRange = errors.New("pattern slot out of range")

// Kind tells free text and pattern queries apart
type Kind uint8

const (
	KindText Kind = iota
	KindPattern
)

func (k Kind) String() string {
	if k == KindPattern {
		return "pattern"
	}
	return "text"
}

// ParseKind accepts "text"/"t" and "pattern"/"p"
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "t", "":
		return KindText, true
	case "pattern", "p":
		return KindPattern, true
	}
	return KindText, false
}

// IsPlaceholder reports whether r marks an unknown slot in pattern input.
func IsPlaceholder(r rune) bool {
	switch r {
	case Wildcard, '.', '?', '*', ' ':
		return true
	}
	return false
}

// Query is an immutable lookup request.
type Query struct {
	kind   Kind
	text   string
	slots  []rune
	length int
}

// NewFreeText creates a free text query. length > 0 asks for words of exactly
// that many characters; values outside 0..MaxLength are clamped.
func NewFreeText(text string, length int) Query {
	if length < 0 {
		length = 0
	}
	if length > MaxLength {
		length = MaxLength
	}
	return Query{kind: KindText, text: text, length: length}
}

// FromPattern snapshots p into a query
func FromPattern(p Pattern) Query {
	slots := make([]rune, len(p.slots))
	copy(slots, p.slots)
	return Query{kind: KindPattern, slots: slots}
}

// Kind returns the query kind
func (q Query) Kind() Kind { return q.kind }

// Length returns the target length of a free text query, 0 when inactive
func (q Query) Length() int { return q.length }

// Text returns the raw free text, or the pattern rendered with Wildcard for unknown slots.
func (q Query) Text() string {
	if q.kind == KindPattern {
		return renderSlots(q.slots, Wildcard)
	}
	return q.text
}

// IsEmpty reports whether there is nothing to look up: blank free text or a zero-length pattern.
func (q Query) IsEmpty() bool {
	if q.kind == KindPattern {
		return len(q.slots) == 0
	}
	return strings.TrimSpace(q.text) == ""
}

// Term returns the value for the service's q parameter.
// Pattern slots become Wildcard when unknown and lowercase letters otherwise.
func (q Query) Term() string {
	if q.kind == KindPattern {
		return strings.ToLower(renderSlots(q.slots, Wildcard))
	}
	return strings.TrimSpace(q.text)
}

// Pattern is an editable fixed-length sequence of letter slots. The zero rune marks an unknown slot.
type Pattern struct {
	slots []rune
}

// NewPattern returns a pattern of n unknown slots (at least one)
func NewPattern(n int) Pattern {
	if n < 1 {
		n = 1
	}
	if n > MaxLength {
		n = MaxLength
	}
	return Pattern{slots: make([]rune, n)}
}

// ParsePattern reads one slot per rune; placeholder runes become unknown slots.
func ParsePattern(s string) Pattern {
	slots := make([]rune, 0, utf8.RuneCountInString(s))
	for _, r := range s {
		if len(slots) == MaxLength {
			break
		}
		if IsPlaceholder(r) {
			slots = append(slots, 0)
			continue
		}
		slots = append(slots, unicode.ToUpper(r))
	}
	return Pattern{slots: slots}
}

// Len returns the number of slots
func (p Pattern) Len() int { return len(p.slots) }

// Known counts the slots holding a letter
func (p Pattern) Known() int {
	n := 0
	for _, r := range p.slots {
		if r != 0 {
			n++
		}
	}
	return n
}

// Slot returns the letter at i as a string, "" for unknown slots
func (p Pattern) Slot(i int) string {
	if i < 0 || i >= len(p.slots) || p.slots[i] == 0 {
		return ""
	}
	return string(p.slots[i])
}

// Slots returns every slot as a string, "" for unknown slots
func (p Pattern) Slots() []string {
	out := make([]string, len(p.slots))
	for i := range p.slots {
		out[i] = p.Slot(i)
	}
	return out
}

// Set stores the first rune of value in slot i, uppercased.
// An empty value or a placeholder rune clears the slot.
func (p *Pattern) Set(i int, value string) error {
	if i < 0 || i >= len(p.slots) {
		return ErrSlotRange
	}
	r, _ := utf8.DecodeRuneInString(strings.TrimSpace(value))
	if r == utf8.RuneError || IsPlaceholder(r) {
		p.slots[i] = 0
		return nil
	}
	p.slots[i] = unicode.ToUpper(r)
	return nil
}

// Grow appends an unknown slot. It reports false at MaxLength.
func (p *Pattern) Grow() bool {
	if len(p.slots) >= MaxLength {
		return false
	}
	p.slots = append(p.slots, 0)
	return true
}

// Shrink drops the last slot. A pattern never goes below one slot.
func (p *Pattern) Shrink() bool {
	if len(p.slots) <= 1 {
		return false
	}
	p.slots = p.slots[:len(p.slots)-1]
	return true
}

// Clear empties every slot, keeping the length
func (p *Pattern) Clear() {
	for i := range p.slots {
		p.slots[i] = 0
	}
}

// String renders the pattern with Wildcard for unknown slots
func (p Pattern) String() string {
	return renderSlots(p.slots, Wildcard)
}

func renderSlots(slots []rune, unknown rune) string {
	var b strings.Builder
	b.Grow(len(slots))
	for _, r := range slots {
		if r == 0 {
			b.WriteRune(unknown)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
