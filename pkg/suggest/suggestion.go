package suggest

import (
	"github.com/bastiangx/ordsok/internal/utils"
	"github.com/bastiangx/ordsok/pkg/dictionary"
)

// Suggestion is one headword returned by the lookup service.
// It is immutable once constructed.
type Suggestion struct {
	word  string
	dicts []dictionary.Dictionary
}

// New builds a suggestion from a word and its raw dictionary codes.
// Repeated and empty codes are dropped; unknown codes are kept as they are.
func New(word string, codes ...string) Suggestion {
	dicts := make([]dictionary.Dictionary, 0, len(codes))
	seen := make(map[dictionary.Dictionary]struct{}, len(codes))
	for _, c := range codes {
		d := dictionary.Parse(c)
		if d == "" {
			continue
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		dicts = append(dicts, d)
	}
	return Suggestion{word: word, dicts: dicts}
}

// Word returns the headword
func (s Suggestion) Word() string { return s.word }

// Codes returns the raw dictionary codes
func (s Suggestion) Codes() []string {
	out := make([]string, len(s.dicts))
	for i, d := range s.dicts {
		out[i] = string(d)
	}
	return out
}

// Label renders the dictionaries for display, e.g. "Bokmål, Nynorsk"
func (s Suggestion) Label() string {
	return dictionary.Labels(s.dicts)
}

// List is an ordered suggestion list, unique by word
type List []Suggestion

// Words returns the headwords in order
func (l List) Words() []string {
	words := make([]string, len(l))
	for i, s := range l {
		words[i] = s.word
	}
	return words
}

// Merge concatenates result tiers in order and drops repeated words.
// The first occurrence of a word wins, so callers pass exact matches first.
func Merge(tiers ...[]Suggestion) List {
	total := 0
	for _, t := range tiers {
		total += len(t)
	}

	filter := utils.NewSuggestionFilter(total)
	merged := make(List, 0, total)
	for _, tier := range tiers {
		for _, s := range tier {
			if !filter.ShouldInclude(s.word) {
				continue
			}
			merged = append(merged, s)
		}
	}
	return merged
}
