package utils

// SuggestionFilter tracks which words were already emitted while merging result sets.
// The first occurrence of a word wins; later ones are reported as duplicates.
// It is not safe for concurrent use.
type SuggestionFilter struct {
	seenWords map[string]struct{}
}

// NewSuggestionFilter creates an empty filter sized for about n words
func NewSuggestionFilter(n int) *SuggestionFilter {
	return &SuggestionFilter{
		seenWords: make(map[string]struct{}, n),
	}
}

// ShouldInclude checks if a word should be included in results (not a duplicate).
// Words are compared exactly, so "Ask" and "ask" are different headwords.
func (f *SuggestionFilter) ShouldInclude(word string) bool {
	if _, seen := f.seenWords[word]; seen {
		return false
	}
	f.seenWords[word] = struct{}{}
	return true
}
