package suggest

import (
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/tchap/go-patricia/v2/patricia"
)

// History remembers recently selected words and finds them again by prefix.
// Lookups walk a patricia trie keyed by the lowercased word; the least recently
// selected word is evicted once maxWords is reached.
type History struct {
	trie        *patricia.Trie
	words       map[string]Suggestion
	accessTime  map[string]int64
	accessCount int64
	maxWords    int
	mu          sync.RWMutex
}

// NewHistory creates a history holding at most maxWords entries
func NewHistory(maxWords int) *History {
	if maxWords < 1 {
		maxWords = 1
	}
	return &History{
		trie:       patricia.NewTrie(),
		words:      make(map[string]Suggestion, maxWords),
		accessTime: make(map[string]int64, maxWords),
		maxWords:   maxWords,
	}
}

// Record marks s as selected now
func (h *History) Record(s Suggestion) {
	if s.word == "" {
		return
	}
	key := strings.ToLower(s.word)

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.words[key]; !exists && len(h.words) >= h.maxWords {
		h.evictLRU()
	}
	h.words[key] = s
	h.trie.Set(patricia.Prefix(key), key)
	h.accessTime[key] = h.getNextAccessTime()
}

// Recent returns up to limit recorded suggestions starting with prefix,
// most recently selected first. An empty prefix matches everything.
func (h *History) Recent(prefix string, limit int) List {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var keys []string
	visit := func(p patricia.Prefix, item patricia.Item) error {
		keys = append(keys, item.(string))
		return nil
	}

	var err error
	lower := strings.ToLower(prefix)
	if lower == "" {
		err = h.trie.Visit(visit)
	} else {
		err = h.trie.VisitSubtree(patricia.Prefix(lower), visit)
	}
	if err != nil {
		log.Errorf("Error visiting history trie: %v", err)
	}

	sort.Slice(keys, func(i, j int) bool {
		return h.accessTime[keys[i]] > h.accessTime[keys[j]]
	})
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}

	out := make(List, len(keys))
	for i, k := range keys {
		out[i] = h.words[k]
	}
	return out
}

// Len returns the number of remembered words
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.words)
}

// Stats returns counters about the history
func (h *History) Stats() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return map[string]int{
		"historyWords":    len(h.words),
		"maxHistoryWords": h.maxWords,
		"selections":      int(h.accessCount),
	}
}

func (h *History) getNextAccessTime() int64 {
	h.accessCount++
	return h.accessCount
}

// evictLRU must be called with the write lock held
func (h *History) evictLRU() {
	var oldestWord string
	var oldestTime int64 = math.MaxInt64

	for word, accessTime := range h.accessTime {
		if accessTime < oldestTime {
			oldestTime = accessTime
			oldestWord = word
		}
	}

	if oldestWord != "" {
		delete(h.words, oldestWord)
		delete(h.accessTime, oldestWord)
		h.trie.Delete(patricia.Prefix(oldestWord))
		log.Debugf("Evicted word '%s' from history", oldestWord)
	}
}
