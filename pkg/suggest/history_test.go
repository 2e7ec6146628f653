package suggest

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHistoryRecent(t *testing.T) {
	h := NewHistory(10)
	h.Record(New("fisk", "bm"))
	h.Record(New("fiskar", "nn"))
	h.Record(New("fugl", "bm", "nn"))
	h.Record(New("Fisk", "bm"))

	assert.Equal(t, 3, h.Len(), "keys are case-insensitive")
	assert.Equal(t, []string{"Fisk", "fugl", "fiskar"}, h.Recent("", 0).Words())
	assert.Equal(t, []string{"Fisk", "fiskar"}, h.Recent("FI", 0).Words())
	assert.Equal(t, []string{"Fisk"}, h.Recent("fi", 1).Words())
	assert.Empty(t, h.Recent("x", 5))
}

func TestHistoryEviction(t *testing.T) {
	h := NewHistory(3)
	for i := 0; i < 5; i++ {
		h.Record(New(fmt.Sprintf("ord%d", i)))
	}

	assert.Equal(t, 3, h.Len())
	assert.Equal(t, []string{"ord4", "ord3", "ord2"}, h.Recent("ord", 0).Words())

	stats := h.Stats()
	assert.Equal(t, 3, stats["historyWords"])
	assert.Equal(t, 5, stats["selections"])
}

func TestHistoryReselectRefreshes(t *testing.T) {
	h := NewHistory(2)
	h.Record(New("a"))
	h.Record(New("b"))
	h.Record(New("a"))
	h.Record(New("c"))

	assert.Equal(t, []string{"c", "a"}, h.Recent("", 0).Words(), "b was least recently selected")
}

func TestHistoryIgnoresEmpty(t *testing.T) {
	h := NewHistory(0)
	h.Record(New(""))
	assert.Equal(t, 0, h.Len())
}
