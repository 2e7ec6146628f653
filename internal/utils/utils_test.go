package utils

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuggestionFilter(t *testing.T) {
	f := NewSuggestionFilter(4)

	assert.True(t, f.ShouldInclude("fisk"))
	assert.False(t, f.ShouldInclude("fisk"), "second occurrence is a duplicate")
	assert.True(t, f.ShouldInclude("Fisk"), "case differs, distinct headword")
	assert.True(t, f.ShouldInclude("fugl"))
	assert.False(t, f.ShouldInclude("Fisk"))
}

func TestCreateRankList(t *testing.T) {
	assert.Equal(t, []uint16{}, CreateRankList(0))
	assert.Equal(t, []uint16{1, 2, 3}, CreateRankList(3))
}

func TestIsValidInput(t *testing.T) {
	testCases := []struct {
		input       string
		expected    bool
		description string
	}{
		{"fisk", true, "Plain word"},
		{"blåbær", true, "Norwegian letters"},
		{"bil*", true, "Wildcard search"},
		{"sju-åtte", true, "Hyphenated word"},
		{"", false, "Empty string"},
		{"   ", false, "Only whitespace"},
		{"1234", false, "Only numbers"},
		{"hei@", false, "Special characters"},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			assert.Equal(t, tc.expected, IsValidInput(tc.input))
		})
	}
}

func TestIsBlank(t *testing.T) {
	assert.True(t, IsBlank(""))
	assert.True(t, IsBlank(" \t\n"))
	assert.False(t, IsBlank(" a "))
}

func TestTOMLRoundTripWithLock(t *testing.T) {
	type section struct {
		Limit int  `toml:"limit"`
		On    bool `toml:"on"`
	}
	type doc struct {
		API section `toml:"api"`
	}

	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	require.NoError(t, EnsureDir(filepath.Dir(path)))
	require.NoError(t, SaveTOMLFile(doc{API: section{Limit: 50, On: true}}, path))
	assert.True(t, FileExists(path))

	var got doc
	require.NoError(t, LoadTOMLFile(path, &got))
	assert.Equal(t, 50, got.API.Limit)

	raw, err := ParseTOMLWithRecovery(path)
	require.NoError(t, err)
	api, ok := ExtractSection(raw, "api")
	require.True(t, ok)
	limit, ok := ExtractInt64(api, "limit")
	assert.True(t, ok)
	assert.Equal(t, 50, limit)
	on, ok := ExtractBool(api, "on")
	assert.True(t, ok)
	assert.True(t, on)
	_, ok = ExtractString(api, "missing")
	assert.False(t, ok)
}

// flushFails accepts writes and fails on close, like a full disk
type flushFails struct {
	bytes.Buffer
	closed bool
}

func (f *flushFails) Close() error {
	f.closed = true
	return errors.New("no space left on device")
}

func TestEncodeTOMLReportsCloseError(t *testing.T) {
	w := &flushFails{}
	err := encodeTOML(w, map[string]int{"limit": 50})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no space left")
	assert.True(t, w.closed)
	assert.Contains(t, w.String(), "limit = 50")
}

func TestEncodeTOMLClosesOnEncodeError(t *testing.T) {
	w := &flushFails{}
	err := encodeTOML(w, 42)

	require.Error(t, err)
	assert.NotContains(t, err.Error(), "no space left", "the encode error wins")
	assert.True(t, w.closed)
}
