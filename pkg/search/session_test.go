package search

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/bastiangx/ordsok/pkg/ordbok"
	"github.com/bastiangx/ordsok/pkg/query"
	"github.com/bastiangx/ordsok/pkg/suggest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeFetcher answers every query with the term and term+"en".
// Terms with a gate block until the gate closes, regardless of cancellation.
type fakeFetcher struct {
	mu    sync.Mutex
	calls []query.Query
	fail  bool
	block bool
	gates map[string]chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context, q query.Query) (suggest.List, error) {
	f.mu.Lock()
	f.calls = append(f.calls, q)
	fail, block := f.fail, f.block
	gate := f.gates[q.Term()]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if block {
		<-ctx.Done()
		return nil, &ordbok.FetchError{Err: ctx.Err()}
	}
	if fail {
		return nil, &ordbok.FetchError{StatusCode: 500}
	}
	return suggest.List{suggest.New(q.Term(), "bm"), suggest.New(q.Term()+"en", "nn")}, nil
}

func (f *fakeFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeFetcher) last() query.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func (f *fakeFetcher) setFail(fail bool) {
	f.mu.Lock()
	f.fail = fail
	f.mu.Unlock()
}

func newTestSession(t *testing.T, f *fakeFetcher, opts ...Option) *Session {
	opts = append([]Option{WithDebounce(20 * time.Millisecond)}, opts...)
	s := NewSession(f, opts...)
	t.Cleanup(s.Close)
	return s
}

func TestDefaults(t *testing.T) {
	s := newTestSession(t, &fakeFetcher{})
	st := s.Snapshot()

	assert.Equal(t, PatternMode, st.Mode)
	assert.Equal(t, "___", st.PatternString())
	assert.Equal(t, 0, st.LetterCount)
	assert.Empty(t, st.Areas)
	assert.NotNil(t, st.Suggestions)
	assert.Empty(t, st.Suggestions)
	assert.Nil(t, st.Selected)
	assert.False(t, st.Loading)
	assert.Empty(t, st.ErrorMessage())
}

func TestTypeDebouncesToLastInput(t *testing.T) {
	f := &fakeFetcher{}
	s := newTestSession(t, f)
	require.NoError(t, s.SetMode(TextMode))

	require.NoError(t, s.Type("f"))
	require.NoError(t, s.Type("fi"))
	require.NoError(t, s.Type("fis"))

	require.Eventually(t, func() bool { return f.count() == 1 }, time.Second, 5*time.Millisecond)
	s.Wait()
	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, 1, f.count(), "one lookup per quiet window")
	assert.Equal(t, "fis", f.last().Term())
	assert.Equal(t, []string{"fis", "fisen"}, s.Snapshot().Suggestions.Words())
}

func TestStaleResponseDiscarded(t *testing.T) {
	slow := make(chan struct{})
	f := &fakeFetcher{gates: map[string]chan struct{}{"fi": slow}}
	s := newTestSession(t, f)
	require.NoError(t, s.SetMode(TextMode))

	require.NoError(t, s.Type("fi"))
	require.NoError(t, s.Submit())
	require.Eventually(t, func() bool { return f.count() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Type("fisk"))
	require.NoError(t, s.Submit())
	require.Eventually(t, func() bool {
		words := s.Snapshot().Suggestions.Words()
		return len(words) == 2 && words[0] == "fisk"
	}, time.Second, 5*time.Millisecond)

	close(slow)
	s.Wait()

	st := s.Snapshot()
	assert.Equal(t, []string{"fisk", "fisken"}, st.Suggestions.Words(), "older response must not overwrite newer")
	assert.False(t, st.Loading)
}

func TestFailureKeepsSelection(t *testing.T) {
	f := &fakeFetcher{}
	s := newTestSession(t, f)

	require.NoError(t, s.SetLetter(0, "f"))
	s.Wait()
	require.Len(t, s.Snapshot().Suggestions, 2)

	sel, err := s.Select(0)
	require.NoError(t, err)
	assert.Equal(t, "f__", sel.Suggestion.Word())

	f.setFail(true)
	require.NoError(t, s.SetLetter(1, "i"))
	s.Wait()

	st := s.Snapshot()
	assert.True(t, st.Failed())
	assert.ErrorIs(t, st.Err, ordbok.ErrRequestFailed)
	assert.Equal(t, ordbok.UserMessage, st.ErrorMessage())
	assert.Empty(t, st.Suggestions)
	require.NotNil(t, st.Selected, "detail view survives a failed lookup")
	assert.Equal(t, "f__", st.Selected.Suggestion.Word())

	f.setFail(false)
	require.NoError(t, s.SetLetter(2, "s"))
	s.Wait()
	st = s.Snapshot()
	assert.False(t, st.Failed())
	assert.Equal(t, []string{"fis", "fisen"}, st.Suggestions.Words())
}

func TestModeSwitchClearsSuggestionsKeepsCount(t *testing.T) {
	f := &fakeFetcher{}
	s := newTestSession(t, f)

	require.NoError(t, s.SetMode(TextMode))
	require.NoError(t, s.SetLetterCount(5))
	require.NoError(t, s.Type("fisk"))
	require.NoError(t, s.Submit())
	s.Wait()
	require.NotEmpty(t, s.Snapshot().Suggestions)

	require.NoError(t, s.SetMode(PatternMode))
	st := s.Snapshot()
	assert.Equal(t, PatternMode, st.Mode)
	assert.Empty(t, st.Suggestions)
	assert.Equal(t, 5, st.LetterCount)
	assert.Len(t, st.Pattern, 5, "pattern follows the letter count")
}

func TestModeSwitchDropsPendingLookup(t *testing.T) {
	f := &fakeFetcher{}
	s := newTestSession(t, f, WithDebounce(40*time.Millisecond))

	require.NoError(t, s.SetMode(TextMode))
	require.NoError(t, s.Type("fisk"))
	require.NoError(t, s.SetMode(PatternMode))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, f.count())
	assert.Empty(t, s.Snapshot().Suggestions)
}

// A debounce timer can fire right as another command takes over.
// The lookup it carries must not repopulate the list.
func TestFiredLookupAfterTakeover(t *testing.T) {
	tests := []struct {
		description string
		takeOver    func(t *testing.T, s *Session)
	}{
		{"mode switch", func(t *testing.T, s *Session) {
			require.NoError(t, s.SetMode(PatternMode))
		}},
		{"selection", func(t *testing.T, s *Session) {
			_, err := s.Select(0)
			require.NoError(t, err)
		}},
		{"submit", func(t *testing.T, s *Session) {
			require.NoError(t, s.Submit())
			s.Wait()
		}},
	}

	for _, tc := range tests {
		t.Run(tc.description, func(t *testing.T) {
			f := &fakeFetcher{}
			s := newTestSession(t, f, WithMode(TextMode), WithDebounce(time.Hour))

			require.NoError(t, s.Type("fisk"))
			require.NoError(t, s.Submit())
			s.Wait()
			require.NoError(t, s.Type("fiske"))

			s.mu.Lock()
			fired := scheduled{q: query.NewFreeText("fiske", 0), seq: s.pending}
			s.mu.Unlock()

			tc.takeOver(t, s)
			before := s.Snapshot()
			calls := f.count()

			s.fireScheduled(fired)
			s.Wait()

			assert.Equal(t, calls, f.count(), "superseded lookup is not sent")
			assert.Equal(t, before.Suggestions, s.Snapshot().Suggestions)
			assert.Equal(t, before.Version, s.Snapshot().Version)
		})
	}
}

func TestFiredLookupStillCurrent(t *testing.T) {
	f := &fakeFetcher{}
	s := newTestSession(t, f, WithMode(TextMode), WithDebounce(time.Hour))

	require.NoError(t, s.Type("fisk"))
	s.mu.Lock()
	fired := scheduled{q: query.NewFreeText("fisk", 0), seq: s.pending}
	s.mu.Unlock()

	s.fireScheduled(fired)
	s.Wait()

	assert.Equal(t, 1, f.count())
	assert.Equal(t, []string{"fisk", "fisken"}, s.Snapshot().Suggestions.Words())
}

func TestSubmitUsesLengthClass(t *testing.T) {
	f := &fakeFetcher{}
	s := newTestSession(t, f)

	require.NoError(t, s.SetMode(TextMode))
	require.NoError(t, s.SetLetterCount(4))
	require.NoError(t, s.Type("b*"))
	require.NoError(t, s.Submit())
	s.Wait()

	q := f.last()
	assert.Equal(t, query.KindText, q.Kind())
	assert.Equal(t, 4, q.Length())
	assert.Equal(t, "b*", q.Term())
}

func TestLetterCountToggle(t *testing.T) {
	s := newTestSession(t, &fakeFetcher{})

	require.NoError(t, s.SetLetterCount(4))
	assert.Equal(t, 4, s.Snapshot().LetterCount)
	assert.Len(t, s.Snapshot().Pattern, 4)

	require.NoError(t, s.SetLetterCount(4))
	assert.Equal(t, 0, s.Snapshot().LetterCount, "reselecting turns the filter off")
	assert.Len(t, s.Snapshot().Pattern, 4, "turning the filter off keeps the pattern")

	require.NoError(t, s.SetLetterCount(query.MaxLength))
	assert.Equal(t, query.MaxLength, s.Snapshot().LetterCount)

	assert.ErrorIs(t, s.SetLetterCount(query.MaxLength+1), ErrLetterCount)
	assert.ErrorIs(t, s.SetLetterCount(-1), ErrLetterCount)
}

func TestLetterCountRefetchesText(t *testing.T) {
	f := &fakeFetcher{}
	s := newTestSession(t, f)

	require.NoError(t, s.SetMode(TextMode))
	require.NoError(t, s.Type("bil"))
	require.Eventually(t, func() bool { return f.count() == 1 }, time.Second, 5*time.Millisecond)
	s.Wait()

	require.NoError(t, s.SetLetterCount(5))
	require.Eventually(t, func() bool { return f.count() == 2 }, time.Second, 5*time.Millisecond)
	s.Wait()
	assert.Equal(t, 5, f.last().Length())

	require.NoError(t, s.SetLetterCount(5))
	require.Eventually(t, func() bool { return f.count() == 3 }, time.Second, 5*time.Millisecond)
	s.Wait()
	assert.Equal(t, 0, f.last().Length())
}

func TestLetterCountWithoutTextDoesNotFetch(t *testing.T) {
	f := &fakeFetcher{}
	s := newTestSession(t, f)

	require.NoError(t, s.SetMode(TextMode))
	require.NoError(t, s.SetLetterCount(6))
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, f.count())
}

func TestBlankInputClearsWithoutRequest(t *testing.T) {
	f := &fakeFetcher{}
	s := newTestSession(t, f)
	require.NoError(t, s.SetMode(TextMode))

	require.NoError(t, s.Type("fisk"))
	require.NoError(t, s.Submit())
	s.Wait()
	require.NotEmpty(t, s.Snapshot().Suggestions)

	require.NoError(t, s.Type("   "))
	require.Eventually(t, func() bool { return len(s.Snapshot().Suggestions) == 0 }, time.Second, 5*time.Millisecond)
	time.Sleep(40 * time.Millisecond)

	assert.Equal(t, 1, f.count(), "blank input never reaches the fetcher")
	assert.False(t, s.Snapshot().Loading)
}

func TestPatternEditsFetchImmediately(t *testing.T) {
	f := &fakeFetcher{}
	s := newTestSession(t, f, WithDebounce(time.Hour))

	require.NoError(t, s.SetLetter(0, "k"))
	s.Wait()
	assert.Equal(t, 1, f.count())
	assert.Equal(t, "k__", f.last().Term())

	require.NoError(t, s.AddSlot())
	assert.Equal(t, 1, f.count(), "adding a slot does not fetch")
	assert.Equal(t, "K___", s.Snapshot().PatternString())

	require.NoError(t, s.RemoveSlot())
	s.Wait()
	assert.Equal(t, 2, f.count())
	assert.Equal(t, "k__", f.last().Term())

	require.NoError(t, s.ClearPattern())
	s.Wait()
	assert.Equal(t, 3, f.count())
	assert.Equal(t, "___", f.last().Term())
}

func TestSlotBounds(t *testing.T) {
	s := newTestSession(t, &fakeFetcher{}, WithPatternLen(1))

	assert.ErrorIs(t, s.RemoveSlot(), ErrSlotRange)
	assert.ErrorIs(t, s.SetLetter(1, "a"), ErrSlotRange)

	for i := 1; i < query.MaxLength; i++ {
		require.NoError(t, s.AddSlot())
	}
	assert.ErrorIs(t, s.AddSlot(), ErrSlotRange)
	assert.Len(t, s.Snapshot().Pattern, query.MaxLength)
}

func TestWrongMode(t *testing.T) {
	s := newTestSession(t, &fakeFetcher{})

	assert.ErrorIs(t, s.Type("fisk"), ErrWrongMode)

	require.NoError(t, s.SetMode(TextMode))
	assert.ErrorIs(t, s.SetLetter(0, "a"), ErrWrongMode)
	assert.ErrorIs(t, s.AddSlot(), ErrWrongMode)
	assert.ErrorIs(t, s.ClearPattern(), ErrWrongMode)
}

func TestAreas(t *testing.T) {
	s := newTestSession(t, &fakeFetcher{})

	require.NoError(t, s.SelectArea("fugl"))
	require.NoError(t, s.SelectArea("FISK"))
	require.NoError(t, s.SelectArea("fugl"))
	assert.Equal(t, []Area{{"fugl", "Fugl"}, {"fisk", "Fisk"}}, s.Snapshot().Areas)

	assert.ErrorIs(t, s.SelectArea("insekt"), ErrUnknownArea)
	assert.ErrorIs(t, s.RemoveArea("insekt"), ErrUnknownArea)

	require.NoError(t, s.RemoveArea("fugl"))
	require.NoError(t, s.SelectArea(AllAreas))
	assert.Equal(t, []Area{{"fisk", "Fisk"}, {AllAreas, "Alle kategorier"}}, s.Snapshot().Areas)
}

func TestSelectOpensDetail(t *testing.T) {
	f := &fakeFetcher{}
	h := suggest.NewHistory(10)
	s := newTestSession(t, f,
		WithHistory(h),
		WithLinker(func(word string) string { return ordbok.DetailURL("https://ordbokene.no/bm/search", word) }))

	require.NoError(t, s.SetMode(TextMode))
	require.NoError(t, s.Type("blå"))
	require.NoError(t, s.Submit())
	s.Wait()

	_, err := s.Select(5)
	assert.ErrorIs(t, err, ErrNoSuggestion)

	sel, err := s.Select(1)
	require.NoError(t, err)
	assert.Equal(t, "blåen", sel.Suggestion.Word())
	assert.Equal(t, "https://ordbokene.no/bm/search?q=bl%C3%A5en", sel.Link)

	st := s.Snapshot()
	assert.Equal(t, "blåen", st.Query)
	assert.Empty(t, st.Suggestions)
	require.NotNil(t, st.Selected)
	assert.Equal(t, []string{"blåen"}, h.Recent("bl", 5).Words())

	require.NoError(t, s.Type("blåb"))
	assert.Nil(t, s.Snapshot().Selected, "typing closes the detail view")
}

func TestOnChangeVersions(t *testing.T) {
	var mu sync.Mutex
	var versions []uint64
	s := newTestSession(t, &fakeFetcher{}, WithOnChange(func(st State) {
		mu.Lock()
		versions = append(versions, st.Version)
		mu.Unlock()
	}))

	require.NoError(t, s.SetLetter(0, "a"))
	s.Wait()
	require.NoError(t, s.SelectArea("dyr"))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, versions, 3, "loading, result and area change")
	assert.Less(t, versions[0], versions[1])
	assert.Less(t, versions[1], versions[2])
	assert.Equal(t, s.Snapshot().Version, versions[2])
}

func TestCloseCancelsInFlight(t *testing.T) {
	f := &fakeFetcher{block: true}
	s := NewSession(f)

	require.NoError(t, s.SetLetter(0, "a"))
	require.Eventually(t, func() bool { return f.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, s.Snapshot().Loading)

	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not cancel the running lookup")
	}

	assert.ErrorIs(t, s.SetLetter(1, "b"), ErrSessionClosed)
	assert.ErrorIs(t, s.Submit(), ErrSessionClosed)
	s.Close()
}

func TestSetPattern(t *testing.T) {
	f := &fakeFetcher{}
	s := newTestSession(t, f)

	require.NoError(t, s.SetPattern("f.sk?"))
	s.Wait()
	assert.Equal(t, "f_sk_", f.last().Term())
	assert.Equal(t, "F_SK_", s.Snapshot().PatternString())

	assert.ErrorIs(t, s.SetPattern(""), ErrSlotRange)
}
