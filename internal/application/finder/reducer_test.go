package finder

import (
	"errors"
	"fmt"
	"testing"

	"github.com/sazar-neudorff/productmanager/internal/domain/catalog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func opts(prefix string, n int) []catalog.Option {
	out := make([]catalog.Option, n)
	for i := range out {
		out[i] = catalog.Option{
			ID:        fmt.Sprintf("%s-%d", prefix, i+1),
			Title:     fmt.Sprintf("%s %d", prefix, i+1),
			UnitPrice: decimal.NewFromInt(int64(i + 1)),
		}
	}
	return out
}

func commandOf[T Command](t *testing.T, cmds []Command) T {
	t.Helper()
	for _, c := range cmds {
		if typed, ok := c.(T); ok {
			return typed
		}
	}
	var zero T
	require.Failf(t, "command not found", "%T not in %v", zero, cmds)
	return zero
}

func hasCommand[T Command](cmds []Command) bool {
	for _, c := range cmds {
		if _, ok := c.(T); ok {
			return true
		}
	}
	return false
}

func TestReduce_KeystrokeStartsDebounce(t *testing.T) {
	r := NewReducer(DefaultConfig())

	s, cmds := r.Reduce(State{Status: StatusIdle}, QueryChanged{Query: "f"})
	assert.Equal(t, StatusDebouncing, s.Status)
	assert.Equal(t, uint64(1), s.Token)
	timer := commandOf[StartTimer](t, cmds)
	assert.Equal(t, s.Token, timer.Token)
	assert.Equal(t, DefaultConfig().Debounce, timer.Delay)

	s2, _ := r.Reduce(s, QueryChanged{Query: "fe"})
	assert.Greater(t, s2.Token, s.Token)

	// the first timer fires late and is ignored
	s3, cmds := r.Reduce(s2, DebounceElapsed{Token: s.Token})
	assert.Equal(t, s2, s3)
	assert.Empty(t, cmds)

	s4, cmds := r.Reduce(s2, DebounceElapsed{Token: s2.Token})
	assert.Equal(t, StatusFetching, s4.Status)
	fetch := commandOf[Fetch](t, cmds)
	assert.Equal(t, "fe", fetch.Query)
	assert.Equal(t, "", fetch.Cursor)
	assert.Equal(t, s4.Seq, fetch.Seq)
}

func TestReduce_KeystrokeCancelsInFlight(t *testing.T) {
	r := NewReducer(DefaultConfig())
	s, _ := r.Reduce(State{}, QueryChanged{Query: "a"})
	s, _ = r.Reduce(s, DebounceElapsed{Token: s.Token})
	require.True(t, s.InFlight())

	_, cmds := r.Reduce(s, QueryChanged{Query: "ab"})
	assert.True(t, hasCommand[CancelFetch](cmds))
	assert.True(t, hasCommand[CancelTimer](cmds))
}

func TestReduce_StaleResponsesNeverMerge(t *testing.T) {
	r := NewReducer(DefaultConfig())

	s, _ := r.Reduce(State{}, QueryChanged{Query: "a"})
	s, cmds := r.Reduce(s, DebounceElapsed{Token: s.Token})
	fetchA := commandOf[Fetch](t, cmds)

	s, _ = r.Reduce(s, QueryChanged{Query: "b"})
	s, cmds = r.Reduce(s, DebounceElapsed{Token: s.Token})
	fetchB := commandOf[Fetch](t, cmds)

	s, _ = r.Reduce(s, PageLoaded{Token: fetchB.Token, Seq: fetchB.Seq, Page: catalog.Page{Options: opts("b", 2)}})
	require.Len(t, s.Options, 2)

	after, cmds := r.Reduce(s, PageLoaded{Token: fetchA.Token, Seq: fetchA.Seq, Page: catalog.Page{Options: opts("a", 5)}})
	assert.Equal(t, s, after)
	assert.True(t, hasCommand[Discarded](cmds))

	// a duplicate delivery of the applied response is stale as well
	after, _ = r.Reduce(s, PageLoaded{Token: fetchB.Token, Seq: fetchB.Seq, Page: catalog.Page{Options: opts("b", 2)}})
	assert.Len(t, after.Options, 2)

	failed, cmds := r.Reduce(s, PageFailed{Token: fetchA.Token, Seq: fetchA.Seq, Err: errors.New("late")})
	assert.Equal(t, StatusSettled, failed.Status)
	assert.True(t, hasCommand[Discarded](cmds))
}

func TestReduce_PaginationAppends(t *testing.T) {
	r := NewReducer(DefaultConfig())
	s, _ := r.Reduce(State{}, QueryChanged{Query: "korn"})
	s, cmds := r.Reduce(s, DebounceElapsed{Token: s.Token})
	f1 := commandOf[Fetch](t, cmds)

	page1 := opts("p1", 3)
	s, _ = r.Reduce(s, PageLoaded{Token: f1.Token, Seq: f1.Seq, Page: catalog.Page{Options: page1, NextCursor: "c1", HasMore: true}})
	require.Equal(t, StatusSettled, s.Status)
	shown := s.Options

	s, cmds = r.Reduce(s, ScrolledNearEnd{})
	assert.Equal(t, StatusAppending, s.Status)
	f2 := commandOf[Fetch](t, cmds)
	assert.Equal(t, "c1", f2.Cursor)
	assert.Equal(t, "korn", f2.Query)

	// sequential: no second page request while one is outstanding
	same, cmds := r.Reduce(s, ScrolledNearEnd{})
	assert.Equal(t, s, same)
	assert.Empty(t, cmds)

	s, _ = r.Reduce(s, PageLoaded{Token: f2.Token, Seq: f2.Seq, Page: catalog.Page{Options: opts("p2", 2)}})
	assert.Len(t, s.Options, 5)
	assert.Equal(t, page1, s.Options[:3])
	assert.Equal(t, page1, shown, "earlier snapshot is untouched")
	assert.False(t, s.HasMore)

	_, cmds = r.Reduce(s, ScrolledNearEnd{})
	assert.Empty(t, cmds)
}

func TestReduce_FailureAndRetry(t *testing.T) {
	r := NewReducer(DefaultConfig())
	s, _ := r.Reduce(State{}, QueryChanged{Query: "x"})
	s, cmds := r.Reduce(s, DebounceElapsed{Token: s.Token})
	f1 := commandOf[Fetch](t, cmds)

	s, cmds = r.Reduce(s, PageFailed{Token: f1.Token, Seq: f1.Seq, Err: errors.New("down")})
	assert.Equal(t, StatusError, s.Status)
	assert.Equal(t, PlaceholderUnavailable, s.Placeholder())
	assert.True(t, hasCommand[Failed](cmds))
	assert.False(t, hasCommand[Fetch](cmds), "no automatic retry")

	s, cmds = r.Reduce(s, Retry{})
	f2 := commandOf[Fetch](t, cmds)
	assert.Equal(t, "x", f2.Query)
	assert.Equal(t, f1.Token, f2.Token)
	assert.NotEqual(t, f1.Seq, f2.Seq)

	// retry outside the error state does nothing
	_, cmds = r.Reduce(s, Retry{})
	assert.Empty(t, cmds)
}

func TestReduce_AppendFailureRetriesSameCursor(t *testing.T) {
	r := NewReducer(DefaultConfig())
	s, _ := r.Reduce(State{}, QueryChanged{Query: "x"})
	s, cmds := r.Reduce(s, DebounceElapsed{Token: s.Token})
	f1 := commandOf[Fetch](t, cmds)
	s, _ = r.Reduce(s, PageLoaded{Token: f1.Token, Seq: f1.Seq, Page: catalog.Page{Options: opts("a", 2), NextCursor: "c1", HasMore: true}})
	s, cmds = r.Reduce(s, ScrolledNearEnd{})
	f2 := commandOf[Fetch](t, cmds)
	s, _ = r.Reduce(s, PageFailed{Token: f2.Token, Seq: f2.Seq, Err: errors.New("timeout")})

	assert.Len(t, s.Options, 2, "failed page keeps earlier items")

	s, cmds = r.Reduce(s, Retry{})
	assert.Equal(t, StatusAppending, s.Status)
	assert.Equal(t, "c1", commandOf[Fetch](t, cmds).Cursor)
}

func TestReduce_OpenSeedsDefaultListing(t *testing.T) {
	r := NewReducer(Config{DefaultLimit: 5})
	s, cmds := r.Reduce(State{Status: StatusIdle}, Opened{})
	seed := commandOf[LoadDefault](t, cmds)
	assert.Equal(t, 5, seed.Limit)
	assert.Equal(t, PlaceholderLoading, s.Placeholder())

	s, _ = r.Reduce(s, PageLoaded{Token: seed.Token, Seq: seed.Seq, Page: catalog.Page{Options: opts("d", 5), HasMore: true, NextCursor: "ignored"}})
	assert.True(t, s.Seeded)
	assert.False(t, s.HasMore)
	assert.Equal(t, PlaceholderNone, s.Placeholder())
}

func TestReduce_EmptyQueryFallsBackToDefaultListing(t *testing.T) {
	r := NewReducer(DefaultConfig())
	s, _ := r.Reduce(State{}, QueryChanged{Query: "   "})
	_, cmds := r.Reduce(s, DebounceElapsed{Token: s.Token})

	assert.True(t, hasCommand[LoadDefault](cmds))
	assert.False(t, hasCommand[Fetch](cmds))
}

func TestReduce_EmptyResultExplainsItself(t *testing.T) {
	r := NewReducer(DefaultConfig())
	s, _ := r.Reduce(State{}, QueryChanged{Query: "zzz"})
	s, cmds := r.Reduce(s, DebounceElapsed{Token: s.Token})
	f := commandOf[Fetch](t, cmds)
	s, _ = r.Reduce(s, PageLoaded{Token: f.Token, Seq: f.Seq})

	assert.Equal(t, PlaceholderNoResults, s.Placeholder())
}

func TestReduce_SelectionTearsDownSession(t *testing.T) {
	r := NewReducer(DefaultConfig())
	s, _ := r.Reduce(State{}, QueryChanged{Query: "ferra"})
	s, cmds := r.Reduce(s, DebounceElapsed{Token: s.Token})
	f := commandOf[Fetch](t, cmds)
	s, _ = r.Reduce(s, PageLoaded{Token: f.Token, Seq: f.Seq, Page: catalog.Page{Options: opts("ferra", 2)}})

	_, cmds = r.Reduce(s, Selected{OptionID: "missing"})
	assert.Empty(t, cmds)

	next, cmds := r.Reduce(s, Selected{OptionID: "ferra-2"})
	assert.Equal(t, StatusIdle, next.Status)
	assert.Empty(t, next.Query)
	assert.Empty(t, next.Options)
	assert.Greater(t, next.Token, s.Token)
	assert.Equal(t, "ferra-2", commandOf[Deliver](t, cmds).Option.ID)
}

func TestReduce_CloseMakesEverythingStale(t *testing.T) {
	r := NewReducer(DefaultConfig())
	s, cmds := r.Reduce(State{}, Opened{})
	seed := commandOf[LoadDefault](t, cmds)

	s, cmds = r.Reduce(s, Closed{})
	assert.True(t, hasCommand[CancelFetch](cmds))
	assert.Equal(t, StatusIdle, s.Status)

	after, cmds := r.Reduce(s, PageLoaded{Token: seed.Token, Seq: seed.Seq, Page: catalog.Page{Options: opts("d", 3)}})
	assert.Empty(t, after.Options)
	assert.True(t, hasCommand[Discarded](cmds))
}
