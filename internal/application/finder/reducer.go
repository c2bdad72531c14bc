package finder

import (
	"strings"

	"github.com/sazar-neudorff/productmanager/internal/domain/catalog"
)

// Reducer is the pure finder state machine
type Reducer struct {
	cfg Config
}

// NewReducer creates a reducer, filling zero config values with defaults
func NewReducer(cfg Config) Reducer {
	def := DefaultConfig()
	if cfg.PageSize <= 0 {
		cfg.PageSize = def.PageSize
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = def.DefaultLimit
	}
	if cfg.Debounce < 0 {
		cfg.Debounce = 0
	}
	return Reducer{cfg: cfg}
}

// Reduce applies one event and returns the next state plus the effects the
// driver must run. Responses whose (Token, Seq) do not match the live
// request are never merged.
func (r Reducer) Reduce(s State, e Event) (State, []Command) {
	switch ev := e.(type) {
	case Opened:
		next, cmds := r.startSeed(r.newSession(s, ""))
		return next, append([]Command{CancelTimer{}, CancelFetch{}}, cmds...)

	case Closed:
		next := r.newSession(s, "")
		next.Status = StatusIdle
		return next, []Command{CancelTimer{}, CancelFetch{}}

	case QueryChanged:
		cmds := []Command{CancelTimer{}}
		if s.InFlight() {
			cmds = append(cmds, CancelFetch{})
		}
		next := r.newSession(s, ev.Query)
		// Keep showing the previous list until the new session fetches.
		next.Options = s.Options
		next.Seeded = s.Seeded
		next.Status = StatusDebouncing
		return next, append(cmds, StartTimer{Token: next.Token, Delay: r.cfg.Debounce})

	case DebounceElapsed:
		if ev.Token != s.Token || s.Status != StatusDebouncing {
			return s, nil
		}
		if strings.TrimSpace(s.Query) == "" {
			return r.startSeed(s)
		}
		return r.startSearch(s, request{Query: s.Query})

	case PageLoaded:
		if !s.matches(ev.Token, ev.Seq) {
			return s, []Command{Discarded{Token: ev.Token, Seq: ev.Seq}}
		}
		return r.apply(s, ev.Page), nil

	case PageFailed:
		if !s.matches(ev.Token, ev.Seq) {
			return s, []Command{Discarded{Token: ev.Token, Seq: ev.Seq}}
		}
		next := s
		next.Seq = 0
		next.Status = StatusError
		next.Error = errorText(ev.Err)
		return next, []Command{Failed{Err: ev.Err}}

	case ScrolledNearEnd:
		if s.Status != StatusSettled || !s.HasMore || s.InFlight() || s.Cursor == "" {
			return s, nil
		}
		return r.startAppend(s)

	case Retry:
		if !s.CanRetry() {
			return s, nil
		}
		last := *s.last
		switch {
		case last.Seed:
			return r.startSeed(s)
		case last.Cursor != "":
			return r.startAppend(s)
		default:
			return r.startSearch(s, last)
		}

	case Selected:
		opt, ok := s.Find(ev.OptionID)
		if !ok {
			return s, nil
		}
		next := r.newSession(s, "")
		next.Status = StatusIdle
		return next, []Command{CancelTimer{}, CancelFetch{}, Deliver{Option: opt.Clone()}}
	}
	return s, nil
}

// newSession supersedes the current session. Anything issued under the old
// token is stale from here on.
func (r Reducer) newSession(s State, query string) State {
	return State{
		Status:  s.Status,
		Query:   query,
		Token:   s.Token + 1,
		lastSeq: s.lastSeq,
	}
}

func (r Reducer) nextSeq(s *State) uint64 {
	s.lastSeq++
	s.Seq = s.lastSeq
	return s.Seq
}

func (r Reducer) startSeed(s State) (State, []Command) {
	next := s
	next.Status = StatusFetching
	next.Options = nil
	next.Cursor = ""
	next.HasMore = false
	next.Seeded = false
	next.Error = ""
	next.last = &request{Seed: true}
	seq := r.nextSeq(&next)
	return next, []Command{LoadDefault{Token: next.Token, Seq: seq, Limit: r.cfg.DefaultLimit}}
}

func (r Reducer) startSearch(s State, req request) (State, []Command) {
	next := s
	next.Status = StatusFetching
	next.Options = nil
	next.Cursor = ""
	next.HasMore = false
	next.Seeded = false
	next.Error = ""
	next.last = &request{Query: req.Query}
	seq := r.nextSeq(&next)
	return next, []Command{Fetch{Token: next.Token, Seq: seq, Query: req.Query, Limit: r.cfg.PageSize}}
}

func (r Reducer) startAppend(s State) (State, []Command) {
	next := s
	next.Status = StatusAppending
	next.Error = ""
	next.last = &request{Query: s.Query, Cursor: s.Cursor}
	seq := r.nextSeq(&next)
	return next, []Command{Fetch{Token: next.Token, Seq: seq, Query: s.Query, Cursor: s.Cursor, Limit: r.cfg.PageSize}}
}

func (r Reducer) apply(s State, page catalog.Page) State {
	next := s
	merged := make([]catalog.Option, 0, len(s.Options)+len(page.Options))
	merged = append(merged, s.Options...)
	merged = append(merged, page.Options...)
	next.Options = merged
	next.Seq = 0
	next.Status = StatusSettled
	next.Error = ""
	if s.last != nil && s.last.Seed {
		next.Seeded = true
		next.Cursor = ""
		next.HasMore = false
		return next
	}
	next.Cursor = page.NextCursor
	next.HasMore = page.HasMore && page.NextCursor != ""
	return next
}

func (s State) matches(token, seq uint64) bool {
	return s.Token == token && s.Seq != 0 && s.Seq == seq
}

func errorText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
