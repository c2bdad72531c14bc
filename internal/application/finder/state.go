package finder

import (
	"time"

	"github.com/sazar-neudorff/productmanager/internal/domain/catalog"
)

// Status is the finder's state machine position
type Status string

const (
	StatusIdle       Status = "idle"
	StatusDebouncing Status = "debouncing"
	StatusFetching   Status = "fetching"
	StatusAppending  Status = "appending"
	StatusSettled    Status = "settled"
	StatusError      Status = "error"
)

// Placeholder hints tell the UI why the list looks the way it does
const (
	PlaceholderNone         = ""
	PlaceholderTypeToSearch = "type_to_search"
	PlaceholderLoading      = "loading"
	PlaceholderNoResults    = "no_results"
	PlaceholderUnavailable  = "source_unavailable"
)

// Config tunes the reducer
type Config struct {
	Debounce     time.Duration
	PageSize     int
	DefaultLimit int
}

// DefaultConfig mirrors the portal defaults
func DefaultConfig() Config {
	return Config{
		Debounce:     250 * time.Millisecond,
		PageSize:     20,
		DefaultLimit: 10,
	}
}

// request describes the fetch a session issued last, so Retry can repeat it.
type request struct {
	Query  string
	Cursor string
	Seed   bool
}

// State is one immutable snapshot of the finder. Reduce never mutates its
// input; Options is copied before append.
type State struct {
	Status  Status
	Query   string
	Options []catalog.Option
	Cursor  string
	HasMore bool
	// Seeded is true while the list shows the default listing
	Seeded bool
	Error  string

	// Token identifies the live session. Keystrokes, selection and close
	// all start a new one.
	Token uint64
	// Seq identifies the outstanding request within the session; zero when
	// nothing is in flight.
	Seq     uint64
	lastSeq uint64
	last    *request
}

// InFlight reports whether a request of the live session is outstanding
func (s State) InFlight() bool {
	return s.Seq != 0
}

// Placeholder explains an empty or loading list
func (s State) Placeholder() string {
	switch s.Status {
	case StatusIdle:
		return PlaceholderTypeToSearch
	case StatusDebouncing, StatusFetching:
		if len(s.Options) == 0 {
			return PlaceholderLoading
		}
	case StatusError:
		return PlaceholderUnavailable
	case StatusSettled:
		if len(s.Options) == 0 {
			return PlaceholderNoResults
		}
	}
	return PlaceholderNone
}

// CanRetry reports whether Retry would issue a request
func (s State) CanRetry() bool {
	return s.Status == StatusError && s.last != nil
}

// Find returns the option with id from the current list
func (s State) Find(id string) (catalog.Option, bool) {
	for _, o := range s.Options {
		if o.ID == id {
			return o, true
		}
	}
	return catalog.Option{}, false
}
