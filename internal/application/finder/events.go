package finder

import (
	"time"

	"github.com/sazar-neudorff/productmanager/internal/domain/catalog"
)

// Event is an input to the reducer
type Event interface{ isEvent() }

// Opened mounts the finder and loads the default listing
type Opened struct{}

// Closed unmounts the finder; everything outstanding becomes stale
type Closed struct{}

// QueryChanged is one keystroke
type QueryChanged struct{ Query string }

// DebounceElapsed fires when the timer started for Token expires
type DebounceElapsed struct{ Token uint64 }

// PageLoaded delivers a response for the request (Token, Seq)
type PageLoaded struct {
	Token uint64
	Seq   uint64
	Page  catalog.Page
}

// PageFailed delivers a failure for the request (Token, Seq)
type PageFailed struct {
	Token uint64
	Seq   uint64
	Err   error
}

// ScrolledNearEnd is the scroll-threshold crossing of the result list
type ScrolledNearEnd struct{}

// Retry repeats the failed request of the live session
type Retry struct{}

// Selected picks an option by id from the current list
type Selected struct{ OptionID string }

func (Opened) isEvent()          {}
func (Closed) isEvent()          {}
func (QueryChanged) isEvent()    {}
func (DebounceElapsed) isEvent() {}
func (PageLoaded) isEvent()      {}
func (PageFailed) isEvent()      {}
func (ScrolledNearEnd) isEvent() {}
func (Retry) isEvent()           {}
func (Selected) isEvent()        {}

// Command is an effect the driver executes for the reducer
type Command interface{ isCommand() }

// StartTimer (re)arms the debounce timer for Token, replacing any pending one
type StartTimer struct {
	Token uint64
	Delay time.Duration
}

// CancelTimer stops a pending debounce timer
type CancelTimer struct{}

// CancelFetch advisory-cancels the outstanding request. Its response will be
// discarded by token comparison whether or not the abort succeeds.
type CancelFetch struct{}

// Fetch issues Search(query, cursor, limit) for (Token, Seq)
type Fetch struct {
	Token  uint64
	Seq    uint64
	Query  string
	Cursor string
	Limit  int
}

// LoadDefault issues ListDefault(limit) for (Token, Seq)
type LoadDefault struct {
	Token uint64
	Seq   uint64
	Limit int
}

// Deliver hands a copy of the selected option to the line item
type Deliver struct{ Option catalog.Option }

// Discarded reports a response that arrived for a superseded request
type Discarded struct {
	Token uint64
	Seq   uint64
}

// Failed reports a failure applied to the live session
type Failed struct{ Err error }

func (StartTimer) isCommand()  {}
func (CancelTimer) isCommand() {}
func (CancelFetch) isCommand() {}
func (Fetch) isCommand()       {}
func (LoadDefault) isCommand() {}
func (Deliver) isCommand()     {}
func (Discarded) isCommand()   {}
func (Failed) isCommand()      {}
