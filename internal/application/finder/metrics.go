package finder

// Metrics receives finder activity counters
type Metrics interface {
	FetchIssued(kind string)
	FetchFailed()
	StaleDiscarded()
	OptionSelected()
}

// Fetch kinds reported to Metrics
const (
	KindDefault = "default"
	KindSearch  = "search"
	KindAppend  = "append"
)

type nopMetrics struct{}

func (nopMetrics) FetchIssued(string) {}
func (nopMetrics) FetchFailed()       {}
func (nopMetrics) StaleDiscarded()    {}
func (nopMetrics) OptionSelected()    {}
