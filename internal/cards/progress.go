package cards

import (
	"github.com/google/uuid"
)

// Progress is one event on a run's stream. Item events carry the current
// word and running counters; the terminal event carries Complete and the
// number of records written.
type Progress struct {
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Word      string `json:"currentKey,omitempty"`
	Skipped   bool   `json:"skipped,omitempty"`
	Err       string `json:"error,omitempty"`
	Complete  bool   `json:"complete,omitempty"`
	Generated int    `json:"generated,omitempty"`
}

// Run is a handle to an in-flight enrichment pass. Events is buffered for
// the whole run, so the worker never blocks on a slow or absent consumer,
// and is closed when the run ends. Err is valid after Wait returns.
type Run struct {
	ID     uuid.UUID
	Events <-chan Progress

	done chan struct{}
	err  error
}

// Wait blocks until the run has finished and returns its terminal error,
// nil for a completed run.
func (r *Run) Wait() error {
	<-r.done
	return r.err
}

func newRun(buffer int) (*Run, chan Progress) {
	events := make(chan Progress, buffer)
	return &Run{
		ID:     uuid.New(),
		Events: events,
		done:   make(chan struct{}),
	}, events
}

func (r *Run) finish(events chan Progress, err error) {
	r.err = err
	close(events)
	close(r.done)
}
