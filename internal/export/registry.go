package export

import (
	"maps"
	"sync"
)

// Status is the platform-side state of an export.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusError      Status = "error"
)

// Terminal reports whether the platform will not change the status again.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// Record is what the batch knows about one poll's export.
type Record struct {
	UUID   string
	PollID int
	Status Status
}

// Registry is the shared state of one batch: export records, readiness
// signals and failures, keyed by poll id. A single mutex guards all three.
type Registry struct {
	mu       sync.Mutex
	wanted   map[int]bool
	records  map[int]Record
	signals  map[int]*signal
	failures map[int]error
}

type signal struct {
	ch    chan struct{}
	fired bool
}

func NewRegistry(ids []int) *Registry {
	wanted := make(map[int]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	return &Registry{
		wanted:   wanted,
		records:  make(map[int]Record),
		signals:  make(map[int]*signal),
		failures: make(map[int]error),
	}
}

// Observe stores rec. The first uuid seen for a poll is kept for the rest of
// the batch; later observations only update the status. Polls outside the
// batch and records without a uuid are ignored. It reports whether rec was
// taken into account.
func (r *Registry) Observe(rec Record) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.wanted[rec.PollID] || rec.UUID == "" {
		return false
	}
	if cur, ok := r.records[rec.PollID]; ok {
		if cur.UUID == rec.UUID {
			cur.Status = rec.Status
			r.records[rec.PollID] = cur
		}
		return true
	}
	r.records[rec.PollID] = rec
	return true
}

// Lookup returns the record for pollID and whether its uuid is known.
func (r *Registry) Lookup(pollID int) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[pollID]
	return rec, ok && rec.UUID != ""
}

// Register returns the readiness channel for pollID, creating it when none
// is outstanding.
func (r *Registry) Register(pollID int) <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.signals[pollID]; ok {
		return s.ch
	}
	s := &signal{ch: make(chan struct{})}
	r.signals[pollID] = s
	return s.ch
}

// Resolve fires pollID's signal. It is a no-op when no signal is registered
// or the signal already fired.
func (r *Registry) Resolve(pollID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.signals[pollID]
	if !ok || s.fired {
		return
	}
	s.fired = true
	close(s.ch)
}

// Remove drops pollID's signal.
func (r *Registry) Remove(pollID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.signals, pollID)
}

// Fail records cause for pollID. The first cause is kept.
func (r *Registry) Fail(pollID int, cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.failures[pollID]; !ok {
		r.failures[pollID] = cause
	}
}

func (r *Registry) Failed(pollID int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.failures[pollID]
	return ok
}

// Failures returns a copy of the failure set.
func (r *Registry) Failures() map[int]error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.failures)
}

// Records returns a copy of the known records.
func (r *Registry) Records() map[int]Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.records)
}
