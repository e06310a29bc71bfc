package index

import "sync"

// Status is the observable state of a codebase.
type Status string

const (
	StatusAbsent       Status = "absent"
	StatusPreparing    Status = "preparing"
	StatusIndexing     Status = "indexing"
	StatusCompleted    Status = "completed"
	StatusLimitReached Status = "limit_reached"
	StatusFailed       Status = "failed"
	StatusClearing     Status = "clearing"
)

// stateTracker holds the per-codebase status and the in-process writer
// locks. At most one writer per codebase; searches are admitted any time
// the collection exists.
type stateTracker struct {
	mu      sync.Mutex
	status  map[string]Status
	writers map[string]bool
}

func newStateTracker() *stateTracker {
	return &stateTracker{
		status:  make(map[string]Status),
		writers: make(map[string]bool),
	}
}

// acquireWriter takes the writer lock for id. Returns false when another
// indexing or clearing operation holds it.
func (t *stateTracker) acquireWriter(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.writers[id] {
		return false
	}
	t.writers[id] = true
	return true
}

// releaseWriter releases the writer lock for id.
func (t *stateTracker) releaseWriter(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.writers, id)
}

// set records the status for id.
func (t *stateTracker) set(id string, s Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s == StatusAbsent {
		delete(t.status, id)
		return
	}
	t.status[id] = s
}

// get returns the status for id, defaulting to absent.
func (t *stateTracker) get(id string) Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.status[id]; ok {
		return s
	}
	return StatusAbsent
}
