package analysis

import "sync"

// StageState is the readiness of one named stage at the time of a Status query.
type StageState struct {
	Name   string      `json:"name"`
	Status StageStatus `json:"status"`
}

// statusTracker records phase and per-stage readiness for concurrent readers.
type statusTracker struct {
	statuses map[string]StageStatus
	phase    Phase
	order    []string
	mu       sync.RWMutex
}

func newStatusTracker(names []string) *statusTracker {
	t := &statusTracker{
		order:    names,
		phase:    PhaseDataExtraction,
		statuses: make(map[string]StageStatus, len(names)),
	}
	for _, name := range names {
		t.statuses[name] = StageIdle
	}
	return t
}

func (t *statusTracker) set(name string, status StageStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.statuses[name] = status
}

func (t *statusTracker) setPhase(phase Phase) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phase = phase
}

func (t *statusTracker) snapshot() []StageState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]StageState, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, StageState{Name: name, Status: t.statuses[name]})
	}
	return out
}

func (t *statusTracker) currentPhase() Phase {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.phase
}
