// Package usage implements the UsageTracker (spec §9): one of the two
// process-wide stores, an append-only set of success/failure counters per
// tool name.
package usage

import "sync"

// Tracker counts tool call outcomes. Zero value is ready to use.
type Tracker struct {
	mu    sync.Mutex
	stats map[string]*counts
}

type counts struct {
	success int64
	failure int64
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{stats: make(map[string]*counts)}
}

// TrackSuccess records one successful call to tool.
func (t *Tracker) TrackSuccess(tool string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entry(tool).success++
}

// TrackFailure records one failed call to tool.
func (t *Tracker) TrackFailure(tool string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entry(tool).failure++
}

func (t *Tracker) entry(tool string) *counts {
	if t.stats == nil {
		t.stats = make(map[string]*counts)
	}
	c, ok := t.stats[tool]
	if !ok {
		c = &counts{}
		t.stats[tool] = c
	}
	return c
}

// Counts is a point-in-time snapshot for one tool.
type Counts struct {
	SuccessCount int64
	FailureCount int64
}

// Get returns a snapshot of tool's counters.
func (t *Tracker) Get(tool string) Counts {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.stats[tool]
	if !ok {
		return Counts{}
	}
	return Counts{SuccessCount: c.success, FailureCount: c.failure}
}
