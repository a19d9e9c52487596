// Package usage keeps process-wide token counters for completion-service calls.
package usage

import (
	"sync"
	"time"
)

// TokenCounts aggregates token usage.
type TokenCounts struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	Total  int `json:"total"`
	Calls  int `json:"calls"`
}

// Stats is a copy of the tracker state.
type Stats struct {
	Aggregate TokenCounts            `json:"aggregate"`
	ByAgent   map[string]TokenCounts `json:"by_agent"`
	Since     time.Time              `json:"since"`
}

// Tracker accumulates usage until an explicit Reset.
type Tracker struct {
	mu      sync.Mutex
	total   TokenCounts
	byAgent map[string]TokenCounts
	since   time.Time
}

func NewTracker() *Tracker {
	return &Tracker{byAgent: make(map[string]TokenCounts), since: time.Now()}
}

// Track records one call. A zero total is derived from input and output.
func (t *Tracker) Track(agent string, input, output, total int) {
	if total == 0 {
		total = input + output
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.total = add(t.total, input, output, total)
	t.byAgent[agent] = add(t.byAgent[agent], input, output, total)
}

// Stats returns a snapshot of the counters.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	byAgent := make(map[string]TokenCounts, len(t.byAgent))
	for k, v := range t.byAgent {
		byAgent[k] = v
	}
	return Stats{Aggregate: t.total, ByAgent: byAgent, Since: t.since}
}

// Reset zeroes every counter.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.total = TokenCounts{}
	t.byAgent = make(map[string]TokenCounts)
	t.since = time.Now()
}

func add(c TokenCounts, input, output, total int) TokenCounts {
	c.Input += input
	c.Output += output
	c.Total += total
	c.Calls++
	return c
}
