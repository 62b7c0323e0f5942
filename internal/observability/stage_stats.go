package observability

import (
	"sort"
	"sync"
	"time"
)

// StageStats summarizes one stage execution.
type StageStats struct {
	Dataset  string
	RunDate  string
	Stage    string
	RunID    string
	Started  time.Time
	Finished time.Time
	Duration time.Duration

	// RowsIn is the number of rows the stage read, RowsOut the number it wrote
	RowsIn  int64
	RowsOut int64

	// Table is the stage's output table with its counts around the write
	Table           string
	TableRowsBefore int64
	TableRowsAfter  int64

	Attempts int
	Err      error
}

// RunStats collects the stage executions of one process.
// Safe for concurrent use.
type RunStats struct {
	mu     sync.RWMutex
	stages []StageStats
}

// NewRunStats creates an empty collector.
func NewRunStats() *RunStats {
	return &RunStats{}
}

// Record appends a stage execution.
func (r *RunStats) Record(s StageStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, s)
}

// Stages returns a copy of the recorded executions in start order.
func (r *RunStats) Stages() []StageStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]StageStats, len(r.stages))
	copy(out, r.stages)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Started.Before(out[j].Started)
	})
	return out
}

// Failures returns the executions that ended with an error.
func (r *RunStats) Failures() []StageStats {
	var out []StageStats
	for _, s := range r.Stages() {
		if s.Err != nil {
			out = append(out, s)
		}
	}
	return out
}

// Last returns the most recent execution of stage.
func (r *RunStats) Last(stage string) (StageStats, bool) {
	stages := r.Stages()
	for i := len(stages) - 1; i >= 0; i-- {
		if stages[i].Stage == stage {
			return stages[i], true
		}
	}
	return StageStats{}, false
}

// TotalDuration sums the duration of every execution.
func (r *RunStats) TotalDuration() time.Duration {
	var d time.Duration
	for _, s := range r.Stages() {
		d += s.Duration
	}
	return d
}
