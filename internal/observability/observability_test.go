package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		logger, err := NewLogger("debug", format)
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(-1))
	}

	_, err := NewLogger("loud", "json")
	assert.Error(t, err)
	_, err = NewLogger("info", "xml")
	assert.Error(t, err)
}

func TestMetrics_ObserveStage(t *testing.T) {
	m := NewMetrics()
	now := time.Now()

	m.ObserveStage(StageStats{Dataset: "teams", Stage: "diff", RowsIn: 32, RowsOut: 2,
		Table: "staging.teams", TableRowsAfter: 2, Duration: time.Second, Finished: now})
	m.ObserveStage(StageStats{Dataset: "teams", Stage: "diff", Err: errors.New("boom"), Finished: now})

	assert.Equal(t, 1.0, value(t, m, "teamhub_stage_runs_total", "status", "success"))
	assert.Equal(t, 1.0, value(t, m, "teamhub_stage_runs_total", "status", "failure"))
	assert.Equal(t, 2.0, value(t, m, "teamhub_table_rows", "table", "staging.teams"))
	assert.Equal(t, float64(now.Unix()), value(t, m, "teamhub_stage_last_success_timestamp_seconds", "stage", "diff"))
}

func TestMetrics_Push(t *testing.T) {
	var mu sync.Mutex
	var path, body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		path, body = r.URL.Path, string(b)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewMetrics()
	m.ObserveStage(StageStats{Dataset: "teams", Stage: "merge", Finished: time.Now()})
	require.NoError(t, m.Push(context.Background(), srv.URL, "teamhub", "run-1"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/metrics/job/teamhub/run_id/run-1", path)
	assert.NotEmpty(t, body)
}

func TestRunStats(t *testing.T) {
	r := NewRunStats()
	t0 := time.Now()
	r.Record(StageStats{Stage: "diff", Started: t0.Add(time.Second), Duration: time.Second})
	r.Record(StageStats{Stage: "snapshot", Started: t0, Duration: 2 * time.Second})
	r.Record(StageStats{Stage: "diff", Started: t0.Add(2 * time.Second), Err: errors.New("x")})

	stages := r.Stages()
	require.Len(t, stages, 3)
	assert.Equal(t, "snapshot", stages[0].Stage)

	last, ok := r.Last("diff")
	require.True(t, ok)
	assert.Error(t, last.Err)

	_, ok = r.Last("merge")
	assert.False(t, ok)

	assert.Len(t, r.Failures(), 1)
	assert.Equal(t, 3*time.Second, r.TotalDuration())
}

// value returns the counter or gauge sample of name whose label matches.
func value(t *testing.T, m *Metrics, name, label, want string) float64 {
	t.Helper()
	families, err := m.Registry.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			if hasLabel(metric, label, want) {
				if c := metric.GetCounter(); c != nil {
					return c.GetValue()
				}
				return metric.GetGauge().GetValue()
			}
		}
	}
	t.Fatalf("metric %s{%s=%q} not found", name, label, want)
	return 0
}

func hasLabel(m *dto.Metric, name, value string) bool {
	for _, l := range m.GetLabel() {
		if l.GetName() == name && l.GetValue() == value {
			return true
		}
	}
	return false
}
