package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func setupEnv(t *testing.T, handler http.HandlerFunc) string {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	t.Setenv("TEAMHUB_UPSTREAM_BASE_URL", srv.URL)
	t.Setenv("TEAMHUB_RETRY_MAX", "1")
	t.Setenv("TEAMHUB_RETRY_DELAY", "0s")
	t.Setenv("TEAMHUB_LOG_LEVEL", "error")
	return t.TempDir()
}

func TestRunAndInspect(t *testing.T) {
	dataDir := setupEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"id":6,"fullName":"Boston Bruins","triCode":"BOS"},{"id":1,"fullName":"New Jersey Devils","triCode":"NJD"}]}`))
	})

	out, err := execute(t, "run", "--date", "2024-01-01", "--data-dir", dataDir)
	require.NoError(t, err)
	for _, stage := range []string{"snapshot", "diff", "resolve", "merge"} {
		assert.Contains(t, out, stage)
	}
	assert.Contains(t, out, "table=detailed.hub_teams count_before=0 count_after=2")

	out, err = execute(t, "hub", "--data-dir", dataDir)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 2)
	assert.Contains(t, out, `"team_business_id":"BOS"`)

	out, err = execute(t, "ledger", "--data-dir", dataDir)
	require.NoError(t, err)
	assert.Contains(t, out, `"table_name":"source.teams"`)
	assert.Contains(t, out, `"run_date":"2024-01-01"`)

	out, err = execute(t, "tables", "--data-dir", dataDir)
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"source.metadata_table\t1",
		"source.teams_2024_01_01\t2",
		"staging.teams\t2",
		"operational.teams\t2",
		"detailed.hub_teams\t2",
	}, "\n")+"\n", out)

	out, err = execute(t, "tables", "--layer", "detailed", "--data-dir", dataDir)
	require.NoError(t, err)
	assert.Equal(t, "detailed.hub_teams\t2\n", out)

	_, err = execute(t, "tables", "--layer", "raw", "--data-dir", dataDir)
	assert.Error(t, err)
}

func TestStageCommandsInOrder(t *testing.T) {
	dataDir := setupEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"id":6,"fullName":"Boston Bruins","triCode":"BOS"}]}`))
	})

	for _, stage := range []string{"snapshot", "diff", "resolve", "merge"} {
		out, err := execute(t, stage, "--date", "2024-02-01", "--data-dir", dataDir)
		require.NoError(t, err, stage)
		assert.True(t, strings.HasPrefix(out, stage), out)
	}
}

func TestFailedFetchExitsWithError(t *testing.T) {
	dataDir := setupEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := execute(t, "snapshot", "--date", "2024-01-01", "--data-dir", dataDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status code 503")
}

func TestInvalidDate(t *testing.T) {
	_, err := execute(t, "diff", "--date", "01/02/2024")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "teamhub version dev")
}
