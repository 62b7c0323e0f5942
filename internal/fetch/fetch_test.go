package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	perrors "github.com/teamhub/teamhub/internal/errors"
)

func TestClient_Fetch(t *testing.T) {
	var gotPath, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[
			{"id":6,"franchiseId":6,"fullName":"Boston Bruins","leagueId":133,"rawTricode":"BOS","triCode":"BOS"},
			{"id":1,"franchiseId":null,"fullName":"New Jersey Devils","leagueId":133,"rawTricode":"NJD","triCode":"NJD"}
		],"total":2}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/stats/rest", 5*time.Second, "teamhub-test")
	teams, err := c.Fetch(context.Background(), "en/team")
	require.NoError(t, err)

	assert.Equal(t, "/stats/rest/en/team", gotPath)
	assert.Equal(t, "teamhub-test", gotUA)
	require.Len(t, teams, 2)
	assert.Equal(t, "6", teams[0].ID)
	assert.Equal(t, "Boston Bruins", teams[0].FullName)
	assert.Equal(t, "BOS", teams[0].TriCode)
	require.NotNil(t, teams[0].FranchiseID)
	assert.EqualValues(t, 6, *teams[0].FranchiseID)
	assert.Nil(t, teams[1].FranchiseID)
}

func TestClient_FetchNonSuccessStatus(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusInternalServerError, http.StatusServiceUnavailable} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", status)
		}))

		c := NewClient(srv.URL, time.Second, "")
		_, err := c.Fetch(context.Background(), "en/team")
		srv.Close()

		require.Error(t, err)
		assert.ErrorIs(t, err, perrors.ErrFetch)
		assert.Equal(t, status, perrors.GetDetails(err)[perrors.DetailStatus])
		assert.True(t, perrors.IsRetryable(err))
	}
}

func TestClient_FetchMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": [`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second, "").Fetch(context.Background(), "en/team")
	require.Error(t, err)
	assert.Equal(t, perrors.ErrCategoryFetch, perrors.GetCategory(err))
	assert.Equal(t, perrors.CodeUpstreamDecode, perrors.GetCode(err))
	assert.False(t, perrors.IsRetryable(err))
}

func TestClient_FetchMissingDataArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"total": 0}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second, "").Fetch(context.Background(), "en/team")
	assert.Equal(t, perrors.CodeUpstreamDecode, perrors.GetCode(err))
}

func TestClient_FetchUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, time.Second, "").Fetch(context.Background(), "en/team")
	require.Error(t, err)
	assert.Equal(t, perrors.CodeUpstreamUnreachable, perrors.GetCode(err))
	assert.True(t, perrors.IsRetryable(err))
}

func TestClient_RejectsAbsoluteEndpoint(t *testing.T) {
	_, err := NewClient("http://example.invalid/", time.Second, "").Fetch(context.Background(), "http://other.invalid/x")
	assert.Error(t, err)
}
