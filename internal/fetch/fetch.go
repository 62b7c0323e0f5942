// Package fetch reads the team catalog from the upstream stats API.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	perrors "github.com/teamhub/teamhub/internal/errors"
	"github.com/teamhub/teamhub/pkg/types"
)

// maxBodySize bounds the response body read from upstream.
const maxBodySize = 32 * 1024 * 1024

// Fetcher returns the full current catalog of an endpoint.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint string) ([]types.Team, error)
}

// Client fetches the catalog over HTTP.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewClient creates a client for baseURL.
func NewClient(baseURL string, timeout time.Duration, userAgent string) *Client {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Client{
		baseURL:    baseURL,
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// envelope is the response body shape: {"data": [...], "total": n}.
type envelope struct {
	Data  []team `json:"data"`
	Total *int   `json:"total,omitempty"`
}

type team struct {
	ID          json.Number `json:"id"`
	FullName    string      `json:"fullName"`
	TriCode     string      `json:"triCode"`
	FranchiseID *int64      `json:"franchiseId"`
	LeagueID    *int64      `json:"leagueId"`
	RawTriCode  string      `json:"rawTricode"`
}

// Fetch GETs baseURL+endpoint. Any non-2xx status is a FetchError carrying
// the status code.
func (c *Client) Fetch(ctx context.Context, endpoint string) ([]types.Team, error) {
	target, err := c.resolve(endpoint)
	if err != nil {
		return nil, perrors.NewInternalError("invalid upstream endpoint", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, perrors.NewInternalError("failed to build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, perrors.NewUnreachableError(target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return nil, perrors.NewFetchError(resp.StatusCode, target)
	}

	var body envelope
	dec := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return nil, perrors.Wrap(perrors.ErrCategoryFetch, perrors.CodeUpstreamDecode,
			"failed to decode response from "+target, err)
	}
	if body.Data == nil {
		return nil, perrors.New(perrors.ErrCategoryFetch, perrors.CodeUpstreamDecode,
			"response from "+target+" has no data array")
	}

	teams := make([]types.Team, len(body.Data))
	for i, t := range body.Data {
		teams[i] = types.Team{
			ID:          t.ID.String(),
			FullName:    t.FullName,
			TriCode:     t.TriCode,
			FranchiseID: t.FranchiseID,
			LeagueID:    t.LeagueID,
			RawTriCode:  t.RawTriCode,
		}
	}
	return teams, nil
}

func (c *Client) resolve(endpoint string) (string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(strings.TrimPrefix(endpoint, "/"))
	if err != nil {
		return "", err
	}
	if ref.IsAbs() {
		return "", fmt.Errorf("endpoint %q must be relative to %s", endpoint, c.baseURL)
	}
	return base.ResolveReference(ref).String(), nil
}
