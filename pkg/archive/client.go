// Package archive is the client for the analysis-archival sink. Callers
// treat it as best-effort: the pipeline fires these calls from detached
// goroutines and never acts on their failure.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Client stores per-stage analysis text for later retrieval.
type Client interface {
	Store(ctx context.Context, orgKey, requestID, stage, analysis string) error
}

type storeRequest struct {
	Action           string `json:"action"`
	OrganizationName string `json:"organization_name"`
	RequestID        string `json:"request_id"`
	StageName        string `json:"stage_name"`
	ClaudeAnalysis   string `json:"claude_analysis"`
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	url  string
	http *http.Client
}

// NewClient creates an archival sink client for the given endpoint URL.
func NewClient(url string, opts ...Option) Client {
	c := &httpClient{
		url: url,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Store(ctx context.Context, orgKey, requestID, stage, analysis string) error {
	body, err := json.Marshal(storeRequest{
		Action:           "store",
		OrganizationName: orgKey,
		RequestID:        requestID,
		StageName:        stage,
		ClaudeAnalysis:   analysis,
	})
	if err != nil {
		return eris.Wrap(err, "archive: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "archive: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return eris.Wrap(err, "archive: store request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return eris.Errorf("archive: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
