// Package insight is the client for the external analysis capability. Each
// pipeline stage maps to one endpoint named after the stage id; requests and
// responses are JSON over bearer-token HTTP.
package insight

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://analysis.sellsgroup.dev"

// Client performs per-stage analysis calls.
type Client interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error)
}

// AnalyzeRequest is the request body for POST /analyze/{stage}.
type AnalyzeRequest struct {
	Stage        string                     `json:"stage"`
	RequestID    string                     `json:"request_id,omitempty"`
	Organization map[string]any             `json:"organization"`
	Upstream     map[string]json.RawMessage `json:"upstream,omitempty"`
}

// AnalyzeResponse is the response from POST /analyze/{stage}. Data is the
// stage-specific payload; callers decode it into their typed shape.
type AnalyzeResponse struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Analysis  string          `json:"analysis,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// StatusError reports a non-2xx response from the capability.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("insight: unexpected status %d: %s", e.Code, e.Body)
}

// IsRetryable reports whether err is a StatusError safe to retry.
func IsRetryable(err error) bool {
	var se *StatusError
	if !eris.As(err, &se) {
		return false
	}
	switch se.Code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit sets a per-second rate limit with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *httpClient) {
		if rps > 0 {
			if burst < 1 {
				burst = 1
			}
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates an analysis capability client. Per-call deadlines are the
// caller's responsibility (stage timeouts differ); the transport-level
// timeout only bounds a run-away connection.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 120 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error) {
	if req.Stage == "" {
		return nil, eris.New("insight: stage is required")
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "insight: rate limit")
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "insight: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze/"+req.Stage, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "insight: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrapf(err, "insight: %s request", req.Stage)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "insight: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Body: string(respBody)}
	}

	var result AnalyzeResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "insight: unmarshal response")
	}

	return &result, nil
}
