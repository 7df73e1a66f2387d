// Package statebridge is the client for the cross-call persistence service.
// Pipeline stages may be invoked as independent, stateless calls; the bridge
// is how a later stage sees an earlier stage's output when the two
// invocations do not share process memory.
package statebridge

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Client persists and retrieves named stage payloads per organization.
type Client interface {
	// SaveStage stores a stage payload, overwriting any previous payload for
	// the same (organization, stage) pair.
	SaveStage(ctx context.Context, orgKey, stage string, payload json.RawMessage) error
	// GetStage returns the stored payload, or (nil, nil) when absent.
	GetStage(ctx context.Context, orgKey, stage string) (json.RawMessage, error)
	// GetProfile returns the stored organization profile, or (nil, nil).
	GetProfile(ctx context.Context, orgKey string) (json.RawMessage, error)
}

// envelope is the action-based wire format the bridge accepts.
type envelope struct {
	Action           string          `json:"action"`
	OrganizationName string          `json:"organization_name"`
	Stage            string          `json:"stage,omitempty"`
	StageData        json.RawMessage `json:"stage_data,omitempty"`
}

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithKey sets a bearer token for the bridge endpoint.
func WithKey(key string) Option {
	return func(c *httpClient) {
		c.key = key
	}
}

type httpClient struct {
	url  string
	key  string
	http *http.Client
}

// NewClient creates a State Bridge client for the given endpoint URL.
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

func (c *httpClient) SaveStage(ctx context.Context, orgKey, stage string, payload json.RawMessage) error {
	_, err := c.post(ctx, envelope{
		Action:           "saveStageData",
		OrganizationName: orgKey,
		Stage:            stage,
		StageData:        payload,
	})
	return err
}

func (c *httpClient) GetStage(ctx context.Context, orgKey, stage string) (json.RawMessage, error) {
	resp, err := c.post(ctx, envelope{
		Action:           "retrieve",
		OrganizationName: orgKey,
		Stage:            stage,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return nil, nil
	}
	return resp.Data, nil
}

func (c *httpClient) GetProfile(ctx context.Context, orgKey string) (json.RawMessage, error) {
	resp, err := c.post(ctx, envelope{
		Action:           "getProfile",
		OrganizationName: orgKey,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return nil, nil
	}
	return resp.Data, nil
}

func (c *httpClient) post(ctx context.Context, env envelope) (*response, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return nil, eris.Wrap(err, "statebridge: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "statebridge: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.key != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.key)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrapf(err, "statebridge: %s request", env.Action)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "statebridge: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("statebridge: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result response
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "statebridge: unmarshal response")
	}
	if !result.Success {
		return nil, eris.Errorf("statebridge: %s failed: %s", env.Action, result.Error)
	}

	return &result, nil
}
