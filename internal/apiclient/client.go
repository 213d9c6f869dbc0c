package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/tphummel/pcbuild/internal/builds"
	"github.com/tphummel/pcbuild/internal/compat"
	"github.com/tphummel/pcbuild/internal/models"
)

// Client is an HTTP client for the pcbuild REST API.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

// NewClient creates a Client targeting endpoint with Bearer token auth. An
// empty token sends no Authorization header.
func NewClient(endpoint, token string) *Client {
	return &Client{
		endpoint:   endpoint,
		token:      token,
		httpClient: &http.Client{},
	}
}

// Build is a saved build together with its compatibility report.
type Build struct {
	models.Build
	Compatibility *compat.Report `json:"compatibility"`
}

// APIError is a non-success response from the server.
type APIError struct {
	Status  int
	Kind    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d", e.Status)
	}
	return fmt.Sprintf("%s: %s (status %d)", e.Kind, e.Message, e.Status)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, &buf)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.httpClient.Do(req)
}

// decode unwraps the response envelope into out, or returns an *APIError when
// the status is not want.
func decode(resp *http.Response, want int, out any) error {
	var env envelope
	if resp.StatusCode != want {
		json.NewDecoder(resp.Body).Decode(&env)
		return &APIError{Status: resp.StatusCode, Kind: env.Error, Message: env.Message}
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

// CheckCompatibility asks the server to evaluate a selection.
func (c *Client) CheckCompatibility(ctx context.Context, items []models.SelectionItem) (*compat.Report, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/v1/compatibility/check", map[string]any{"components": items})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var out compat.Report
	if err := decode(resp, http.StatusOK, &out); err != nil {
		return nil, fmt.Errorf("check compatibility: %w", err)
	}
	return &out, nil
}

// ListComponents fetches one page of the catalog. query carries the listing
// filters, e.g. category or sortBy.
func (c *Client) ListComponents(ctx context.Context, query url.Values) ([]models.Component, error) {
	path := "/api/v1/components"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var out []models.Component
	if err := decode(resp, http.StatusOK, &out); err != nil {
		return nil, fmt.Errorf("list components: %w", err)
	}
	return out, nil
}

// CreateBuild saves a build and returns the server-assigned record.
func (c *Client) CreateBuild(ctx context.Context, req builds.CreateRequest) (*Build, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/v1/builds", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var out Build
	if err := decode(resp, http.StatusCreated, &out); err != nil {
		return nil, fmt.Errorf("create build: %w", err)
	}
	return &out, nil
}

// GetBuild fetches a single build by ID. Returns nil, nil when the server
// responds 404.
func (c *Client) GetBuild(ctx context.Context, id string) (*Build, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/v1/builds/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	var out Build
	if err := decode(resp, http.StatusOK, &out); err != nil {
		return nil, fmt.Errorf("get build %q: %w", id, err)
	}
	return &out, nil
}

// DeleteBuild removes the build with the given ID. A build that is already
// gone is not an error.
func (c *Client) DeleteBuild(ctx context.Context, id string) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, "/api/v1/builds/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := decode(resp, http.StatusNoContent, nil); err != nil {
		return fmt.Errorf("delete build %q: %w", id, err)
	}
	return nil
}
