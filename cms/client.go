// Package cms is a small client for a hosted content API: query-language reads,
// document mutations, and image asset URLs.
package cms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultAPIVersion = "2021-10-21"

// Config identifies the project and dataset to talk to.
type Config struct {
	ProjectID  string
	Dataset    string
	APIVersion string // date-based API version (default "2021-10-21")
	Token      string // optional; required for mutations
	UseCDN     bool   // read from the edge-cached API host
	BaseURL    string // overrides the host derived from ProjectID
	HTTPClient *http.Client
}

// Client talks to the content API.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
}

// APIError is returned when the content API answers with a non-2xx status.
type APIError struct {
	StatusCode  int
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("cms: api status %d", e.StatusCode)
	}
	return fmt.Sprintf("cms: api status %d: %s", e.StatusCode, e.Description)
}

// NewClient creates a Client. No client-side timeout is set; callers bound
// requests with their context.
func NewClient(cfg Config) *Client {
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAPIVersion
	}
	base := cfg.BaseURL
	if base == "" {
		host := "api.sanity.io"
		if cfg.UseCDN {
			host = "apicdn.sanity.io"
		}
		base = "https://" + cfg.ProjectID + "." + host
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		cfg:        cfg,
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: hc,
	}
}

type queryRequest struct {
	Query  string         `json:"query"`
	Params map[string]any `json:"params,omitempty"`
}

type queryResponse struct {
	Result json.RawMessage `json:"result"`
}

type errorResponse struct {
	Error struct {
		Description string `json:"description"`
	} `json:"error"`
	Message string `json:"message"`
}

// Fetch runs query with params and decodes the result into result.
// found is false when the API returns a null result; result is left untouched.
func (c *Client) Fetch(ctx context.Context, query string, params map[string]any, result any) (found bool, err error) {
	var resp queryResponse
	if err := c.do(ctx, "query", queryRequest{Query: query, Params: params}, &resp); err != nil {
		return false, fmt.Errorf("fetch: %w", err)
	}
	raw := bytes.TrimSpace(resp.Result)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return false, nil
	}
	if result != nil {
		if err := json.Unmarshal(raw, result); err != nil {
			return false, fmt.Errorf("fetch: unmarshal result: %w", err)
		}
	}
	return true, nil
}

// Mutation is a single document write.
type Mutation struct {
	Create map[string]any `json:"create,omitempty"`
}

type mutateRequest struct {
	Mutations []Mutation `json:"mutations"`
}

// Mutate applies mutations in one transaction.
func (c *Client) Mutate(ctx context.Context, mutations ...Mutation) error {
	if len(mutations) == 0 {
		return nil
	}
	if err := c.do(ctx, "mutate", mutateRequest{Mutations: mutations}, nil); err != nil {
		return fmt.Errorf("mutate: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, endpoint string, body any, out any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + "/v" + c.cfg.APIVersion + "/data/" + endpoint + "/" + c.cfg.Dataset
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var er errorResponse
		if json.Unmarshal(data, &er) == nil {
			apiErr.Description = er.Error.Description
			if apiErr.Description == "" {
				apiErr.Description = er.Message
			}
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
