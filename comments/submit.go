package comments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Poster sends a validated form to the intake endpoint.
type Poster interface {
	Post(ctx context.Context, f Form) error
}

// StatusError is returned when the intake endpoint answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("comments: intake returned status %d", e.StatusCode)
}

// Submitter posts comment payloads as JSON to a fixed intake URL.
// It makes exactly one request per call and never retries.
type Submitter struct {
	endpoint string
	client   *http.Client
	header   http.Header
}

// SubmitterOption configures a Submitter.
type SubmitterOption func(*Submitter)

// WithHeader adds a header to every intake request.
func WithHeader(key, value string) SubmitterOption {
	return func(s *Submitter) {
		s.header.Set(key, value)
	}
}

// NewSubmitter creates a Submitter. A nil client uses a client with no
// timeout; the caller's context bounds the request.
func NewSubmitter(endpoint string, client *http.Client, opts ...SubmitterOption) *Submitter {
	if client == nil {
		client = &http.Client{}
	}
	s := &Submitter{endpoint: endpoint, client: client, header: make(http.Header)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Post sends f to the intake endpoint.
func (s *Submitter) Post(ctx context.Context, f Form) error {
	body, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal comment: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, v := range s.header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post comment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
