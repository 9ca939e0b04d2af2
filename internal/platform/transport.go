package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNotFound matches any HTTPError with status 404.
var ErrNotFound = errors.New("resource not found")

// Transport executes a Request and returns the parsed JSON response body.
// Non-2xx responses must be reported as *HTTPError.
type Transport interface {
	Do(ctx context.Context, req *Request) (json.RawMessage, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req *Request) (json.RawMessage, error)

// Do calls f(ctx, req).
func (f TransportFunc) Do(ctx context.Context, req *Request) (json.RawMessage, error) {
	return f(ctx, req)
}

// HTTPError is a non-2xx response from the remote API.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	msg := strings.Join(e.Messages(), "; ")
	if msg == "" {
		msg = truncate(string(e.Body), 200)
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, msg)
}

// Is makes errors.Is(err, ErrNotFound) work for 404 responses.
func (e *HTTPError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Messages returns the messages from an Asana error envelope
// ({"errors":[{"message":"..."}]}), if the body has one.
func (e *HTTPError) Messages() []string {
	var envelope struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(e.Body, &envelope); err != nil {
		return nil
	}
	msgs := make([]string, 0, len(envelope.Errors))
	for _, m := range envelope.Errors {
		if m.Message != "" {
			msgs = append(msgs, m.Message)
		}
	}
	return msgs
}

// DefaultTimeout is the request timeout used when none is configured.
const DefaultTimeout = 30 * time.Second

// HTTPTransport is the net/http implementation of Transport.
type HTTPTransport struct {
	httpClient *http.Client
}

// NewHTTPTransport returns a transport whose requests time out after timeout.
// A zero timeout means no client-side limit.
func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{httpClient: &http.Client{Timeout: timeout}}
}

// Do sends r and returns the response body, or *HTTPError for non-2xx statuses.
func (t *HTTPTransport) Do(ctx context.Context, r *Request) (json.RawMessage, error) {
	var bodyReader io.Reader
	if r.Body != nil {
		data, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("marshaling body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	u := r.URL
	if len(r.Query) > 0 {
		u += "?" + r.Query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, u, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", r.Method, r.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{Method: r.Method, Path: r.Path, StatusCode: resp.StatusCode, Body: body}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return json.RawMessage("{}"), nil
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%s %s: response is not JSON: %s", r.Method, r.Path, truncate(string(body), 200))
	}
	return json.RawMessage(body), nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
