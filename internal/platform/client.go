package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/rflorenc/asana-automation-bridge/internal/auth"
)

// ClientConfig carries the optional collaborators of a Client.
type ClientConfig struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string
	// Transport defaults to an HTTPTransport with DefaultTimeout.
	Transport Transport
	Logger    hclog.Logger
}

// Client performs authenticated calls against the Asana API.
type Client struct {
	builder   *Builder
	transport Transport
	logger    hclog.Logger
}

// NewClient creates a Client bound to one set of credentials.
func NewClient(creds auth.Credentials, cfg ClientConfig) *Client {
	if cfg.Transport == nil {
		cfg.Transport = NewHTTPTransport(DefaultTimeout)
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}
	return &Client{
		builder:   NewBuilder(cfg.BaseURL, creds),
		transport: cfg.Transport,
		logger:    cfg.Logger.Named("asana"),
	}
}

// dataEnvelope is the standard Asana response wrapper.
type dataEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// call executes a request and returns the "data" member of the response,
// or nil when the response has none.
func (c *Client) call(ctx context.Context, path string, opts RequestOptions) (json.RawMessage, error) {
	req := c.builder.Build(path, opts)
	c.logger.Debug("request", "method", req.Method, "path", path)

	body, err := c.transport.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	var env dataEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("parsing %s response: %w", path, err)
	}
	if len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return nil, nil
	}
	return env.Data, nil
}

// getOne fetches a single entity. A response without data yields a nil entity.
func getOne[T any](ctx context.Context, c *Client, path string, opts RequestOptions) (*T, error) {
	data, err := c.call(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &out, nil
}

// getList fetches a collection. A response without data yields an empty slice.
func getList[T any](ctx context.Context, c *Client, path string, opts RequestOptions) ([]T, error) {
	data, err := c.call(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	out := []T{}
	if data == nil {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}
