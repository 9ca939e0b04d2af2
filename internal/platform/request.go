package platform

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/rflorenc/asana-automation-bridge/internal/auth"
)

// DefaultBaseURL is the Asana REST API v1 surface.
const DefaultBaseURL = "https://app.asana.com/api/1.0"

// Request describes a single call to the remote API.
type Request struct {
	Method string
	URL    string
	Path   string
	Header http.Header
	Query  url.Values
	Body   any
}

// RequestOptions overrides or extends the defaults applied by Builder.
type RequestOptions struct {
	Method string
	Header http.Header
	Query  url.Values
	Body   any
}

// Builder composes requests against a base URL with a fixed set of credentials.
type Builder struct {
	baseURL string
	creds   auth.Credentials
}

// NewBuilder returns a Builder. An empty baseURL selects DefaultBaseURL.
func NewBuilder(baseURL string, creds auth.Credentials) *Builder {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Builder{baseURL: strings.TrimRight(baseURL, "/"), creds: creds}
}

// BaseURL returns the URL every request path is joined to.
func (b *Builder) BaseURL() string { return b.baseURL }

// Build returns the request for path. The path is not validated; a bad
// path shows up as a 404 from the remote side.
func (b *Builder) Build(path string, opts RequestOptions) *Request {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	b.creds.Apply(h)
	for k, vs := range opts.Header {
		h.Del(k)
		for _, v := range vs {
			h.Add(k, v)
		}
	}

	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	req := &Request{
		Method: method,
		URL:    b.baseURL + "/" + path,
		Path:   path,
		Header: h,
		Body:   opts.Body,
	}
	if len(opts.Query) > 0 {
		req.Query = url.Values{}
		for k, vs := range opts.Query {
			for _, v := range vs {
				req.Query.Add(k, v)
			}
		}
	}
	return req
}
