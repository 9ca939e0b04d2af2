package api

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/rflorenc/asana-automation-bridge/internal/options"
)

// ListOptionKinds returns the pick-list definitions and the params each
// one depends on.
func (s *Server) ListOptionKinds(w http.ResponseWriter, r *http.Request) {
	if s.connection(w, r) == nil {
		return
	}
	writeJSON(w, http.StatusOK, s.Options.Definitions())
}

// ResolveOptions fetches the options of one kind. Parent selections come
// from the query string, e.g. ?project=222 or ?organization=1&organization=2.
func (s *Server) ResolveOptions(w http.ResponseWriter, r *http.Request) {
	conn := s.connection(w, r)
	if conn == nil {
		return
	}
	kind := options.Kind(chi.URLParam(r, "kind"))

	opts, err := s.Options.Resolve(r.Context(), s.ClientFor(conn), kind, queryParams(r.URL.Query()))
	if err != nil {
		switch {
		case errors.Is(err, options.ErrUnknownKind):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, options.ErrInvalidParams):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeUpstreamError(w, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

// queryParams flattens single-valued params to strings and keeps repeated
// ones as slices.
func queryParams(q url.Values) map[string]any {
	out := make(map[string]any, len(q))
	for k, vs := range q {
		if len(vs) == 1 {
			out[k] = vs[0]
		} else {
			out[k] = vs
		}
	}
	return out
}
