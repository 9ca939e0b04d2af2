package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-hclog"

	"github.com/rflorenc/asana-automation-bridge/internal/auth"
	"github.com/rflorenc/asana-automation-bridge/internal/models"
	"github.com/rflorenc/asana-automation-bridge/internal/options"
	"github.com/rflorenc/asana-automation-bridge/internal/platform"
	"github.com/rflorenc/asana-automation-bridge/internal/webhook"
)

// Server holds shared state for all API handlers.
type Server struct {
	Connections *models.ConnectionStore
	Jobs        *models.JobStore
	Feeds       *models.FeedStore
	Hooks       *webhook.Manager
	Options     *options.Registry

	// APIBaseURL and RequestTimeout configure the Asana clients built per
	// request. Transport, when set, replaces the HTTP transport.
	APIBaseURL     string
	RequestTimeout time.Duration
	Transport      platform.Transport

	MaxBodySize int64
	Logger      hclog.Logger
}

func (s *Server) logger() hclog.Logger {
	if s.Logger == nil {
		return hclog.NewNullLogger()
	}
	return s.Logger
}

// ClientFor builds an Asana client for a connection.
func (s *Server) ClientFor(conn *models.Connection) *platform.Client {
	transport := s.Transport
	if transport == nil {
		transport = platform.NewHTTPTransport(s.RequestTimeout)
	}
	return platform.NewClient(auth.FromConnection(conn, s.logger()), platform.ClientConfig{
		BaseURL:   s.APIBaseURL,
		Transport: transport,
		Logger:    s.logger().With("connection", conn.ID),
	})
}

// credentials feeds the webhook receiver.
func (s *Server) credentials(connID string) (auth.Credentials, bool) {
	conn := s.Connections.Get(connID)
	if conn == nil {
		return auth.Credentials{}, false
	}
	return auth.FromConnection(conn, s.logger()), true
}

// deliver records a verified webhook delivery in the connection's feed.
func (s *Server) deliver(connID string, body []byte) {
	d := s.Feeds.For(connID).Append(connID, body)
	s.logger().Debug("delivery received", "connection", connID, "delivery", d.ID)
}

// NewRouter builds the chi router with all API routes and the webhook receiver.
func NewRouter(s *Server) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Connections
		r.Post("/connections", s.CreateConnection)
		r.Get("/connections", s.ListConnections)
		r.Put("/connections/{id}", s.UpdateConnection)
		r.Delete("/connections/{id}", s.DeleteConnection)
		r.Post("/connections/{id}/test", s.TestConnection)

		// Pick-list options
		r.Get("/connections/{id}/options", s.ListOptionKinds)
		r.Get("/connections/{id}/options/{kind}", s.ResolveOptions)

		// Webhooks (create and delete are async)
		r.Get("/connections/{id}/webhooks", s.ListWebhooks)
		r.Post("/connections/{id}/webhooks", s.CreateWebhook)
		r.Delete("/connections/{id}/webhooks/{hookId}", s.DeleteWebhook)
		r.Get("/connections/{id}/events", s.ListEvents)

		// Jobs
		r.Get("/jobs", s.ListJobs)
		r.Get("/jobs/{id}", s.GetJob)
	})

	// WebSocket (outside /api to avoid JSON content-type assumptions)
	r.Get("/ws/jobs/{id}/logs", s.StreamJobLogs)
	r.Get("/ws/connections/{id}/events", s.StreamEvents)

	// Inbound Asana deliveries
	receiver := webhook.NewReceiver(s.Hooks, s.credentials, s.deliver, s.MaxBodySize, s.logger())
	r.Post("/hooks/{connID}/{token}", receiver.ServeHTTP)

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeUpstreamError maps an Asana call failure onto a response. Client
// errors reported by Asana keep their status; everything else is a 502.
func writeUpstreamError(w http.ResponseWriter, err error) {
	var httpErr *platform.HTTPError
	if !errors.As(err, &httpErr) {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	msg := err.Error()
	if msgs := httpErr.Messages(); len(msgs) > 0 {
		msg = strings.Join(msgs, "; ")
	}
	status := httpErr.StatusCode
	if status < 400 || status >= 500 {
		status = http.StatusBadGateway
	}
	writeError(w, status, msg)
}

// connection resolves the {id} URL parameter, writing a 404 when unknown.
func (s *Server) connection(w http.ResponseWriter, r *http.Request) *models.Connection {
	conn := s.Connections.Get(chi.URLParam(r, "id"))
	if conn == nil {
		writeError(w, http.StatusNotFound, "connection not found")
	}
	return conn
}
