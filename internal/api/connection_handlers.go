package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rflorenc/asana-automation-bridge/internal/models"
)

func (s *Server) CreateConnection(w http.ResponseWriter, r *http.Request) {
	var conn models.Connection
	if err := json.NewDecoder(r.Body).Decode(&conn); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := conn.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.Connections.Create(&conn)
	writeJSON(w, http.StatusCreated, conn.Redacted())
}

func (s *Server) ListConnections(w http.ResponseWriter, r *http.Request) {
	conns := s.Connections.List()
	out := make([]models.Connection, 0, len(conns))
	for _, c := range conns {
		out = append(out, c.Redacted())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) UpdateConnection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var conn models.Connection
	if err := json.NewDecoder(r.Body).Decode(&conn); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	conn.ID = id
	if !s.Connections.Update(&conn) {
		writeError(w, http.StatusNotFound, "connection not found")
		return
	}
	writeJSON(w, http.StatusOK, conn.Redacted())
}

// DeleteConnection removes the connection together with its webhooks and
// event feed. Remote webhook removal is best-effort.
func (s *Server) DeleteConnection(w http.ResponseWriter, r *http.Request) {
	conn := s.connection(w, r)
	if conn == nil {
		return
	}

	regs := s.Hooks.List(conn.ID)
	if len(regs) > 0 {
		ids := make([]string, 0, len(regs))
		for _, reg := range regs {
			ids = append(ids, reg.Hook.GID)
		}
		if err := s.ClientFor(conn).DeleteHooks(r.Context(), ids...); err != nil {
			s.logger().Warn("webhooks left behind for deleted connection", "connection", conn.ID, "error", err)
		}
		s.Hooks.Forget(conn.ID)
	}
	s.Feeds.Drop(conn.ID)
	s.Connections.Delete(conn.ID)
	w.WriteHeader(http.StatusNoContent)
}

// TestConnection checks the credentials with GET users/me and records the
// outcome on the connection.
func (s *Server) TestConnection(w http.ResponseWriter, r *http.Request) {
	conn := s.connection(w, r)
	if conn == nil {
		return
	}
	me, err := s.ClientFor(conn).Me(r.Context())
	if err != nil {
		s.Connections.SetAuth(conn.ID, "error", err.Error())
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"ok":    false,
			"error": err.Error(),
		})
		return
	}
	s.Connections.SetAuth(conn.ID, "ok", "")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":   true,
		"user": me,
	})
}
