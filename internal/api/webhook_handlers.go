package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rflorenc/asana-automation-bridge/internal/models"
	"github.com/rflorenc/asana-automation-bridge/internal/webhook"
)

// ListWebhooks returns the webhooks registered through this bridge for a connection.
func (s *Server) ListWebhooks(w http.ResponseWriter, r *http.Request) {
	conn := s.connection(w, r)
	if conn == nil {
		return
	}
	writeJSON(w, http.StatusOK, s.Hooks.List(conn.ID))
}

// CreateWebhook starts an async job that registers a webhook and waits
// for Asana's handshake callback.
func (s *Server) CreateWebhook(w http.ResponseWriter, r *http.Request) {
	conn := s.connection(w, r)
	if conn == nil {
		return
	}
	var req webhook.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job := s.Jobs.Create("webhook-create", conn.ID)
	client := s.ClientFor(conn)

	go func() {
		job.Logf("Registering webhook on resource %s for %s", req.Resource, conn.Name)
		reg, err := s.Hooks.Create(context.Background(), client, conn.ID, req)
		if err != nil {
			job.AppendLog("ERROR: " + err.Error())
			job.Fail(err.Error())
			return
		}
		job.Logf("Webhook %s active, delivering to %s", reg.Hook.GID, reg.Hook.Target)
		job.Complete(reg)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID})
}

// DeleteWebhook starts an async job that removes a webhook from Asana and
// forgets it locally.
func (s *Server) DeleteWebhook(w http.ResponseWriter, r *http.Request) {
	conn := s.connection(w, r)
	if conn == nil {
		return
	}
	hookID := chi.URLParam(r, "hookId")

	job := s.Jobs.Create("webhook-delete", conn.ID)
	client := s.ClientFor(conn)

	go func() {
		job.Logf("Deleting webhook %s for %s", hookID, conn.Name)
		known := s.Hooks.Delete(context.Background(), client, conn.ID, hookID)
		if !known {
			job.Logf("Webhook %s was not registered through this bridge", hookID)
		}
		job.Complete(map[string]interface{}{"hook": hookID, "known": known})
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID})
}

// ListEvents returns verified deliveries from ?since= on, plus the offset
// to poll from next.
func (s *Server) ListEvents(w http.ResponseWriter, r *http.Request) {
	conn := s.connection(w, r)
	if conn == nil {
		return
	}
	since, err := sinceParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "since must be a non-negative integer")
		return
	}
	deliveries, next := s.Feeds.For(conn.ID).Since(since)
	if deliveries == nil {
		deliveries = []models.Delivery{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"deliveries": deliveries,
		"next":       next,
	})
}

func sinceParam(r *http.Request) (int, error) {
	v := r.URL.Query().Get("since")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, strconv.ErrSyntax
	}
	return n, nil
}
