package webhook

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hashicorp/go-hclog"

	"github.com/rflorenc/asana-automation-bridge/internal/auth"
)

// DefaultMaxBodySize caps inbound delivery bodies.
const DefaultMaxBodySize = 1 << 20 // 1 MB

// CredentialSource returns the credentials of a connection.
type CredentialSource func(connID string) (auth.Credentials, bool)

// Sink receives verified delivery bodies.
type Sink func(connID string, body []byte)

// Receiver handles POST /hooks/{connID}/{token}: it answers pending
// handshakes and verifies deliveries before handing them to the sink.
type Receiver struct {
	manager     *Manager
	credentials CredentialSource
	sink        Sink
	maxBodySize int64
	logger      hclog.Logger
}

// NewReceiver wires a Receiver. maxBodySize <= 0 selects DefaultMaxBodySize.
func NewReceiver(m *Manager, creds CredentialSource, sink Sink, maxBodySize int64, logger hclog.Logger) *Receiver {
	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxBodySize
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Receiver{
		manager:     m,
		credentials: creds,
		sink:        sink,
		maxBodySize: maxBodySize,
		logger:      logger.Named("receiver"),
	}
}

func (rc *Receiver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	connID := chi.URLParam(r, "connID")
	token := chi.URLParam(r, "token")

	body, err := io.ReadAll(io.LimitReader(r.Body, rc.maxBodySize+1))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read request body")
		return
	}
	if int64(len(body)) > rc.maxBodySize {
		respondError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	// Handshake: Asana sends the secret while our creation request is in flight.
	secret := r.Header.Get(SecretHeader)
	if rc.manager.Handshakes().Complete(connID, token, secret) {
		rc.logger.Info("handshake completed", "connection", connID)
		w.Header().Set(SecretHeader, secret)
		w.WriteHeader(http.StatusOK)
		return
	}

	reg, ok := rc.manager.Lookup(token)
	if !ok || reg.ConnectionID != connID {
		respondError(w, http.StatusNotFound, "unknown webhook")
		return
	}
	creds, ok := rc.credentials(connID)
	if !ok {
		respondError(w, http.StatusNotFound, "unknown connection")
		return
	}

	if !NewVerifier(creds).Verify(body, r.Header) {
		rc.logger.Warn("rejected delivery with bad signature", "connection", connID, "hook", reg.Hook.GID)
		respondError(w, http.StatusUnauthorized, "webhook verification failed")
		return
	}

	rc.sink(connID, body)
	w.WriteHeader(http.StatusOK)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
