package webhook

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/rflorenc/asana-automation-bridge/internal/models"
	"github.com/rflorenc/asana-automation-bridge/internal/platform"
)

// DefaultHandshakeTimeout bounds the wait for Asana's secret callback.
const DefaultHandshakeTimeout = 10 * time.Second

// Registration is a webhook created through the Manager.
type Registration struct {
	Token        string         `json:"token"`
	ConnectionID string         `json:"connection_id"`
	Hook         models.Webhook `json:"hook"`
	CreatedAt    time.Time      `json:"created_at"`
}

// CreateRequest selects the resource to watch and optional event filters.
type CreateRequest struct {
	Resource string                `json:"resource"`
	Filters  []platform.HookFilter `json:"filters,omitempty"`
}

// Validate requires the resource gid.
func (r CreateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Resource, validation.Required),
	)
}

// BatchDeleter removes several webhooks, reporting failures.
type BatchDeleter interface {
	DeleteHooks(ctx context.Context, hookIDs ...string) error
}

// Manager runs the two-step registration protocol: send the creation
// request, then wait for the out-of-band secret callback before reporting
// the webhook as created.
type Manager struct {
	publicURL  string
	timeout    time.Duration
	handshakes *Handshakes
	logger     hclog.Logger

	mu    sync.RWMutex
	hooks map[string]Registration // token -> registration
}

// NewManager returns a Manager that builds targets under publicURL.
func NewManager(publicURL string, timeout time.Duration, logger hclog.Logger) *Manager {
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Manager{
		publicURL:  strings.TrimRight(publicURL, "/"),
		timeout:    timeout,
		handshakes: NewHandshakes(),
		logger:     logger.Named("webhooks"),
		hooks:      make(map[string]Registration),
	}
}

// Handshakes exposes the pending-handshake tracker to the receiver.
func (m *Manager) Handshakes() *Handshakes { return m.handshakes }

// Target returns the delivery URL for a connection and token.
func (m *Manager) Target(connID, token string) string {
	return fmt.Sprintf("%s/hooks/%s/%s", m.publicURL, connID, token)
}

// Create registers a webhook on req.Resource for connection connID. It only
// returns a Registration once Asana has completed the secret exchange;
// every failure is logged and returned as *HandshakeError.
func (m *Manager) Create(ctx context.Context, hooks platform.Hooks, connID string, req CreateRequest) (*Registration, error) {
	token := uuid.New().String()
	target := m.Target(connID, token)
	pending := m.handshakes.Expect(connID, token)
	defer m.handshakes.Cancel(token)

	hook, err := hooks.CreateHook(ctx, platform.HookRequest{
		Resource: req.Resource,
		Target:   target,
		Filters:  req.Filters,
	})
	if err != nil {
		m.logger.Error("webhook creation failed", "resource", req.Resource, "target", target, "error", err)
		return nil, &HandshakeError{Target: target, Stage: StageCreate, Err: err}
	}

	secret, err := pending.Wait(ctx, m.timeout)
	if err != nil {
		m.logger.Error("webhook handshake callback missing", "hook", hook.GID, "target", target, "error", err)
		hooks.DeleteHook(context.WithoutCancel(ctx), hook.GID)
		return nil, &HandshakeError{Target: target, Stage: StageCallback, Err: err}
	}

	hook.Secret = secret
	reg := Registration{Token: token, ConnectionID: connID, Hook: *hook, CreatedAt: time.Now()}
	m.mu.Lock()
	m.hooks[token] = reg
	m.mu.Unlock()

	m.logger.Info("webhook created", "hook", hook.GID, "resource", req.Resource, "connection", connID)
	return &reg, nil
}

// Delete removes the webhook with gid hookID from Asana (best-effort) and
// forgets it locally. It reports whether the hook was known.
func (m *Manager) Delete(ctx context.Context, hooks platform.Hooks, connID, hookID string) bool {
	hooks.DeleteHook(ctx, hookID)

	m.mu.Lock()
	defer m.mu.Unlock()
	for token, reg := range m.hooks {
		if reg.ConnectionID == connID && reg.Hook.GID == hookID {
			delete(m.hooks, token)
			return true
		}
	}
	return false
}

// Lookup returns the registration for a delivery token.
func (m *Manager) Lookup(token string) (Registration, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	reg, ok := m.hooks[token]
	return reg, ok
}

// List returns the registrations of a connection, oldest first.
func (m *Manager) List(connID string) []Registration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Registration{}
	for _, reg := range m.hooks {
		if reg.ConnectionID == connID {
			out = append(out, reg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Forget drops every registration of a connection without calling Asana.
func (m *Manager) Forget(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for token, reg := range m.hooks {
		if reg.ConnectionID == connID {
			delete(m.hooks, token)
		}
	}
}

// DeregisterAll deletes every known webhook, grouped by connection.
// clientFor returns nil for connections that no longer exist.
func (m *Manager) DeregisterAll(ctx context.Context, clientFor func(connID string) BatchDeleter) error {
	m.mu.Lock()
	byConn := make(map[string][]string)
	for _, reg := range m.hooks {
		byConn[reg.ConnectionID] = append(byConn[reg.ConnectionID], reg.Hook.GID)
	}
	m.hooks = make(map[string]Registration)
	m.mu.Unlock()

	var result *multierror.Error
	for connID, ids := range byConn {
		client := clientFor(connID)
		if client == nil {
			continue
		}
		if err := client.DeleteHooks(ctx, ids...); err != nil {
			result = multierror.Append(result, fmt.Errorf("connection %s: %w", connID, err))
		}
	}
	return result.ErrorOrNil()
}
