package models

import (
	"sort"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

// Connection is one authorized Asana account the bridge talks to.
type Connection struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	AccessToken   string     `json:"access_token,omitempty"`
	RefreshToken  string     `json:"refresh_token,omitempty"`
	WebhookSecret string     `json:"webhook_secret,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	LastChecked   *time.Time `json:"last_checked,omitempty"`
	AuthStatus    string     `json:"auth_status"` // "unknown", "ok", "error"
	AuthError     string     `json:"auth_error,omitempty"`
}

// Validate checks the fields a connection needs before it can make requests.
func (c *Connection) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.AccessToken, validation.Required),
	)
}

// Redacted returns a copy safe to hand back over the API.
func (c *Connection) Redacted() Connection {
	out := *c
	out.AccessToken = mask(c.AccessToken)
	out.RefreshToken = mask(c.RefreshToken)
	out.WebhookSecret = mask(c.WebhookSecret)
	return out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "••••••••"
}

// ConnectionStore is an in-memory thread-safe store for connections.
type ConnectionStore struct {
	mu    sync.RWMutex
	conns map[string]*Connection
}

// NewConnectionStore creates an empty connection store.
func NewConnectionStore() *ConnectionStore {
	return &ConnectionStore{conns: make(map[string]*Connection)}
}

// Create adds a new connection, assigning it a UUID.
func (s *ConnectionStore) Create(c *Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = uuid.New().String()
	c.CreatedAt = time.Now()
	c.AuthStatus = "unknown"
	s.conns[c.ID] = c
}

// Get returns a copy of the connection, or nil if not found.
func (s *ConnectionStore) Get(id string) *Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conns[id]
	if !ok {
		return nil
	}
	cp := *c
	return &cp
}

// List returns all connections, oldest first.
func (s *ConnectionStore) List() []*Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*Connection, 0, len(s.conns))
	for _, c := range s.conns {
		cp := *c
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// Update replaces the credentials and name of an existing connection.
// Empty credential fields keep their stored values.
func (s *ConnectionStore) Update(c *Connection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.conns[c.ID]
	if !ok {
		return false
	}
	if c.Name != "" {
		cur.Name = c.Name
	}
	if c.AccessToken != "" {
		cur.AccessToken = c.AccessToken
	}
	if c.RefreshToken != "" {
		cur.RefreshToken = c.RefreshToken
	}
	if c.WebhookSecret != "" {
		cur.WebhookSecret = c.WebhookSecret
	}
	*c = *cur
	return true
}

// Delete removes a connection by ID.
func (s *ConnectionStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conns[id]; !ok {
		return false
	}
	delete(s.conns, id)
	return true
}

// SetAuth records the result of a credential check.
func (s *ConnectionStore) SetAuth(id, status, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conns[id]
	if !ok {
		return
	}
	now := time.Now()
	c.AuthStatus = status
	c.AuthError = errMsg
	c.LastChecked = &now
}
