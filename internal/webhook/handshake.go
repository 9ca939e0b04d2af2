package webhook

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrHandshakeTimeout is returned when Asana never called back with a secret.
var ErrHandshakeTimeout = errors.New("timed out waiting for handshake callback")

// Stage identifies which step of webhook creation failed.
type Stage string

const (
	StageCreate   Stage = "create"
	StageCallback Stage = "callback"
)

// HandshakeError reports a failed webhook registration.
type HandshakeError struct {
	Target string
	Stage  Stage
	Err    error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("webhook handshake for %s failed at %s: %v", e.Target, e.Stage, e.Err)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// Pending is one handshake awaiting its callback.
type Pending struct {
	connID string
	done   chan struct{}
	once   sync.Once
	secret string
}

// Wait blocks until the callback arrives, ctx ends or timeout elapses.
func (p *Pending) Wait(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-p.done:
		return p.secret, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
		return "", ErrHandshakeTimeout
	}
}

// Handshakes tracks pending secret exchanges by target token.
type Handshakes struct {
	mu      sync.Mutex
	pending map[string]*Pending
}

// NewHandshakes returns an empty tracker.
func NewHandshakes() *Handshakes {
	return &Handshakes{pending: make(map[string]*Pending)}
}

// Expect registers token as awaiting a callback for connection connID. It
// must be called before the creation request is sent.
func (h *Handshakes) Expect(connID, token string) *Pending {
	h.mu.Lock()
	defer h.mu.Unlock()
	p := &Pending{connID: connID, done: make(chan struct{})}
	h.pending[token] = p
	return p
}

// Complete delivers the secret for token. It returns false when the secret
// is empty or no handshake is pending for token under connID; a callback
// on another connection's path leaves the handshake pending.
func (h *Handshakes) Complete(connID, token, secret string) bool {
	if secret == "" {
		return false
	}
	h.mu.Lock()
	p, ok := h.pending[token]
	ok = ok && p.connID == connID
	if ok {
		delete(h.pending, token)
	}
	h.mu.Unlock()
	if !ok {
		return false
	}
	p.once.Do(func() {
		p.secret = secret
		close(p.done)
	})
	return true
}

// Cancel forgets a pending handshake.
func (h *Handshakes) Cancel(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.pending, token)
}

// IsPending reports whether token awaits a callback.
func (h *Handshakes) IsPending(token string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.pending[token]
	return ok
}
