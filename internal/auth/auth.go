// Package auth holds the per-connection credentials used to sign outbound
// requests and to verify inbound webhook deliveries.
package auth

import (
	"net/http"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/oauth2"

	"github.com/rflorenc/asana-automation-bridge/internal/models"
)

// Credentials is the immutable auth context for a single request.
type Credentials struct {
	accessToken   string
	webhookSecret string
}

// New builds Credentials from an access token and a webhook signing secret.
func New(accessToken, webhookSecret string) Credentials {
	return Credentials{accessToken: accessToken, webhookSecret: webhookSecret}
}

// FromConnection resolves credentials for a stored connection. A dedicated
// webhook secret wins; without one the OAuth refresh token is used as the
// HMAC key.
func FromConnection(conn *models.Connection, logger hclog.Logger) Credentials {
	secret := conn.WebhookSecret
	if secret == "" && conn.RefreshToken != "" {
		if logger != nil {
			logger.Warn("no webhook_secret configured, using refresh token as HMAC key",
				"connection", conn.Name)
		}
		secret = conn.RefreshToken
	}
	return New(conn.AccessToken, secret)
}

// BearerToken returns the OAuth access token.
func (c Credentials) BearerToken() string { return c.accessToken }

// WebhookSecret returns the key used to verify webhook deliveries.
func (c Credentials) WebhookSecret() string { return c.webhookSecret }

// Token wraps the access token as a bearer oauth2.Token.
func (c Credentials) Token() *oauth2.Token {
	return &oauth2.Token{AccessToken: c.accessToken, TokenType: "Bearer"}
}

// Apply sets the Authorization header on h.
func (c Credentials) Apply(h http.Header) {
	req := &http.Request{Header: h}
	c.Token().SetAuthHeader(req)
}
