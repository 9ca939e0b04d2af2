package webhook

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"

	"github.com/rflorenc/asana-automation-bridge/internal/auth"
)

// SecretHeader carries the handshake secret on subscription and the
// base64 HMAC-SHA1 digest on deliveries.
const SecretHeader = "X-Hook-Secret"

// Verifier checks that a delivery was signed with the connection's webhook secret.
type Verifier struct {
	secret []byte
}

// NewVerifier returns a Verifier keyed by creds.WebhookSecret().
func NewVerifier(creds auth.Credentials) *Verifier {
	return &Verifier{secret: []byte(creds.WebhookSecret())}
}

// Sign returns base64(HMAC-SHA1(secret, canonical(body))).
func (v *Verifier) Sign(body []byte) string {
	mac := hmac.New(sha1.New, v.secret)
	mac.Write(canonicalize(body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify reports whether the X-Hook-Secret header matches the digest of
// body. A false result means the request must be rejected, not retried.
func (v *Verifier) Verify(body []byte, header http.Header) bool {
	if len(v.secret) == 0 {
		return false
	}
	got := header.Get(SecretHeader)
	if got == "" {
		return false
	}
	return hmac.Equal([]byte(v.Sign(body)), []byte(got))
}
