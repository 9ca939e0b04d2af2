// Package webhook registers Asana webhooks and authenticates their deliveries.
//
// # Registration
//
// Creating a webhook is a two-step exchange. The Manager generates a
// delivery token, marks it as pending and posts the creation request with
// target {public_url}/hooks/{connID}/{token}. While that request is in
// flight Asana calls the target with an X-Hook-Secret header; the Receiver
// echoes it back and completes the pending handshake. Only when both the
// creation response and the callback have arrived is the webhook reported
// as created. A missing callback deletes the remote webhook and returns a
// *HandshakeError.
//
// # Verification
//
// Every later delivery to a known token is checked by Verifier before any
// side effect:
//
//	X-Hook-Secret == base64(HMAC-SHA1(webhook secret, canonical JSON body))
//
// The comparison is constant-time. A mismatch is answered with 401 and the
// body is dropped.
//
// # Request Flow
//
//  1. Body read with a size limit (413 when exceeded)
//  2. Pending handshake for the token on this connection: echo X-Hook-Secret, 200
//  3. Unknown token or connection: 404
//  4. Signature mismatch: 401
//  5. Verified: body handed to the sink, 200
package webhook
