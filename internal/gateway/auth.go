package gateway

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AuthHandler checks the shared-secret bearer token on admin requests.
// An empty secret disables auth, for localhost-only deployments.
type AuthHandler struct {
	sharedSecret string
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(sharedSecret string) *AuthHandler {
	return &AuthHandler{
		sharedSecret: sharedSecret,
	}
}

// Authorize reports whether the request carries the shared secret.
func (a *AuthHandler) Authorize(r *http.Request) bool {
	if a.sharedSecret == "" {
		return true
	}

	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		// WebSocket clients cannot always set headers.
		token = r.URL.Query().Get("token")
	}

	// Constant-time comparison to prevent timing attacks.
	return subtle.ConstantTimeCompare([]byte(a.sharedSecret), []byte(token)) == 1
}
