package api

import (
	"context"
	"fmt"
	"net/http"

	"clipstream/internal/auth"
)

type contextKey string

const identityContextKey contextKey = "authenticatedIdentity"

// ContextWithIdentity stores the authenticated identity in the context.
func ContextWithIdentity(ctx context.Context, identity auth.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext retrieves the authenticated identity if present.
func IdentityFromContext(ctx context.Context) (auth.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(auth.Identity)
	return identity, ok
}

// AuthenticateRequest verifies the access token on the request. Verification
// is stateless; no store lookup happens per request.
func (h *Handler) AuthenticateRequest(r *http.Request) (auth.Identity, error) {
	token := ExtractToken(r)
	if token == "" {
		return auth.Identity{}, fmt.Errorf("missing access token")
	}
	return h.Sessions.Authenticate(token)
}

func (h *Handler) requireIdentity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, fmt.Errorf("authentication required"))
		return auth.Identity{}, false
	}
	return identity, true
}
