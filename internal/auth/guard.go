package auth

import (
	"errors"

	"clipstream/internal/apperr"
)

var errMissingOwnerRef = errors.New("resource has no owner reference")

// RequireOwner decides whether the authenticated identity may mutate a
// resource with the given stored owner reference. Callers must confirm the
// resource exists first: existence failures are NotFound, never Forbidden.
func RequireOwner(op string, identity Identity, ownerRef string) error {
	if identity.ID == "" {
		return apperr.Unauthorized(op, "authentication required")
	}
	if ownerRef == "" {
		return apperr.Internal(op, errMissingOwnerRef)
	}
	if identity.ID != ownerRef {
		return apperr.Forbidden(op, "not the resource owner")
	}
	return nil
}
