// Package httpx holds the request plumbing shared by the API handlers.
package httpx

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// Identity headers are set by the upstream auth layer. The service trusts
// them; it performs no authentication of its own.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

// Identity is the authenticated caller of a request.
type Identity struct {
	UserID string
	Role   domain.Role
}

// IdentityFrom extracts the caller from the request headers. Both headers are
// required; the user id must be a UUID and the role must parse.
func IdentityFrom(r *http.Request) (Identity, error) {
	userID := r.Header.Get(HeaderUserID)
	if userID == "" {
		return Identity{}, domain.Validationf("missing %s header", HeaderUserID)
	}
	if _, err := uuid.Parse(userID); err != nil {
		return Identity{}, domain.Validationf("%s header must be a UUID", HeaderUserID)
	}

	role, err := domain.ParseRole(r.Header.Get(HeaderUserRole))
	if err != nil {
		return Identity{}, domain.Validationf("invalid %s header: %v", HeaderUserRole, err)
	}

	return Identity{UserID: userID, Role: role}, nil
}
