package httpx

import (
	"net/http"

	"github.com/google/uuid"
)

// PathUUID returns the named path parameter when it parses as a UUID. Every
// id column is uuid-typed; filtering malformed ids here keeps them from
// surfacing as database errors deeper down.
func PathUUID(r *http.Request, name string) (string, bool) {
	id := r.PathValue(name)
	if id == "" {
		return "", false
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}
