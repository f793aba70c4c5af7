// Package requestid attaches a correlation ID to every HTTP request so
// log records for one request can be tied together. A client-supplied
// X-Request-ID is reused when it looks sane; anything else gets a fresh
// UUID. The chosen ID is stored in the request context and echoed back
// in the response header.
package requestid

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

// Header is the request and response header carrying the ID.
const Header = "X-Request-ID"

const maxIDLength = 128

var validIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Middleware ensures the request carries a valid correlation ID.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if !valid(id) {
			id = uuid.NewString()
		}
		w.Header().Set(Header, id)
		next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), id)))
	})
}

func valid(id string) bool {
	return id != "" && len(id) <= maxIDLength && validIDRegex.MatchString(id)
}
