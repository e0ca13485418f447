// Package identity extracts the caller's identity from the headers the edge
// gateway forwards after authenticating the request. This service never sees
// credentials; it trusts the gateway's resolved principal.
package identity

import (
	"net/http"

	id "catchcert/pkg/domain"
	"catchcert/pkg/requestcontext"
)

// Forwarded identity headers set by the upstream gateway.
const (
	HeaderUserID    = "X-User-Id"
	HeaderContactID = "X-Contact-Id"
	HeaderUserEmail = "X-User-Email"
)

// Middleware copies the forwarded identity into the request context so
// services and handlers read it from one place.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if v := r.Header.Get(HeaderUserID); v != "" {
			ctx = requestcontext.WithUserID(ctx, id.UserID(v))
		}
		if v := r.Header.Get(HeaderContactID); v != "" {
			ctx = requestcontext.WithContactID(ctx, id.ContactID(v))
		}
		if v := r.Header.Get(HeaderUserEmail); v != "" {
			ctx = requestcontext.WithUserEmail(ctx, v)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
