package testutil

import (
	"net/http"
	"time"

	id "catchcert/pkg/domain"
	"catchcert/pkg/requestcontext"
)

// WithIdentity adds the caller's identity to the request context, simulating
// what the identity middleware does with the gateway's forwarded headers.
// Empty values are skipped.
func WithIdentity(req *http.Request, userID, contactID string) *http.Request {
	ctx := req.Context()
	if userID != "" {
		ctx = requestcontext.WithUserID(ctx, id.UserID(userID))
	}
	if contactID != "" {
		ctx = requestcontext.WithContactID(ctx, id.ContactID(contactID))
	}
	return req.WithContext(ctx)
}

// WithUserEmail adds the caller's email to the request context.
func WithUserEmail(req *http.Request, email string) *http.Request {
	return req.WithContext(requestcontext.WithUserEmail(req.Context(), email))
}

// WithRequestTime pins the request-scoped clock, simulating the request time
// middleware with a fixed instant.
func WithRequestTime(req *http.Request, at time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), at))
}
