package testutil

import (
	"net/http"
	"time"

	"wrls/pkg/requestcontext"
)

// WithStaff marks the request as made by an authenticated staff user.
// This simulates what the auth middleware would do.
func WithStaff(req *http.Request, email string) *http.Request {
	return req.WithContext(requestcontext.WithUserEmail(req.Context(), email))
}

// WithRequestTime pins the request-scoped clock.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
