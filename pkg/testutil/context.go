package testutil

import (
	"net/http"
	"time"

	"accounting/pkg/requestcontext"
)

// WithRequestID stamps a request ID on the request context, as the request ID
// middleware would.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}

// WithTime pins the request time so handlers produce deterministic output.
func WithTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}
