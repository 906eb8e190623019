package testutil

import (
	"context"
	"net/http"
	"time"

	id "healthexchange/pkg/domain"
	"healthexchange/pkg/requestcontext"
)

// WithPrincipal puts an authenticated principal on the request context,
// simulating what the auth middleware does for a valid bearer token.
func WithPrincipal(req *http.Request, principal id.Principal) *http.Request {
	return req.WithContext(requestcontext.WithPrincipal(req.Context(), principal))
}

// AuthedContext builds a context carrying a principal and a fixed time, the
// state a service sees mid-request.
func AuthedContext(principal id.Principal, now time.Time) context.Context {
	ctx := requestcontext.WithPrincipal(context.Background(), principal)
	return requestcontext.WithTime(ctx, now)
}
