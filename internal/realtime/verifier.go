package realtime

import "context"

// TokenVerifier exchanges an opaque access token for a session
// identity. The hub treats it as a black box; failures abort the
// upgrade before a session starts. Errors should be *Error values so
// the upgrade handler can map kinds to HTTP statuses.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (SessionAuth, error)
}
