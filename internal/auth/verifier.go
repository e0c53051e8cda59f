package auth

import (
	"context"

	"codeberg.org/wavelink/server/internal/realtime"
)

// Verifier adapts JWT validation to the realtime token-verifier
// contract. The hub treats it as opaque; any validation failure maps
// to an unauthorized realtime error and aborts the upgrade.
type Verifier struct{}

func NewVerifier() *Verifier {
	return &Verifier{}
}

func (v *Verifier) VerifyToken(_ context.Context, token string) (realtime.SessionAuth, error) {
	claims, err := ValidateJWT(token)
	if err != nil {
		return realtime.SessionAuth{}, realtime.NewUnauthorized("invalid or expired token")
	}

	return realtime.SessionAuth{
		UserID: claims.UserID,
		Roles:  claims.Roles,
	}, nil
}
