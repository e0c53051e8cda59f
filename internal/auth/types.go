package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// represents JWT claims carried by access tokens
type Claims struct {
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// reports whether the claims carry the admin role
func (c *Claims) IsAdmin() bool {
	for _, role := range c.Roles {
		if role == "admin" {
			return true
		}
	}

	return false
}
