package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID uuid.UUID
	JTI    string
	Admin  bool
}

// AccessTokenClaims represents the typed JWT issued by the identity platform.
// Party roles are per contract, so the token carries only the user identity
// plus a platform staff flag for mediation and review endpoints.
type AccessTokenClaims struct {
	UserID uuid.UUID `json:"user_id"`
	Admin  bool      `json:"admin,omitempty"`
	jwt.RegisteredClaims
}
