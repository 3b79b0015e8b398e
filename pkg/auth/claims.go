// Package auth mints and parses the HS256 access tokens the API hands out.
package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/streetfoodconnect/marketplace-backend/pkg/enums"
)

// AccessTokenPayload is the identity a token is minted for. An empty JTI gets
// a random one.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Role   enums.UserRole
	JTI    string
}

// AccessTokenClaims adds the marketplace identity to the registered claims.
// The jti (RegisteredClaims.ID) keys the refresh session.
type AccessTokenClaims struct {
	UserID uuid.UUID      `json:"user_id"`
	Role   enums.UserRole `json:"role"`
	jwt.RegisteredClaims
}

