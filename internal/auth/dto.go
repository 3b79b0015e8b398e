package auth

import (
	"time"

	"github.com/streetfoodconnect/marketplace-backend/internal/users"
	"github.com/streetfoodconnect/marketplace-backend/pkg/enums"
)

// LoginRequest carries the credentials plus the role the user picked on the login form.
type LoginRequest struct {
	Email    string         `json:"email" validate:"required"`
	Password string         `json:"password" validate:"required"`
	Role     enums.UserRole `json:"role" validate:"required,oneof=vendor supplier"`
}

// RegisterRequest is the full sign-up profile.
type RegisterRequest struct {
	Email        string         `json:"email" validate:"required"`
	Password     string         `json:"password" validate:"required"`
	Name         string         `json:"name" validate:"required"`
	Role         enums.UserRole `json:"role" validate:"required,oneof=vendor supplier"`
	Phone        *string        `json:"phone,omitempty"`
	Location     *string        `json:"location,omitempty"`
	BusinessType *string        `json:"business_type,omitempty"`
	Specialties  []string       `json:"specialties,omitempty"`
}

// TokenPair is the credential set handed to the client.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// LoginResponse contains the tokens and profile produced by a successful login or registration.
type LoginResponse struct {
	TokenPair
	User *users.Profile `json:"user"`
}
