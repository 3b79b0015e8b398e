package auth

import (
	"github.com/streetfoodconnect/marketplace-backend/pkg/errors"
)

// FailureKind names an authentication failure the client can act on.
type FailureKind string

const (
	FailureUserNotFound      FailureKind = "user-not-found"
	FailureWrongPassword     FailureKind = "wrong-password"
	FailureInvalidEmail      FailureKind = "invalid-email"
	FailureEmailAlreadyInUse FailureKind = "email-already-in-use"
	FailureWeakPassword      FailureKind = "weak-password"
	FailureRoleMismatch      FailureKind = "role-mismatch"
)

type failureSpec struct {
	code    errors.Code
	message string
}

var failureSpecs = map[FailureKind]failureSpec{
	FailureUserNotFound:      {errors.CodeUnauthorized, "No account found with this email."},
	FailureWrongPassword:     {errors.CodeUnauthorized, "Incorrect password."},
	FailureInvalidEmail:      {errors.CodeValidation, "Invalid email address."},
	FailureEmailAlreadyInUse: {errors.CodeConflict, "An account with this email already exists."},
	FailureWeakPassword:      {errors.CodeValidation, "Password should be at least 6 characters."},
	FailureRoleMismatch:      {errors.CodeForbidden, "Invalid role selected for this account"},
}

// Message is the fixed user-facing text for the kind.
func (k FailureKind) Message() string {
	return failureSpecs[k].message
}

// NewFailure builds the typed error for kind, carrying {"reason": kind} as details.
func NewFailure(kind FailureKind) *errors.Error {
	spec, ok := failureSpecs[kind]
	if !ok {
		return errors.New(errors.CodeInternal, "unknown authentication failure")
	}
	return errors.New(spec.code, spec.message).WithDetails(map[string]any{"reason": string(kind)})
}

// FailureKindOf extracts the failure kind from a typed auth error.
func FailureKindOf(err error) (FailureKind, bool) {
	typed := errors.As(err)
	if typed == nil {
		return "", false
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		return "", false
	}
	reason, ok := details["reason"].(string)
	if !ok {
		return "", false
	}
	kind := FailureKind(reason)
	if _, known := failureSpecs[kind]; !known {
		return "", false
	}
	return kind, true
}
