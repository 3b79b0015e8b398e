package session

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/streetfoodconnect/marketplace-backend/pkg/enums"
	pkgerrors "github.com/streetfoodconnect/marketplace-backend/pkg/errors"
)

// ErrInvalidSessionTransition is returned for any edge outside the lifecycle.
var ErrInvalidSessionTransition = errors.New("invalid session transition")

// State is the authentication lifecycle position of a Session.
type State int

const (
	StateAnonymous State = iota
	StateAuthenticating
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Identity is what a successful authentication binds to the session.
type Identity struct {
	UserID   uuid.UUID
	Role     enums.UserRole
	AccessID string
}

// Session is an immutable snapshot; every transition returns a new value.
//
//	anonymous      --BeginAuthentication--> authenticating
//	authenticating --Authenticate---------> authenticated
//	authenticating --Fail-----------------> anonymous
//	authenticated  --SignOut--------------> anonymous
type Session struct {
	state    State
	identity Identity
	lastErr  string
}

// Anonymous returns the zero session.
func Anonymous() Session {
	return Session{state: StateAnonymous}
}

// Restore builds an authenticated session for an identity that was already
// verified, such as a bearer token on an incoming request.
func Restore(id Identity) (Session, error) {
	s, err := Anonymous().BeginAuthentication()
	if err != nil {
		return Anonymous(), err
	}
	return s.Authenticate(id)
}

func (s Session) State() State                  { return s.state }
func (s Session) UserID() uuid.UUID             { return s.identity.UserID }
func (s Session) Role() enums.UserRole          { return s.identity.Role }
func (s Session) AccessID() string              { return s.identity.AccessID }
func (s Session) LastError() string             { return s.lastErr }
func (s Session) IsAuthenticated() bool         { return s.state == StateAuthenticated }
func (s Session) HasRole(r enums.UserRole) bool { return s.IsAuthenticated() && s.identity.Role == r }

func (s Session) BeginAuthentication() (Session, error) {
	if s.state != StateAnonymous {
		return s, transitionError(s.state, StateAuthenticating)
	}
	return Session{state: StateAuthenticating}, nil
}

func (s Session) Authenticate(id Identity) (Session, error) {
	if s.state != StateAuthenticating {
		return s, transitionError(s.state, StateAuthenticated)
	}
	if id.UserID == uuid.Nil || !id.Role.IsValid() {
		return s, fmt.Errorf("%w: identity requires user id and role", ErrInvalidSessionTransition)
	}
	return Session{state: StateAuthenticated, identity: id}, nil
}

// Fail ends an authentication attempt and records the failure message.
func (s Session) Fail(cause error) (Session, error) {
	if s.state != StateAuthenticating {
		return s, transitionError(s.state, StateAnonymous)
	}
	next := Anonymous()
	if typed := pkgerrors.As(cause); typed != nil {
		next.lastErr = typed.Message()
	} else if cause != nil {
		next.lastErr = cause.Error()
	}
	return next, nil
}

func (s Session) SignOut() (Session, error) {
	if s.state != StateAuthenticated {
		return s, transitionError(s.state, StateAnonymous)
	}
	return Anonymous(), nil
}

func transitionError(from, to State) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidSessionTransition, from, to)
}

// Snapshot is the client-facing view of a Session.
type Snapshot struct {
	State     string         `json:"state"`
	UserID    *uuid.UUID     `json:"user_id,omitempty"`
	Role      enums.UserRole `json:"role,omitempty"`
	LastError string         `json:"last_error,omitempty"`
}

func (s Session) Snapshot() Snapshot {
	snap := Snapshot{State: s.state.String(), LastError: s.lastErr}
	if s.IsAuthenticated() {
		id := s.identity.UserID
		snap.UserID = &id
		snap.Role = s.identity.Role
	}
	return snap
}
