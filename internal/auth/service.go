package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	appsession "github.com/streetfoodconnect/marketplace-backend/internal/session"
	"github.com/streetfoodconnect/marketplace-backend/internal/users"
	pkgAuth "github.com/streetfoodconnect/marketplace-backend/pkg/auth"
	"github.com/streetfoodconnect/marketplace-backend/pkg/auth/session"
	"github.com/streetfoodconnect/marketplace-backend/pkg/config"
	"github.com/streetfoodconnect/marketplace-backend/pkg/db/models"
	"github.com/streetfoodconnect/marketplace-backend/pkg/enums"
	pkgerrors "github.com/streetfoodconnect/marketplace-backend/pkg/errors"
	"github.com/streetfoodconnect/marketplace-backend/pkg/logger"
	"github.com/streetfoodconnect/marketplace-backend/pkg/security"
)

var emailValidator = validator.New()

// Service defines the behavior needed by the auth controller.
type Service interface {
	// Login returns the resulting session snapshot alongside the outcome so
	// callers see the failed or signed-out state as well.
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, appsession.Session, error)
	Refresh(ctx context.Context, accessToken, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, accessID string) error
}

type userRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
}

type sessionManager interface {
	Generate(ctx context.Context, accessID string, userID uuid.UUID, role enums.UserRole) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (string, session.Record, error)
	Revoke(ctx context.Context, accessID string) error
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	UserRepo       userRepository
	SessionManager sessionManager
	JWTConfig      config.JWTConfig
	PasswordConfig config.PasswordConfig
	Logger         *logger.Logger
}

type service struct {
	users       userRepository
	issuer      tokenIssuer
	passwordCfg config.PasswordConfig
	logg        *logger.Logger
}

// NewService constructs a login service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if params.SessionManager == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	return &service{
		users:       params.UserRepo,
		issuer:      tokenIssuer{sessions: params.SessionManager, jwtCfg: params.JWTConfig},
		passwordCfg: params.PasswordConfig,
		logg:        params.Logger,
	}, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, appsession.Session, error) {
	sess, err := appsession.Anonymous().BeginAuthentication()
	if err != nil {
		return nil, sess, err
	}
	fail := func(cause error) (*LoginResponse, appsession.Session, error) {
		next, _ := sess.Fail(cause)
		return nil, next, cause
	}

	email, err := normalizeEmail(req.Email)
	if err != nil {
		return fail(err)
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fail(NewFailure(FailureUserNotFound))
		}
		return fail(pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user"))
	}
	valid, err := security.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil {
		return fail(pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password"))
	}
	if !valid {
		return fail(NewFailure(FailureWrongPassword))
	}

	now := time.Now().UTC()
	tokens, accessID, err := s.issuer.issue(ctx, now, user)
	if err != nil {
		return fail(err)
	}
	authed, err := sess.Authenticate(appsession.Identity{UserID: user.ID, Role: user.Role, AccessID: accessID})
	if err != nil {
		return fail(pkgerrors.Wrap(pkgerrors.CodeInternal, err, "authenticate session"))
	}

	// The account signed in but not with the role the user picked: undo it.
	if user.Role != req.Role {
		if err := s.issuer.sessions.Revoke(ctx, accessID); err != nil {
			return nil, authed, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "revoke mismatched session")
		}
		signedOut, _ := authed.SignOut()
		s.logRoleMismatch(ctx, user, req)
		return nil, signedOut, NewFailure(FailureRoleMismatch)
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, authed, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update last login")
	}
	user.LastLoginAt = &now
	s.maybeRehash(ctx, user, req.Password)

	return &LoginResponse{TokenPair: tokens, User: users.FromModel(user)}, authed, nil
}

func (s *service) Refresh(ctx context.Context, accessToken, refreshToken string) (*TokenPair, error) {
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(s.issuer.jwtCfg, accessToken)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}
	newAccessID, record, err := s.issuer.sessions.Rotate(ctx, claims.ID, refreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "rotate session")
	}
	now := time.Now().UTC()
	access, expiresAt, err := s.issuer.mint(now, record.UserID, record.Role, newAccessID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: record.Token, ExpiresAt: expiresAt}, nil
}

func (s *service) Logout(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}
	if err := s.issuer.sessions.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "revoke session")
	}
	return nil
}

// maybeRehash upgrades hashes minted with weaker argon2 parameters. Failures only log.
func (s *service) maybeRehash(ctx context.Context, user *models.User, password string) {
	if !security.NeedsRehash(user.PasswordHash, s.passwordCfg) {
		return
	}
	hash, err := security.HashPassword(password, s.passwordCfg)
	if err == nil {
		err = s.users.UpdatePasswordHash(ctx, user.ID, hash)
	}
	if err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithField(s.logg.WithUserID(ctx, user.ID.String()), "error", err.Error()), "password rehash failed")
	}
}

func (s *service) logRoleMismatch(ctx context.Context, user *models.User, req LoginRequest) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithFields(s.logg.WithUserID(ctx, user.ID.String()), map[string]any{
		"account_role":   user.Role,
		"requested_role": req.Role,
	})
	s.logg.Warn(logCtx, "login role mismatch; session revoked")
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if err := emailValidator.Var(email, "required,email"); err != nil {
		return "", NewFailure(FailureInvalidEmail)
	}
	return email, nil
}

// tokenIssuer mints the access token and its refresh session together.
type tokenIssuer struct {
	sessions sessionManager
	jwtCfg   config.JWTConfig
}

func (t tokenIssuer) issue(ctx context.Context, now time.Time, user *models.User) (TokenPair, string, error) {
	accessID := session.NewAccessID()
	refresh, err := t.sessions.Generate(ctx, accessID, user.ID, user.Role)
	if err != nil {
		return TokenPair{}, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store refresh token")
	}
	access, expiresAt, err := t.mint(now, user.ID, user.Role, accessID)
	if err != nil {
		return TokenPair{}, "", err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresAt: expiresAt}, accessID, nil
}

func (t tokenIssuer) mint(now time.Time, userID uuid.UUID, role enums.UserRole, accessID string) (string, time.Time, error) {
	token, err := pkgAuth.MintAccessToken(t.jwtCfg, now, pkgAuth.AccessTokenPayload{
		UserID: userID,
		Role:   role,
		JTI:    accessID,
	})
	if err != nil {
		return "", time.Time{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return token, now.Add(time.Duration(t.jwtCfg.ExpirationMinutes) * time.Minute), nil
}
