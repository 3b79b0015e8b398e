package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/streetfoodconnect/marketplace-backend/internal/users"
	"github.com/streetfoodconnect/marketplace-backend/pkg/config"
	"github.com/streetfoodconnect/marketplace-backend/pkg/db"
	"github.com/streetfoodconnect/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/streetfoodconnect/marketplace-backend/pkg/errors"
	"github.com/streetfoodconnect/marketplace-backend/pkg/logger"
	"github.com/streetfoodconnect/marketplace-backend/pkg/security"
)

// RegisterService creates accounts and signs the new user in.
type RegisterService interface {
	Register(ctx context.Context, req RegisterRequest) (*LoginResponse, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type registerUserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error)
}

type RegisterServiceParams struct {
	DB             txRunner
	SessionManager sessionManager
	JWTConfig      config.JWTConfig
	PasswordConfig config.PasswordConfig
	Logger         *logger.Logger
	// UserStore binds a user store to the registration transaction.
	// Defaults to users.NewRepository.
	UserStore func(tx *gorm.DB) registerUserStore
}

type registerService struct {
	db          txRunner
	issuer      tokenIssuer
	passwordCfg config.PasswordConfig
	logg        *logger.Logger
	userStore   func(tx *gorm.DB) registerUserStore
}

func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	}
	if params.SessionManager == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "session manager required")
	}
	userStore := params.UserStore
	if userStore == nil {
		userStore = func(tx *gorm.DB) registerUserStore { return users.NewRepository(tx) }
	}
	return &registerService{
		db:          params.DB,
		issuer:      tokenIssuer{sessions: params.SessionManager, jwtCfg: params.JWTConfig},
		passwordCfg: params.PasswordConfig,
		logg:        params.Logger,
		userStore:   userStore,
	}, nil
}

func (s *registerService) Register(ctx context.Context, req RegisterRequest) (*LoginResponse, error) {
	dto, err := s.account(req)
	if err != nil {
		return nil, err
	}

	var user *models.User
	if err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		user, err = s.insert(ctx, s.userStore(tx), dto)
		return err
	}); err != nil {
		return nil, err
	}

	tokens, _, err := s.issuer.issue(ctx, time.Now().UTC(), user)
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"user_id": user.ID.String(), "role": user.Role})
		s.logg.Info(logCtx, "auth.registered")
	}
	return &LoginResponse{TokenPair: tokens, User: users.FromModel(user)}, nil
}

// account checks the sign-up form and hashes the password. Nothing is
// written until it passes.
func (s *registerService) account(req RegisterRequest) (users.CreateUserDTO, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return users.CreateUserDTO{}, err
	}
	switch {
	case !security.MeetsMinimumLength(req.Password):
		return users.CreateUserDTO{}, NewFailure(FailureWeakPassword)
	case !req.Role.IsValid():
		return users.CreateUserDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "role must be vendor or supplier")
	case strings.TrimSpace(req.Name) == "":
		return users.CreateUserDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}

	hash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return users.CreateUserDTO{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	return users.CreateUserDTO{
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(req.Name),
		Role:         req.Role,
		Phone:        req.Phone,
		Location:     req.Location,
		BusinessType: req.BusinessType,
		Specialties:  req.Specialties,
	}, nil
}

// insert rejects a taken email up front and again on the unique index, which
// catches two sign-ups racing for the same address.
func (s *registerService) insert(ctx context.Context, store registerUserStore, dto users.CreateUserDTO) (*models.User, error) {
	_, err := store.FindByEmail(ctx, dto.Email)
	switch {
	case err == nil:
		return nil, NewFailure(FailureEmailAlreadyInUse)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
	}

	user, err := store.Create(ctx, dto)
	switch {
	case err == nil:
		return user, nil
	case db.IsUniqueViolation(err, ""):
		return nil, NewFailure(FailureEmailAlreadyInUse)
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
	}
}
