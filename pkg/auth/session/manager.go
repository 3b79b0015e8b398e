// Package session keeps the refresh side of an access token: one Redis entry
// per access token id (jti), holding a digest of the refresh token and the
// identity it was issued to.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/streetfoodconnect/marketplace-backend/pkg/config"
	"github.com/streetfoodconnect/marketplace-backend/pkg/enums"
)

var (
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrAccessIDRequired    = errors.New("access id is required")
)

type store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	DeleteIfEquals(ctx context.Context, key, value string) (bool, error)
	AccessSessionKey(jti string) string
}

// Record is what a caller learns about a session. Token is the plaintext
// refresh token and is only populated right after it was minted.
type Record struct {
	UserID uuid.UUID
	Role   enums.UserRole
	Token  string
}

// entry is the persisted form; the refresh token itself never reaches Redis.
type entry struct {
	UserID uuid.UUID      `json:"user_id"`
	Role   enums.UserRole `json:"role"`
	Digest string         `json:"digest"`
}

// AccessSessionChecker is the read-only view the auth middleware needs.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

type Manager struct {
	store store
	ttl   time.Duration
}

// NewManager requires the refresh lifetime to outlast the access token.
func NewManager(s store, cfg config.JWTConfig) (*Manager, error) {
	if s == nil {
		return nil, errors.New("session store is required")
	}
	refresh := cfg.RefreshTokenTTL()
	access := time.Duration(cfg.ExpirationMinutes) * time.Minute
	if refresh <= 0 || refresh <= access {
		return nil, fmt.Errorf("refresh token ttl %s must be positive and exceed access ttl %s", refresh, access)
	}
	return &Manager{store: s, ttl: refresh}, nil
}

// NewAccessID returns a fresh jti.
func NewAccessID() string { return uuid.NewString() }

// Generate opens a session for accessID and returns its refresh token.
func (m *Manager) Generate(ctx context.Context, accessID string, userID uuid.UUID, role enums.UserRole) (string, error) {
	if blank(accessID) {
		return "", ErrAccessIDRequired
	}
	if userID == uuid.Nil || !role.IsValid() {
		return "", errors.New("session identity is required")
	}
	rec, err := m.open(ctx, accessID, userID, role)
	return rec.Token, err
}

// Rotate trades a refresh token for a new session. The old entry is removed
// with a compare-and-delete, so two concurrent rotations of the same token
// cannot both succeed.
func (m *Manager) Rotate(ctx context.Context, oldAccessID, refreshToken string) (string, Record, error) {
	if blank(oldAccessID) || blank(refreshToken) {
		return "", Record{}, ErrInvalidRefreshToken
	}
	key := m.store.AccessSessionKey(oldAccessID)
	raw, err := m.store.Get(ctx, key)
	if errors.Is(err, goredis.Nil) {
		return "", Record{}, ErrInvalidRefreshToken
	}
	if err != nil {
		return "", Record{}, err
	}
	var old entry
	if err := json.Unmarshal([]byte(raw), &old); err != nil {
		return "", Record{}, ErrInvalidRefreshToken
	}
	if subtle.ConstantTimeCompare([]byte(old.Digest), []byte(digest(refreshToken))) != 1 {
		return "", Record{}, ErrInvalidRefreshToken
	}

	won, err := m.store.DeleteIfEquals(ctx, key, raw)
	if err != nil {
		return "", Record{}, err
	}
	if !won {
		return "", Record{}, ErrInvalidRefreshToken
	}

	nextID := NewAccessID()
	rec, err := m.open(ctx, nextID, old.UserID, old.Role)
	if err != nil {
		return "", Record{}, err
	}
	return nextID, rec, nil
}

func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if blank(accessID) {
		return ErrAccessIDRequired
	}
	return m.store.Del(ctx, m.store.AccessSessionKey(accessID))
}

func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	if blank(accessID) {
		return false, ErrAccessIDRequired
	}
	_, err := m.store.Get(ctx, m.store.AccessSessionKey(accessID))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, goredis.Nil):
		return false, nil
	default:
		return false, err
	}
}

func (m *Manager) open(ctx context.Context, accessID string, userID uuid.UUID, role enums.UserRole) (Record, error) {
	token, err := newRefreshToken()
	if err != nil {
		return Record{}, err
	}
	raw, err := json.Marshal(entry{UserID: userID, Role: role, Digest: digest(token)})
	if err != nil {
		return Record{}, fmt.Errorf("encode session: %w", err)
	}
	if err := m.store.Set(ctx, m.store.AccessSessionKey(accessID), string(raw), m.ttl); err != nil {
		return Record{}, err
	}
	return Record{UserID: userID, Role: role, Token: token}, nil
}

func newRefreshToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }
