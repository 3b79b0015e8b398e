package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streetfoodconnect/marketplace-backend/pkg/config"
	"github.com/streetfoodconnect/marketplace-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "streetfood", ExpirationMinutes: 30}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now().UTC().Truncate(time.Second)
	userID := uuid.New()

	token, err := MintAccessToken(cfg, now, AccessTokenPayload{UserID: userID, Role: enums.UserRoleSupplier, JTI: " jti-123 "})
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, enums.UserRoleSupplier, claims.Role)
	assert.Equal(t, "jti-123", claims.ID)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.Equal(t, "streetfood", claims.Issuer)
	assert.WithinDuration(t, now.Add(30*time.Minute), claims.ExpiresAt.Time, time.Second)
}

func TestMintGeneratesJTI(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleVendor})
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg, token)
	require.NoError(t, err)
	_, err = uuid.Parse(claims.ID)
	assert.NoError(t, err)
}

func TestMintRejectsBadInput(t *testing.T) {
	cfg := testJWTConfig()
	_, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: "admin"})
	assert.Error(t, err)
	_, err = MintAccessToken(cfg, time.Now(), AccessTokenPayload{Role: enums.UserRoleVendor})
	assert.Error(t, err)

	noSecret := cfg
	noSecret.Secret = ""
	_, err = MintAccessToken(noSecret, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleVendor})
	assert.ErrorIs(t, err, ErrSecretMissing)

	noIssuer := cfg
	noIssuer.Issuer = ""
	_, err = MintAccessToken(noIssuer, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleVendor})
	assert.ErrorIs(t, err, ErrIssuerMissing)
}

func TestParseRejectsForeignSignatureAndIssuer(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleVendor})
	require.NoError(t, err)

	otherSecret := cfg
	otherSecret.Secret = "other"
	_, err = ParseAccessToken(otherSecret, token)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	otherIssuer := cfg
	otherIssuer.Issuer = "elsewhere"
	_, err = ParseAccessToken(otherIssuer, token)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
}

func TestExpiredTokenOnlyParsesWhenAllowed(t *testing.T) {
	cfg := testJWTConfig()
	issued := time.Now().Add(-2 * time.Hour)
	token, err := MintAccessToken(cfg, issued, AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleVendor, JTI: "old"})
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	claims, err := ParseAccessTokenAllowExpired(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, "old", claims.ID)
}

func TestParseRejectsUnsignedToken(t *testing.T) {
	cfg := testJWTConfig()
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, AccessTokenClaims{
		UserID:           uuid.New(),
		Role:             enums.UserRoleVendor,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: cfg.Issuer, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, unsigned)
	assert.Error(t, err)
	_, err = ParseAccessTokenAllowExpired(cfg, unsigned)
	assert.Error(t, err)
}
