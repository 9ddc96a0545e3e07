package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/invoicing/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService() *JWTService {
	return NewJWTService(config.AuthConfig{
		Enabled:         true,
		Secret:          "test-secret-key-that-is-at-least-32-chars",
		Issuer:          "invoicing-test",
		TokenExpiration: time.Hour,
	})
}

func TestGenerateAndValidateToken(t *testing.T) {
	svc := newTestJWTService()

	token, err := svc.GenerateToken("ops@example.com", 0)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.WithinDuration(t, time.Now().Add(time.Hour), token.ExpiresAt, 5*time.Second)

	claims, err := svc.ValidateToken(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", claims.Operator)
	assert.Equal(t, "ops@example.com", claims.Subject)
	assert.Equal(t, "invoicing-test", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestGenerateToken_CustomTTL(t *testing.T) {
	svc := newTestJWTService()

	token, err := svc.GenerateToken("ops", 5*time.Minute)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), token.ExpiresAt, 5*time.Second)
}

func TestGenerateToken_Errors(t *testing.T) {
	_, err := newTestJWTService().GenerateToken("   ", 0)
	assert.ErrorIs(t, err, ErrMissingOperator)

	_, err = NewJWTService(config.AuthConfig{}).GenerateToken("ops", 0)
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestValidateToken_Expired(t *testing.T) {
	svc := newTestJWTService()
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := svc.GenerateToken("ops", time.Hour)
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(token.AccessToken)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateToken_NotYetValid(t *testing.T) {
	svc := newTestJWTService()
	svc.now = func() time.Time { return time.Now().Add(time.Hour) }
	token, err := svc.GenerateToken("ops", time.Hour)
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(token.AccessToken)
	assert.ErrorIs(t, err, ErrTokenNotYetValid)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	token, err := newTestJWTService().GenerateToken("ops", 0)
	require.NoError(t, err)

	other := NewJWTService(config.AuthConfig{Secret: "a-different-secret-of-sufficient-length", Issuer: "invoicing-test"})
	_, err = other.ValidateToken(token.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_WrongIssuer(t *testing.T) {
	token, err := newTestJWTService().GenerateToken("ops", 0)
	require.NoError(t, err)

	other := NewJWTService(config.AuthConfig{Secret: "test-secret-key-that-is-at-least-32-chars", Issuer: "someone-else"})
	_, err = other.ValidateToken(token.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_RejectsOtherAlgorithms(t *testing.T) {
	svc := newTestJWTService()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "invoicing-test",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Operator: "ops",
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.ValidateToken(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_MissingOperator(t *testing.T) {
	svc := newTestJWTService()
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "invoicing-test",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(svc.secret)
	require.NoError(t, err)

	_, err = svc.ValidateToken(signed)
	assert.ErrorIs(t, err, ErrMissingOperator)
}

func TestValidateToken_Garbage(t *testing.T) {
	_, err := newTestJWTService().ValidateToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
