package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-jwt-signing-32-chars"

func TestNewTokenService(t *testing.T) {
	tests := []struct {
		name        string
		ttl         time.Duration
		secretKey   string
		expectError bool
	}{
		{name: "valid configuration", ttl: time.Hour, secretKey: testSecret},
		{name: "missing secret key", ttl: time.Hour, secretKey: "", expectError: true},
		{name: "non-positive ttl", ttl: 0, secretKey: testSecret, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, err := NewTokenService(tt.ttl, "issuer", "audience", tt.secretKey)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, service)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, service)
		})
	}
}

func TestTokenServiceRoundTrip(t *testing.T) {
	service, err := NewTokenService(time.Hour, "issuer", "audience", testSecret)
	require.NoError(t, err)

	token, err := service.GenerateServiceToken("billing")
	require.NoError(t, err)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "billing", claims.Service)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenServiceRejects(t *testing.T) {
	service, err := NewTokenService(time.Hour, "issuer", "audience", testSecret)
	require.NoError(t, err)

	other, err := NewTokenService(time.Hour, "issuer", "other-audience", testSecret)
	require.NoError(t, err)
	foreign, err := other.GenerateServiceToken("billing")
	require.NoError(t, err)

	expiredClaims := ServiceTokenClaims{
		Service: "billing",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "issuer",
			Audience:  jwt.ClaimStrings{"audience"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, expiredClaims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = service.ValidateToken(expired)
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, err = service.ValidateToken(foreign)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = service.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = service.GenerateServiceToken("")
	assert.Error(t, err)
}
