package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-at-least-16-chars!!"

// newTestTokenService creates a TokenService with a fixed secret and a 1h TTL.
func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService(testSecret, time.Hour)
	require.NoError(t, err)
	return ts
}

// =========================================================================
// CONSTRUCTION
// =========================================================================

func TestNewTokenService_ShortSecret(t *testing.T) {
	_, err := NewTokenService("short", time.Hour)
	assert.Error(t, err, "secrets shorter than 16 chars must be rejected")
}

func TestNewTokenService_NonPositiveTTL(t *testing.T) {
	_, err := NewTokenService(testSecret, 0)
	assert.Error(t, err)
}

// =========================================================================
// CreateSessionToken
// =========================================================================

func TestCreateSessionToken_LooksLikeJWT(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.CreateSessionToken("user-123")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(token, "."), "token should be header.payload.signature")
}

func TestCreateSessionToken_ExpiryFollowsTTL(t *testing.T) {
	ts, err := NewTokenService(testSecret, 90*time.Second)
	require.NoError(t, err)

	token, err := ts.CreateSessionToken("user-123")
	require.NoError(t, err)

	var c jwt.RegisteredClaims
	_, _, err = jwt.NewParser().ParseUnverified(token, &c)
	require.NoError(t, err)

	assert.Equal(t, "user-123", c.Subject)
	require.NotNil(t, c.IssuedAt)
	require.NotNil(t, c.ExpiresAt)
	assert.Equal(t, 90*time.Second, c.ExpiresAt.Sub(c.IssuedAt.Time))
}

// =========================================================================
// VerifySessionToken
// =========================================================================

func TestVerifySessionToken_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.CreateSessionToken("user-abc-123")
	require.NoError(t, err)

	got, ok := ts.VerifySessionToken(token)
	assert.True(t, ok)
	assert.Equal(t, "user-abc-123", got)
}

func TestVerifySessionToken_Failures(t *testing.T) {
	ts := newTestTokenService(t)

	valid, err := ts.CreateSessionToken("user-123")
	require.NoError(t, err)
	expired, err := ts.GenerateWithDuration("user-123", -time.Second)
	require.NoError(t, err)
	noSubject, err := ts.GenerateWithDuration("", time.Hour)
	require.NoError(t, err)

	other, err := NewTokenService("wrong-secret-32-chars-long!!!!!!", time.Hour)
	require.NoError(t, err)
	foreign, err := other.CreateSessionToken("user-123")
	require.NoError(t, err)

	noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "user-123"})
	noExpStr, err := noExp.SignedString([]byte(testSecret))
	require.NoError(t, err)

	cases := map[string]string{
		"empty":            "",
		"garbage":          "not.a.jwt.token",
		"tampered":         valid[:len(valid)-3] + "xxx",
		"expired":          expired,
		"wrong secret":     foreign,
		"missing subject":  noSubject,
		"missing expiry":   noExpStr,
		"bearer prefix in": "Bearer " + valid,
	}

	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			got, ok := ts.VerifySessionToken(token)
			assert.False(t, ok)
			assert.Empty(t, got)
		})
	}
}

func TestValidate_ExpiredMessage(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.GenerateWithDuration("user-123", -time.Second)
	require.NoError(t, err)

	_, err = ts.Validate(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestValidate_RejectsNoneAlgorithm(t *testing.T) {
	ts := newTestTokenService(t)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "user-123",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ts.Validate(token)
	assert.Error(t, err)
}
