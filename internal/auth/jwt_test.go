package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer, err := NewTokenIssuer("secret", time.Hour)
	require.NoError(t, err)

	token, err := issuer.GenerateToken("u1", "ada", true)
	require.NoError(t, err)

	claims, err := issuer.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "ada", claims.Username)
	assert.True(t, claims.IsAdmin)
}

func TestTokenIssuer_RejectsForeignSecret(t *testing.T) {
	a, err := NewTokenIssuer("secret-a", time.Hour)
	require.NoError(t, err)
	b, err := NewTokenIssuer("secret-b", time.Hour)
	require.NoError(t, err)

	token, err := a.GenerateToken("u1", "ada", false)
	require.NoError(t, err)

	_, err = b.ValidateToken(token)
	require.Error(t, err)
}

func TestNewTokenIssuer_EmptySecret(t *testing.T) {
	_, err := NewTokenIssuer("", time.Hour)
	require.Error(t, err)
}

func TestExpired(t *testing.T) {
	issuer, err := NewTokenIssuer("secret", time.Minute)
	require.NoError(t, err)
	issued := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	issuer.now = func() time.Time { return issued }

	token, err := issuer.GenerateToken("u1", "ada", false)
	require.NoError(t, err)

	assert.False(t, Expired(token, issued.Add(30*time.Second)))
	assert.True(t, Expired(token, issued.Add(2*time.Minute)))

	_, err = issuer.ValidateToken(token)
	require.NoError(t, err, "issuer clock is still inside the ttl")
}

func TestExpired_UnreadableTokenIsNotExpired(t *testing.T) {
	assert.False(t, Expired("not-a-jwt", time.Now()))

	noExp, err := NewTokenIssuer("secret", 0)
	require.NoError(t, err)
	token, err := noExp.GenerateToken("u1", "ada", false)
	require.NoError(t, err)

	_, err = PeekExpiry(token)
	require.ErrorIs(t, err, ErrNoExpiry)
	assert.False(t, Expired(token, time.Now().Add(24*time.Hour)))
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	require.NoError(t, VerifyPassword("hunter2", hash))
	require.Error(t, VerifyPassword("wrong", hash))
}
