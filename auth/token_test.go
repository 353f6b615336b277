package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifier_IssueAndValidate(t *testing.T) {
	v := NewVerifier("s3cret")

	tok, err := v.IssueToken("user-42", time.Hour)
	require.NoError(t, err)

	id, err := v.UserID(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-42", id)

	_, err = v.ParseAndValidateToken(tok, "refresh")
	assert.Error(t, err)
}

func TestVerifier_RejectsOtherSecretAndExpired(t *testing.T) {
	tok, err := NewVerifier("one").IssueToken("u", time.Hour)
	require.NoError(t, err)
	_, err = NewVerifier("two").UserID(tok)
	assert.Error(t, err)

	expired, err := NewVerifier("one").IssueToken("u", -time.Minute)
	require.NoError(t, err)
	_, err = NewVerifier("one").UserID(expired)
	assert.Error(t, err)
}

func TestVerifier_Disabled(t *testing.T) {
	v := NewVerifier("  ")
	assert.False(t, v.Enabled())
	_, err := v.UserID("anything")
	assert.ErrorIs(t, err, ErrNoSecret)
	_, err = v.IssueToken("u", time.Hour)
	assert.ErrorIs(t, err, ErrNoSecret)
}

func TestUserIDFromClaims(t *testing.T) {
	id, err := UserIDFromClaims(jwt.MapClaims{"user_id": "a"})
	require.NoError(t, err)
	assert.Equal(t, "a", id)

	id, err = UserIDFromClaims(jwt.MapClaims{"userId": "b"})
	require.NoError(t, err)
	assert.Equal(t, "b", id)

	_, err = UserIDFromClaims(jwt.MapClaims{"email": "x@y"})
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer abc"))
	assert.Equal(t, "", BearerToken("Basic abc"))
	assert.Equal(t, "", BearerToken("Bearer "))
}
