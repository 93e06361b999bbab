package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNewTokenIssuer(t *testing.T) {
	t.Run("empty secret", func(t *testing.T) {
		ti, err := NewTokenIssuer("", time.Minute, time.Hour)
		require.Error(t, err)
		require.Nil(t, ti)
	})

	t.Run("valid secret", func(t *testing.T) {
		ti, err := NewTokenIssuer("test-secret", time.Minute, time.Hour)
		require.NoError(t, err)
		require.NotNil(t, ti)
	})
}

func TestTokenRoundTrip(t *testing.T) {
	ti, err := NewTokenIssuer("test-secret", time.Minute, time.Hour)
	require.NoError(t, err)

	userID := uuid.Must(uuid.NewV7())

	t.Run("access token verifies as access", func(t *testing.T) {
		token, err := ti.IssueAccess(userID)
		require.NoError(t, err)

		got, claims, err := ti.Verify(token, TokenTypeAccess)
		require.NoError(t, err)
		require.Equal(t, userID, got)
		require.Equal(t, TokenTypeAccess, claims.TokenType)
	})

	t.Run("refresh token rejected as access", func(t *testing.T) {
		token, err := ti.IssueRefresh(userID)
		require.NoError(t, err)

		_, _, err = ti.Verify(token, TokenTypeAccess)
		require.ErrorIs(t, err, ErrWrongTokenType)
	})

	t.Run("access token rejected as refresh", func(t *testing.T) {
		token, err := ti.IssueAccess(userID)
		require.NoError(t, err)

		_, _, err = ti.Verify(token, TokenTypeRefresh)
		require.ErrorIs(t, err, ErrWrongTokenType)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, _, err := ti.Verify("not.a.token", TokenTypeAccess)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewTokenIssuer("other-secret", time.Minute, time.Hour)
		require.NoError(t, err)

		token, err := ti.IssueAccess(userID)
		require.NoError(t, err)

		_, _, err = other.Verify(token, TokenTypeAccess)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired token", func(t *testing.T) {
		short, err := NewTokenIssuer("test-secret", -time.Minute, time.Hour)
		require.NoError(t, err)

		token, err := short.IssueAccess(userID)
		require.NoError(t, err)

		_, _, err = short.Verify(token, TokenTypeAccess)
		require.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret-password")
	require.NoError(t, err)
	require.NotEqual(t, "s3cret-password", hash)

	require.NoError(t, VerifyPassword(hash, "s3cret-password"))
	require.ErrorIs(t, VerifyPassword(hash, "wrong"), ErrPasswordMismatch)
}

func TestMemoryBlacklist(t *testing.T) {
	bl := NewMemoryBlacklist()
	ctx := context.Background()

	revoked, err := bl.IsRevoked(ctx, "tok")
	require.NoError(t, err)
	require.False(t, revoked)

	require.NoError(t, bl.Revoke(ctx, "tok", time.Hour))

	revoked, err = bl.IsRevoked(ctx, "tok")
	require.NoError(t, err)
	require.True(t, revoked)

	t.Run("expired entries drop out", func(t *testing.T) {
		require.NoError(t, bl.Revoke(ctx, "old", time.Nanosecond))
		time.Sleep(5 * time.Millisecond)

		revoked, err := bl.IsRevoked(ctx, "old")
		require.NoError(t, err)
		require.False(t, revoked)
	})

	t.Run("non-positive ttl is a no-op", func(t *testing.T) {
		require.NoError(t, bl.Revoke(ctx, "spent", 0))

		revoked, err := bl.IsRevoked(ctx, "spent")
		require.NoError(t, err)
		require.False(t, revoked)
	})
}
