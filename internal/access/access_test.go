package access

import (
	"context"
	"testing"
	"time"

	"github.com/bvabank/backend/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorize(t *testing.T) {
	admin := Principal{Kind: Admin, Email: "admin@bvabank.com"}
	user := Principal{Kind: User, AccountID: "acc-1"}
	anon := Principal{Kind: Anonymous}

	for _, c := range []Capability{ManageAccounts, MutateBalances, ReviewTransactions, ReadAll} {
		assert.NoError(t, Authorize(admin, c), c)
		assert.ErrorIs(t, Authorize(user, c), models.ErrForbidden, c)
		assert.ErrorIs(t, Authorize(anon, c), models.ErrUnauthorized, c)
	}

	for _, c := range []Capability{ReadOwn, SelfAdjust} {
		assert.NoError(t, Authorize(user, c), c)
		assert.ErrorIs(t, Authorize(admin, c), models.ErrForbidden, c)
		assert.ErrorIs(t, Authorize(anon, c), models.ErrUnauthorized, c)
	}
}

func TestFromContext(t *testing.T) {
	assert.Equal(t, Anonymous, FromContext(context.Background()).Kind)

	ctx := WithPrincipal(context.Background(), Principal{Kind: User, AccountID: "acc-1"})
	p := FromContext(ctx)
	assert.Equal(t, User, p.Kind)
	assert.Equal(t, "acc-1", p.AccountID)
}

func TestTokenManager(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour, 7*24*time.Hour)

	t.Run("user token round trip", func(t *testing.T) {
		token, expiresAt, err := m.IssueUser("acc-1", "john@example.com")
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

		p, claims, err := m.Parse(token)
		require.NoError(t, err)
		assert.Equal(t, User, p.Kind)
		assert.Equal(t, "acc-1", p.AccountID)
		assert.NotEmpty(t, claims.ID)
	})

	t.Run("admin token round trip", func(t *testing.T) {
		token, _, err := m.IssueAdmin("admin@bvabank.com")
		require.NoError(t, err)

		p, _, err := m.Parse(token)
		require.NoError(t, err)
		assert.Equal(t, Admin, p.Kind)
		assert.Empty(t, p.AccountID)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewTokenManager("other-secret", time.Hour, time.Hour)
		token, _, err := other.IssueAdmin("admin@bvabank.com")
		require.NoError(t, err)

		p, _, err := m.Parse(token)
		assert.Error(t, err)
		assert.Equal(t, Anonymous, p.Kind)
	})

	t.Run("expired token", func(t *testing.T) {
		expired := NewTokenManager("test-secret", time.Hour, time.Hour)
		expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		token, _, err := expired.IssueUser("acc-1", "john@example.com")
		require.NoError(t, err)

		_, _, err = m.Parse(token)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("token without principal", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x"}).SignedString([]byte("test-secret"))
		require.NoError(t, err)

		_, _, err = m.Parse(token)
		assert.Error(t, err)
	})
}
