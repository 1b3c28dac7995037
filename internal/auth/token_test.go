package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("0123456789abcdef0123456789abcdef")

func newTestIssuer(t *testing.T, now func() time.Time) *Issuer {
	t.Helper()
	issuer, err := NewIssuer(IssuerConfig{
		Secret:     secret,
		Issuer:     "room-booking",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 14 * 24 * time.Hour,
	}, now)
	require.NoError(t, err)
	return issuer
}

func TestIssuer_IssuePair(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.December, 15, 9, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, func() time.Time { return now })

	pair, err := issuer.IssuePair(Subject{UserID: "user-1", Email: "a@example.com", Role: "USER"})
	require.NoError(t, err)

	assert.Equal(t, now.Add(15*time.Minute), pair.Access.ExpiresAt)
	assert.Equal(t, now.Add(14*24*time.Hour), pair.Refresh.ExpiresAt)

	access, err := issuer.VerifyAccess(pair.Access.Token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", access.Subject)
	assert.Equal(t, "a@example.com", access.Email)
	assert.Equal(t, "USER", access.Role)
	assert.Empty(t, access.Type)

	refresh, err := issuer.VerifyRefresh(pair.Refresh.Token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", refresh.Subject)
	assert.Equal(t, TokenTypeRefresh, refresh.Type)
	assert.Empty(t, refresh.Email)
}

func TestIssuer_TokensAreUniquePerIssue(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.December, 15, 9, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, func() time.Time { return now })

	first, err := issuer.IssuePair(Subject{UserID: "user-1"})
	require.NoError(t, err)
	second, err := issuer.IssuePair(Subject{UserID: "user-1"})
	require.NoError(t, err)

	assert.NotEqual(t, first.Refresh.Token, second.Refresh.Token)
	assert.NotEqual(t, HashToken(first.Refresh.Token), HashToken(second.Refresh.Token))
}

func TestIssuer_RejectsWrongTokenType(t *testing.T) {
	t.Parallel()

	issuer := newTestIssuer(t, nil)
	pair, err := issuer.IssuePair(Subject{UserID: "user-1", Role: "USER"})
	require.NoError(t, err)

	_, err = issuer.VerifyAccess(pair.Refresh.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.VerifyRefresh(pair.Access.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuer_RejectsExpiredTokens(t *testing.T) {
	t.Parallel()

	current := time.Date(2024, time.December, 15, 9, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, func() time.Time { return current })

	pair, err := issuer.IssuePair(Subject{UserID: "user-1"})
	require.NoError(t, err)

	current = current.Add(16 * time.Minute)
	_, err = issuer.VerifyAccess(pair.Access.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.VerifyRefresh(pair.Refresh.Token)
	assert.NoError(t, err)
}

func TestIssuer_RejectsTamperedAndForeignTokens(t *testing.T) {
	t.Parallel()

	issuer := newTestIssuer(t, nil)
	pair, err := issuer.IssuePair(Subject{UserID: "user-1"})
	require.NoError(t, err)

	t.Run("tampered signature", func(t *testing.T) {
		t.Parallel()
		parts := strings.Split(pair.Access.Token, ".")
		require.Len(t, parts, 3)
		parts[2] = strings.Repeat("A", len(parts[2]))
		_, err := issuer.VerifyAccess(strings.Join(parts, "."))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("different secret", func(t *testing.T) {
		t.Parallel()
		other, err := NewIssuer(IssuerConfig{
			Secret:     []byte("another-secret-another-secret-xx"),
			Issuer:     "room-booking",
			AccessTTL:  time.Minute,
			RefreshTTL: time.Hour,
		}, nil)
		require.NoError(t, err)
		_, err = other.VerifyAccess(pair.Access.Token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unsigned token", func(t *testing.T) {
		t.Parallel()
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "room-booking",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = issuer.VerifyAccess(unsigned)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("empty token", func(t *testing.T) {
		t.Parallel()
		_, err := issuer.VerifyRefresh("")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestNewIssuer_RejectsWeakSecret(t *testing.T) {
	t.Parallel()

	_, err := NewIssuer(IssuerConfig{Secret: []byte("short"), AccessTTL: time.Minute, RefreshTTL: time.Hour}, nil)
	assert.ErrorIs(t, err, ErrWeakSecret)
}

func TestHashToken(t *testing.T) {
	t.Parallel()

	digest := HashToken("refresh-token")
	assert.Len(t, digest, 64)
	assert.Equal(t, digest, HashToken("refresh-token"))
	assert.NotEqual(t, digest, HashToken("refresh-token2"))
	assert.NotContains(t, digest, "refresh-token")
}
