package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIssuer(t *testing.T, secret string) *Issuer {
	t.Helper()
	issuer, err := NewIssuer(secret, time.Hour)
	require.NoError(t, err)
	return issuer
}

func TestNewIssuer_RequiresSecret(t *testing.T) {
	_, err := NewIssuer("", time.Hour)
	require.ErrorIs(t, err, ErrMissingSecret)
}

func TestGenerateAndParse_Success(t *testing.T) {
	t.Parallel()
	issuer := newTestIssuer(t, "super-secret")

	tok, err := issuer.GenerateToken("user-123")
	require.NoError(t, err)

	claims, err := issuer.ParseToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID)
	require.NotNil(t, claims.ExpiresAt)
	require.NotNil(t, claims.IssuedAt)
	assert.Equal(t, time.Hour, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
}

func TestParseToken_Expired(t *testing.T) {
	t.Parallel()
	issuer := newTestIssuer(t, "secret")
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	tok, err := issuer.GenerateToken("u1")
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.ParseToken(tok)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestParseToken_StillValidJustBeforeExpiry(t *testing.T) {
	t.Parallel()
	issuer := newTestIssuer(t, "secret")
	issued := time.Now()
	issuer.now = func() time.Time { return issued }

	tok, err := issuer.GenerateToken("u1")
	require.NoError(t, err)

	issuer.now = func() time.Time { return issued.Add(59 * time.Minute) }
	claims, err := issuer.ParseToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
}

func TestParseToken_WrongSecret(t *testing.T) {
	t.Parallel()
	tok, err := newTestIssuer(t, "right-secret").GenerateToken("u2")
	require.NoError(t, err)

	_, err = newTestIssuer(t, "wrong-secret").ParseToken(tok)
	require.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestParseToken_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()
	issuer := newTestIssuer(t, "secret")

	claims := Claims{
		UserID: "u3",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = issuer.ParseToken(tok)
	require.Error(t, err)
}

func TestParseToken_RequiresUserID(t *testing.T) {
	t.Parallel()
	issuer := newTestIssuer(t, "secret")

	tok, err := issuer.GenerateToken("")
	require.NoError(t, err)

	_, err = issuer.ParseToken(tok)
	require.ErrorIs(t, err, ErrMissingUserID)
}

func TestParseToken_Garbage(t *testing.T) {
	t.Parallel()
	_, err := newTestIssuer(t, "secret").ParseToken("not.a.token")
	require.Error(t, err)
}
