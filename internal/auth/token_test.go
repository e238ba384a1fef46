package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeyPair(t *testing.T) (privatePEM, publicPEM []byte) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privatePEM = pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	publicDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	publicPEM = pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: publicDER,
	})

	return privatePEM, publicPEM
}

func newTestTokenService(t *testing.T, lifetime time.Duration) *TokenService {
	t.Helper()

	privatePEM, publicPEM := testKeyPair(t)
	tokens, err := NewTokenService(privatePEM, publicPEM, lifetime)
	require.NoError(t, err)

	return tokens
}

func TestTokenIssueAndValidate(t *testing.T) {
	tokens := newTestTokenService(t, time.Hour)

	signed, err := tokens.Issue("alice", 42)
	require.NoError(t, err)

	claims, err := tokens.Validate(signed)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, int64(42), claims.UserID)
	require.NotNil(t, claims.ExpiresAt)
	require.NotNil(t, claims.IssuedAt)
	assert.Equal(t, time.Hour, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
}

func TestTokenExpired(t *testing.T) {
	tokens := newTestTokenService(t, -time.Minute)

	signed, err := tokens.Issue("alice", 42)
	require.NoError(t, err)

	_, err = tokens.Validate(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenTamperedSignature(t *testing.T) {
	tokens := newTestTokenService(t, time.Hour)

	signed, err := tokens.Issue("alice", 42)
	require.NoError(t, err)

	parts := strings.Split(signed, ".")
	require.Len(t, parts, 3)

	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = tokens.Validate(tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenSignedWithDifferentKey(t *testing.T) {
	issuer := newTestTokenService(t, time.Hour)
	verifier := newTestTokenService(t, time.Hour)

	signed, err := issuer.Issue("alice", 42)
	require.NoError(t, err)

	_, err = verifier.Validate(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenRejectsSymmetricAlgorithm(t *testing.T) {
	tokens := newTestTokenService(t, time.Hour)

	now := time.Now().UTC()
	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: 42,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})
	signed, err := forged.SignedString([]byte("guessed secret"))
	require.NoError(t, err)

	_, err = tokens.Validate(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenMalformed(t *testing.T) {
	tokens := newTestTokenService(t, time.Hour)

	for _, tokenStr := range []string{"", "garbage", "a.b", "a.b.c"} {
		_, err := tokens.Validate(tokenStr)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", tokenStr)
	}
}

func TestTokenMissingClaims(t *testing.T) {
	tokens := newTestTokenService(t, time.Hour)

	// Cryptographically valid but missing the user_id claim.
	signed, err := tokens.Issue("alice", 0)
	require.NoError(t, err)

	_, err = tokens.Validate(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
