package jwttoken

import (
	"crypto/rsa"
	"encoding/base64"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	issuer   = "https://provider.example.com"
	audience = "steam-auth-client"
	subject  = "76561197960287930"
)

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	signer, err := NewSigner(issuer)
	require.NoError(t, err)
	return signer
}

func Test_SignIDToken_RoundTrip(t *testing.T) {
	signer := newTestSigner(t)

	token, err := signer.SignIDToken(subject, audience, "n1", "Rabscuttle", "https://avatars.example.com/full.jpg", "https://steamcommunity.com/id/rabscuttle/")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := signer.ValidateIDToken(token)
	require.NoError(t, err)
	assert.Equal(t, issuer, claims.Issuer)
	assert.Equal(t, subject, claims.Subject)
	assert.Equal(t, jwt.ClaimStrings{audience}, claims.Audience)
	assert.Equal(t, "n1", claims.Nonce)
	assert.Equal(t, "Rabscuttle", claims.Name)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func Test_SignIDToken_OmitsEmptyNonce(t *testing.T) {
	signer := newTestSigner(t)

	token, err := signer.SignIDToken(subject, audience, "", "Rabscuttle", "", "")
	require.NoError(t, err)

	parsed, _, err := jwt.NewParser().ParseUnverified(token, &IDTokenClaims{})
	require.NoError(t, err)
	claims := parsed.Claims.(*IDTokenClaims)
	assert.Empty(t, claims.Nonce)

	// omitempty must keep the key out of the payload entirely
	segments := strings.Split(token, ".")
	require.Len(t, segments, 3)
	payload, err := base64.RawURLEncoding.DecodeString(segments[1])
	require.NoError(t, err)
	assert.NotContains(t, string(payload), `"nonce"`)
}

func Test_ValidateIDToken_InvalidToken(t *testing.T) {
	signer := newTestSigner(t)
	_, err := signer.ValidateIDToken("not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func Test_ValidateIDToken_WrongKey(t *testing.T) {
	signer := newTestSigner(t)
	other := newTestSigner(t)

	token, err := other.SignIDToken(subject, audience, "", "x", "", "")
	require.NoError(t, err)

	_, err = signer.ValidateIDToken(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

// Test_JWKS_VerifiesSignature checks that a token verifies against the key as
// published, i.e. a client holding only the JWKS document can validate it.
func Test_JWKS_VerifiesSignature(t *testing.T) {
	signer := newTestSigner(t)

	jwks := signer.JWKS()
	require.Len(t, jwks.Keys, 1)
	key := jwks.Keys[0]
	assert.Equal(t, "RSA", key.Kty)
	assert.Equal(t, "sig", key.Use)
	assert.Equal(t, "RS256", key.Alg)
	assert.NotEmpty(t, key.Kid)

	nBytes, err := base64.RawURLEncoding.DecodeString(key.N)
	require.NoError(t, err)
	eBytes, err := base64.RawURLEncoding.DecodeString(key.E)
	require.NoError(t, err)
	publicKey := &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}

	token, err := signer.SignIDToken(subject, audience, "", "x", "", "")
	require.NoError(t, err)

	parsed, err := jwt.ParseWithClaims(token, &IDTokenClaims{}, func(*jwt.Token) (interface{}, error) {
		return publicKey, nil
	})
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, key.Kid, parsed.Header["kid"])
}
