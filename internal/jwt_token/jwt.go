package jwttoken

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	signingAlg = "RS256"
	// Identity tokens are short-lived; there is no refresh flow.
	idTokenTTL = time.Hour
)

var (
	ErrInvalidToken = errors.New("invalid identity token")
	ErrTokenExpired = errors.New("identity token has expired")
)

// IDTokenClaims is the claim set of the identity tokens this provider signs.
// The profile claims come from the Steam player summary at exchange time.
type IDTokenClaims struct {
	Name    string `json:"name"`
	Picture string `json:"picture"`
	Profile string `json:"profile"`
	Nonce   string `json:"nonce,omitempty"`
	jwt.RegisteredClaims
}

// Signer holds the process-lifetime RSA keypair and mints identity tokens.
// The private key never leaves this package.
type Signer struct {
	privateKey *rsa.PrivateKey
	issuer     string
	keyID      string
}

// NewSigner generates a fresh 2048-bit RSA keypair. Called exactly once at
// startup; a failure here is fatal to the process.
func NewSigner(issuer string) (*Signer, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("generate signing keypair: %w", err)
	}
	return &Signer{
		privateKey: privateKey,
		issuer:     issuer,
		keyID:      uuid.NewString(),
	}, nil
}

// SignIDToken mints an RS256 identity token for the subject with a one-hour
// expiry. The nonce is echoed only when the original request carried one.
func (s *Signer) SignIDToken(subject, audience, nonce, name, picture, profileURL string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, IDTokenClaims{
		Name:    name,
		Picture: picture,
		Profile: profileURL,
		Nonce:   nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			Audience:  []string{audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(idTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
	token.Header["kid"] = s.keyID

	signed, err := token.SignedString(s.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign identity token: %w", err)
	}
	return signed, nil
}

// ValidateIDToken parses and verifies a token against the signer's own public
// key. The provider does not consume its own identity tokens in the request
// path; this exists for tests and diagnostic tooling.
func (s *Signer) ValidateIDToken(tokenString string) (*IDTokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &IDTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return &s.privateKey.PublicKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*IDTokenClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// JWK is the public half of the signing key in JSON Web Key form.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKS is the document served at /.well-known/jwks.json.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWKS exports the public key for discovery. Safe to call repeatedly and
// unauthenticated.
func (s *Signer) JWKS() JWKS {
	public := &s.privateKey.PublicKey
	return JWKS{
		Keys: []JWK{{
			Kty: "RSA",
			Use: "sig",
			Alg: signingAlg,
			Kid: s.keyID,
			N:   base64.RawURLEncoding.EncodeToString(public.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(public.E)).Bytes()),
		}},
	}
}
