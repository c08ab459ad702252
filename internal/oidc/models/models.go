package models

import (
	"errors"
	"time"
)

// RegisteredClient is the one downstream client this provider serves. It is
// seeded from configuration at startup and immutable afterwards.
type RegisteredClient struct {
	ClientID      string   `json:"client_id"`
	ClientSecret  string   `json:"client_secret"`
	RedirectURIs  []string `json:"redirect_uris"`
	GrantTypes    []string `json:"grant_types"`
	ResponseTypes []string `json:"response_types"`
	Scope         string   `json:"scope"`
}

// AllowsRedirectURI reports membership in the allowed set. Exact string match,
// no normalization.
func (c *RegisteredClient) AllowsRedirectURI(uri string) bool {
	for _, allowed := range c.RedirectURIs {
		if allowed == uri {
			return true
		}
	}
	return false
}

// AuthorizationCode binds a one-time code to the Steam subject and the OIDC
// request it was minted for.
type AuthorizationCode struct {
	Code        string
	SubjectID   string
	ClientID    string
	RedirectURI string
	Nonce       string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Domain validation errors returned by ValidateForConsume. The store boundary
// translates these to sentinel errors.
var (
	ErrCodeExpired          = errors.New("authorization code expired")
	ErrCodeClientMismatch   = errors.New("authorization code issued to a different client")
	ErrCodeRedirectMismatch = errors.New("redirect_uri does not match the one used to obtain the code")
)

// ValidateForConsume checks that the code may be exchanged by the given client
// with the given redirect_uri at the given instant.
func (a *AuthorizationCode) ValidateForConsume(clientID, redirectURI string, now time.Time) error {
	if a.ClientID != clientID {
		return ErrCodeClientMismatch
	}
	if !a.ExpiresAt.After(now) {
		return ErrCodeExpired
	}
	if a.RedirectURI != redirectURI {
		return ErrCodeRedirectMismatch
	}
	return nil
}

// PendingAuthRequest carries the original authorization request parameters
// across the redirect round trip to Steam and back.
type PendingAuthRequest struct {
	ClientID    string    `json:"client_id"`
	RedirectURI string    `json:"redirect_uri"`
	State       string    `json:"state,omitempty"`
	Nonce       string    `json:"nonce,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ErrPendingIncomplete marks a correlation record unusable for code minting.
var ErrPendingIncomplete = errors.New("pending authorization request is missing client_id or redirect_uri")

// Validate requires the fields without which the callback cannot mint a code.
// A failure here is terminal for the flow instance.
func (p *PendingAuthRequest) Validate() error {
	if p.ClientID == "" || p.RedirectURI == "" {
		return ErrPendingIncomplete
	}
	return nil
}

// DiscoveryDocument is the OIDC provider metadata served at
// /.well-known/openid-configuration.
type DiscoveryDocument struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	UserinfoEndpoint                  string   `json:"userinfo_endpoint"`
	JWKSURI                           string   `json:"jwks_uri"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	SubjectTypesSupported             []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported  []string `json:"id_token_signing_alg_values_supported"`
	ScopesSupported                   []string `json:"scopes_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	ClaimsSupported                   []string `json:"claims_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
}

// TokenResult is the success body of the token endpoint.
type TokenResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	IDToken     string `json:"id_token"`
}

// UserInfoResult is the success body of the userinfo endpoint.
type UserInfoResult struct {
	Sub     string `json:"sub"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
	Profile string `json:"profile"`
}
