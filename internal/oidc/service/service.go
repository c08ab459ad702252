package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	jwttoken "steamgate/internal/jwt_token"
	"steamgate/internal/oidc/models"
	"steamgate/internal/platform/metrics"
	"steamgate/internal/steam"
	oidcerrors "steamgate/pkg/oidc-errors"
)

// Authorization codes are valid for ten minutes from issuance.
const codeTTL = 10 * time.Minute

// ClientStore resolves client IDs to the registered client.
type ClientStore interface {
	FindByID(ctx context.Context, clientID string) (*models.RegisteredClient, error)
}

// CodeStore persists authorization codes. Consume must be atomic with respect
// to concurrent exchanges of the same code.
type CodeStore interface {
	Create(ctx context.Context, code *models.AuthorizationCode) error
	Consume(ctx context.Context, code, clientID, redirectURI string, now time.Time) (*models.AuthorizationCode, error)
}

// AccessTokenStore maps opaque bearer tokens to subjects.
type AccessTokenStore interface {
	Put(ctx context.Context, token, subjectID string) error
	Resolve(ctx context.Context, token string) (string, error)
}

// IdentityBridge is the slice of the Steam bridge the engine needs. Callback
// verification happens in the transport layer before CompleteAuthorization.
type IdentityBridge interface {
	BuildAuthenticationRedirect(ctx context.Context, returnURL string) (string, error)
	FetchProfile(ctx context.Context, subjectID string) (*steam.Player, error)
}

// TokenSigner mints identity tokens and exports the public key.
type TokenSigner interface {
	SignIDToken(subject, audience, nonce, name, picture, profileURL string) (string, error)
	JWKS() jwttoken.JWKS
}

// Engine implements the OIDC authorization code flow on top of the Steam
// bridge: it validates authorization requests, mints and exchanges codes, and
// issues identity and access tokens.
type Engine struct {
	clients ClientStore
	codes   CodeStore
	tokens  AccessTokenStore
	bridge  IdentityBridge
	signer  TokenSigner
	metrics *metrics.Metrics
	logger  *slog.Logger

	issuer         string
	steamReturnURL string
}

// New constructs the engine. All collaborators are injected; the engine keeps
// no package-level state.
func New(
	clients ClientStore,
	codes CodeStore,
	tokens AccessTokenStore,
	bridge IdentityBridge,
	signer TokenSigner,
	m *metrics.Metrics,
	logger *slog.Logger,
	issuer string,
	steamReturnURL string,
) *Engine {
	return &Engine{
		clients:        clients,
		codes:          codes,
		tokens:         tokens,
		bridge:         bridge,
		signer:         signer,
		metrics:        m,
		logger:         logger,
		issuer:         issuer,
		steamReturnURL: steamReturnURL,
	}
}

// Discovery returns the provider metadata. Pure function of configuration.
func (e *Engine) Discovery() models.DiscoveryDocument {
	return models.DiscoveryDocument{
		Issuer:                            e.issuer,
		AuthorizationEndpoint:             e.issuer + "/authorize",
		TokenEndpoint:                     e.issuer + "/token",
		UserinfoEndpoint:                  e.issuer + "/userinfo",
		JWKSURI:                           e.issuer + "/.well-known/jwks.json",
		ResponseTypesSupported:            []string{"code"},
		SubjectTypesSupported:             []string{"public"},
		IDTokenSigningAlgValuesSupported:  []string{"RS256"},
		ScopesSupported:                   []string{"openid", "profile"},
		TokenEndpointAuthMethodsSupported: []string{"client_secret_post"},
		ClaimsSupported:                   []string{"sub", "iss", "aud", "exp", "iat", "name", "picture", "profile"},
		GrantTypesSupported:               []string{"authorization_code"},
	}
}

// JWKS exports the signing public key for discovery.
func (e *Engine) JWKS() jwttoken.JWKS {
	return e.signer.JWKS()
}

// AuthorizeRequest carries the query parameters of the authorization endpoint.
type AuthorizeRequest struct {
	ClientID     string
	RedirectURI  string
	ResponseType string
	Scope        string
	State        string
	Nonce        string
}

// AuthorizeResult is a redirect to Steam plus the correlation record the
// transport must bind to the caller's session before redirecting.
type AuthorizeResult struct {
	RedirectURL string
	Pending     *models.PendingAuthRequest
}

// Authorize validates an authorization request and resolves the Steam redirect.
// Validation order and error kinds are part of the endpoint contract: client,
// then redirect_uri, then response_type. No correlation state is created on
// any failure.
func (e *Engine) Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResult, error) {
	client, err := e.clients.FindByID(ctx, req.ClientID)
	if err != nil {
		e.metrics.AuthorizeRequests.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, oidcerrors.New(oidcerrors.KindUnauthorizedClient, "Invalid client_id")
	}

	if !client.AllowsRedirectURI(req.RedirectURI) {
		e.metrics.AuthorizeRequests.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, oidcerrors.New(oidcerrors.KindInvalidRequest, "Invalid redirect_uri")
	}

	if req.ResponseType != "code" {
		e.metrics.AuthorizeRequests.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, oidcerrors.New(oidcerrors.KindUnsupportedResponseType, "Invalid response_type")
	}

	authURL, err := e.bridge.BuildAuthenticationRedirect(ctx, e.steamReturnURL)
	if err != nil {
		e.metrics.AuthorizeRequests.WithLabelValues(metrics.OutcomeError).Inc()
		e.logger.ErrorContext(ctx, "failed to build steam auth redirect", "error", err)
		return nil, oidcerrors.Wrap(err, oidcerrors.KindServerError, "Error generating Steam auth URL")
	}

	e.metrics.AuthorizeRequests.WithLabelValues(metrics.OutcomeSuccess).Inc()
	return &AuthorizeResult{
		RedirectURL: authURL,
		Pending: &models.PendingAuthRequest{
			ClientID:    req.ClientID,
			RedirectURI: req.RedirectURI,
			State:       req.State,
			Nonce:       req.Nonce,
			CreatedAt:   time.Now(),
		},
	}, nil
}

// CompleteAuthorization mints an authorization code for a verified subject and
// returns the redirect back to the client. Fails terminally, minting nothing,
// when the pending request lost its client_id or redirect_uri.
func (e *Engine) CompleteAuthorization(ctx context.Context, subjectID string, pending *models.PendingAuthRequest) (string, error) {
	if err := pending.Validate(); err != nil {
		return "", err
	}

	code, err := newOpaqueToken()
	if err != nil {
		return "", oidcerrors.Wrap(err, oidcerrors.KindServerError, "failed to mint authorization code")
	}

	now := time.Now()
	record := &models.AuthorizationCode{
		Code:        code,
		SubjectID:   subjectID,
		ClientID:    pending.ClientID,
		RedirectURI: pending.RedirectURI,
		Nonce:       pending.Nonce,
		CreatedAt:   now,
		ExpiresAt:   now.Add(codeTTL),
	}
	if err := e.codes.Create(ctx, record); err != nil {
		return "", oidcerrors.Wrap(err, oidcerrors.KindServerError, "failed to store authorization code")
	}

	redirect, err := url.Parse(pending.RedirectURI)
	if err != nil {
		return "", oidcerrors.Wrap(err, oidcerrors.KindServerError, "invalid redirect_uri in pending request")
	}
	query := redirect.Query()
	query.Set("code", code)
	if pending.State != "" {
		query.Set("state", pending.State)
	}
	redirect.RawQuery = query.Encode()

	e.metrics.CodesIssued.Inc()
	e.logger.InfoContext(ctx, "authorization code issued", "client_id", pending.ClientID)
	return redirect.String(), nil
}

// TokenRequest carries the form parameters of the token endpoint.
type TokenRequest struct {
	GrantType    string
	Code         string
	RedirectURI  string
	ClientID     string
	ClientSecret string
}

// ExchangeToken validates a code exchange and issues the identity and access
// tokens. The code is spent on the first exchange attempt regardless of how
// the exchange ends.
func (e *Engine) ExchangeToken(ctx context.Context, req TokenRequest) (*models.TokenResult, error) {
	if req.GrantType != "authorization_code" {
		e.metrics.TokenExchanges.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, oidcerrors.New(oidcerrors.KindInvalidGrant, "unsupported grant_type")
	}

	client, err := e.clients.FindByID(ctx, req.ClientID)
	if err != nil || subtle.ConstantTimeCompare([]byte(client.ClientSecret), []byte(req.ClientSecret)) != 1 {
		e.metrics.TokenExchanges.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, oidcerrors.New(oidcerrors.KindInvalidClient, "client authentication failed")
	}

	// Expired, consumed, mismatched and never-issued codes are deliberately
	// indistinguishable to the caller.
	record, err := e.codes.Consume(ctx, req.Code, req.ClientID, req.RedirectURI, time.Now())
	if err != nil {
		e.metrics.TokenExchanges.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, oidcerrors.New(oidcerrors.KindInvalidGrant, "invalid authorization code")
	}

	player, err := e.bridge.FetchProfile(ctx, record.SubjectID)
	if err != nil {
		e.metrics.TokenExchanges.WithLabelValues(metrics.OutcomeError).Inc()
		e.logger.ErrorContext(ctx, "profile fetch failed during token exchange", "error", err)
		return nil, oidcerrors.Wrap(err, oidcerrors.KindServerError, "internal server error")
	}

	idToken, err := e.signer.SignIDToken(record.SubjectID, client.ClientID, record.Nonce, player.PersonaName, player.AvatarFull, player.ProfileURL)
	if err != nil {
		e.metrics.TokenExchanges.WithLabelValues(metrics.OutcomeError).Inc()
		e.logger.ErrorContext(ctx, "identity token signing failed", "error", err)
		return nil, oidcerrors.Wrap(err, oidcerrors.KindServerError, "internal server error")
	}

	accessToken, err := newOpaqueToken()
	if err != nil {
		e.metrics.TokenExchanges.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, oidcerrors.Wrap(err, oidcerrors.KindServerError, "internal server error")
	}
	if err := e.tokens.Put(ctx, accessToken, record.SubjectID); err != nil {
		e.metrics.TokenExchanges.WithLabelValues(metrics.OutcomeError).Inc()
		e.logger.ErrorContext(ctx, "access token store failed", "error", err)
		return nil, oidcerrors.Wrap(err, oidcerrors.KindServerError, "internal server error")
	}

	e.metrics.TokenExchanges.WithLabelValues(metrics.OutcomeSuccess).Inc()
	return &models.TokenResult{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   3600,
		IDToken:     idToken,
	}, nil
}

// UserInfo resolves a bearer token to the subject and re-fetches the profile.
func (e *Engine) UserInfo(ctx context.Context, bearerToken string) (*models.UserInfoResult, error) {
	subjectID, err := e.tokens.Resolve(ctx, bearerToken)
	if err != nil {
		e.metrics.UserInfoRequests.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, oidcerrors.New(oidcerrors.KindInvalidToken, "invalid access token")
	}

	player, err := e.bridge.FetchProfile(ctx, subjectID)
	if err != nil {
		e.metrics.UserInfoRequests.WithLabelValues(metrics.OutcomeError).Inc()
		e.logger.ErrorContext(ctx, "profile fetch failed during userinfo", "error", err)
		return nil, oidcerrors.Wrap(err, oidcerrors.KindServerError, "internal server error")
	}

	e.metrics.UserInfoRequests.WithLabelValues(metrics.OutcomeSuccess).Inc()
	return &models.UserInfoResult{
		Sub:     player.SteamID,
		Name:    player.PersonaName,
		Picture: player.AvatarFull,
		Profile: player.ProfileURL,
	}, nil
}

// newOpaqueToken returns 32 random bytes hex-encoded; used for both
// authorization codes and access tokens.
func newOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate opaque token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
