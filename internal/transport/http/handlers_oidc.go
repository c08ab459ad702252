package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	jwttoken "steamgate/internal/jwt_token"
	"steamgate/internal/oidc/models"
	"steamgate/internal/oidc/service"
	"steamgate/internal/session"
)

// AuthorizationEngine is the slice of the engine the OIDC endpoints need.
type AuthorizationEngine interface {
	Discovery() models.DiscoveryDocument
	JWKS() jwttoken.JWKS
	Authorize(ctx context.Context, req service.AuthorizeRequest) (*service.AuthorizeResult, error)
	ExchangeToken(ctx context.Context, req service.TokenRequest) (*models.TokenResult, error)
	UserInfo(ctx context.Context, bearerToken string) (*models.UserInfoResult, error)
}

// OIDCHandler serves the provider-facing endpoints: discovery, JWKS,
// authorize, token and userinfo.
type OIDCHandler struct {
	engine   AuthorizationEngine
	sessions *session.Manager
	pending  session.Store
	logger   *slog.Logger
}

// NewOIDCHandler constructs the OIDC endpoint handler.
func NewOIDCHandler(engine AuthorizationEngine, sessions *session.Manager, pending session.Store, logger *slog.Logger) *OIDCHandler {
	return &OIDCHandler{
		engine:   engine,
		sessions: sessions,
		pending:  pending,
		logger:   logger,
	}
}

// Register registers the OIDC routes with the chi router.
func (h *OIDCHandler) Register(r chi.Router) {
	r.Get("/.well-known/openid-configuration", h.handleDiscovery)
	r.Get("/.well-known/jwks.json", h.handleJWKS)
	r.Get("/authorize", h.handleAuthorize)
	r.Post("/token", h.handleToken)
	r.Get("/userinfo", h.handleUserInfo)
}

func (h *OIDCHandler) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Discovery())
}

func (h *OIDCHandler) handleJWKS(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.JWKS())
}

func (h *OIDCHandler) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()
	req := service.AuthorizeRequest{
		ClientID:     query.Get("client_id"),
		RedirectURI:  query.Get("redirect_uri"),
		ResponseType: query.Get("response_type"),
		Scope:        query.Get("scope"),
		State:        query.Get("state"),
		Nonce:        query.Get("nonce"),
	}

	res, err := h.engine.Authorize(ctx, req)
	if err != nil {
		h.deliverAuthorizeError(w, r, req.RedirectURI, err)
		return
	}

	// Bind the pending request to the caller's session before redirecting so
	// the Steam callback can correlate.
	sessionID := h.sessions.Issue(w)
	if err := h.pending.Put(ctx, sessionID, res.Pending); err != nil {
		h.logger.ErrorContext(ctx, "failed to store pending authorization request", "error", err)
		h.deliverAuthorizeError(w, r, req.RedirectURI, err)
		return
	}

	http.Redirect(w, r, res.RedirectURL, http.StatusFound)
}

// deliverAuthorizeError applies the redirect-vs-JSON asymmetry of the
// authorization endpoint.
func (h *OIDCHandler) deliverAuthorizeError(w http.ResponseWriter, r *http.Request, redirectURI string, err error) {
	if redirectableURI(redirectURI) {
		redirectWithError(w, r, redirectURI, err)
		return
	}
	writeOIDCError(w, err)
}

// tokenRequestBody mirrors the token endpoint's JSON body. Form-encoded
// bodies carry the same field names.
type tokenRequestBody struct {
	GrantType    string `json:"grant_type"`
	Code         string `json:"code"`
	RedirectURI  string `json:"redirect_uri"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

func (h *OIDCHandler) handleToken(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseTokenRequest(w, r)
	if !ok {
		return
	}

	res, err := h.engine.ExchangeToken(r.Context(), req)
	if err != nil {
		writeOIDCError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// parseTokenRequest accepts both application/x-www-form-urlencoded and JSON
// bodies, as the reference server did.
func (h *OIDCHandler) parseTokenRequest(w http.ResponseWriter, r *http.Request) (service.TokenRequest, bool) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body tokenRequestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_grant", ErrorDescription: "malformed request body"})
			return service.TokenRequest{}, false
		}
		return service.TokenRequest{
			GrantType:    body.GrantType,
			Code:         body.Code,
			RedirectURI:  body.RedirectURI,
			ClientID:     body.ClientID,
			ClientSecret: body.ClientSecret,
		}, true
	}

	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_grant", ErrorDescription: "malformed request body"})
		return service.TokenRequest{}, false
	}
	return service.TokenRequest{
		GrantType:    r.PostFormValue("grant_type"),
		Code:         r.PostFormValue("code"),
		RedirectURI:  r.PostFormValue("redirect_uri"),
		ClientID:     r.PostFormValue("client_id"),
		ClientSecret: r.PostFormValue("client_secret"),
	}, true
}

func (h *OIDCHandler) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid_token", ErrorDescription: "missing bearer token"})
		return
	}

	res, err := h.engine.UserInfo(r.Context(), strings.TrimPrefix(authHeader, "Bearer "))
	if err != nil {
		writeOIDCError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
