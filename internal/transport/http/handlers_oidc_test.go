package httptransport

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	jwttoken "steamgate/internal/jwt_token"
	"steamgate/internal/oidc/models"
	"steamgate/internal/oidc/service"
	"steamgate/internal/session"
	oidcerrors "steamgate/pkg/oidc-errors"
)

const testCookieName = "steam_auth_session"

// fakeEngine is a scriptable AuthorizationEngine for handler tests.
type fakeEngine struct {
	authorizeRes *service.AuthorizeResult
	authorizeErr error
	tokenRes     *models.TokenResult
	tokenErr     error
	userInfoRes  *models.UserInfoResult
	userInfoErr  error

	lastTokenReq service.TokenRequest
	lastBearer   string
}

func (f *fakeEngine) Discovery() models.DiscoveryDocument {
	return models.DiscoveryDocument{
		Issuer:                "https://provider.example.com",
		AuthorizationEndpoint: "https://provider.example.com/authorize",
	}
}

func (f *fakeEngine) JWKS() jwttoken.JWKS {
	return jwttoken.JWKS{Keys: []jwttoken.JWK{}}
}

func (f *fakeEngine) Authorize(_ context.Context, _ service.AuthorizeRequest) (*service.AuthorizeResult, error) {
	return f.authorizeRes, f.authorizeErr
}

func (f *fakeEngine) ExchangeToken(_ context.Context, req service.TokenRequest) (*models.TokenResult, error) {
	f.lastTokenReq = req
	return f.tokenRes, f.tokenErr
}

func (f *fakeEngine) UserInfo(_ context.Context, bearerToken string) (*models.UserInfoResult, error) {
	f.lastBearer = bearerToken
	return f.userInfoRes, f.userInfoErr
}

type OIDCHandlerSuite struct {
	suite.Suite
	engine  *fakeEngine
	pending *session.InMemoryStore
	router  chi.Router
}

func TestOIDCHandlerSuite(t *testing.T) {
	suite.Run(t, new(OIDCHandlerSuite))
}

func (s *OIDCHandlerSuite) SetupTest() {
	s.engine = &fakeEngine{}
	s.pending = session.NewInMemoryStore(10 * time.Minute)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager := session.NewManager(testCookieName, 10*time.Minute, false)

	s.router = chi.NewRouter()
	NewOIDCHandler(s.engine, manager, s.pending, logger).Register(s.router)
}

func (s *OIDCHandlerSuite) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *OIDCHandlerSuite) decodeError(rec *httptest.ResponseRecorder) errorBody {
	var body errorBody
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func (s *OIDCHandlerSuite) TestDiscovery() {
	rec := s.do(httptest.NewRequest(http.MethodGet, "/.well-known/openid-configuration", nil))
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("application/json", rec.Header().Get("Content-Type"))

	var doc models.DiscoveryDocument
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&doc))
	s.Equal("https://provider.example.com", doc.Issuer)
}

func (s *OIDCHandlerSuite) TestAuthorize() {
	s.Run("success binds the pending request to a session cookie and redirects", func() {
		s.engine.authorizeRes = &service.AuthorizeResult{
			RedirectURL: "https://steamcommunity.com/openid/login?fake=1",
			Pending: &models.PendingAuthRequest{
				ClientID:    "steam-auth-client",
				RedirectURI: "https://app.example.com/callback",
				State:       "s1",
			},
		}

		rec := s.do(httptest.NewRequest(http.MethodGet, "/authorize?client_id=steam-auth-client&redirect_uri=https%3A%2F%2Fapp.example.com%2Fcallback&response_type=code&scope=openid+profile&state=s1", nil))
		s.Equal(http.StatusFound, rec.Code)
		s.Equal("https://steamcommunity.com/openid/login?fake=1", rec.Header().Get("Location"))

		cookies := rec.Result().Cookies()
		s.Require().Len(cookies, 1)
		s.Equal(testCookieName, cookies[0].Name)

		stored, err := s.pending.Get(context.Background(), cookies[0].Value)
		s.Require().NoError(err)
		s.Equal("s1", stored.State)
	})

	s.Run("error with a redirectable uri is delivered as error parameters", func() {
		s.engine.authorizeRes = nil
		s.engine.authorizeErr = oidcerrors.New(oidcerrors.KindUnsupportedResponseType, "Invalid response_type")

		rec := s.do(httptest.NewRequest(http.MethodGet, "/authorize?client_id=steam-auth-client&redirect_uri=https%3A%2F%2Fapp.example.com%2Fcallback&response_type=token", nil))
		s.Equal(http.StatusFound, rec.Code)

		loc, err := url.Parse(rec.Header().Get("Location"))
		s.Require().NoError(err)
		s.Equal("app.example.com", loc.Host)
		s.Equal("unsupported_response_type", loc.Query().Get("error"))
		s.Equal("Invalid response_type", loc.Query().Get("error_description"))
		s.Empty(rec.Result().Cookies())
	})

	s.Run("error with an unusable uri is delivered as a JSON body", func() {
		s.engine.authorizeErr = oidcerrors.New(oidcerrors.KindInvalidRequest, "Invalid redirect_uri")

		rec := s.do(httptest.NewRequest(http.MethodGet, "/authorize?client_id=steam-auth-client&redirect_uri=not-a-url&response_type=code", nil))
		s.Equal(http.StatusBadRequest, rec.Code)

		body := s.decodeError(rec)
		s.Equal("invalid_request", body.Error)
		s.Equal("Invalid redirect_uri", body.ErrorDescription)
	})
}

func (s *OIDCHandlerSuite) TestToken() {
	s.Run("form body is parsed into the exchange request", func() {
		s.engine.tokenRes = &models.TokenResult{AccessToken: "tok", TokenType: "Bearer", ExpiresIn: 3600, IDToken: "jwt"}

		form := url.Values{
			"grant_type":    {"authorization_code"},
			"code":          {"abc"},
			"redirect_uri":  {"https://app.example.com/callback"},
			"client_id":     {"steam-auth-client"},
			"client_secret": {"s3cret"},
		}
		req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		rec := s.do(req)
		s.Equal(http.StatusOK, rec.Code)
		s.Equal("authorization_code", s.engine.lastTokenReq.GrantType)
		s.Equal("abc", s.engine.lastTokenReq.Code)
		s.Equal("s3cret", s.engine.lastTokenReq.ClientSecret)

		var res models.TokenResult
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&res))
		s.Equal("tok", res.AccessToken)
		s.Equal("Bearer", res.TokenType)
	})

	s.Run("json body is accepted as well", func() {
		s.engine.tokenRes = &models.TokenResult{AccessToken: "tok"}

		req := httptest.NewRequest(http.MethodPost, "/token",
			strings.NewReader(`{"grant_type":"authorization_code","code":"abc","redirect_uri":"https://app.example.com/callback","client_id":"steam-auth-client","client_secret":"s3cret"}`))
		req.Header.Set("Content-Type", "application/json")

		rec := s.do(req)
		s.Equal(http.StatusOK, rec.Code)
		s.Equal("abc", s.engine.lastTokenReq.Code)
	})

	s.Run("malformed json body is rejected before the engine runs", func() {
		req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader("{"))
		req.Header.Set("Content-Type", "application/json")

		rec := s.do(req)
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal("invalid_grant", s.decodeError(rec).Error)
	})

	s.Run("client authentication failure maps to 401", func() {
		s.engine.tokenRes = nil
		s.engine.tokenErr = oidcerrors.New(oidcerrors.KindInvalidClient, "client authentication failed")

		req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader("grant_type=authorization_code"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		rec := s.do(req)
		s.Equal(http.StatusUnauthorized, rec.Code)
		s.Equal("invalid_client", s.decodeError(rec).Error)
	})

	s.Run("spent code maps to 400 invalid_grant", func() {
		s.engine.tokenErr = oidcerrors.New(oidcerrors.KindInvalidGrant, "invalid authorization code")

		req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader("grant_type=authorization_code&code=spent"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		rec := s.do(req)
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal("invalid_grant", s.decodeError(rec).Error)
	})
}

func (s *OIDCHandlerSuite) TestUserInfo() {
	s.Run("missing bearer token is rejected without touching the engine", func() {
		rec := s.do(httptest.NewRequest(http.MethodGet, "/userinfo", nil))
		s.Equal(http.StatusUnauthorized, rec.Code)
		s.Equal("invalid_token", s.decodeError(rec).Error)
		s.Empty(s.engine.lastBearer)
	})

	s.Run("bearer token is stripped and forwarded", func() {
		s.engine.userInfoRes = &models.UserInfoResult{Sub: "76561197960287930", Name: "Rabscuttle"}

		req := httptest.NewRequest(http.MethodGet, "/userinfo", nil)
		req.Header.Set("Authorization", "Bearer tok123")

		rec := s.do(req)
		s.Equal(http.StatusOK, rec.Code)
		s.Equal("tok123", s.engine.lastBearer)

		var res models.UserInfoResult
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&res))
		s.Equal("76561197960287930", res.Sub)
	})

	s.Run("unknown token maps to 401", func() {
		s.engine.userInfoRes = nil
		s.engine.userInfoErr = oidcerrors.New(oidcerrors.KindInvalidToken, "invalid access token")

		req := httptest.NewRequest(http.MethodGet, "/userinfo", nil)
		req.Header.Set("Authorization", "Bearer nope")

		rec := s.do(req)
		s.Equal(http.StatusUnauthorized, rec.Code)
		s.Equal("invalid_token", s.decodeError(rec).Error)
	})
}
