package steam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/yohcop/openid-go"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultProviderURL is Steam's fixed OpenID 2.0 discovery endpoint.
	DefaultProviderURL = "https://steamcommunity.com/openid"
	// DefaultAPIBaseURL hosts the Steam Web API.
	DefaultAPIBaseURL = "https://api.steampowered.com"

	playerSummariesPath = "/ISteamUser/GetPlayerSummaries/v0002/"

	// Upstream calls carry no retry policy; the only bound is this timeout.
	upstreamTimeout = 10 * time.Second
)

var profileFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "steamgate_profile_fetch_duration_seconds",
	Help:    "Latency of Steam player summary fetches",
	Buckets: prometheus.DefBuckets,
})

var (
	ErrAPIKeyUnconfigured = errors.New("steam api key not configured")
	ErrProfileNotFound    = errors.New("no matching player record returned")
	ErrNotAuthenticated   = errors.New("assertion did not authenticate a claimed identifier")
)

// Bridge encapsulates all interaction with Steam: the OpenID 2.0 relying-party
// handshake and the player summary API. Stateless between calls apart from the
// relying-party configuration and the library's nonce/discovery bookkeeping.
type Bridge struct {
	providerURL string
	apiBaseURL  string
	apiKey      string
	realm       string
	httpClient  *http.Client
	logger      *slog.Logger

	// Verification state required by the stateless strict handshake: nonces
	// are accepted at most once, discovery results are cached per endpoint.
	nonceStore     openid.NonceStore
	discoveryCache openid.DiscoveryCache

	// Concurrent fetches for the same subject collapse into one API call.
	profileGroup singleflight.Group
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithProviderURL overrides the OpenID discovery endpoint. Tests point this at
// a fake provider.
func WithProviderURL(u string) Option {
	return func(b *Bridge) { b.providerURL = u }
}

// WithAPIBaseURL overrides the Steam Web API base URL.
func WithAPIBaseURL(u string) Option {
	return func(b *Bridge) { b.apiBaseURL = u }
}

// WithHTTPClient swaps the profile API client.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Bridge) { b.httpClient = c }
}

// New constructs a Bridge. realm is this provider's public base URL, presented
// to Steam as the OpenID realm.
func New(apiKey, realm string, logger *slog.Logger, opts ...Option) *Bridge {
	client := cleanhttp.DefaultPooledClient()
	client.Timeout = upstreamTimeout

	b := &Bridge{
		providerURL:    DefaultProviderURL,
		apiBaseURL:     DefaultAPIBaseURL,
		apiKey:         apiKey,
		realm:          realm,
		httpClient:     client,
		logger:         logger,
		nonceStore:     openid.NewSimpleNonceStore(),
		discoveryCache: openid.NewSimpleDiscoveryCache(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// BuildAuthenticationRedirect resolves the URL the user agent must visit to
// authenticate with Steam. returnURL is where Steam sends the signed assertion
// afterwards.
func (b *Bridge) BuildAuthenticationRedirect(ctx context.Context, returnURL string) (string, error) {
	authURL, err := b.bounded(ctx, func() (string, error) {
		return openid.RedirectURL(b.providerURL, returnURL, b.realm)
	})
	if err != nil {
		return "", fmt.Errorf("build steam authentication redirect: %w", err)
	}
	if authURL == "" {
		return "", errors.New("steam provider did not return an authentication URL")
	}
	return authURL, nil
}

// VerifyCallback validates the signed assertion carried by the callback URL
// (query string included) and returns the stable Steam subject ID. The library
// re-derives the relying party from openid.return_to and enforces signature,
// nonce and discovered-endpoint checks.
func (b *Bridge) VerifyCallback(ctx context.Context, callbackURL string) (string, error) {
	claimedID, err := b.bounded(ctx, func() (string, error) {
		return openid.Verify(callbackURL, b.discoveryCache, b.nonceStore)
	})
	if err != nil {
		return "", fmt.Errorf("verify steam assertion: %w", err)
	}
	if claimedID == "" {
		return "", ErrNotAuthenticated
	}

	// The claimed identifier encodes the account ID as the trailing path
	// segment of a fixed namespace URL.
	subjectID := claimedID[strings.LastIndex(claimedID, "/")+1:]
	if subjectID == "" {
		return "", ErrNotAuthenticated
	}

	b.logger.Debug("verified steam assertion", "subject", subjectID)
	return subjectID, nil
}

// FetchProfile retrieves the player summary for a subject from the Steam Web
// API. Concurrent calls for the same subject share one upstream request.
func (b *Bridge) FetchProfile(ctx context.Context, subjectID string) (*Player, error) {
	if b.apiKey == "" {
		return nil, ErrAPIKeyUnconfigured
	}

	v, err, _ := b.profileGroup.Do(subjectID, func() (interface{}, error) {
		return b.fetchProfile(ctx, subjectID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Player), nil
}

func (b *Bridge) fetchProfile(ctx context.Context, subjectID string) (*Player, error) {
	start := time.Now()
	defer func() {
		profileFetchDuration.Observe(time.Since(start).Seconds())
	}()

	query := url.Values{}
	query.Set("key", b.apiKey)
	query.Set("steamids", subjectID)
	endpoint := b.apiBaseURL + playerSummariesPath + "?" + query.Encode()

	ctx, cancel := context.WithTimeout(ctx, upstreamTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build player summary request: %w", err)
	}

	res, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch player summary: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch player summary: unexpected status %d", res.StatusCode)
	}

	var payload playerSummariesResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode player summary: %w", err)
	}

	for i := range payload.Response.Players {
		if payload.Response.Players[i].SteamID == subjectID {
			return &payload.Response.Players[i], nil
		}
	}
	return nil, ErrProfileNotFound
}

// bounded runs an openid-go call under the request context plus the upstream
// timeout. The library performs its own blocking HTTP I/O without context
// support, so the call runs in a goroutine and the deadline wins the select.
func (b *Bridge) bounded(ctx context.Context, fn func() (string, error)) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, upstreamTimeout)
	defer cancel()

	type result struct {
		value string
		err   error
	}
	done := make(chan result, 1)
	go func() {
		value, err := fn()
		done <- result{value: value, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		return res.value, res.err
	}
}
