package config

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures everything the process reads from the environment, once, at
// startup.
type Config struct {
	Addr                string
	BaseURL             string
	SteamAPIKey         string
	ClientID            string
	ClientSecret        string
	AllowedRedirectURIs []string
	SessionName         string
	SessionTTL          time.Duration
	RedisURL            string
}

// FromEnv builds a Config from environment variables so main stays lean. An
// optional .env file is loaded first; a missing file is not an error.
func FromEnv() (Config, error) {
	_ = godotenv.Load()

	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		return Config{}, errors.New("BASE_URL is not defined")
	}

	addr := os.Getenv("STEAMGATE_ADDR")
	if addr == "" {
		addr = ":19000"
	}

	clientID := os.Getenv("OIDC_CLIENT_ID")
	if clientID == "" {
		clientID = "steam-auth-client"
	}

	sessionName := os.Getenv("SESSION_NAME")
	if sessionName == "" {
		sessionName = "steam_auth_session"
	}

	sessionTTL := 10 * time.Minute
	if raw := os.Getenv("SESSION_TTL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, errors.New("SESSION_TTL is not a valid duration")
		}
		sessionTTL = parsed
	}

	return Config{
		Addr:                addr,
		BaseURL:             strings.TrimRight(baseURL, "/"),
		SteamAPIKey:         os.Getenv("STEAM_API_KEY"),
		ClientID:            clientID,
		ClientSecret:        os.Getenv("OIDC_CLIENT_SECRET"),
		AllowedRedirectURIs: parseRedirectURIs(baseURL),
		SessionName:         sessionName,
		SessionTTL:          sessionTTL,
		RedisURL:            os.Getenv("REDIS_URL"),
	}, nil
}

// parseRedirectURIs reads ALLOWED_REDIRECT_URIS as a comma-separated list,
// defaulting to the base URL when unset.
func parseRedirectURIs(baseURL string) []string {
	raw := os.Getenv("ALLOWED_REDIRECT_URIS")
	if raw == "" {
		return []string{strings.TrimRight(baseURL, "/")}
	}
	var uris []string
	for _, uri := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(uri); trimmed != "" {
			uris = append(uris, trimmed)
		}
	}
	return uris
}

// Issuer is the OIDC issuer identifier.
func (c Config) Issuer() string {
	return c.BaseURL
}

// Realm is what Steam sees as the OpenID realm.
func (c Config) Realm() string {
	return c.BaseURL
}

// SteamReturnURL is where Steam redirects the user agent after authentication.
func (c Config) SteamReturnURL() string {
	return c.BaseURL + "/auth/steam/return"
}

// CookieSecure reports whether session cookies should carry the Secure flag.
func (c Config) CookieSecure() bool {
	return strings.HasPrefix(c.BaseURL, "https://")
}

// LogSummary logs the sanitized configuration at startup.
func (c Config) LogSummary(logger *slog.Logger) {
	logger.Info("configuration loaded",
		"addr", c.Addr,
		"base_url", c.BaseURL,
		"steam_return_url", c.SteamReturnURL(),
		"issuer", c.Issuer(),
		"client_id", c.ClientID,
		"allowed_redirect_uris", len(c.AllowedRedirectURIs),
		"steam_api_key", sanitize(c.SteamAPIKey),
		"session_name", c.SessionName,
		"session_ttl", c.SessionTTL,
		"redis", c.RedisURL != "",
	)
}

// sanitize keeps secrets out of logs while leaving enough to tell keys apart.
func sanitize(value string) string {
	if value == "" {
		return "[not set]"
	}
	if len(value) <= 10 {
		return "[***]"
	}
	return value[:4] + "****" + value[len(value)-4:]
}
