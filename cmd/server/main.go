package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	jwttoken "steamgate/internal/jwt_token"
	"steamgate/internal/oidc/janitor"
	"steamgate/internal/oidc/models"
	"steamgate/internal/oidc/service"
	accesstoken "steamgate/internal/oidc/store/access-token"
	authorizationcode "steamgate/internal/oidc/store/authorization-code"
	clientstore "steamgate/internal/oidc/store/client"
	"steamgate/internal/platform/config"
	"steamgate/internal/platform/httpserver"
	"steamgate/internal/platform/logger"
	"steamgate/internal/platform/metrics"
	redisplatform "steamgate/internal/platform/redis"
	"steamgate/internal/session"
	"steamgate/internal/steam"
	httptransport "steamgate/internal/transport/http"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal packages.
func main() {
	log := logger.New()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}
	cfg.LogSummary(log)

	// Key generation happens before any route is served; failure is fatal.
	signer, err := jwttoken.NewSigner(cfg.Issuer())
	if err != nil {
		log.Error("failed to generate signing keypair", "error", err)
		os.Exit(1)
	}

	redisClient, err := redisplatform.New(cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	clients := clientstore.New(&models.RegisteredClient{
		ClientID:      cfg.ClientID,
		ClientSecret:  cfg.ClientSecret,
		RedirectURIs:  cfg.AllowedRedirectURIs,
		GrantTypes:    []string{"authorization_code"},
		ResponseTypes: []string{"code"},
		Scope:         "openid profile",
	})
	codes := authorizationcode.New()

	var tokens service.AccessTokenStore
	var pending session.Store
	if redisClient != nil {
		tokens = accesstoken.NewRedis(redisClient.Client)
		pending = session.NewRedisStore(redisClient.Client, cfg.SessionTTL)
		log.Info("using redis-backed token and session stores")
	} else {
		tokens = accesstoken.New()
		pending = session.NewInMemoryStore(cfg.SessionTTL)
	}

	m := metrics.New()
	bridge := steam.New(cfg.SteamAPIKey, cfg.Realm(), log)
	engine := service.New(clients, codes, tokens, bridge, signer, m, log, cfg.Issuer(), cfg.SteamReturnURL())
	sessions := session.NewManager(cfg.SessionName, cfg.SessionTTL, cfg.CookieSecure())

	oidcHandler := httptransport.NewOIDCHandler(engine, sessions, pending, log)
	callbackHandler := httptransport.NewCallbackHandler(bridge, engine, sessions, pending, m, log, cfg.BaseURL)
	router := httptransport.NewRouter(oidcHandler, callbackHandler, log)

	srv := httpserver.New(cfg.Addr, router)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis entries carry their own TTLs; only the in-memory stores need the
	// sweeper.
	targets := []janitor.Target{{Name: "authorization_codes", Store: codes}}
	if memoryPending, ok := pending.(*session.InMemoryStore); ok {
		targets = append(targets, janitor.Target{Name: "pending_requests", Store: memoryPending})
	}
	go janitor.New(log, time.Minute, targets...).Run(ctx)

	log.Info("starting steamgate", "addr", cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	log.Info("shutdown complete")
}
