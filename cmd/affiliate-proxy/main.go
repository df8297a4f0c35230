// The affiliate-proxy binary serves smart product search over HTTP: it
// signs and forwards marketplace calls, caches search results and affiliate
// links, and reports cache-efficiency metrics per request.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/affiliatekit/smartsearch/pkg/cache"
	"github.com/affiliatekit/smartsearch/pkg/logging"
	"github.com/affiliatekit/smartsearch/pkg/marketplace"
	"github.com/affiliatekit/smartsearch/pkg/ratelimit"
	"github.com/affiliatekit/smartsearch/pkg/signing"
	"github.com/affiliatekit/smartsearch/pkg/smartsearch"
)

// config collects everything the proxy reads from the environment. The
// library packages never touch the environment themselves; this is the one
// place configuration comes together.
type config struct {
	Port      string
	LogLevel  string
	LogPretty bool

	AppKey     string
	AppSecret  string
	TrackingID string
	BaseURL    string
	Language   string
	Currency   string
	SignMethod string

	CacheBackend  string
	RedisAddr     string
	RedisPassword string

	SearchTTL time.Duration
	LinkTTL   time.Duration
}

func loadConfig() (config, error) {
	cfg := config{
		Port:          getEnv("PORT", "8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogPretty:     getEnv("LOG_PRETTY", "") == "true",
		AppKey:        os.Getenv("MARKETPLACE_APP_KEY"),
		AppSecret:     os.Getenv("MARKETPLACE_APP_SECRET"),
		TrackingID:    os.Getenv("MARKETPLACE_TRACKING_ID"),
		BaseURL:       getEnv("MARKETPLACE_BASE_URL", marketplace.DefaultBaseURL),
		Language:      getEnv("TARGET_LANGUAGE", "en"),
		Currency:      getEnv("TARGET_CURRENCY", "USD"),
		SignMethod:    getEnv("SIGN_METHOD", ""),
		CacheBackend:  getEnv("CACHE_BACKEND", cache.BackendMemory),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
	}

	if cfg.AppKey == "" {
		return cfg, fmt.Errorf("MARKETPLACE_APP_KEY is required")
	}
	if cfg.AppSecret == "" {
		return cfg, fmt.Errorf("MARKETPLACE_APP_SECRET is required")
	}

	var err error
	if cfg.SearchTTL, err = getDurationEnv("SEARCH_CACHE_TTL", smartsearch.DefaultSearchTTL); err != nil {
		return cfg, err
	}
	if cfg.LinkTTL, err = getDurationEnv("LINK_CACHE_TTL", smartsearch.DefaultLinkTTL); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "affiliate-proxy exited with error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := logging.Setup(logging.Config{
		Level:   logging.LogLevel(cfg.LogLevel),
		Pretty:  cfg.LogPretty,
		Service: "affiliate-proxy",
	})

	// Redis is only required for the shared cache backend; the default
	// memory backend runs standalone.
	var redisClient *redis.Client
	if cfg.CacheBackend == cache.BackendRedis {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		defer redisClient.Close()
		logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis connection established")
	}

	// With Redis present the cooldown is mirrored so replicas sharing one
	// app key back off together.
	guard := ratelimit.NewGuard(ratelimit.Config{Redis: redisClient})

	client, err := marketplace.New(marketplace.Config{
		BaseURL:       cfg.BaseURL,
		AppKey:        cfg.AppKey,
		AppSecret:     cfg.AppSecret,
		TrackingID:    cfg.TrackingID,
		Language:      cfg.Language,
		Currency:      cfg.Currency,
		SignAlgorithm: signing.Algorithm(cfg.SignMethod),
		Guard:         guard,
	})
	if err != nil {
		return fmt.Errorf("create marketplace client: %w", err)
	}

	searchStore, err := cache.New[marketplace.SearchResult](cache.Config{Backend: cfg.CacheBackend, Name: "search"}, redisClient)
	if err != nil {
		return fmt.Errorf("create search cache: %w", err)
	}
	defer closeStore(searchStore)

	linkStore, err := cache.New[marketplace.AffiliateLink](cache.Config{Backend: cfg.CacheBackend, Name: "link"}, redisClient)
	if err != nil {
		return fmt.Errorf("create link cache: %w", err)
	}
	defer closeStore(linkStore)

	orchestrator := smartsearch.NewOrchestrator(client, searchStore, linkStore, smartsearch.Config{
		SearchTTL: cfg.SearchTTL,
		LinkTTL:   cfg.LinkTTL,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(orchestrator, client, redisClient),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info().
		Str("addr", srv.Addr).
		Str("gateway", cfg.BaseURL).
		Str("cache_backend", cfg.CacheBackend).
		Dur("search_ttl", cfg.SearchTTL).
		Dur("link_ttl", cfg.LinkTTL).
		Msg("Starting affiliate proxy")

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info().Msg("Server shutdown complete")
	return nil
}

// closeStore stops a store's background work when the backend has any
// (the memory backend's janitor).
func closeStore(s any) {
	if c, ok := s.(io.Closer); ok {
		_ = c.Close()
	}
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv parses a duration environment variable, falling back to
// def when unset.
func getDurationEnv(key string, def time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
