// Command server starts the Clipstream API HTTP service.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"clipstream/internal/api"
	"clipstream/internal/auth"
	"clipstream/internal/media"
	"clipstream/internal/observability/logging"
	"clipstream/internal/server"
	"clipstream/internal/storage"
)

func main() {
	_ = godotenv.Load()

	addr := flag.String("addr", "", "HTTP listen address")
	dataPath := flag.String("data", "", "path to JSON datastore")
	mediaDir := flag.String("media-dir", "", "directory for uploaded media assets")
	mediaBaseURL := flag.String("media-base-url", "", "public base URL for served media")
	jwtSecret := flag.String("jwt-secret", "", "secret for signing access and refresh tokens")
	accessTTL := flag.Duration("access-ttl", 0, "access token lifetime")
	refreshTTL := flag.Duration("refresh-ttl", 0, "refresh token lifetime")
	refreshPostgresDSN := flag.String("refresh-postgres-dsn", "", "Postgres DSN for the refresh token store")
	logLevel := flag.String("log-level", "", "log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "log format (json or text)")
	corsOrigins := flag.String("cors-origins", "", "comma separated origins allowed for cross-origin requests")
	secureCookies := flag.Bool("secure-cookies", false, "always mark auth cookies Secure")
	globalRPS := flag.Float64("rate-global-rps", 0, "global request rate limit in requests per second")
	globalBurst := flag.Int("rate-global-burst", 0, "global rate limit burst allowance")
	loginLimit := flag.Int("rate-login-limit", 0, "maximum login attempts per window for a single IP")
	loginWindow := flag.Duration("rate-login-window", 0, "window for counting login attempts")
	redisAddr := flag.String("rate-redis-addr", "", "Redis address for distributed login throttling")
	redisPassword := flag.String("rate-redis-password", "", "Redis password for distributed login throttling")
	redisTimeout := flag.Duration("rate-redis-timeout", 0, "timeout for Redis operations")
	flag.Parse()

	logger := logging.Init(logging.Config{
		Level:  firstNonEmpty(*logLevel, os.Getenv("CLIPSTREAM_LOG_LEVEL")),
		Format: firstNonEmpty(*logFormat, os.Getenv("CLIPSTREAM_LOG_FORMAT")),
	})

	secret := firstNonEmpty(*jwtSecret, os.Getenv("CLIPSTREAM_JWT_SECRET"))
	if secret == "" {
		logger.Error("no token secret configured: provide --jwt-secret or CLIPSTREAM_JWT_SECRET")
		os.Exit(1)
	}

	dataFile := firstNonEmpty(*dataPath, os.Getenv("CLIPSTREAM_DATA"), "data/store.json")
	store, err := storage.NewStorage(dataFile)
	if err != nil {
		logger.Error("failed to open datastore", "error", err)
		os.Exit(1)
	}

	var codecOptions []auth.CodecOption
	if ttl := resolveDuration(*accessTTL, "CLIPSTREAM_ACCESS_TTL", 0); ttl > 0 {
		codecOptions = append(codecOptions, auth.WithAccessTTL(ttl))
	}
	if ttl := resolveDuration(*refreshTTL, "CLIPSTREAM_REFRESH_TTL", 0); ttl > 0 {
		codecOptions = append(codecOptions, auth.WithRefreshTTL(ttl))
	}
	codec, err := auth.NewCodec(secret, codecOptions...)
	if err != nil {
		logger.Error("failed to configure token codec", "error", err)
		os.Exit(1)
	}

	// The JSON datastore doubles as the refresh token store so local
	// deployments need no extra infrastructure. A Postgres DSN moves refresh
	// state into a shared table for multi-instance deployments.
	var (
		refreshStore  auth.RefreshTokenStore = store
		refreshCloser func(context.Context) error
	)
	refreshDSN := strings.TrimSpace(firstNonEmpty(*refreshPostgresDSN, os.Getenv("CLIPSTREAM_POSTGRES_DSN"), os.Getenv("DATABASE_URL")))
	if refreshDSN != "" {
		pgStore, err := auth.NewPostgresRefreshStore(context.Background(), refreshDSN)
		if err != nil {
			logger.Error("failed to open refresh token store", "error", err)
			os.Exit(1)
		}
		refreshStore = pgStore
		refreshCloser = pgStore.Close
	}

	sessions := auth.NewSessionManager(store, codec,
		auth.WithRefreshStore(refreshStore),
		auth.WithLogger(logging.WithComponent(logger, "auth")),
	)

	mediaRoot := firstNonEmpty(*mediaDir, os.Getenv("CLIPSTREAM_MEDIA_DIR"), "data/media")
	mediaStore, err := media.NewLocalStore(mediaRoot, firstNonEmpty(*mediaBaseURL, os.Getenv("CLIPSTREAM_MEDIA_BASE_URL"), "/media"))
	if err != nil {
		logger.Error("failed to open media store", "error", err)
		os.Exit(1)
	}

	handler := api.NewHandler(store, sessions, mediaStore, logger)
	if resolveBool(*secureCookies, "CLIPSTREAM_SECURE_COOKIES") {
		handler.CookiePolicy.SecureMode = api.AuthCookieSecureAlways
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	purgeStop := func() {}
	if purger, ok := refreshStore.(refreshPurger); ok {
		purgeStop = startRefreshPurgeWorker(workerCtx, logging.WithComponent(logger, "refresh-purger"), purger, 15*time.Minute)
	}
	defer purgeStop()

	rateCfg := server.RateLimitConfig{
		GlobalRPS:     resolveFloat(*globalRPS, "CLIPSTREAM_RATE_GLOBAL_RPS"),
		GlobalBurst:   resolveInt(*globalBurst, "CLIPSTREAM_RATE_GLOBAL_BURST"),
		LoginLimit:    resolveInt(*loginLimit, "CLIPSTREAM_RATE_LOGIN_LIMIT"),
		LoginWindow:   resolveDuration(*loginWindow, "CLIPSTREAM_RATE_LOGIN_WINDOW", time.Minute),
		RedisAddr:     firstNonEmpty(*redisAddr, os.Getenv("CLIPSTREAM_RATE_REDIS_ADDR")),
		RedisPassword: firstNonEmpty(*redisPassword, os.Getenv("CLIPSTREAM_RATE_REDIS_PASSWORD")),
		RedisTimeout:  resolveDuration(*redisTimeout, "CLIPSTREAM_RATE_REDIS_TIMEOUT", 2*time.Second),
	}

	listenAddr := firstNonEmpty(*addr, os.Getenv("CLIPSTREAM_ADDR"), ":8080")
	srv, err := server.New(handler, server.Config{
		Addr:      listenAddr,
		MediaDir:  mediaRoot,
		RateLimit: rateCfg,
		CORS:      server.CORSConfig{AllowedOrigins: splitAndTrim(firstNonEmpty(*corsOrigins, os.Getenv("CLIPSTREAM_CORS_ORIGINS")))},
		Logger:    logger,
	})
	if err != nil {
		logger.Error("failed to initialise server", "error", err)
		os.Exit(1)
	}

	errs := make(chan error, 1)
	go func() {
		logger.Info("Clipstream API listening", "addr", listenAddr)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errs:
		logger.Error("server error", "error", err)
	}

	workerCancel()
	purgeStop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
	}
	if refreshCloser != nil {
		if err := refreshCloser(ctx); err != nil {
			logger.Warn("failed to close refresh token store", "error", err)
		}
	}

	logger.Info("server stopped")
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func splitAndTrim(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func resolveFloat(flagValue float64, envKey string) float64 {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.ParseFloat(strings.TrimSpace(env), 64); err == nil {
			return value
		}
	}
	return 0
}

func resolveInt(flagValue int, envKey string) int {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.Atoi(strings.TrimSpace(env)); err == nil {
			return value
		}
	}
	return 0
}

func resolveDuration(flagValue time.Duration, envKey string, fallback time.Duration) time.Duration {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := time.ParseDuration(env); err == nil {
			return value
		}
	}
	return fallback
}

func resolveBool(flagValue bool, envKey string) bool {
	if flagValue {
		return true
	}
	if env, ok := os.LookupEnv(envKey); ok {
		if value, err := strconv.ParseBool(strings.TrimSpace(env)); err == nil {
			return value
		}
	}
	return false
}
