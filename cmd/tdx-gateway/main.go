package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/skylane-tw/tdx-air-gateway/internal/config"
	"github.com/skylane-tw/tdx-air-gateway/internal/httpapi"
	"github.com/skylane-tw/tdx-air-gateway/pkg/auth"
	"github.com/skylane-tw/tdx-air-gateway/pkg/cache"
	"github.com/skylane-tw/tdx-air-gateway/pkg/client"
	"github.com/skylane-tw/tdx-air-gateway/pkg/gateway"
	"github.com/skylane-tw/tdx-air-gateway/pkg/logging"
	"github.com/skylane-tw/tdx-air-gateway/pkg/ratelimit"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var envFile string

	cmd := &cobra.Command{
		Use:   "tdx-gateway",
		Short: "HTTP gateway for the TDX aviation open-data API",
		Long: `tdx-gateway fronts the TDX aviation API for browser clients. It holds the
OAuth2 client-credentials token, caches responses for a short TTL and lets
at most one upstream call per endpoint through each rate window.

Credentials come from TDX_CLIENT_ID and TDX_CLIENT_SECRET (environment or .env).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&envFile, "env-file", ".env", "dotenv file to load if present")
	flags.Int("port", 3000, "HTTP listen port")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.Bool("log-pretty", false, "human-readable console logs")
	flags.String("redis-url", "", "Redis URL for the shared rate limiter (in-process when empty)")
	flags.Duration("cache-ttl", cache.DefaultTTL, "response cache TTL")
	flags.Duration("rate-window", ratelimit.DefaultWindow, "minimum interval between upstream calls per endpoint")
	flags.String("static-dir", "", "directory served at / (browser page)")

	bindings := map[string]string{
		config.KeyPort:       "port",
		config.KeyLogLevel:   "log-level",
		config.KeyLogPretty:  "log-pretty",
		config.KeyRedisURL:   "redis-url",
		config.KeyCacheTTL:   "cache-ttl",
		config.KeyRateWindow: "rate-window",
		config.KeyStaticDir:  "static-dir",
	}
	for key, flag := range bindings {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}

	return cmd
}

// app is the wired process: HTTP server plus the resources it owns.
type app struct {
	echo   *echo.Echo
	redis  *redis.Client
	addr   string
	logger zerolog.Logger
}

// build wires every component from cfg without starting the listener.
func build(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
	})

	responses, err := cache.New(cache.Config{TTL: cfg.CacheTTL, Capacity: cfg.CacheCapacity})
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}

	var (
		limiter     ratelimit.Limiter
		ready       httpapi.Pinger
		redisClient *redis.Client
	)
	limiterLogger := logging.NewLogger("ratelimit")
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing REDIS_URL: %w", err)
		}
		redisClient = redis.NewClient(opts)

		rl := ratelimit.NewRedisLimiter(redisClient, cfg.RateWindow, nil, limiterLogger)
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := rl.Ping(pingCtx); err != nil {
			logger.Warn().Err(err).Str("addr", opts.Addr).Msg("Redis unreachable, admission falls back to in-process limiter")
		} else {
			logger.Info().Str("addr", opts.Addr).Msg("Connected to Redis")
		}
		cancel()

		limiter = rl
		ready = rl
	} else {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateWindow, nil, limiterLogger)
	}

	tokens, err := auth.NewManager(auth.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.AuthURL,
		HTTPClient:   &http.Client{Timeout: cfg.UpstreamTimeout},
	}, logging.NewLogger("auth"))
	if err != nil {
		return nil, fmt.Errorf("creating token manager: %w", err)
	}

	clientCfg := client.DefaultConfig()
	clientCfg.BaseURL = cfg.APIURL
	clientCfg.Timeout = cfg.UpstreamTimeout
	upstream, err := client.New(clientCfg, logging.NewLogger("client"))
	if err != nil {
		return nil, fmt.Errorf("creating TDX client: %w", err)
	}

	gw, err := gateway.New(gateway.Config{
		Cache:      responses,
		Limiter:    limiter,
		Tokens:     tokens,
		Upstream:   upstream,
		RateWindow: cfg.RateWindow,
	}, logging.NewLogger("gateway"))
	if err != nil {
		return nil, err
	}

	e := httpapi.New(gw, httpapi.Config{
		StaticDir: cfg.StaticDir,
		Ready:     ready,
	}, logging.NewLogger("http"))

	return &app{echo: e, redis: redisClient, addr: cfg.Addr(), logger: logger}, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	a, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	a.logger.Info().
		Str("addr", a.addr).
		Str("api_url", cfg.APIURL).
		Dur("cache_ttl", cfg.CacheTTL).
		Dur("rate_window", cfg.RateWindow).
		Bool("redis", a.redis != nil).
		Msg("Starting TDX gateway")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.echo.Start(a.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info().Msg("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.echo.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	a.logger.Info().Msg("Server exited")
	return nil
}

func (a *app) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Closing Redis client")
		}
	}
}
