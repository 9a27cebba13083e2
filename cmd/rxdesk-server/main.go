package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rxdesk/rxdesk/internal/config"
	"github.com/rxdesk/rxdesk/internal/domain/prescription"
	"github.com/rxdesk/rxdesk/internal/domain/reference"
	"github.com/rxdesk/rxdesk/internal/platform/auth"
	"github.com/rxdesk/rxdesk/internal/platform/db"
	"github.com/rxdesk/rxdesk/internal/platform/events"
	"github.com/rxdesk/rxdesk/internal/platform/metrics"
	"github.com/rxdesk/rxdesk/internal/platform/middleware"
	"github.com/rxdesk/rxdesk/internal/platform/notification"
	"github.com/rxdesk/rxdesk/internal/platform/scheduler"
	"github.com/rxdesk/rxdesk/internal/platform/websocket"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rxdesk-server",
		Short: "Prescription dashboard API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	open := func(cmd *cobra.Command) (*db.Migrator, func(), error) {
		dir, _ := cmd.Flags().GetString("dir")
		schema, _ := cmd.Flags().GetString("schema")

		cfg, err := config.Load()
		if err != nil {
			return nil, nil, err
		}
		if schema == "" {
			schema = cfg.DBSchema
		}

		pool, err := db.NewPool(cmd.Context(), cfg.DatabaseURL, schema, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, nil, err
		}
		return db.NewMigrator(pool, dir, schema), pool.Close, nil
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator, closeFn, err := open(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			count, err := migrator.Up(cmd.Context())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator, closeFn, err := open(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			statuses, err := migrator.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status, appliedAt := "pending", ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}

	for _, c := range []*cobra.Command{upCmd, statusCmd} {
		c.Flags().String("dir", "./migrations", "Path to migrations directory")
		c.Flags().String("schema", "", "Target schema (defaults to DB_SCHEMA)")
		cmd.AddCommand(c)
	}
	return cmd
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// newBus uses Redis pub/sub when a URL is configured so that every instance
// reloads after a write on any of them.
func newBus(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (events.Bus, error) {
	if cfg.RedisURL == "" {
		logger.Info().Msg("REDIS_URL not set, change events stay in-process")
		return events.NewLocalBus(), nil
	}
	client, err := events.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	logger.Info().Msg("connected to redis")
	return events.NewRedisBus(client, events.DefaultChannel, logger), nil
}

// app holds everything the HTTP server routes to.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	health  db.Pinger
	refs    *reference.Service
	svc     *prescription.Service
	board   *notification.Board
	hub     *websocket.Hub
	limiter *middleware.RateLimiter
}

func newServer(a *app) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(metrics.Middleware())
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: a.cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.BodyLimit(a.cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(a.cfg.RequestTimeout))

	e.GET("/health", db.HealthHandler(a.health))
	e.GET("/metrics", metrics.Handler())

	jwtCfg := auth.JWTConfig{Issuer: a.cfg.AuthIssuer, SigningKey: []byte(a.cfg.AuthSecret)}
	authMW := auth.JWTMiddleware(jwtCfg)
	if a.cfg.IsDev() {
		authMW = auth.DevAuthMiddleware(jwtCfg)
	}

	apiV1 := e.Group("/api/v1", a.limiter.Middleware(), authMW, middleware.Audit(a.logger))

	reference.NewHandler(a.refs).RegisterRoutes(apiV1)
	prescription.NewHandler(a.svc).RegisterRoutes(apiV1)
	notification.NewHandler(a.board).RegisterRoutes(apiV1)
	websocket.NewHandler(a.hub).RegisterRoutes(apiV1)

	return e
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBSchema, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	bus, err := newBus(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up event bus")
	}
	defer bus.Close()

	registry := reference.NewRegistryPG(pool)
	board := notification.NewBoard()
	refs := reference.NewService(registry, board, bus, logger)
	refs.SetNoticeTTLs(cfg.NoticeSuccessTTL, cfg.NoticeErrorTTL)
	svc := prescription.NewService(
		registry,
		prescription.NewStorePG(pool),
		prescription.NewSessions(cfg.DraftTTL),
		board,
		bus,
		logger,
	)
	svc.SetNoticeTTLs(cfg.NoticeSuccessTTL, cfg.NoticeErrorTTL)

	// The snapshot is loaded lazily when this fails, so a database that is
	// still starting up does not stop the server.
	if err := svc.Reload(ctx); err != nil {
		logger.Warn().Err(err).Msg("initial snapshot load failed")
	}
	if err := svc.Listen(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to subscribe to change events")
	}

	hub := websocket.NewHub(logger)
	if err := hub.Run(ctx, bus); err != nil {
		logger.Fatal().Err(err).Msg("failed to start websocket hub")
	}

	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	})

	jobs := scheduler.New(logger)
	for _, job := range []struct {
		name string
		fn   func() int
	}{
		{"draft-sessions", svc.SweepSessions},
		{"notices", board.Sweep},
		{"rate-limit-buckets", limiter.Sweep},
	} {
		if err := jobs.Every(job.name, cfg.SweepInterval, job.fn); err != nil {
			logger.Fatal().Err(err).Msg("failed to schedule job")
		}
	}
	jobs.Start()
	defer jobs.Stop()

	e := newServer(&app{
		cfg:     cfg,
		logger:  logger,
		health:  pool,
		refs:    refs,
		svc:     svc,
		board:   board,
		hub:     hub,
		limiter: limiter,
	})

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("origin", svc.Origin()).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
