package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/diabcrf/crf/internal/config"
	"github.com/diabcrf/crf/internal/domain/admin"
	"github.com/diabcrf/crf/internal/domain/casereport"
	"github.com/diabcrf/crf/internal/domain/patient"
	"github.com/diabcrf/crf/internal/platform/auth"
	"github.com/diabcrf/crf/internal/platform/db"
	"github.com/diabcrf/crf/internal/platform/middleware"
	"github.com/diabcrf/crf/internal/platform/pages"
	"github.com/diabcrf/crf/internal/platform/scheduler"
	"github.com/diabcrf/crf/internal/platform/session"
)

const version = "0.3.0"

// exportPrefix is exempt from the request timeout; exports stream.
const exportPrefix = "/api/v1/patients/export"

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stdout)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		db.NewPoolCollector(pool),
	)

	schema, err := casereport.LoadSchema()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid form schema")
	}

	adminSvc := admin.NewService(
		admin.NewProfileRepo(pool),
		admin.NewCenterRepo(pool),
		admin.NewInvitationRepo(pool),
		pool,
		admin.Options{PublicURL: cfg.PublicURL, InvitationTTL: cfg.InvitationTTL},
		logger,
	)
	patientSvc := patient.NewService(patient.NewRepo(pool))
	crfSvc, err := casereport.NewService(schema, casereport.NewDraftStore(cfg.DraftCapacity, cfg.DraftTTL), patientSvc, logger, reg)
	if err != nil {
		return err
	}

	e, err := newServer(cfg, logger, reg, pool, adminSvc, patientSvc, crfSvc)
	if err != nil {
		return err
	}

	jobs := scheduler.New(logger, time.Minute)
	if err := jobs.Register("purge-invitations", cfg.PurgeSchedule, adminSvc.PurgeExpired); err != nil {
		return err
	}
	jobs.Start()
	defer jobs.Stop()

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("version", version).Msg("starting server")
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
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newServer builds the echo instance with every route and middleware.
// pool may be nil, in which case /health/db is not mounted.
func newServer(cfg *config.Config, logger zerolog.Logger, reg *prometheus.Registry, pool *pgxpool.Pool,
	adminSvc *admin.Service, patientSvc *patient.Service, crfSvc *casereport.Service) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	httpMetrics, err := middleware.NewHTTPMetrics(reg)
	if err != nil {
		return nil, err
	}

	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(httpMetrics.Middleware())
	secHeaders := middleware.DefaultSecurityHeadersConfig()
	secHeaders.HSTS = !cfg.IsDev()
	e.Use(middleware.SecurityHeaders(secHeaders))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.RequestIDHeader},
	}))
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.RequestTimeout(30*time.Second, exportPrefix))
	e.Use(auth.JWTMiddleware(auth.JWTConfig{
		Issuer:   cfg.AuthIssuer,
		Audience: cfg.AuthAudience,
		Secret:   []byte(cfg.AuthJWTSecret),
		Skipper:  auth.AuthSkipper,
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
	})
	if pool != nil {
		e.GET("/health/db", db.HealthHandler(pool))
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	limits := middleware.DefaultRateLimitConfig()
	limits.RequestsPerSecond = cfg.RateLimitRPS
	limits.BurstSize = cfg.RateLimitBurst

	api := e.Group("/api/v1", middleware.RateLimit(limits), session.Loader(adminSvc, logger, nil))

	// Reachable before sign-up completes.
	api.GET("/me", session.Handler)
	api.GET("/pages/:page", pages.Handler)

	app := api.Group("", session.RequireProfile())
	admin.NewHandler(adminSvc, logger).RegisterRoutes(app, api)
	patient.NewHandler(patientSvc, logger).RegisterRoutes(app)
	casereport.NewHandler(crfSvc).RegisterRoutes(app)

	return e, nil
}
