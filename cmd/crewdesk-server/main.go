package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/crewdesk/crewdesk/pkg/api"
	"github.com/crewdesk/crewdesk/pkg/audit"
	"github.com/crewdesk/crewdesk/pkg/authz"
	"github.com/crewdesk/crewdesk/pkg/config"
	"github.com/crewdesk/crewdesk/pkg/identity"
	"github.com/crewdesk/crewdesk/pkg/middleware"
	"github.com/crewdesk/crewdesk/pkg/objects"
	"github.com/crewdesk/crewdesk/pkg/observability"
	"github.com/crewdesk/crewdesk/pkg/store"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		os.Stderr.WriteString("invalid configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("server exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := observability.ShutdownOTel(shutdownCtx, otelProviders, logger); err != nil {
			logger.WithError(err).Warn("OpenTelemetry shutdown failed")
		}
	}()

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxConns)
	db.SetMaxIdleConns(cfg.Database.MinConns)

	if err := db.PingContext(ctx); err != nil {
		return err
	}

	if err := store.RunMigrations(ctx, db); err != nil {
		return err
	}
	if err := identity.RunMigrations(ctx, db); err != nil {
		return err
	}
	logger.Info("database migrations applied")

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return err
		}
		if cfg.Redis.Password != "" {
			opts.Password = cfg.Redis.Password
		}
		if cfg.Redis.DB != 0 {
			opts.DB = cfg.Redis.DB
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			// Redis only accelerates role lookups and rate limiting; a
			// missing cache is not fatal.
			logger.WithError(err).Warn("redis unreachable, continuing without shared cache")
		} else {
			logger.Info("redis connected")
		}
	}

	var registry *prometheus.Registry
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		registry = prometheus.NewRegistry()
		metrics = observability.NewMetrics(registry)
	}

	auditLogger, err := audit.NewDBLogger(db)
	if err != nil {
		return err
	}

	var observers []authz.DecisionObserver
	if metrics != nil {
		observers = append(observers, decisionMetrics(metrics))
	}
	observers = append(observers, audit.DenialObserver(auditLogger, logger))

	resolverOpts := []authz.ResolverOption{}
	if redisClient != nil {
		resolverOpts = append(resolverOpts,
			authz.WithRoleCache(authz.NewRedisRoleCache(redisClient, cfg.Cache.RoleTTL)))
	}
	resolver := authz.NewResolver(cfg.Cache.RoleTTL, resolverOpts...)
	engine := authz.NewEngine(resolver, observers...)

	st := store.NewStore(db, engine)

	backend, err := newObjectBackend(ctx, cfg.Objects)
	if err != nil {
		return err
	}
	logger.Infof("object storage backend: %s", cfg.Objects.Backend)

	tokens := identity.NewTokenManager(db)
	provisioner := identity.NewProvisioner(db, st)

	var oidc *identity.OIDCAuthenticator
	if cfg.OIDCEnabled() {
		oidc, err = identity.NewOIDCAuthenticator(ctx, cfg.OIDC)
		if err != nil {
			return err
		}
		logger.Infof("OIDC login enabled via %s", cfg.OIDC.IssuerURL)
	}

	rateLimit := newRateLimit(ctx, redisClient)

	server := api.NewServer(api.Config{
		Store:       st,
		Gateway:     objects.NewGateway(st, backend),
		Tokens:      tokens,
		Provisioner: provisioner,
		OIDC:        oidc,
		Audit:       auditLogger,
		Logger:      logger,
		Metrics:     metrics,
		RateLimit:   rateLimit,
	})

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	checker := observability.NewHealthChecker(db, redisClient).
		WithCheck("objects", backend.HealthCheck)
	observability.RegisterHealthRoutes(healthMux, checker)
	if registry != nil {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Infof("API server listening on %s", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		logger.Infof("health server listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

// decisionMetrics counts every authorization decision by resource, operation
// and outcome.
func decisionMetrics(metrics *observability.Metrics) authz.DecisionObserver {
	return func(identity string, resource authz.Resource, op authz.Operation, target authz.Target, decision authz.Decision) {
		outcome := "denied"
		if decision.Allowed {
			outcome = "allowed"
		}
		metrics.AuthzDecisionsTotal.WithLabelValues(string(resource), string(op), outcome).Inc()
	}
}

// newRateLimit picks the Redis-backed limiter when a shared cache is
// available so limits hold across replicas, and the in-process one otherwise.
func newRateLimit(ctx context.Context, redisClient *redis.Client) func(http.Handler) http.Handler {
	if redisClient != nil {
		return middleware.NewDistributedRateLimitMiddleware(redisClient).Handler
	}
	rl := middleware.NewRateLimitMiddleware()
	rl.StartCleanup(ctx)
	return rl.Handler
}

func newObjectBackend(ctx context.Context, cfg objects.Config) (objects.Backend, error) {
	if cfg.Backend == "s3" {
		return objects.NewS3Backend(ctx, cfg)
	}
	return objects.NewFilesystemBackend(cfg.RootDir)
}
