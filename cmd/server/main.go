// server runs the multi-tenant auth API over HTTP and the gRPC health service.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/health"

	"saas-core/backend/internal/audit"
	auditrepo "saas-core/backend/internal/audit/repository"
	"saas-core/backend/internal/config"
	"saas-core/backend/internal/db"
	healthhandler "saas-core/backend/internal/health/handler"
	identityhandler "saas-core/backend/internal/identity/handler"
	"saas-core/backend/internal/identity/service"
	"saas-core/backend/internal/logger"
	"saas-core/backend/internal/platform/redisx"
	"saas-core/backend/internal/policy/engine"
	"saas-core/backend/internal/security"
	"saas-core/backend/internal/server"
	"saas-core/backend/internal/server/interceptors"
	sessionrepo "saas-core/backend/internal/session/repository"
	"saas-core/backend/internal/telemetry"
	telemetryotel "saas-core/backend/internal/telemetry/otel"
	"saas-core/backend/internal/telemetry/producer"
	tenantrepo "saas-core/backend/internal/tenant/repository"
	"saas-core/backend/internal/tenant/resolver"
	userrepo "saas-core/backend/internal/user/repository"
)

const (
	healthInterval  = 10 * time.Second
	shutdownTimeout = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if err := cfg.RequireAuth(); err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.Env, nil)
	if cfg.IsDevelopment() {
		figure.NewFigure("saas-core", "cybermedium", true).Print()
		fmt.Println()
	}
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.OTelServiceName,
		Environment: cfg.Env,
		Insecure:    cfg.OTLPInsecure,
	}, log)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	providers.SetGlobal()

	database, err := db.Open(ctx, cfg.DatabaseURL, db.DefaultPoolOptions)
	if err != nil {
		return err
	}
	defer database.Close()

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		if rdb, err = redisx.Connect(ctx, cfg.RedisURL); err != nil {
			return err
		}
		defer rdb.Close()
	}

	sessions, err := sessionStore(cfg, database, rdb)
	if err != nil {
		return err
	}
	log.Info().Str("session_store", cfg.SessionStore).Msg("session store selected")

	var tenants tenantrepo.Repository = tenantrepo.NewPostgresRepository(database)
	if rdb != nil {
		tenants = tenantrepo.NewCachedRepository(tenants, rdb, cfg.TenantCacheTTL, log)
	}

	hasher, err := security.NewPasswordHasher(cfg.PasswordHasher, cfg.Argon2Params(), cfg.BcryptCost)
	if err != nil {
		return err
	}
	tokens, err := security.NewTokenCodec(cfg.TokenConfig())
	if err != nil {
		return err
	}

	emitters := []telemetry.EventEmitter{telemetryotel.NewEventEmitter(providers.LoggerProvider)}
	kafkaProducer := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.AuthEventsTopic)
	if kafkaProducer != nil {
		emitters = append(emitters, kafkaProducer)
		log.Info().Strs("brokers", cfg.KafkaBrokersList()).Str("topic", cfg.AuthEventsTopic).Msg("auth event streaming enabled")
	}

	authSvc, err := service.NewAuthService(
		service.NewCredentialVerifier(userrepo.NewPostgresRepository(database), hasher, log),
		sessions,
		tokens,
		service.WithLogger(log),
		service.WithAudit(audit.NewLogger(auditrepo.NewPostgresRepository(database), interceptors.ClientIP, log)),
		service.WithEvents(telemetry.Multi(emitters...)),
	)
	if err != nil {
		return err
	}

	authz, err := engine.NewOPAAuthorizer(ctx)
	if err != nil {
		return fmt.Errorf("policy: %w", err)
	}

	checker := healthhandler.NewChecker(database, authz)
	grpcHealth := health.NewServer()
	go checker.Watch(ctx, grpcHealth, healthInterval, log)

	handler := server.NewRouter(server.RouterDeps{
		Log: log,
		Auth: identityhandler.NewAuthHandler(authSvc, identityhandler.CookieConfig{
			Name:     cfg.RefreshCookieName,
			Path:     cfg.RefreshCookiePath,
			Secure:   cfg.RefreshCookieSecure,
			SameSite: identityhandler.ParseSameSite(strings.ToLower(cfg.RefreshCookieSameSite)),
		}),
		Tokens:  tokens,
		Tenants: resolver.New(tenants, cfg.AppRootDomain),
		Authz:   authz,
		Audit:   auditrepo.NewPostgresRepository(database),
		Health:  checker,
	})
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	grpcSrv := server.NewGRPCServer(server.GRPCDeps{
		Tokens:     tokens,
		Health:     grpcHealth,
		Reflection: cfg.IsDevelopment(),
	})
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.GRPCAddr, err)
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()
	go func() {
		log.Info().Str("addr", cfg.GRPCAddr).Msg("gRPC server listening")
		if err := grpcSrv.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc: %w", err)
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case serveErr = <-errCh:
		log.Error().Err(serveErr).Msg("server failed, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	grpcHealth.Shutdown()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	grpcSrv.GracefulStop()

	// Let in-flight async auth events finish before the sinks close.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			log.Warn().Err(err).Msg("kafka producer close")
		}
	}
	_ = providers.Shutdown(shutdownCtx)
	log.Info().Msg("stopped")
	return serveErr
}

func sessionStore(cfg *config.Config, database *sql.DB, rdb *redis.Client) (sessionrepo.Repository, error) {
	switch cfg.SessionStore {
	case config.SessionStoreRedis:
		if rdb == nil {
			return nil, errors.New("redis session store requires REDIS_URL")
		}
		return sessionrepo.NewRedisRepository(rdb), nil
	case config.SessionStoreMemory:
		return sessionrepo.NewMemoryRepository(), nil
	default:
		return sessionrepo.NewPostgresRepository(database), nil
	}
}
