package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-chat-scheduling/internal/api"
	"github.com/hackgods/clinic-chat-scheduling/internal/appointment"
	"github.com/hackgods/clinic-chat-scheduling/internal/chat"
	"github.com/hackgods/clinic-chat-scheduling/internal/config"
	"github.com/hackgods/clinic-chat-scheduling/internal/db"
	"github.com/hackgods/clinic-chat-scheduling/internal/logger"
	"github.com/hackgods/clinic-chat-scheduling/internal/metrics"
	redisclient "github.com/hackgods/clinic-chat-scheduling/internal/redis"
	"github.com/hackgods/clinic-chat-scheduling/internal/session"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger is not configured yet
		_, _ = os.Stderr.WriteString("config load error: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger init error: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("store_backend", cfg.StoreBackend),
		zap.String("session_backend", cfg.SessionBackend),
		zap.String("timezone", cfg.Location.String()),
		zap.String("version", version),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var checks []api.HealthCheck

	repo, closeRepo, err := openRepository(rootCtx, cfg, log)
	if err != nil {
		log.Fatal("appointment store init failed", zap.Error(err))
	}
	defer closeRepo()
	if pinger, ok := repo.(interface{ Ping(context.Context) error }); ok {
		checks = append(checks, api.HealthCheck{Name: "postgres", Critical: true, Ping: pinger.Ping})
	}

	var (
		locker   redisclient.Locker
		sessions session.Store
	)
	switch cfg.SessionBackend {
	case config.BackendRedis:
		rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			log.Fatal("redis connection error", zap.Error(err))
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Warn("error closing redis", zap.Error(err))
			}
		}()
		log.Info("connected to Redis", zap.String("addr", cfg.RedisAddr))

		locker = redisclient.NewRedisLocker(rdb, cfg.LockTTL)
		sessions = session.NewRedisStore(rdb, cfg.SessionTTL, nil)
		checks = append(checks, api.HealthCheck{
			Name: "redis",
			Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
	default:
		locker = redisclient.NewLocalLocker(cfg.LockTTL)
		sessions = session.NewMemoryStore(cfg.SessionCacheSize, cfg.SessionTTL)
	}

	registry := prometheus.NewRegistry()
	chatMetrics := metrics.NewChatMetrics(registry)

	svc := appointment.NewService(repo, repo, locker, log.Named("appointment"))
	engine := chat.NewEngine(svc, sessions, locker, log.Named("chat"),
		chat.WithLocation(cfg.Location),
		chat.WithMetrics(chatMetrics),
	)

	router := api.NewRouter(api.RouterConfig{
		Chat:     engine,
		Service:  svc,
		Checks:   checks,
		Metrics:  metrics.Handler(registry),
		Logger:   log.Named("http"),
		Location: cfg.Location,
		Env:      cfg.Env,
		Version:  version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}

type store interface {
	appointment.Repository
	appointment.DoctorDirectory
}

// openRepository returns the appointment store for cfg.StoreBackend. For
// Postgres it also applies migrations and syncs the doctor roster.
func openRepository(ctx context.Context, cfg config.Config, log *zap.Logger) (store, func(), error) {
	if cfg.StoreBackend == config.BackendMemory {
		log.Warn("using in-memory appointment store; data is lost on restart")
		return appointment.NewMemoryRepository(appointment.DefaultRoster()), func() {}, nil
	}

	if err := db.MigrateUp(cfg.PostgresDSN); err != nil {
		return nil, nil, err
	}
	log.Info("migrations applied")

	pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.PostgresMaxConns)
	if err != nil {
		return nil, nil, err
	}
	log.Info("connected to Postgres", zap.Int32("max_conns", cfg.PostgresMaxConns))

	repo := appointment.NewPgRepository(pool)
	if err := repo.UpsertDoctors(pgCtx, appointment.DefaultRoster()); err != nil {
		pool.Close()
		return nil, nil, err
	}

	return &pgStore{PgRepository: repo, ping: pool.Ping}, pool.Close, nil
}

type pgStore struct {
	*appointment.PgRepository
	ping func(context.Context) error
}

func (s *pgStore) Ping(ctx context.Context) error {
	return s.ping(ctx)
}
