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

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/rs/zerolog"

	"github.com/giftcard/giftcard-api/internal/api"
	"github.com/giftcard/giftcard-api/internal/api/session"
	"github.com/giftcard/giftcard-api/internal/core/ports"
	"github.com/giftcard/giftcard-api/internal/core/service"
	"github.com/giftcard/giftcard-api/internal/core/token"
	"github.com/giftcard/giftcard-api/internal/infrastructure/config"
	"github.com/giftcard/giftcard-api/internal/infrastructure/db/mongo"
	"github.com/giftcard/giftcard-api/internal/infrastructure/db/redis"
	"github.com/giftcard/giftcard-api/internal/infrastructure/db/sqlite"
	"github.com/giftcard/giftcard-api/internal/infrastructure/http/handlers"
	"github.com/giftcard/giftcard-api/internal/infrastructure/queue"
	"github.com/giftcard/giftcard-api/internal/pkg/password"
	"github.com/giftcard/giftcard-api/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// stores groups the persistence ports selected by STORE_DRIVER.
type stores struct {
	users  ports.CredentialStore
	roles  ports.RoleStore
	audit  ports.AuditRepository
	probe  handlers.Pinger
	seed   func(context.Context) error
	closer func(context.Context) error
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "giftcard-api",
	})

	hasher := password.NewHasher(cfg.Auth.BcryptCost)
	st, err := openStores(ctx, cfg, hasher, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := st.closer(closeCtx); err != nil {
			log.Error().Err(err).Msg("closing store")
		}
	}()

	if err := st.seed(ctx); err != nil {
		return fmt.Errorf("seed roles: %w", err)
	}

	probes := map[string]handlers.Pinger{"store": st.probe}

	var limiter ports.LoginLimiter
	if cfg.Redis.Addr != "" {
		rdb, err := redis.Connect(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			return err
		}
		defer rdb.Close()
		limiter = redis.NewLoginLimiter(rdb, cfg.Limiter.MaxAttempts, cfg.Limiter.Window)
		probes["redis"] = redis.NewPinger(rdb)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("login limiter enabled")
	}

	dispatcher := queue.NewDispatcher(cfg.Audit.Workers, service.NewAuditService(st.audit, log), log)
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	dispatcher.Start(workerCtx)
	defer func() {
		stopWorkers()
		dispatcher.Wait()
	}()

	codec, err := token.NewCodec(token.Config{
		Secret:   cfg.Auth.JWTSecret,
		Lifetime: cfg.Auth.JWTExpiresIn,
		Issuer:   cfg.Auth.JWTIssuer,
	})
	if err != nil {
		return err
	}

	authService := service.NewAuthService(st.users, st.roles, service.AuthServiceConfig{
		DefaultRoleID: cfg.Auth.DefaultRoleID,
		Limiter:       limiter,
		Audit:         dispatcher,
		Logger:        log,
	})

	if cfg.Admin.Enabled() {
		created, err := authService.EnsureAdmin(ctx, service.AdminAccount{
			Username: cfg.Admin.Username,
			Email:    cfg.Admin.Email,
			Password: cfg.Admin.Password,
		})
		if err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		if !created {
			log.Info().Str("username", cfg.Admin.Username).Msg("admin account already present")
		}
	}

	e := api.NewRouter(api.Dependencies{
		AuthService: authService,
		Codec:       codec,
		Session:     session.NewTransport(codec.Lifetime(), cfg.IsProduction()),
		Audit:       dispatcher,
		Probes:      probes,
		Logger:      log,
	})
	e.Use(echoprometheus.NewMiddleware("giftcard"))
	e.GET("/metrics", echoprometheus.NewHandler())

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Str("store", cfg.Store.Driver).Msg("server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func openStores(ctx context.Context, cfg *config.Config, hasher *password.Hasher, log zerolog.Logger) (*stores, error) {
	switch cfg.Store.Driver {
	case config.DriverMongo:
		client, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database, AppName: "giftcard-api"})
		if err != nil {
			return nil, err
		}
		roles := mongo.NewRoleRepository(db)
		users := mongo.NewUserRepository(db, roles, hasher)
		log.Info().Str("database", cfg.Mongo.Database).Msg("mongo store connected")
		return &stores{
			users: users,
			roles: roles,
			audit: mongo.NewEventRepository(db),
			probe: mongo.NewPinger(db),
			seed: func(ctx context.Context) error {
				if err := users.EnsureIndexes(ctx); err != nil {
					return err
				}
				return roles.Seed(ctx)
			},
			closer: client.Disconnect,
		}, nil

	default:
		db, err := sqlite.Open(ctx, sqlite.Config{Path: cfg.Store.SQLitePath})
		if err != nil {
			return nil, err
		}
		roles := sqlite.NewRoleRepository(db)
		log.Info().Str("path", cfg.Store.SQLitePath).Msg("sqlite store opened")
		return &stores{
			users:  sqlite.NewUserRepository(db, hasher),
			roles:  roles,
			audit:  sqlite.NewEventRepository(db),
			probe:  sqlite.NewPinger(db),
			seed:   roles.Seed,
			closer: func(context.Context) error { return sqlite.Close(db) },
		}, nil
	}
}
