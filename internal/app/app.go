package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	httpapp "food-delivery/internal/app/http"
	"food-delivery/internal/config"
	"food-delivery/internal/lib/jwt"
	"food-delivery/internal/lib/password"
	"food-delivery/internal/lib/sl"
	"food-delivery/internal/services/auth"
	"food-delivery/internal/services/user"
	"food-delivery/internal/storage/mongodb"
	"food-delivery/internal/storage/postgres"
	redisstore "food-delivery/internal/storage/redis"
	"food-delivery/internal/storage/sqlite"
)

// userStorage is what every relational or document driver provides.
type userStorage interface {
	auth.UserProvider
	user.UserStorage
	user.AddressStorage
	Ping(ctx context.Context) error
}

type App struct {
	HTTPSrv *httpapp.App

	logger  *slog.Logger
	closers []namedCloser
}

type namedCloser struct {
	name  string
	close func(ctx context.Context) error
}

// New connects to the configured stores and assembles the services. It
// panics on any setup failure, like the rest of the startup path.
func New(ctx context.Context, logger *slog.Logger, cfg *config.Config) *App {
	a := &App{logger: logger}

	storage, err := a.openStorage(ctx, cfg.Storage)
	if err != nil {
		a.close(ctx)
		panic(err)
	}

	refreshTokens, err := redisstore.New(ctx, cfg.Redis.Addr(), cfg.Redis.Pass, cfg.Redis.DB)
	if err != nil {
		a.close(ctx)
		panic(err)
	}
	a.closers = append(a.closers, namedCloser{"redis", func(context.Context) error { return refreshTokens.Close() }})

	hasher, err := password.New(cfg.Password)
	if err != nil {
		a.close(ctx)
		panic(err)
	}

	issuer, err := jwt.New(cfg.Auth.SecretKey, cfg.Auth.Algorithm)
	if err != nil {
		a.close(ctx)
		panic(err)
	}

	authService := auth.New(logger, storage, storage, hasher, issuer, refreshTokens, cfg.AccessTTL(), cfg.RefreshTTL())
	userService := user.New(logger, storage, storage, hasher, authService)

	a.HTTPSrv = httpapp.New(logger, cfg.HTTP, authService, authService, userService, map[string]httpapp.Pinger{
		cfg.Storage.Driver: storage,
		"redis":            refreshTokens,
	})

	return a
}

func (a *App) openStorage(ctx context.Context, cfg config.StorageConfig) (userStorage, error) {
	const op = "app.openStorage"

	a.logger.Info("opening storage", slog.String("op", op), slog.String("driver", cfg.Driver))

	switch cfg.Driver {
	case config.DriverSQLite:
		s, err := sqlite.New(cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		a.closers = append(a.closers, namedCloser{cfg.Driver, func(context.Context) error { return s.Close() }})
		return s, nil
	case config.DriverPostgres:
		s, err := postgres.New(cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		a.closers = append(a.closers, namedCloser{cfg.Driver, func(context.Context) error { return s.Close() }})
		return s, nil
	case config.DriverMongoDB:
		s, err := mongodb.New(ctx, cfg.DSN(), cfg.Name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		a.closers = append(a.closers, namedCloser{cfg.Driver, s.Close})
		return s, nil
	default:
		return nil, fmt.Errorf("%s: unknown driver %q", op, cfg.Driver)
	}
}

// Stop shuts the HTTP server down and then releases the stores.
func (a *App) Stop(ctx context.Context) {
	if a.HTTPSrv != nil {
		a.HTTPSrv.Stop(ctx)
	}
	a.close(ctx)
}

func (a *App) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.close(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("failed to close", slog.String("resource", c.name), sl.Err(err))
		}
	}
	a.closers = nil
}
