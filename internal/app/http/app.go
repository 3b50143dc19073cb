package httpapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"food-delivery/internal/config"
	authhttp "food-delivery/internal/http/auth"
	"food-delivery/internal/http/middleware"
	"food-delivery/internal/http/respond"
	userhttp "food-delivery/internal/http/user"
	"food-delivery/internal/lib/sl"
)

const readinessTimeout = 2 * time.Second

// Pinger is a dependency checked by /readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

type App struct {
	logger     *slog.Logger
	httpServer *http.Server
	address    string
}

func New(
	logger *slog.Logger,
	cfg config.HTTPConfig,
	authService authhttp.Auth,
	authn middleware.TokenAuthenticator,
	userService userhttp.Users,
	deps map[string]Pinger,
) *App {
	metrics := middleware.NewMetrics()

	limiterOpts := []middleware.RateLimiterOption{}
	if cfg.TrustProxy {
		limiterOpts = append(limiterOpts, middleware.TrustForwardedFor())
	}
	loginLimiter := middleware.NewRateLimiter(cfg.LoginRate, cfg.LoginBurst, limiterOpts...)

	mux := http.NewServeMux()
	authhttp.Register(mux, logger, authService, metrics, loginLimiter.Middleware)
	userhttp.Register(mux, logger, userService, middleware.Authenticate(logger, authn))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /readyz", readiness(logger, deps))
	mux.Handle("GET /metrics", metrics.Handler())

	handler := middleware.Chain(mux,
		middleware.RequestID,
		middleware.Logger(logger),
		middleware.Recoverer(logger),
		metrics.Instrument,
		middleware.MaxBodyBytes(cfg.MaxBodyBytes),
	)

	return &App{
		logger: logger,
		httpServer: &http.Server{
			Addr:              cfg.Address,
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
		},
		address: cfg.Address,
	}
}

// Handler exposes the fully wrapped router.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

func (a *App) MustRun() {
	if err := a.Run(); err != nil {
		panic(err)
	}
}

func (a *App) Run() error {
	const op = "httpapp.Run"

	log := a.logger.With(
		slog.String("op", op),
		slog.String("address", a.address),
	)

	listener, err := net.Listen("tcp", a.address)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("HTTP server is running", slog.String("address", listener.Addr().String()))

	if err := a.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Stop waits for in-flight requests until ctx is done.
func (a *App) Stop(ctx context.Context) {
	const op = "httpapp.Stop"

	log := a.logger.With(slog.String("op", op))
	log.Info("stopping HTTP server", slog.String("address", a.address))

	if err := a.httpServer.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", sl.Err(err))
		_ = a.httpServer.Close()
	}
}

func readiness(logger *slog.Logger, deps map[string]Pinger) http.Handler {
	log := logger.With(slog.String("component", "http/readyz"))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		status := make(map[string]string, len(deps))
		ready := true

		for name, dep := range deps {
			if err := dep.Ping(ctx); err != nil {
				log.Warn("dependency not ready", slog.String("dependency", name), sl.Err(err))
				status[name] = "unavailable"
				ready = false
				continue
			}
			status[name] = "ok"
		}

		if !ready {
			respond.JSON(w, http.StatusServiceUnavailable, status)
			return
		}
		respond.JSON(w, http.StatusOK, status)
	})
}
