package app

import (
	"context"
	"errors"
	"net/http"
	"noqbot/pkg/config"
	"noqbot/pkg/contracts"
	"noqbot/pkg/health"
	"noqbot/pkg/metrics"
	"noqbot/pkg/middleware"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
)

type closer struct {
	name string
	fn   func() error
}

type Application struct {
	cfg              *config.Config
	server           *http.Server
	idempotencyStore middleware.IdempotencyStore
	rateLimiter      *middleware.PhoneRateLimiter
	phoneExtractor   middleware.PhoneExtractor
	healthHandler    http.Handler
	appHttpHandler   http.Handler
	closers          []closer
}

type Option func(*Application)

// WithPhoneExtractor selects how the rate limiter finds the customer phone.
func WithPhoneExtractor(extractor middleware.PhoneExtractor) Option {
	return func(a *Application) {
		a.phoneExtractor = extractor
	}
}

// WithCloser registers a resource released during graceful shutdown, after
// the server stops accepting requests.
func WithCloser(name string, fn func() error) Option {
	return func(a *Application) {
		a.closers = append(a.closers, closer{name: name, fn: fn})
	}
}

func NewApplication() *Application {
	return &Application{}
}

func (a *Application) SetApp(cfg *config.Config, appHandler contracts.Handler, opts ...Option) {
	a.cfg = cfg
	a.phoneExtractor = middleware.DefaultPhoneExtractor
	for _, opt := range opts {
		opt(a)
	}

	a.setHealthHandler()
	a.setAppHandler(appHandler)
	a.setAppServer()
}

// Handler returns the fully wrapped root handler.
func (a *Application) Handler() http.Handler {
	return a.server.Handler
}

func (a *Application) setHealthHandler() {
	cfg := a.cfg
	healthRouter := httprouter.New()
	healthHandler := health.NewHandler(cfg.Log)
	if cfg.Client.Mongo != nil {
		healthHandler.AddCheck("mongo", health.MongoCheck(cfg.Client.Mongo))
	}
	if cfg.Client.Redis != nil {
		healthHandler.AddCheck("redis", health.RedisCheck(cfg.Client.Redis))
	}
	healthHandler.RegisterRoutes(healthRouter)

	var healthHTTPHandler http.Handler = healthRouter
	healthHTTPHandler = middleware.RequestLogging(cfg.Log)(healthHTTPHandler)
	healthHTTPHandler = middleware.Recovery(cfg.Log)(healthHTTPHandler)
	a.healthHandler = healthHTTPHandler
	cfg.Log.Info("Health endpoints configured with minimal middleware (Recovery + Logging only)")
}

func (a *Application) setAppHandler(appHandler contracts.Handler) {
	cfg := a.cfg
	appRouter := httprouter.New()
	appHandler.RegisterRoutes(appRouter)

	if cfg.Client.Redis != nil {
		a.idempotencyStore = middleware.NewRedisIdempotencyStore(cfg.Client.Redis, cfg.IdempotencyTTL, cfg.Log)
	} else {
		a.idempotencyStore = middleware.NewInMemoryIdempotencyStore(cfg.IdempotencyTTL)
	}
	a.rateLimiter = middleware.NewPhoneRateLimiter(
		cfg.RateLimitRequests,
		cfg.RateLimitWindow,
		a.phoneExtractor,
		cfg.Log,
	)

	allowCredentials := !slices.Contains(cfg.CORSAllowedOrigins, "*")
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{
			"Content-Type",
			"Authorization",
			middleware.IdempotencyHeader,
			middleware.RequestIDHeader,
			middleware.PhoneHeader,
		},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: allowCredentials,
		MaxAge:           12 * 60 * 60,
	})

	authenticator := middleware.NewAuthenticator(cfg.JWTSecret, cfg.Log, nil)

	var appHttpHandler http.Handler = appRouter
	appHttpHandler = middleware.Idempotency(a.idempotencyStore, cfg.Log)(appHttpHandler)
	appHttpHandler = middleware.RequestTimeout(cfg.RequestTimeout)(appHttpHandler)
	appHttpHandler = middleware.PhoneRateLimit(a.rateLimiter)(appHttpHandler)
	appHttpHandler = authenticator.Handler(appHttpHandler)
	appHttpHandler = middleware.ContentTypeValidation(cfg.Log)(appHttpHandler)
	appHttpHandler = middleware.MaxRequestSize(int64(cfg.MaxRequestSize), cfg.Log)(appHttpHandler)
	appHttpHandler = corsHandler.Handler(appHttpHandler)
	if cfg.MetricsEnabled {
		appHttpHandler = metrics.InstrumentHandler(cfg.MetricsPath, appHttpHandler)
	}
	appHttpHandler = middleware.RequestLogging(cfg.Log)(appHttpHandler)
	appHttpHandler = middleware.Recovery(cfg.Log)(appHttpHandler)
	a.appHttpHandler = appHttpHandler
	cfg.Log.Info("Application endpoints configured with full security middleware stack")
}

func (a *Application) setAppServer() {
	mux := http.NewServeMux()
	mux.Handle("/health", a.healthHandler)
	mux.Handle("/ready", a.healthHandler)
	if a.cfg.MetricsEnabled {
		mux.Handle(a.cfg.MetricsPath, metrics.Handler())
	}
	mux.Handle("/", a.appHttpHandler)

	a.server = &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      mux,
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
		IdleTimeout:  a.cfg.IdleTimeout,
	}

	a.cfg.Log.Info("HTTP server configured", "port", a.cfg.Port)
}

func (a *Application) Run() {
	serverErrors := make(chan error, 1)

	go func() {
		a.cfg.Log.Info("Starting HTTP server", "address", a.server.Addr)
		serverErrors <- a.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			a.cfg.Log.Fatal("HTTP server failed", "error", err)
		}

	case sig := <-shutdown:
		a.cfg.Log.Info("Shutdown signal received", "signal", sig)
		a.gracefulShutdown()
	}
}

// StopWorkers halts the idempotency and rate limiter cleanup goroutines.
func (a *Application) StopWorkers() {
	a.idempotencyStore.Stop()
	a.rateLimiter.Stop()
}

func (a *Application) gracefulShutdown() {
	a.cfg.Log.Info("Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.cfg.Log.Error("Server shutdown failed", "error", err)
		if err := a.server.Close(); err != nil {
			a.cfg.Log.Error("Could not stop server gracefully", "error", err)
		}
	}

	a.cfg.Log.Info("Stopping background workers...")
	a.StopWorkers()
	for _, c := range a.closers {
		if err := c.fn(); err != nil {
			a.cfg.Log.Error("Failed to close resource", "resource", c.name, "error", err)
		}
	}
	a.cfg.Log.Info("Background workers stopped")

	a.cfg.GracefulShutdown()
	a.cfg.Log.Info("Server stopped gracefully")
}
