package internal

import (
	"context"
	"errors"
	"fmt"
	"moriportal/internal/controllers"
	"moriportal/internal/persistence"
	"moriportal/internal/persistence/interfaces"
	"moriportal/internal/providers"
	"moriportal/internal/storage"
	"moriportal/internal/structures"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type App struct {
	WebServer   *http.Server
	conf        *structures.Config
	logger      providers.Logger
	scheduler   interfaces.SchedulerInterface
	fileManager *persistence.FileManager
	health      *controllers.HealthController
	store       storage.Store
}

func NewApp(
	conf *structures.Config,
	logger providers.Logger,
	router providers.RouterProviderInterface,
	metrics providers.MetricsProviderInterface,
	healthController *controllers.HealthController,
	scheduler interfaces.SchedulerInterface,
	fileManager *persistence.FileManager,
	store storage.Store,
) (*App, error) {
	app := &App{
		conf:        conf,
		logger:      logger,
		scheduler:   scheduler,
		fileManager: fileManager,
		health:      healthController,
		store:       store,
	}

	app.WebServer = &http.Server{
		Addr:         conf.WebServer.Host + ":" + strconv.Itoa(conf.WebServer.Port),
		Handler:      NewHandler(conf, logger, router, metrics),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return app, nil
}

// NewHandler assembles the outer router: shared middleware, the prefixed
// API group and the root-level metrics endpoint.
func NewHandler(conf *structures.Config, logger providers.Logger, router providers.RouterProviderInterface, metrics providers.MetricsProviderInterface) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(providers.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", providers.HeaderAccessToken},
		MaxAge:         600,
	}))

	if conf.Metrics.Enabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route(conf.WebServer.PathPrefix, func(api chi.Router) {
		api.Use(func(next http.Handler) http.Handler {
			return providers.MetricsMiddleware(metrics, next)
		})
		router.Mount(api)
	})
	return r
}

func (a *App) Run() error {
	a.logger.Infof(providers.TypeApp, "Starting %s", a.conf.AppName)
	if err := a.scheduler.Restore(); err != nil {
		a.logger.Errorf(providers.TypeApp, "Restore error: %s", err)
	}
	a.scheduler.Init()

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Infof(providers.TypeApp, "Listening HTTP clients on %s:%d%s", a.conf.WebServer.Host, a.conf.WebServer.Port, a.conf.WebServer.PathPrefix)
		if err := a.WebServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		a.logger.Infof(providers.TypeApp, "Shutdown signal received")
	case err := <-serverErr:
		a.scheduler.Stop()
		return fmt.Errorf("server error: %w", err)
	}

	a.health.Drain()
	a.scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.WebServer.Shutdown(ctx); err != nil {
		return err
	}
	if err := a.scheduler.Persist(); err != nil {
		return err
	}
	a.fileManager.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Warnf(providers.TypeStore, "Store close error: %s", err)
	}
	a.logger.Infof(providers.TypeApp, "gracefully stopped")
	return nil
}
