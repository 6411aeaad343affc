package dashboard

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/DenisKhanov/DispenserAdmin/internal/dashboard/api/http/middleware"
	"github.com/DenisKhanov/DispenserAdmin/internal/dashboard/config"
	"github.com/DenisKhanov/DispenserAdmin/internal/logcfg"
)

// App represents the application structure responsible for initializing dependencies
// and running the dashboard HTTP server.
type App struct {
	serviceProvider *serviceProvider // The service provider for dependency injection
	config          *config.Config   // The configuration object for the application
	server          *http.Server     // The dashboard HTTP server instance
}

// NewApp creates a new instance of the application.
func NewApp(ctx context.Context) (*App, error) {
	app := &App{}
	err := app.initDeps(ctx)
	if err != nil {
		return nil, err
	}
	return app, nil
}

// Run starts the application and runs the dashboard server.
func (a *App) Run() {
	a.runServer()
}

// initDeps initializes all dependencies required by the application.
func (a *App) initDeps(ctx context.Context) error {
	inits := []func(context.Context) error{
		a.initConfig,
		a.initServiceProvider,
		a.initHTTPServer,
	}

	for _, f := range inits {
		err := f(ctx)
		if err != nil {
			return err
		}
	}

	return nil
}

// initConfig initializes the application configuration.
func (a *App) initConfig(_ context.Context) error {
	cfg, err := config.NewConfig()
	if err != nil {
		return err
	}
	a.config = cfg
	logcfg.RunLoggerConfig(a.config.EnvLogsLevel, a.config.EnvLogFileName)
	return nil
}

// initServiceProvider initializes the service provider for dependency injection.
func (a *App) initServiceProvider(_ context.Context) error {
	a.serviceProvider = newServiceProvider(
		a.config.EnvBackendEndpoint,
		a.config.EnvPollInterval,
		a.config.EnvPagosLimit,
		a.config.EnvBotToken,
		a.config.EnvOwnerID,
	)
	return nil
}

// initHTTPServer initializes the dashboard server with middleware and routes.
func (a *App) initHTTPServer(_ context.Context) error {
	myHandler := a.serviceProvider.Handler()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.LogrusLog())

	myHandler.RegisterRoutes(router)

	a.server = &http.Server{
		Addr:    a.config.RunAddr,
		Handler: router,
	}

	return nil
}

// runServer starts the dashboard server with graceful shutdown.
func (a *App) runServer() {
	go func() {
		if err := a.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("Failed to start dashboard server: %v", err)
		}
	}()
	logrus.Infof("Dashboard server started on: %s", a.config.RunAddr)

	// Shutdown signal with grace period of 5 seconds
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	sig := <-signalChan
	logrus.Infof("Shutting down dashboard server with signal : %v...", sig)

	a.serviceProvider.Poller().Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("HTTP server shutdown error")
	}

	logrus.Info("Server exited")
}
