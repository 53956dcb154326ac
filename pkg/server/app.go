package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"KlinePull/internal/domain/models"
	domrepo "KlinePull/internal/domain/repository"
	"KlinePull/internal/usecase"
	"KlinePull/pkg/config"
	xhttp "KlinePull/pkg/http"
	pkgkafka "KlinePull/pkg/kafka"
	applogger "KlinePull/pkg/logger"
)

// App encapsulates the entire application lifecycle: the chart session, the
// market gateway HTTP server and the optional Kafka/ClickHouse pipeline.
type App struct {
	cfg         *config.Config
	logger      *applogger.Logger
	session     *usecase.Session
	consumer    *pkgkafka.Consumer     // nil when backend is none
	kh          pkgkafka.MessageHandler // nil when backend is none
	archive     domrepo.BarArchive      // nil when backend is none
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	session *usecase.Session,
	handler xhttp.Handler,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	archive domrepo.BarArchive,
) *App {
	return &App{
		cfg:         cfg,
		logger:      l,
		session:     session,
		httpHandler: handler,
		consumer:    consumer,
		kh:          kh,
		archive:     archive,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	// The fallback key applies when no preferences were saved yet.
	fallback := models.SubscriptionKey{
		Market:   models.MarketType(a.cfg.Chart.DefaultMarket),
		Symbol:   a.cfg.Chart.DefaultSymbol,
		Interval: a.cfg.Chart.DefaultInterval,
	}
	a.session.Start(ctx, fallback)
	a.logger.Info("chart session started",
		applogger.String("key", a.session.Key().String()),
	)

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.logger.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.logger.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	a.session.Teardown()

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.logger.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.archive != nil {
		if err := a.archive.Close(); err != nil {
			a.logger.Warn("bar archive close error", applogger.Error(err))
		}
	}

	a.logger.Info("shutdown complete")
	return nil
}
