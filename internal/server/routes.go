package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"mathbattle/internal/config"
	"mathbattle/internal/db"
	"mathbattle/internal/events"
	"mathbattle/internal/logging"
	"mathbattle/internal/metrics"
	"mathbattle/internal/rooms"
	"mathbattle/internal/session"
)

const (
	roundBufferSize = 1000
	batchSize       = 50
	flushInterval   = 500 * time.Millisecond
	shutdownTimeout = 10 * time.Second
)

func Run() error {
	appCfg := config.Load()
	logger := logging.New(appCfg.LogLevel, appCfg.LogFormat)
	gameCfg := appCfg.Game()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(promReg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Optional database connection
	var database *db.DB
	var bus *events.Bus
	writerDone := make(chan struct{})
	if appCfg.DatabaseURL != "" {
		d, err := db.Connect(appCfg.DatabaseURL, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("database unavailable, running without it")
		} else {
			if err := d.Migrate(); err != nil {
				logger.Error().Err(err).Msg("migration failed")
			}
			database = d
			defer database.Close()
			bus = events.NewBus(roundBufferSize)
			go func() {
				roundBatchWriter(ctx, database, bus.Rounds, logger)
				close(writerDone)
			}()
		}
	} else {
		logger.Info().Msg("DATABASE_URL not set, running without database")
	}

	registry := rooms.NewRegistry(gameCfg, logger, bus, m)
	intake := session.NewIntake(registry, logger)

	go registry.Run(ctx)
	intakeDone := make(chan struct{})
	go func() {
		intake.Run(ctx)
		close(intakeDone)
	}()

	srv := &Server{
		Registry:  registry,
		Intake:    intake,
		Game:      gameCfg,
		DB:        database,
		Metrics:   promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}),
		Origins:   appCfg.AllowedOrigins,
		PublicURL: appCfg.PublicURL,
		Log:       logger.With().Str("component", "http").Logger(),
	}

	httpSrv := &http.Server{
		Addr:              appCfg.Addr(),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", httpSrv.Addr).Msg("server listening")
		errCh <- httpSrv.ListenAndServe()
	}()

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("serving http: %w", err)
		}
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	<-intakeDone
	if database != nil {
		<-writerDone
	}
	return serveErr
}

// roundBatchWriter drains finished rounds into the database, flushing every
// batchSize rounds or flushInterval, and once more when ctx ends.
func roundBatchWriter(ctx context.Context, database *db.DB, rounds <-chan events.RoundResult, log zerolog.Logger) {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]events.RoundResult, 0, batchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := database.BatchRecordRounds(ctx, batch); err != nil {
			log.Error().Err(err).Int("rounds", len(batch)).Msg("BatchRecordRounds")
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			flush(flushCtx)
			cancel()
			return
		case r := <-rounds:
			batch = append(batch, r)
			if len(batch) >= batchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		}
	}
}
