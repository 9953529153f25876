package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"titanic-predictor/internal/cfg"
	"titanic-predictor/internal/metrics"
	"titanic-predictor/internal/ml"
	"titanic-predictor/internal/server"
	"titanic-predictor/internal/storage"
)

func main() {
	_ = godotenv.Load()

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	mw := metrics.NewWrapper(m)

	store := initializeStorage(c)
	if store != nil {
		defer store.Close()
	}

	client := resty.New().SetTimeout(c.LoadTimeout)
	manager := ml.NewManager(ml.OpenONNX(client, c.ModelSource, c.DataPath, c.OrtLibrary), mw)
	defer manager.Close()

	predictor := ml.NewPredictor(manager, mw, c.CacheSize)
	manager.OnScorerSwap(predictor.InvalidateCache)
	startModelLoad(ctx, c, manager)

	srv := server.New(manager, predictor, store, m, c.Port, c.HistoryLimit, c.RequestTimeout)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("prediction server failed")
			cancel()
		}
	}()

	waitForShutdown(ctx, srv)
}

// initializeStorage opens prediction history if DATA_PATH is configured
func initializeStorage(c cfg.Settings) *storage.Store {
	if c.DataPath == "" {
		return nil
	}
	if err := os.MkdirAll(c.DataPath, 0o750); err != nil {
		log.Warn().Err(err).Msg("data path unavailable, continuing without history")
		return nil
	}
	store, err := storage.New(c.DataPath)
	if err != nil {
		log.Warn().Err(err).Msg("storage initialization failed, continuing without history")
		return nil
	}
	return store
}

// startModelLoad kicks off the async artifact load. A failed load leaves the
// service answering 503 until a restart, unless fallback is enabled.
func startModelLoad(ctx context.Context, c cfg.Settings, manager *ml.Manager) {
	loadCtx, cancelLoad := context.WithTimeout(ctx, c.LoadTimeout)
	result := manager.Load(loadCtx)

	go func() {
		defer cancelLoad()
		if err := <-result; err != nil {
			if c.Fallback {
				log.Warn().Err(err).Msg("model load failed, enabling heuristic fallback")
				manager.UseFallback()
				return
			}
			log.Error().Err(err).Msg("model load failed, service not ready")
		}
	}()
}

func waitForShutdown(ctx context.Context, srv *server.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("server shutdown failed")
	}
	log.Info().Msg("shutdown complete")
}
