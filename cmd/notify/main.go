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

	"github.com/swgestor/backend/internal/config"
	"github.com/swgestor/backend/internal/httpx"
	"github.com/swgestor/backend/internal/hub"
	"github.com/swgestor/backend/internal/logging"
	"github.com/swgestor/backend/internal/notify"
	"github.com/swgestor/backend/internal/pubsub"
	"github.com/swgestor/backend/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadNotify()
	if err != nil {
		return err
	}
	log := logging.New(notify.ServiceName, cfg.LogLevel)

	// Message log.
	messages, err := store.OpenBadger(cfg.BadgerPath, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info().Msg("closing message log")
		_ = messages.Close()
	}()

	// Pub/sub bridge: a shared Redis broker when configured, the in-process
	// bus otherwise. The hub never knows which one it got.
	var bus pubsub.Bus
	if cfg.RedisURL != "" {
		redisBus, err := pubsub.NewRedis(context.Background(), cfg.RedisURL, log)
		if err != nil {
			return fmt.Errorf("connect broker: %w", err)
		}
		bus = redisBus
		log.Info().Msg("pubsub: redis broker")
	} else {
		bus = pubsub.NewMemory()
		log.Info().Msg("pubsub: in-process bus")
	}
	defer func() {
		_ = bus.Close()
	}()

	h := hub.New(bus, messages, log)
	go h.Run()

	router := notify.NewRouter(h, cfg.ClientOrigin, log)
	srv := httpx.NewServer(cfg.Port, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("notification service listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	if err := httpx.Shutdown(srv, 30*time.Second, log); err != nil {
		return err
	}
	return h.Shutdown(10 * time.Second)
}
