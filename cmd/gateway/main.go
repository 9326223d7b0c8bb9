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
	"github.com/swgestor/backend/internal/gateway"
	"github.com/swgestor/backend/internal/httpx"
	"github.com/swgestor/backend/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadGateway()
	if err != nil {
		return err
	}
	log := logging.New(gateway.ServiceName, cfg.LogLevel)

	router, err := gateway.NewRouter(cfg, log)
	if err != nil {
		return err
	}
	srv := httpx.NewServer(cfg.Port, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("gateway listening")
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
	return httpx.Shutdown(srv, 30*time.Second, log)
}
