// Package httpx carries the HTTP plumbing both services share: server
// construction with production timeouts, graceful shutdown, request logging,
// JSON responses, and origin checks for websocket upgrades.
package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// NewServer builds an http.Server with the timeouts used across services.
func NewServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Shutdown drains the server, waiting up to timeout for in-flight requests.
func Shutdown(srv *http.Server, timeout time.Duration, log zerolog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
		return err
	}
	log.Info().Msg("http server stopped")
	return nil
}
