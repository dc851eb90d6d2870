package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// StartServer serves handler on port in a goroutine and returns the
// server for Shutdown. name only labels the log lines.
func StartServer(name string, handler http.Handler, port string) *http.Server {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// Match bodies carry whole scans.
		ReadTimeout: 2 * time.Minute,
		IdleTimeout: 2 * time.Minute,
	}

	go func() {
		log.Info().Str("server", name).Str("address", srv.Addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Str("server", name).Msg("Failed to start server")
		}
	}()

	return srv
}

// ShutdownServer waits up to timeout for in-flight requests to finish.
func ShutdownServer(name string, srv *http.Server, timeout time.Duration) error {
	log.Info().Str("server", name).Msg("Shutting down HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("%s server forced to shutdown: %w", name, err)
	}

	log.Info().Str("server", name).Msg("HTTP server shutdown complete")
	return nil
}
