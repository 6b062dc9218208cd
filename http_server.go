package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/JLpython-py/anti-ghostping-bot/metrics"
)

// newHTTPServer serves health checks for the hosting platform and the
// Prometheus metrics.
func newHTTPServer(port string, m *metrics.Metrics) *http.Server {
	mux := http.NewServeMux()
	ok := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
	mux.HandleFunc("/", ok)
	mux.HandleFunc("/healthz", ok)
	mux.Handle("/metrics", m.Handler())
	return &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// startHTTPServer runs srv in the background. A listen failure is logged;
// the bot keeps running without health checks.
func startHTTPServer(srv *http.Server, log zerolog.Logger) {
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server stopped")
		}
	}()
}

func stopHTTPServer(srv *http.Server, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("HTTP server shutdown")
	}
}
