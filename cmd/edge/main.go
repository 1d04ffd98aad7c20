// Command edge maps shop hosts and paths onto the web app's /site routes and
// proxies the rewritten request to EDGE_UPSTREAM_URL.
package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/patissio/patissio/internal/config"
	"github.com/patissio/patissio/internal/edge"
	"github.com/patissio/patissio/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "text").Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, "json")

	if cfg.EdgeUpstreamURL == "" {
		logger.Error("EDGE_UPSTREAM_URL is required")
		os.Exit(1)
	}
	upstream, err := url.Parse(cfg.EdgeUpstreamURL)
	if err != nil || upstream.Host == "" {
		logger.Error("invalid EDGE_UPSTREAM_URL", "url", cfg.EdgeUpstreamURL)
		os.Exit(1)
	}

	proxy := httputil.NewSingleHostReverseProxy(upstream)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Warn("upstream request failed", "host", r.Host, "path", r.URL.Path, "error", err)
		w.WriteHeader(http.StatusBadGateway)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/_edge/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/", edge.NewRouter(cfg.PlatformDomain).Middleware(proxy))

	srv := &http.Server{
		Addr: ":" + cfg.EdgePort,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r = r.WithContext(logging.WithLogger(r.Context(), logger))
			mux.ServeHTTP(w, r)
		}),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("starting edge router",
			"port", cfg.EdgePort,
			"upstream", upstream.String(),
			"platform_domain", cfg.PlatformDomain,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		logger.Error("edge router error", "error", err)
		os.Exit(1)
	case sig := <-sigChan:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	logger.Info("edge router stopped")
}
