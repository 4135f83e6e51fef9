package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pagegen/pkg/logx"
)

const shutdownTimeout = 5 * time.Second

// StartServer serves gatherer on addr at /metrics until ctx ends. It returns
// the bound address once the listener is open, so ":0" picks a free port.
func StartServer(ctx context.Context, addr string, gatherer prometheus.Gatherer) (string, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	listener, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return "", err //nolint:wrapcheck // net errors already name the address
	}
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger := logx.NewLogger("metrics")
	logger.Info("📈 Serving metrics on http://%s/metrics", listener.Addr())

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		// The parent context is done; shutdown needs a fresh one.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		//nolint:contextcheck // parent context is cancelled
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Metrics server shutdown failed: %v", err)
		}
	}()

	return listener.Addr().String(), nil
}
