package shard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger checks backing store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthServer serves /healthz and /metrics for one shard.
type HealthServer struct {
	router *mux.Router
	server *http.Server
	store  Pinger
	shard  int
	logger *zap.Logger
}

// HealthResponse is the JSON response structure for health checks.
type HealthResponse struct {
	Status string `json:"status"`
	Shard  int    `json:"shard"`
	Redis  string `json:"redis,omitempty"`
	Error  string `json:"error,omitempty"`
}

// NewHealthServer creates a health server listening on addr. gatherer may be
// nil, in which case /metrics is not served.
func NewHealthServer(addr string, store Pinger, shard int, gatherer prometheus.Gatherer, logger *zap.Logger) *HealthServer {
	h := &HealthServer{
		router: mux.NewRouter(),
		store:  store,
		shard:  shard,
		logger: logger,
	}
	h.router.HandleFunc("/healthz", h.healthCheckHandler).Methods(http.MethodGet)
	if gatherer != nil {
		h.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	h.server = &http.Server{
		Addr:         addr,
		Handler:      h.router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	return h
}

// Handler returns the router, for tests and embedding.
func (h *HealthServer) Handler() http.Handler {
	return h.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (h *HealthServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		h.logger.Info("health_server_starting", zap.String("addr", h.server.Addr))
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return h.server.Shutdown(shutdownCtx)
	}
}

// healthCheckHandler returns 200 if Redis is reachable, 503 otherwise.
func (h *HealthServer) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{Status: "healthy", Shard: h.shard, Redis: "connected"}
	status := http.StatusOK

	if err := h.store.Ping(ctx); err != nil {
		response.Status = "unhealthy"
		response.Redis = "disconnected"
		response.Error = err.Error()
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Warn("health_response_failed", zap.Error(err))
	}
}
