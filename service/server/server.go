package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/walletlens/service/analysis"
	"github.com/brojonat/walletlens/service/db"
	"github.com/brojonat/walletlens/service/metrics"
	natspkg "github.com/brojonat/walletlens/service/nats"
	"github.com/brojonat/walletlens/service/temporal"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Analyzer runs wallet analyses.
type Analyzer interface {
	AnalyzeMintActivity(ctx context.Context, address string, filterFailed bool, maxTxCount int) (*analysis.MintActivityResult, error)
	AnalyzeWalletTransactions(ctx context.Context, address string, windowHours float64) (*analysis.TransactionAnalysis, error)
	LatestMints(ctx context.Context, wallets []string, maxTxCount int) ([]string, error)
}

// Store persists discovered wallets and analysis reports.
type Store interface {
	UpsertDiscoveredWallets(ctx context.Context, addresses []string, source string) (int, error)
	ListLatestWalletAddresses(ctx context.Context, limit int) ([]string, error)
	SaveMintActivityReport(ctx context.Context, address string, filterFailed bool, maxTxCount int, result *analysis.MintActivityResult) (*db.MintActivityReport, error)
	SaveVolumeReport(ctx context.Context, address string, windowHours float64, report *analysis.TransactionAnalysis) (*db.VolumeReport, error)
}

// Publisher publishes report events.
type Publisher interface {
	PublishReport(ctx context.Context, event *natspkg.ReportEvent) error
}

// Server represents the HTTP server for the analysis service.
type Server struct {
	addr      string
	analyzer  Analyzer
	store     Store
	publisher Publisher
	scheduler temporal.Scheduler
	metrics   *metrics.Metrics
	logger    *slog.Logger
	server    *http.Server
}

// New creates a new HTTP server with the given dependencies.
// store, publisher, scheduler and m are optional. Without a store the
// discovery endpoints answer 503 and reports are not persisted; without a
// publisher reports are not published; without a scheduler manual refresh is
// unavailable; without metrics /metrics is not served.
func New(addr string, analyzer Analyzer, store Store, publisher Publisher, scheduler temporal.Scheduler, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:      addr,
		analyzer:  analyzer,
		store:     store,
		publisher: publisher,
		scheduler: scheduler,
		metrics:   m,
		logger:    logger,
	}
}

// Handler builds the routed, middleware-wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	route := func(pattern, name string, h http.Handler) {
		mux.Handle(pattern, metrics.HTTPMetricsMiddleware(s.metrics, name)(h))
	}

	sink := &reportSink{store: s.store, publisher: s.publisher, logger: s.logger}

	route("POST /api/mint-search", "/api/mint-search", handleMintSearch(s.analyzer, sink, s.logger))
	route("GET /api/wallets/{address}/analysis", "/api/wallets/analysis", handleWalletAnalysis(s.analyzer, sink, s.logger))
	route("GET /api/latest-mintslist", "/api/latest-mintslist", handleLatestMints(s.analyzer, s.store, s.logger))
	route("POST /api/wallets", "/api/wallets", handleSubmitWallets(s.store, s.logger))
	route("POST /api/refresh", "/api/refresh", handleTriggerRefresh(s.scheduler, s.logger))

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	})

	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	return corsMiddleware(mux)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
