package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/brojonat/walletlens/service/analysis"
	natspkg "github.com/brojonat/walletlens/service/nats"
	"github.com/brojonat/walletlens/service/retrieval"
	"github.com/brojonat/walletlens/service/temporal"
)

const (
	maxRequestBodySize  = 1 << 20 // 1MB
	maxAddressLength    = 100     // Solana addresses are 44 chars, give buffer
	maxSubmittedWallets = 1000
	maxWalletCount      = 100
	maxWindowHours      = 24 * 365
	defaultSource       = "scraper"
)

var (
	// Valid Solana address characters: base58 (no 0, O, I, l)
	validAddressRegex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]+$`)
)

// reportSink stores and publishes finished reports. Both are best-effort.
type reportSink struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger
}

func (s *reportSink) mintReport(ctx context.Context, address string, filterFailed bool, maxTxCount int, result *analysis.MintActivityResult) {
	if s.store != nil {
		if _, err := s.store.SaveMintActivityReport(ctx, address, filterFailed, maxTxCount, result); err != nil {
			s.logger.WarnContext(ctx, "failed to store mint report", "address", address, "error", err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishReport(ctx, natspkg.NewMintReportEvent(address, filterFailed, maxTxCount, result)); err != nil {
			s.logger.WarnContext(ctx, "failed to publish mint report", "address", address, "error", err)
		}
	}
}

func (s *reportSink) volumeReport(ctx context.Context, address string, windowHours float64, report *analysis.TransactionAnalysis) {
	if s.store != nil {
		if _, err := s.store.SaveVolumeReport(ctx, address, windowHours, report); err != nil {
			s.logger.WarnContext(ctx, "failed to store volume report", "address", address, "error", err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishReport(ctx, natspkg.NewVolumeReportEvent(address, windowHours, report)); err != nil {
			s.logger.WarnContext(ctx, "failed to publish volume report", "address", address, "error", err)
		}
	}
}

// handleMintSearch returns a handler that runs a mint activity analysis.
// POST /api/mint-search
func handleMintSearch(analyzer Analyzer, sink *reportSink, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			WalletAddress string `json:"walletAddress"`
			FilterFailed  bool   `json:"filterFailed"`
			MaxTxCount    *int   `json:"maxTxCount"`
		}
		if !decodeBody(w, r, &req, logger) {
			return
		}

		if req.WalletAddress == "" {
			writeError(w, "Wallet address is required", "", http.StatusBadRequest)
			return
		}
		if err := validateAddress(req.WalletAddress); err != nil {
			logger.DebugContext(r.Context(), "invalid address", "address", req.WalletAddress, "error", err)
			writeError(w, err.Error(), "", http.StatusBadRequest)
			return
		}

		maxTxCount := analysis.DefaultMaxTxCount
		if req.MaxTxCount != nil {
			maxTxCount = *req.MaxTxCount
		}
		if maxTxCount < 1 {
			writeError(w, "maxTxCount must be at least 1", "", http.StatusBadRequest)
			return
		}

		logger.InfoContext(r.Context(), "mint search request",
			"address", req.WalletAddress,
			"filter_failed", req.FilterFailed,
			"max_tx_count", maxTxCount,
		)

		result, err := analyzer.AnalyzeMintActivity(r.Context(), req.WalletAddress, req.FilterFailed, maxTxCount)
		if err != nil {
			writeAnalysisError(w, r, logger, "Mint search failed", err)
			return
		}

		sink.mintReport(r.Context(), req.WalletAddress, req.FilterFailed, maxTxCount, result)
		writeSuccess(w, result)
	})
}

// handleWalletAnalysis returns a handler that runs a volume and frequency analysis.
// GET /api/wallets/{address}/analysis?hours={h}
func handleWalletAnalysis(analyzer Analyzer, sink *reportSink, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")
		if err := validateAddress(address); err != nil {
			logger.DebugContext(r.Context(), "invalid address", "address", address, "error", err)
			writeError(w, err.Error(), "", http.StatusBadRequest)
			return
		}

		hours, err := parseWindowHours(r.URL.Query().Get("hours"))
		if err != nil {
			writeError(w, "invalid hours: "+err.Error(), "", http.StatusBadRequest)
			return
		}

		report, err := analyzer.AnalyzeWalletTransactions(r.Context(), address, hours)
		if err != nil {
			writeAnalysisError(w, r, logger, "Wallet analysis failed", err)
			return
		}

		sink.volumeReport(r.Context(), address, hours, report)
		writeSuccess(w, report)
	})
}

// handleLatestMints returns a handler that lists the mints touched by the most
// recently discovered wallets.
// GET /api/latest-mintslist?walletCount={n}
func handleLatestMints(analyzer Analyzer, store Store, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			writeError(w, "wallet discovery store not configured", "", http.StatusServiceUnavailable)
			return
		}

		walletCount, err := parsePositiveInt(r.URL.Query().Get("walletCount"), 1, maxWalletCount)
		if err != nil {
			writeError(w, "invalid walletCount: "+err.Error(), "", http.StatusBadRequest)
			return
		}

		wallets, err := store.ListLatestWalletAddresses(r.Context(), walletCount)
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to list latest wallets", "error", err)
			writeError(w, "Failed to get latest mints list", err.Error(), http.StatusInternalServerError)
			return
		}
		logger.InfoContext(r.Context(), "resolved latest wallets", "count", len(wallets))

		mints, err := analyzer.LatestMints(r.Context(), wallets, analysis.LatestMintsMaxTxCount)
		if err != nil {
			writeAnalysisError(w, r, logger, "Failed to get latest mints list", err)
			return
		}

		writeJSON(w, mints, http.StatusOK)
	})
}

// handleSubmitWallets returns a handler that records discovered wallet addresses.
// POST /api/wallets
func handleSubmitWallets(store Store, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			writeError(w, "wallet discovery store not configured", "", http.StatusServiceUnavailable)
			return
		}

		var req struct {
			WalletIDs []string `json:"walletIds"`
			Source    string   `json:"source"`
		}
		if !decodeBody(w, r, &req, logger) {
			return
		}

		if len(req.WalletIDs) == 0 {
			writeError(w, "walletIds is required", "", http.StatusBadRequest)
			return
		}
		if len(req.WalletIDs) > maxSubmittedWallets {
			writeError(w, fmt.Sprintf("too many walletIds: maximum is %d", maxSubmittedWallets), "", http.StatusBadRequest)
			return
		}

		seen := make(map[string]bool, len(req.WalletIDs))
		addrs := make([]string, 0, len(req.WalletIDs))
		for _, id := range req.WalletIDs {
			id = strings.TrimSpace(id)
			if err := validateAddress(id); err != nil {
				writeError(w, fmt.Sprintf("invalid wallet %q: %v", id, err), "", http.StatusBadRequest)
				return
			}
			if _, err := analysis.ParseAddress(id); err != nil {
				writeError(w, fmt.Sprintf("invalid wallet %q", id), err.Error(), http.StatusBadRequest)
				return
			}
			if !seen[id] {
				seen[id] = true
				addrs = append(addrs, id)
			}
		}

		source := req.Source
		if source == "" {
			source = defaultSource
		}

		n, err := store.UpsertDiscoveredWallets(r.Context(), addrs, source)
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to record discovered wallets", "error", err)
			writeError(w, "failed to record wallets", err.Error(), http.StatusInternalServerError)
			return
		}

		logger.InfoContext(r.Context(), "recorded discovered wallets", "count", n, "source", source)
		writeSuccess(w, map[string]int{"recorded": n})
	})
}

// handleTriggerRefresh returns a handler that starts a refresh run.
// POST /api/refresh
func handleTriggerRefresh(scheduler temporal.Scheduler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if scheduler == nil {
			writeError(w, "scheduler not configured", "", http.StatusServiceUnavailable)
			return
		}

		var req struct {
			WalletCount int `json:"walletCount"`
			MaxTxCount  int `json:"maxTxCount"`
		}
		if r.ContentLength != 0 {
			if !decodeBody(w, r, &req, logger) {
				return
			}
		}
		if req.WalletCount < 0 || req.WalletCount > maxWalletCount || req.MaxTxCount < 0 {
			writeError(w, "walletCount and maxTxCount must be non-negative and walletCount at most "+strconv.Itoa(maxWalletCount), "", http.StatusBadRequest)
			return
		}

		id, err := scheduler.TriggerRefresh(r.Context(), temporal.RefreshLatestMintsInput{
			WalletCount: req.WalletCount,
			MaxTxCount:  req.MaxTxCount,
		})
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to trigger refresh", "error", err)
			writeError(w, "failed to trigger refresh", err.Error(), http.StatusInternalServerError)
			return
		}

		writeJSON(w, map[string]interface{}{
			"success": true,
			"data":    map[string]string{"workflowId": id},
		}, http.StatusAccepted)
	})
}

// decodeBody decodes a size-limited JSON body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}, logger *slog.Logger) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		logger.DebugContext(r.Context(), "failed to decode request", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, "request body too large: maximum size is 1MB", "", http.StatusBadRequest)
			return false
		}
		writeError(w, "invalid request body: must be valid JSON", "", http.StatusBadRequest)
		return false
	}
	return true
}

// writeAnalysisError maps analysis errors to HTTP statuses.
func writeAnalysisError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, message string, err error) {
	var remote *retrieval.RemoteFailure
	switch {
	case errors.Is(err, analysis.ErrInvalidAddress), errors.Is(err, analysis.ErrInvalidWindow):
		writeError(w, err.Error(), "", http.StatusBadRequest)
	case errors.As(err, &remote):
		logger.ErrorContext(r.Context(), message, "op", remote.Op, "attempts", remote.Attempts, "error", err)
		writeError(w, message, err.Error(), http.StatusBadGateway)
	case errors.Is(err, context.DeadlineExceeded):
		logger.WarnContext(r.Context(), message, "error", err)
		writeError(w, message, err.Error(), http.StatusGatewayTimeout)
	default:
		logger.ErrorContext(r.Context(), message, "error", err)
		writeError(w, message, err.Error(), http.StatusInternalServerError)
	}
}

// parsePositiveInt parses an optional query parameter in [1, max].
func parsePositiveInt(raw string, def, max int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errorf("must be an integer")
	}
	if n < 1 || n > max {
		return 0, errorf("must be between 1 and %d", max)
	}
	return n, nil
}

// parseWindowHours parses the optional fractional hours parameter in (0, maxWindowHours].
func parseWindowHours(raw string) (float64, error) {
	if raw == "" {
		return analysis.DefaultWindowHours, nil
	}
	h, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(h) || math.IsInf(h, 0) {
		return 0, errorf("must be a number")
	}
	if h <= 0 || h > maxWindowHours {
		return 0, errorf("must be greater than 0 and at most %d", maxWindowHours)
	}
	return h, nil
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes the {success, data} envelope.
func writeSuccess(w http.ResponseWriter, data interface{}) {
	writeJSON(w, map[string]interface{}{
		"success": true,
		"data":    data,
	}, http.StatusOK)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message, details string, statusCode int) {
	body := map[string]interface{}{
		"success": false,
		"error":   message,
	}
	if details != "" {
		body["details"] = details
	}
	writeJSON(w, body, statusCode)
}

// validateAddress validates a wallet address for security and format.
func validateAddress(address string) error {
	if address == "" {
		return errorf("address is required")
	}

	if len(address) > maxAddressLength {
		return errorf("address too long: maximum length is %d characters", maxAddressLength)
	}

	for _, r := range address {
		if r == 0 || unicode.IsControl(r) {
			return errorf("invalid characters in address: control characters not allowed")
		}
	}

	if !validAddressRegex.MatchString(address) {
		return errorf("invalid address format: must contain only valid base58 characters")
	}

	return nil
}

// errorf is a helper to format error strings.
func errorf(format string, args ...interface{}) error {
	return &validationError{msg: strings.TrimSpace(fmt.Sprintf(format, args...))}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}
