package temporal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/walletlens/service/analysis"
	"github.com/brojonat/walletlens/service/db"
	"github.com/brojonat/walletlens/service/metrics"
	natspkg "github.com/brojonat/walletlens/service/nats"
	temporalsdk "go.temporal.io/sdk/temporal"
)

// RefreshLatestMintsInput contains the input parameters for a refresh run.
type RefreshLatestMintsInput struct {
	WalletCount int `json:"wallet_count"`
	MaxTxCount  int `json:"max_tx_count"`
}

// RefreshLatestMintsResult summarises a refresh run.
type RefreshLatestMintsResult struct {
	Wallets  []string  `json:"wallets"`
	Analyzed int       `json:"analyzed"`
	Failed   int       `json:"failed"`
	Mints    []string  `json:"mints"`
	RunTime  time.Time `json:"run_time"`
}

// ListLatestWalletsInput contains parameters for the ListLatestWallets activity.
type ListLatestWalletsInput struct {
	Limit int `json:"limit"`
}

// ListLatestWalletsResult contains the result of the ListLatestWallets activity.
type ListLatestWalletsResult struct {
	Addresses []string `json:"addresses"`
}

// AnalyzeWalletMintsInput contains parameters for the AnalyzeWalletMints activity.
type AnalyzeWalletMintsInput struct {
	Address    string `json:"address"`
	MaxTxCount int    `json:"max_tx_count"`
}

// AnalyzeWalletMintsResult contains the result of the AnalyzeWalletMints activity.
type AnalyzeWalletMintsResult struct {
	Address   string   `json:"address"`
	Mints     []string `json:"mints"`
	Truncated bool     `json:"truncated"`
}

// RecordRefreshInput reports the outcome of a refresh run.
type RecordRefreshInput struct {
	Status   string        `json:"status"`
	Duration time.Duration `json:"duration"`
	Wallets  int           `json:"wallets"`
	Failed   int           `json:"failed"`
	Mints    int           `json:"mints"`
}

// StoreInterface defines the database operations needed by activities.
type StoreInterface interface {
	ListLatestWalletAddresses(ctx context.Context, limit int) ([]string, error)
	SaveMintActivityReport(ctx context.Context, address string, filterFailed bool, maxTxCount int, result *analysis.MintActivityResult) (*db.MintActivityReport, error)
}

// AnalyzerInterface defines the analysis operations needed by activities.
type AnalyzerInterface interface {
	AnalyzeMintActivity(ctx context.Context, address string, filterFailed bool, maxTxCount int) (*analysis.MintActivityResult, error)
}

// PublisherInterface defines the NATS publishing operations needed by activities.
type PublisherInterface interface {
	PublishReport(ctx context.Context, event *natspkg.ReportEvent) error
}

// Activities holds the dependencies needed by Temporal activities.
type Activities struct {
	store     StoreInterface
	analyzer  AnalyzerInterface
	publisher PublisherInterface
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewActivities creates a new Activities instance with explicit dependencies.
// publisher and m may be nil.
func NewActivities(
	store StoreInterface,
	analyzer AnalyzerInterface,
	publisher PublisherInterface,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{
		store:     store,
		analyzer:  analyzer,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// ListLatestWallets returns the most recently discovered wallet addresses.
func (a *Activities) ListLatestWallets(ctx context.Context, input ListLatestWalletsInput) (_ *ListLatestWalletsResult, err error) {
	start := time.Now()
	defer func() {
		a.metrics.RecordActivityDuration("ListLatestWallets", time.Since(start).Seconds(), err)
	}()

	if a.store == nil {
		return nil, temporalsdk.NewNonRetryableApplicationError("no store configured", "NoStore", nil)
	}

	addrs, err := a.store.ListLatestWalletAddresses(ctx, input.Limit)
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to list latest wallets", "error", err)
		return nil, fmt.Errorf("failed to list latest wallets: %w", err)
	}

	a.logger.InfoContext(ctx, "listed latest wallets", "count", len(addrs), "limit", input.Limit)
	return &ListLatestWalletsResult{Addresses: addrs}, nil
}

// AnalyzeWalletMints runs mint activity analysis for one wallet, stores and
// publishes the report, and returns the discovered mint addresses.
func (a *Activities) AnalyzeWalletMints(ctx context.Context, input AnalyzeWalletMintsInput) (_ *AnalyzeWalletMintsResult, err error) {
	start := time.Now()
	defer func() {
		a.metrics.RecordActivityDuration("AnalyzeWalletMints", time.Since(start).Seconds(), err)
	}()

	result, err := a.analyzer.AnalyzeMintActivity(ctx, input.Address, false, input.MaxTxCount)
	if errors.Is(err, analysis.ErrInvalidAddress) {
		return nil, temporalsdk.NewNonRetryableApplicationError(err.Error(), "InvalidAddress", err)
	}
	if err != nil {
		a.logger.ErrorContext(ctx, "mint analysis failed", "address", input.Address, "error", err)
		return nil, fmt.Errorf("failed to analyze wallet %s: %w", input.Address, err)
	}

	if a.store != nil {
		if _, err := a.store.SaveMintActivityReport(ctx, input.Address, false, input.MaxTxCount, result); err != nil {
			a.logger.WarnContext(ctx, "failed to store mint report", "address", input.Address, "error", err)
		}
	}
	if a.publisher != nil {
		event := natspkg.NewMintReportEvent(input.Address, false, input.MaxTxCount, result)
		if err := a.publisher.PublishReport(ctx, event); err != nil {
			a.logger.WarnContext(ctx, "failed to publish mint report", "address", input.Address, "error", err)
		}
	}

	mints := make([]string, len(result.Data))
	for i, rec := range result.Data {
		mints[i] = rec.MintAddress
	}

	a.logger.InfoContext(ctx, "analyzed wallet mints",
		"address", input.Address,
		"mints", len(mints),
		"truncated", result.Truncated,
	)

	return &AnalyzeWalletMintsResult{
		Address:   input.Address,
		Mints:     mints,
		Truncated: result.Truncated,
	}, nil
}

// RecordRefresh records the outcome of a refresh run.
func (a *Activities) RecordRefresh(ctx context.Context, input RecordRefreshInput) error {
	a.metrics.RecordWorkflowDuration(input.Status, input.Duration.Seconds())
	a.logger.InfoContext(ctx, "refresh run finished",
		"status", input.Status,
		"duration", input.Duration,
		"wallets", input.Wallets,
		"failed", input.Failed,
		"mints", input.Mints,
	)
	return nil
}
