package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/brojonat/walletlens/service/metrics"
	"github.com/brojonat/walletlens/service/retrieval"
	solanago "github.com/gagliardetto/solana-go"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrInvalidAddress is returned before any remote call when the wallet
	// address is not a base58 public key.
	ErrInvalidAddress = errors.New("invalid wallet address")

	// ErrInvalidWindow is returned for a window that is not a positive, finite number of hours.
	ErrInvalidWindow = errors.New("invalid analysis window")
)

const (
	DefaultMaxTxCount        = 50
	DefaultWindowHours       = 24
	LatestMintsMaxTxCount    = 500
	DefaultWalletConcurrency = 4
)

// Config holds the engine settings for each analysis path.
type Config struct {
	MintOptions       retrieval.Options
	VolumeOptions     retrieval.Options
	WalletConcurrency int

	// Now overrides the clock used to place analysis windows.
	Now func() time.Time
}

// DefaultConfig returns the per-path defaults.
func DefaultConfig() Config {
	return Config{
		MintOptions:       retrieval.MintActivityOptions(),
		VolumeOptions:     retrieval.VolumeOptions(),
		WalletConcurrency: DefaultWalletConcurrency,
	}
}

// Service runs wallet analyses against the ledger gateway.
// Each call owns its own cursor and reducer; calls share only the gateway.
type Service struct {
	gateway retrieval.Gateway
	cfg     Config
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewService(gateway retrieval.Gateway, cfg Config, m *metrics.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.WalletConcurrency <= 0 {
		cfg.WalletConcurrency = DefaultWalletConcurrency
	}
	for _, o := range []*retrieval.Options{&cfg.MintOptions, &cfg.VolumeOptions} {
		if o.Logger == nil {
			o.Logger = logger
		}
		if o.Metrics == nil {
			o.Metrics = m
		}
	}
	return &Service{
		gateway: gateway,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
	}
}

// ParseAddress validates a base58 wallet address.
func ParseAddress(address string) (solanago.PublicKey, error) {
	pk, err := solanago.PublicKeyFromBase58(address)
	if err != nil {
		return solanago.PublicKey{}, fmt.Errorf("%w %q: %v", ErrInvalidAddress, address, err)
	}
	return pk, nil
}

// AnalyzeMintActivity reports, per mint, how often address held that token in
// its most recent maxTxCount transactions.
func (s *Service) AnalyzeMintActivity(ctx context.Context, address string, filterFailed bool, maxTxCount int) (_ *MintActivityResult, err error) {
	pk, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		s.metrics.RecordAnalysis("mints", time.Since(start).Seconds(), err)
	}()

	s.logger.InfoContext(ctx, "starting mint activity analysis",
		"wallet", address,
		"max_tx_count", maxTxCount,
		"filter_failed", filterFailed,
	)

	reducer := NewMintActivityReducer(pk.String())
	stream := retrieval.NewStream(s.gateway, pk, retrieval.CountBound{Max: maxTxCount}, s.cfg.MintOptions)
	if err := stream.ForEach(ctx, reducer.Add); err != nil {
		return nil, fmt.Errorf("failed to analyze mint activity for %s: %w", address, err)
	}

	result := &MintActivityResult{
		Data:      reducer.Result(filterFailed),
		Truncated: stream.Truncated(),
	}
	s.metrics.RecordMintsDiscovered(filterFailed, len(result.Data))

	s.logger.InfoContext(ctx, "mint activity analysis complete",
		"wallet", address,
		"transactions", stream.Emitted(),
		"mints", len(result.Data),
		"truncated", result.Truncated,
	)
	return result, nil
}

// AnalyzeWalletTransactions reports volume, frequency and direction for
// address over the last windowHours hours.
func (s *Service) AnalyzeWalletTransactions(ctx context.Context, address string, windowHours float64) (_ *TransactionAnalysis, err error) {
	pk, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}
	if windowHours <= 0 || math.IsNaN(windowHours) || math.IsInf(windowHours, 0) {
		return nil, fmt.Errorf("%w: %v hours", ErrInvalidWindow, windowHours)
	}

	start := time.Now()
	defer func() {
		s.metrics.RecordAnalysis("volume", time.Since(start).Seconds(), err)
	}()

	windowEnd := s.cfg.Now().UTC()
	windowStart := windowEnd.Add(-time.Duration(windowHours * float64(time.Hour)))

	s.logger.InfoContext(ctx, "starting transaction analysis",
		"wallet", address,
		"window_hours", windowHours,
		"window_start", windowStart,
	)

	reducer := NewVolumeReducer()
	stream := retrieval.NewStream(s.gateway, pk, retrieval.TimeBound{Start: windowStart}, s.cfg.VolumeOptions)
	if err := stream.ForEach(ctx, reducer.Add); err != nil {
		return nil, fmt.Errorf("failed to analyze transactions for %s: %w", address, err)
	}

	report := reducer.Result(windowHours)
	report.Truncated = stream.Truncated()
	report.WindowStart = windowStart
	report.WindowEnd = windowEnd

	s.logger.InfoContext(ctx, "transaction analysis complete",
		"wallet", address,
		"transactions", report.TotalTransactions,
		"total_volume_sol", report.TotalVolume,
		"truncated", report.Truncated,
	)
	return report, nil
}

// LatestMints runs a mint activity analysis for each wallet concurrently and
// returns the union of mint addresses, deduplicated in wallet order. Wallets
// that fail are logged and skipped.
func (s *Service) LatestMints(ctx context.Context, wallets []string, maxTxCount int) ([]string, error) {
	perWallet := make([][]MintActivity, len(wallets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.WalletConcurrency)

	var mu sync.Mutex
	failed := 0
	for i, wallet := range wallets {
		g.Go(func() error {
			res, err := s.AnalyzeMintActivity(gctx, wallet, false, maxTxCount)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				s.logger.ErrorContext(gctx, "failed to analyze wallet, skipping",
					"wallet", wallet,
					"error", err,
				)
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}
			perWallet[i] = res.Data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	mints := make([]string, 0)
	for _, records := range perWallet {
		for _, r := range records {
			if _, ok := seen[r.MintAddress]; ok {
				continue
			}
			seen[r.MintAddress] = struct{}{}
			mints = append(mints, r.MintAddress)
		}
	}

	s.logger.InfoContext(ctx, "latest mints collected",
		"wallets", len(wallets),
		"failed_wallets", failed,
		"mints", len(mints),
	)
	return mints, nil
}
