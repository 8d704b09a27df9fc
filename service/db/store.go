package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/brojonat/walletlens/service/analysis"
	"github.com/brojonat/walletlens/service/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Store provides database operations for the service.
type Store struct {
	pool    *pgxpool.Pool
	metrics *metrics.Metrics
}

// NewStore creates a new Store with the given database connection pool.
// If metrics is nil, no metrics will be recorded.
func NewStore(pool *pgxpool.Pool, m *metrics.Metrics) *Store {
	return &Store{
		pool:    pool,
		metrics: m,
	}
}

// Migrate applies the embedded schema. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// DiscoveredWallet is a wallet address submitted by an external discovery source.
type DiscoveredWallet struct {
	Address     string    `json:"address"`
	Source      string    `json:"source"`
	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// MintActivityReport is a stored mint activity analysis.
type MintActivityReport struct {
	ID            int64                   `json:"id"`
	WalletAddress string                  `json:"wallet_address"`
	FilterFailed  bool                    `json:"filter_failed"`
	MaxTxCount    int                     `json:"max_tx_count"`
	Truncated     bool                    `json:"truncated"`
	Records       []analysis.MintActivity `json:"records"`
	CreatedAt     time.Time               `json:"created_at"`
}

// VolumeReport is a stored transaction analysis.
type VolumeReport struct {
	ID            int64                        `json:"id"`
	WalletAddress string                       `json:"wallet_address"`
	WindowHours   float64                      `json:"window_hours"`
	Truncated     bool                         `json:"truncated"`
	Report        analysis.TransactionAnalysis `json:"report"`
	CreatedAt     time.Time                    `json:"created_at"`
}

// UpsertDiscoveredWallets records addresses as seen now. New addresses are
// inserted; known ones get their last_seen_at and source refreshed.
func (s *Store) UpsertDiscoveredWallets(ctx context.Context, addresses []string, source string) (n int, err error) {
	if len(addresses) == 0 {
		return 0, nil
	}
	defer s.observe("upsert", "discovered_wallets", time.Now(), &err)

	batch := &pgx.Batch{}
	for _, addr := range addresses {
		batch.Queue(`
			INSERT INTO discovered_wallets (address, source)
			VALUES ($1, $2)
			ON CONFLICT (address) DO UPDATE
			SET last_seen_at = NOW(), source = EXCLUDED.source`,
			addr, source,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range addresses {
		if _, err := br.Exec(); err != nil {
			return n, fmt.Errorf("failed to upsert discovered wallet: %w", err)
		}
		n++
	}
	return n, nil
}

// ListDiscoveredWallets returns up to limit wallets, most recently seen first.
func (s *Store) ListDiscoveredWallets(ctx context.Context, limit int) (_ []*DiscoveredWallet, err error) {
	defer s.observe("select", "discovered_wallets", time.Now(), &err)

	rows, err := s.pool.Query(ctx, `
		SELECT address, source, first_seen_at, last_seen_at
		FROM discovered_wallets
		ORDER BY last_seen_at DESC, address
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*DiscoveredWallet
	for rows.Next() {
		var w DiscoveredWallet
		if err := rows.Scan(&w.Address, &w.Source, &w.FirstSeenAt, &w.LastSeenAt); err != nil {
			return nil, err
		}
		out = append(out, &w)
	}
	return out, rows.Err()
}

// ListLatestWalletAddresses returns the addresses of the limit most recently
// seen wallets.
func (s *Store) ListLatestWalletAddresses(ctx context.Context, limit int) ([]string, error) {
	wallets, err := s.ListDiscoveredWallets(ctx, limit)
	if err != nil {
		return nil, err
	}
	addrs := make([]string, len(wallets))
	for i, w := range wallets {
		addrs[i] = w.Address
	}
	return addrs, nil
}

// SaveMintActivityReport stores a mint activity result.
func (s *Store) SaveMintActivityReport(ctx context.Context, address string, filterFailed bool, maxTxCount int, result *analysis.MintActivityResult) (_ *MintActivityReport, err error) {
	defer s.observe("insert", "mint_activity_reports", time.Now(), &err)

	records := result.Data
	if records == nil {
		records = []analysis.MintActivity{}
	}

	r := &MintActivityReport{
		WalletAddress: address,
		FilterFailed:  filterFailed,
		MaxTxCount:    maxTxCount,
		Truncated:     result.Truncated,
		Records:       records,
	}
	err = s.pool.QueryRow(ctx, `
		INSERT INTO mint_activity_reports (wallet_address, filter_failed, max_tx_count, truncated, records)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		address, filterFailed, maxTxCount, result.Truncated, records,
	).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert mint activity report: %w", err)
	}
	return r, nil
}

// ListMintActivityReports returns up to limit reports for address, newest first.
func (s *Store) ListMintActivityReports(ctx context.Context, address string, limit int) (_ []*MintActivityReport, err error) {
	defer s.observe("select", "mint_activity_reports", time.Now(), &err)

	rows, err := s.pool.Query(ctx, `
		SELECT id, wallet_address, filter_failed, max_tx_count, truncated, records, created_at
		FROM mint_activity_reports
		WHERE wallet_address = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, address, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*MintActivityReport
	for rows.Next() {
		var r MintActivityReport
		if err := rows.Scan(&r.ID, &r.WalletAddress, &r.FilterFailed, &r.MaxTxCount, &r.Truncated, &r.Records, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// SaveVolumeReport stores a transaction analysis.
func (s *Store) SaveVolumeReport(ctx context.Context, address string, windowHours float64, report *analysis.TransactionAnalysis) (_ *VolumeReport, err error) {
	defer s.observe("insert", "volume_reports", time.Now(), &err)

	r := &VolumeReport{
		WalletAddress: address,
		WindowHours:   windowHours,
		Truncated:     report.Truncated,
		Report:        *report,
	}
	err = s.pool.QueryRow(ctx, `
		INSERT INTO volume_reports (wallet_address, window_hours, truncated, report)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		address, windowHours, report.Truncated, report,
	).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert volume report: %w", err)
	}
	return r, nil
}

// GetLatestVolumeReport returns the newest stored analysis for address.
// Returns ErrNotFound if none exists.
func (s *Store) GetLatestVolumeReport(ctx context.Context, address string) (_ *VolumeReport, err error) {
	defer s.observe("select", "volume_reports", time.Now(), &err)

	var r VolumeReport
	err = s.pool.QueryRow(ctx, `
		SELECT id, wallet_address, window_hours, truncated, report, created_at
		FROM volume_reports
		WHERE wallet_address = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, address,
	).Scan(&r.ID, &r.WalletAddress, &r.WindowHours, &r.Truncated, &r.Report, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) observe(operation, table string, start time.Time, err *error) {
	s.metrics.RecordDBQuery(operation, table, time.Since(start).Seconds(), *err)
}
