package db

import (
	"context"
	"testing"
	"time"

	"github.com/brojonat/walletlens/service/analysis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_Idempotent(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()

	require.NoError(t, store.Migrate(context.Background()))
}

func TestUpsertDiscoveredWallets(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()

	n, err := store.UpsertDiscoveredWallets(ctx, []string{"walletA", "walletB"}, "scraper")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// make walletA the most recent
	time.Sleep(10 * time.Millisecond)
	n, err = store.UpsertDiscoveredWallets(ctx, []string{"walletA"}, "manual")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	wallets, err := store.ListDiscoveredWallets(ctx, 10)
	require.NoError(t, err)
	require.Len(t, wallets, 2)
	assert.Equal(t, "walletA", wallets[0].Address)
	assert.Equal(t, "manual", wallets[0].Source)
	assert.True(t, wallets[0].LastSeenAt.After(wallets[0].FirstSeenAt))

	latest, err := store.ListLatestWalletAddresses(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"walletA"}, latest)
}

func TestUpsertDiscoveredWallets_Empty(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()

	n, err := store.UpsertDiscoveredWallets(context.Background(), nil, "scraper")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMintActivityReports(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()
	seen := time.Unix(1_700_000_000, 0).UTC()
	result := &analysis.MintActivityResult{
		Data: []analysis.MintActivity{
			{MintAddress: "mintM", TotalCount: 3, SuccessCount: 3, LastTransactionTime: seen, Type: "TOKEN"},
		},
		Truncated: true,
	}

	saved, err := store.SaveMintActivityReport(ctx, "walletA", true, 50, result)
	require.NoError(t, err)
	assert.NotZero(t, saved.ID)
	assert.WithinDuration(t, time.Now(), saved.CreatedAt, 5*time.Second)

	_, err = store.SaveMintActivityReport(ctx, "walletA", false, 20, &analysis.MintActivityResult{})
	require.NoError(t, err)

	reports, err := store.ListMintActivityReports(ctx, "walletA", 10)
	require.NoError(t, err)
	require.Len(t, reports, 2)

	assert.Equal(t, 20, reports[0].MaxTxCount)
	assert.Empty(t, reports[0].Records)

	older := reports[1]
	assert.True(t, older.FilterFailed)
	assert.True(t, older.Truncated)
	require.Len(t, older.Records, 1)
	assert.Equal(t, "mintM", older.Records[0].MintAddress)
	assert.Equal(t, 3, older.Records[0].SuccessCount)
	assert.True(t, seen.Equal(older.Records[0].LastTransactionTime))
}

func TestVolumeReports(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()

	_, err := store.GetLatestVolumeReport(ctx, "walletA")
	assert.ErrorIs(t, err, ErrNotFound)

	first := time.Unix(1_700_000_000, 0).UTC()
	report := &analysis.TransactionAnalysis{
		TotalTransactions:      2,
		SuccessfulTransactions: 2,
		TransactionFrequency:   2,
		TotalVolume:            2,
		IncomingVolume:         1.5,
		OutgoingVolume:         0.5,
		FirstTransactionTime:   &first,
		AdditionalMetrics:      analysis.AdditionalMetrics{NetBalance: 1},
	}

	_, err = store.SaveVolumeReport(ctx, "walletA", 0.5, report)
	require.NoError(t, err)

	report.TotalTransactions = 5
	report.Truncated = true
	_, err = store.SaveVolumeReport(ctx, "walletA", 24, report)
	require.NoError(t, err)

	got, err := store.GetLatestVolumeReport(ctx, "walletA")
	require.NoError(t, err)
	assert.Equal(t, 24.0, got.WindowHours)
	assert.True(t, got.Truncated)
	assert.Equal(t, 5, got.Report.TotalTransactions)
	assert.Equal(t, 1.0, got.Report.AdditionalMetrics.NetBalance)
	require.NotNil(t, got.Report.FirstTransactionTime)
	assert.True(t, first.Equal(*got.Report.FirstTransactionTime))
}
