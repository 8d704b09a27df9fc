package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/brojonat/walletlens/service/retrieval"
	"github.com/brojonat/walletlens/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ledger is an in-memory gateway keyed by wallet address.
type ledger struct {
	mu        sync.Mutex
	histories map[string][]*solana.Transaction
	failFor   map[string]error
	getCalls  int
}

func newLedger() *ledger {
	return &ledger{
		histories: make(map[string][]*solana.Transaction),
		failFor:   make(map[string]error),
	}
}

func (l *ledger) add(wallet string, txns ...*solana.Transaction) {
	l.histories[wallet] = append(l.histories[wallet], txns...)
}

func (l *ledger) ListSignatures(ctx context.Context, address solanago.PublicKey, before string, limit int) ([]solana.SignatureRef, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.failFor[address.String()]; err != nil {
		return nil, err
	}

	history := l.histories[address.String()]
	start := 0
	if before != "" {
		for i, txn := range history {
			if txn.Signature == before {
				start = i + 1
			}
		}
	}
	end := min(start+limit, len(history))
	refs := make([]solana.SignatureRef, 0, end-start)
	for _, txn := range history[start:end] {
		refs = append(refs, solana.SignatureRef{Signature: txn.Signature, BlockTime: txn.BlockTime})
	}
	return refs, nil
}

func (l *ledger) GetTransaction(ctx context.Context, signature string) (*solana.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.getCalls++
	for _, history := range l.histories {
		for _, txn := range history {
			if txn.Signature == signature {
				return txn, nil
			}
		}
	}
	return nil, nil
}

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func testService(gw retrieval.Gateway, now time.Time) *Service {
	cfg := DefaultConfig()
	for _, o := range []*retrieval.Options{&cfg.MintOptions, &cfg.VolumeOptions} {
		o.BatchDelay = 0
		o.Retry.Sleep = noSleep
	}
	cfg.Now = func() time.Time { return now }
	return NewService(gw, cfg, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newAddress() string {
	return solanago.NewWallet().PublicKey().String()
}

func TestAnalyzeMintActivity_SingleMintScenario(t *testing.T) {
	wallet, mint := newAddress(), newAddress()
	l := newLedger()
	for i := 0; i < 3; i++ {
		l.add(wallet, tokenTxn(fmt.Sprintf("s%d", i), int64(1_700_000_000-i), true, held(wallet, mint, solana.PhasePost)))
	}

	res, err := testService(l, time.Now()).AnalyzeMintActivity(context.Background(), wallet, false, 3)
	require.NoError(t, err)
	assert.False(t, res.Truncated)
	require.Len(t, res.Data, 1)

	got := res.Data[0]
	assert.Equal(t, mint, got.MintAddress)
	assert.Equal(t, 3, got.TotalCount)
	assert.Equal(t, 3, got.SuccessCount)
	assert.Equal(t, 0, got.FailedCount)
	assert.Equal(t, "TOKEN", got.Type)
	assert.Equal(t, time.Unix(1_700_000_000, 0).UTC(), got.LastTransactionTime)
}

func TestAnalyzeMintActivity_RespectsMaxTxCount(t *testing.T) {
	wallet := newAddress()
	mints := []string{newAddress(), newAddress()}
	l := newLedger()
	for i := 0; i < 40; i++ {
		l.add(wallet, tokenTxn(fmt.Sprintf("s%d", i), int64(2_000-i), true, held(wallet, mints[i/20], solana.PhasePost)))
	}

	res, err := testService(l, time.Now()).AnalyzeMintActivity(context.Background(), wallet, true, 20)
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	assert.Equal(t, mints[0], res.Data[0].MintAddress)
	assert.Equal(t, 20, res.Data[0].TotalCount)
	assert.Equal(t, 20, l.getCalls)
}

func TestAnalyzeMintActivity_InvalidAddress(t *testing.T) {
	l := newLedger()

	_, err := testService(l, time.Now()).AnalyzeMintActivity(context.Background(), "not-base58-0OIl", false, 10)
	require.ErrorIs(t, err, ErrInvalidAddress)
	assert.Zero(t, l.getCalls)
}

func TestAnalyzeMintActivity_RemoteFailure(t *testing.T) {
	wallet := newAddress()
	l := newLedger()
	l.failFor[wallet] = errors.New("HTTP 502")

	_, err := testService(l, time.Now()).AnalyzeMintActivity(context.Background(), wallet, false, 10)
	var rf *retrieval.RemoteFailure
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, 3, rf.Attempts)
}

func TestAnalyzeWalletTransactions_VolumeScenario(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	wallet := newAddress()
	l := newLedger()
	l.add(wallet,
		balanceTxn("in", now.Add(-10*time.Minute).Unix(), true, 1*lamports, 2.5*lamports),
		balanceTxn("out", now.Add(-20*time.Minute).Unix(), true, 2.5*lamports, 2*lamports),
		balanceTxn("old", now.Add(-3*time.Hour).Unix(), true, 0, 100*lamports),
	)

	got, err := testService(l, now).AnalyzeWalletTransactions(context.Background(), wallet, 1)
	require.NoError(t, err)

	assert.Equal(t, 2, got.TotalTransactions)
	assert.Equal(t, 2.00, got.TransactionFrequency)
	assert.Equal(t, 2.0, got.TotalVolume)
	assert.Equal(t, 1.5, got.IncomingVolume)
	assert.Equal(t, 0.5, got.OutgoingVolume)
	assert.Equal(t, 1.0, got.AdditionalMetrics.NetBalance)
	assert.False(t, got.Truncated)
	assert.Equal(t, now.UTC(), got.WindowEnd)
	assert.Equal(t, now.Add(-time.Hour).UTC(), got.WindowStart)
	assert.Equal(t, 2, l.getCalls)
}

func TestAnalyzeWalletTransactions_EmptyHistory(t *testing.T) {
	wallet := newAddress()
	l := newLedger()

	got, err := testService(l, time.Now()).AnalyzeWalletTransactions(context.Background(), wallet, 24)
	require.NoError(t, err)
	assert.Equal(t, 0, got.TotalTransactions)
	assert.Equal(t, 0.0, got.TotalVolume)
	assert.Equal(t, 0.0, got.AverageVolume)
	assert.Equal(t, 0.0, got.TransactionFrequency)
	assert.Nil(t, got.FirstTransactionTime)
	assert.Nil(t, got.LastTransactionTime)

	raw, err := json.Marshal(got)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"firstTransactionTime":null`)
	assert.Contains(t, string(raw), `"lastTransactionTime":null`)
}

func TestAnalyzeWalletTransactions_HalfHourWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	wallet := newAddress()
	l := newLedger()
	l.add(wallet,
		balanceTxn("a", now.Add(-5*time.Minute).Unix(), true, 1*lamports, 2*lamports),
		balanceTxn("b", now.Add(-15*time.Minute).Unix(), true, 2*lamports, 1*lamports),
		balanceTxn("c", now.Add(-25*time.Minute).Unix(), false, 1*lamports, 1*lamports),
		balanceTxn("old", now.Add(-45*time.Minute).Unix(), true, 0, 100*lamports),
	)

	got, err := testService(l, now).AnalyzeWalletTransactions(context.Background(), wallet, 0.5)
	require.NoError(t, err)

	assert.Equal(t, now.Add(-30*time.Minute).UTC(), got.WindowStart)
	assert.Equal(t, 3, got.TotalTransactions)
	assert.Equal(t, 6.00, got.TransactionFrequency)
	assert.Equal(t, 2.0, got.TotalVolume)
}

func TestAnalyzeWalletTransactions_InvalidInput(t *testing.T) {
	svc := testService(newLedger(), time.Now())

	_, err := svc.AnalyzeWalletTransactions(context.Background(), "", 24)
	assert.ErrorIs(t, err, ErrInvalidAddress)

	for _, hours := range []float64{-1, 0, math.NaN(), math.Inf(1)} {
		_, err = svc.AnalyzeWalletTransactions(context.Background(), newAddress(), hours)
		assert.ErrorIs(t, err, ErrInvalidWindow, hours)
	}
}

func TestLatestMints_UnionSkipsFailures(t *testing.T) {
	w1, w2, w3 := newAddress(), newAddress(), newAddress()
	m1, m2, m3 := newAddress(), newAddress(), newAddress()

	l := newLedger()
	l.add(w1,
		tokenTxn("w1a", 100, true, held(w1, m1, solana.PhasePost)),
		tokenTxn("w1b", 99, false, held(w1, m2, solana.PhasePre)),
	)
	l.add(w2, tokenTxn("w2a", 100, true, held(w2, m2, solana.PhasePost), held(w2, m3, solana.PhasePost)))
	l.failFor[w3] = errors.New("HTTP 500")

	mints, err := testService(l, time.Now()).LatestMints(context.Background(), []string{w1, w2, w3, "bogus"}, 500)
	require.NoError(t, err)
	assert.Equal(t, []string{m1, m2, m3}, mints)
}

func TestLatestMints_NoWallets(t *testing.T) {
	mints, err := testService(newLedger(), time.Now()).LatestMints(context.Background(), nil, 500)
	require.NoError(t, err)
	assert.Empty(t, mints)
}

func TestLatestMints_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	wallet := newAddress()
	l := newLedger()
	l.add(wallet, tokenTxn("a", 1, true))

	_, err := testService(l, time.Now()).LatestMints(ctx, []string{wallet}, 10)
	assert.ErrorIs(t, err, context.Canceled)
}
