package analysis

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/brojonat/walletlens/service/solana"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lamports = 1_000_000_000

func balanceTxn(sig string, blockTime int64, ok bool, before, after uint64) *solana.Transaction {
	return &solana.Transaction{
		Signature: sig,
		BlockTime: &blockTime,
		Succeeded: ok,
		BalanceDeltas: []solana.BalanceDelta{
			{AccountIndex: 0, LamportsBefore: before, LamportsAfter: after},
			{AccountIndex: 1, LamportsBefore: 7, LamportsAfter: 9},
		},
	}
}

func reduce(txns []*solana.Transaction, hours float64) *TransactionAnalysis {
	r := NewVolumeReducer()
	for _, txn := range txns {
		r.Add(txn)
	}
	return r.Result(hours)
}

func TestVolumeReducer_IncomingOutgoingScenario(t *testing.T) {
	got := reduce([]*solana.Transaction{
		balanceTxn("in", 1000, true, 1*lamports, 2.5*lamports),
		balanceTxn("out", 2000, true, 2.5*lamports, 2*lamports),
	}, 1)

	assert.Equal(t, 2, got.TotalTransactions)
	assert.Equal(t, 2, got.SuccessfulTransactions)
	assert.Equal(t, 0, got.FailedTransactions)
	assert.Equal(t, 2.00, got.TransactionFrequency)
	assert.Equal(t, 2.0, got.TotalVolume)
	assert.Equal(t, 1.0, got.AverageVolume)
	assert.Equal(t, 1.5, got.IncomingVolume)
	assert.Equal(t, 0.5, got.OutgoingVolume)
	assert.Equal(t, 1, got.IncomingCount)
	assert.Equal(t, 1, got.OutgoingCount)
	assert.Equal(t, 1.5, got.AdditionalMetrics.AverageIncoming)
	assert.Equal(t, 0.5, got.AdditionalMetrics.AverageOutgoing)
	assert.Equal(t, 1.0, got.AdditionalMetrics.NetBalance)

	require.NotNil(t, got.FirstTransactionTime)
	require.NotNil(t, got.LastTransactionTime)
	assert.Equal(t, time.Unix(1000, 0).UTC(), *got.FirstTransactionTime)
	assert.Equal(t, time.Unix(2000, 0).UTC(), *got.LastTransactionTime)
}

func TestVolumeReducer_FailedTransactionsCountButCarryNoVolume(t *testing.T) {
	got := reduce([]*solana.Transaction{
		balanceTxn("ok", 10, true, 0, lamports),
		balanceTxn("fail", 20, false, lamports, 0),
		balanceTxn("zero", 30, true, lamports, lamports),
	}, 24)

	assert.Equal(t, 3, got.TotalTransactions)
	assert.Equal(t, 2, got.SuccessfulTransactions)
	assert.Equal(t, 1, got.FailedTransactions)
	assert.Equal(t, 1.0, got.TotalVolume)
	assert.Equal(t, 0.5, got.AverageVolume)
	assert.Equal(t, 1, got.IncomingCount)
	assert.Equal(t, 0, got.OutgoingCount)
	assert.Equal(t, 0.0, got.AdditionalMetrics.AverageOutgoing)
	assert.Equal(t, 0.13, got.TransactionFrequency)
	assert.Equal(t, time.Unix(30, 0).UTC(), *got.LastTransactionTime)
}

func TestVolumeReducer_EmptyIsAllZero(t *testing.T) {
	got := reduce(nil, 24)

	assert.Equal(t, &TransactionAnalysis{}, got)
	assert.Nil(t, got.FirstTransactionTime)
	assert.Nil(t, got.LastTransactionTime)
}

func TestVolumeReducer_ZeroWindow(t *testing.T) {
	got := reduce([]*solana.Transaction{balanceTxn("a", 1, true, 0, 1)}, 0)
	assert.Equal(t, 0.0, got.TransactionFrequency)
}

func TestVolumeReducer_FractionalWindow(t *testing.T) {
	txns := []*solana.Transaction{
		balanceTxn("a", 1, true, 0, 1),
		balanceTxn("b", 2, false, 0, 1),
		balanceTxn("c", 3, true, 1, 0),
	}

	assert.Equal(t, 6.00, reduce(txns, 0.5).TransactionFrequency)
	assert.Equal(t, 1.33, reduce(txns, 2.25).TransactionFrequency)
}

func TestVolumeReducer_Rounding(t *testing.T) {
	got := reduce([]*solana.Transaction{
		balanceTxn("a", 1, true, 0, 123_456_789),
		balanceTxn("b", 2, true, 0, 100_000_000),
		balanceTxn("c", 3, true, 0, 50_000),
	}, 7)

	assert.Equal(t, 0.2235, got.TotalVolume)
	assert.Equal(t, 0.0745, got.AverageVolume)
	assert.Equal(t, 0.43, got.TransactionFrequency)
}

func randomHistory(r *rand.Rand, n int) []*solana.Transaction {
	txns := make([]*solana.Transaction, n)
	for i := range txns {
		before := r.Uint64N(50 * lamports)
		after := r.Uint64N(50 * lamports)
		if i%7 == 0 {
			after = before
		}
		txns[i] = balanceTxn("s", int64(1_700_000_000+r.IntN(86_400)), r.IntN(5) != 0, before, after)
	}
	return txns
}

func TestVolumeReducer_Properties(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))

	for trial := 0; trial < 25; trial++ {
		txns := randomHistory(r, 1+r.IntN(200))
		got := reduce(txns, float64(1+r.IntN(48)))

		assert.Equal(t, got.TotalTransactions, got.SuccessfulTransactions+got.FailedTransactions)
		assert.LessOrEqual(t, got.IncomingCount+got.OutgoingCount, got.SuccessfulTransactions)
		assert.InDelta(t, got.IncomingVolume-got.OutgoingVolume, got.AdditionalMetrics.NetBalance, 2e-4)
		assert.False(t, math.IsNaN(got.AverageVolume))
	}
}

func TestVolumeReducer_OrderInsensitive(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	txns := randomHistory(r, 300)
	want := reduce(txns, 24)

	for trial := 0; trial < 10; trial++ {
		shuffled := append([]*solana.Transaction(nil), txns...)
		r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		assert.Equal(t, want, reduce(shuffled, 24))
	}
}

func TestMintActivityReducer_OrderInsensitive(t *testing.T) {
	mints := []string{mintM, mintN, "MintO"}
	var txns []*solana.Transaction
	for i := 0; i < 60; i++ {
		txns = append(txns, tokenTxn("s", int64(100+i), i%3 != 0, held(ownerA, mints[i%len(mints)], solana.PhasePost)))
	}

	byMint := func(txns []*solana.Transaction) map[string]MintActivity {
		r := NewMintActivityReducer(ownerA)
		for _, txn := range txns {
			r.Add(txn)
		}
		out := make(map[string]MintActivity)
		for _, rec := range r.Result(false) {
			out[rec.MintAddress] = rec
		}
		return out
	}

	want := byMint(txns)
	rng := rand.New(rand.NewPCG(5, 6))
	shuffled := append([]*solana.Transaction(nil), txns...)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	assert.Equal(t, want, byMint(shuffled))
}
