package analysis

import (
	"time"

	"github.com/brojonat/walletlens/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

const (
	volumePlaces    = 4
	frequencyPlaces = 2
)

var lamportsPerSOL = decimal.NewFromInt(int64(solanago.LAMPORTS_PER_SOL))

// AdditionalMetrics are derived per-direction figures, in SOL.
type AdditionalMetrics struct {
	AverageIncoming float64 `json:"averageIncoming"`
	AverageOutgoing float64 `json:"averageOutgoing"`
	NetBalance      float64 `json:"netBalance"`
}

// TransactionAnalysis is the volume, frequency and direction report for one
// wallet over a time window. Volumes are in SOL. FirstTransactionTime and
// LastTransactionTime are nil (JSON null) when the window holds no
// transactions.
type TransactionAnalysis struct {
	TotalTransactions      int               `json:"totalTransactions"`
	SuccessfulTransactions int               `json:"successfulTransactions"`
	FailedTransactions     int               `json:"failedTransactions"`
	TransactionFrequency   float64           `json:"transactionFrequency"`
	TotalVolume            float64           `json:"totalVolume"`
	AverageVolume          float64           `json:"averageVolume"`
	FirstTransactionTime   *time.Time        `json:"firstTransactionTime"`
	LastTransactionTime    *time.Time        `json:"lastTransactionTime"`
	IncomingVolume         float64           `json:"incomingVolume"`
	OutgoingVolume         float64           `json:"outgoingVolume"`
	IncomingCount          int               `json:"incomingCount"`
	OutgoingCount          int               `json:"outgoingCount"`
	AdditionalMetrics      AdditionalMetrics `json:"additionalMetrics"`

	Truncated   bool      `json:"truncated"`
	WindowStart time.Time `json:"windowStart"`
	WindowEnd   time.Time `json:"windowEnd"`
}

// VolumeReducer accumulates balance movement of the fee payer account.
// Sums are kept in lamports so the result does not depend on fold order.
type VolumeReducer struct {
	total, success       int
	totalLamports        int64
	incomingLamports     int64
	outgoingLamports     int64
	incomingN, outgoingN int
	firstTime, lastTime  int64
	hasTime              bool
}

func NewVolumeReducer() *VolumeReducer {
	return &VolumeReducer{}
}

// Add folds one transaction. Every transaction with a block time counts toward
// the totals; only successful ones contribute volume.
func (r *VolumeReducer) Add(txn *solana.Transaction) {
	if txn == nil || txn.BlockTime == nil {
		return
	}

	r.total++
	bt := *txn.BlockTime
	if !r.hasTime {
		r.firstTime, r.lastTime, r.hasTime = bt, bt, true
	} else {
		r.firstTime = min(r.firstTime, bt)
		r.lastTime = max(r.lastTime, bt)
	}

	if !txn.Succeeded {
		return
	}
	r.success++

	delta, ok := txn.FeePayerDelta()
	if !ok {
		return
	}
	switch {
	case delta > 0:
		r.totalLamports += delta
		r.incomingLamports += delta
		r.incomingN++
	case delta < 0:
		r.totalLamports -= delta
		r.outgoingLamports -= delta
		r.outgoingN++
	}
}

// Result converts the accumulated sums into a report for a window of
// windowHours hours. A non-positive window yields a frequency of 0.
func (r *VolumeReducer) Result(windowHours float64) *TransactionAnalysis {
	total := toSOL(r.totalLamports)
	incoming := toSOL(r.incomingLamports)
	outgoing := toSOL(r.outgoingLamports)

	a := &TransactionAnalysis{
		TotalTransactions:      r.total,
		SuccessfulTransactions: r.success,
		FailedTransactions:     r.total - r.success,
		TransactionFrequency:   round(perHour(r.total, windowHours), frequencyPlaces),
		TotalVolume:            round(total, volumePlaces),
		AverageVolume:          round(safeDiv(total, r.success), volumePlaces),
		IncomingVolume:         round(incoming, volumePlaces),
		OutgoingVolume:         round(outgoing, volumePlaces),
		IncomingCount:          r.incomingN,
		OutgoingCount:          r.outgoingN,
		AdditionalMetrics: AdditionalMetrics{
			AverageIncoming: round(safeDiv(incoming, r.incomingN), volumePlaces),
			AverageOutgoing: round(safeDiv(outgoing, r.outgoingN), volumePlaces),
			NetBalance:      round(incoming.Sub(outgoing), volumePlaces),
		},
	}
	if r.hasTime {
		first := time.Unix(r.firstTime, 0).UTC()
		last := time.Unix(r.lastTime, 0).UTC()
		a.FirstTransactionTime = &first
		a.LastTransactionTime = &last
	}
	return a
}

func toSOL(lamports int64) decimal.Decimal {
	return decimal.NewFromInt(lamports).Div(lamportsPerSOL)
}

func safeDiv(num decimal.Decimal, den int) decimal.Decimal {
	if den == 0 {
		return decimal.Zero
	}
	return num.Div(decimal.NewFromInt(int64(den)))
}

func perHour(n int, windowHours float64) decimal.Decimal {
	if windowHours <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(n)).Div(decimal.NewFromFloat(windowHours))
}

func round(d decimal.Decimal, places int32) float64 {
	return d.Round(places).InexactFloat64()
}
