package analysis

import (
	"time"

	"github.com/brojonat/walletlens/service/solana"
)

// TokenTypeDefault is the only classification currently reported for a mint.
const TokenTypeDefault = "TOKEN"

// MintActivity summarises one mint's appearances in a wallet's transactions.
type MintActivity struct {
	MintAddress         string    `json:"mintAddress"`
	TotalCount          int       `json:"totalCount"`
	SuccessCount        int       `json:"successCount"`
	FailedCount         int       `json:"failedCount"`
	LastTransactionTime time.Time `json:"lastTransactionTime"`
	Type                string    `json:"type"`
}

// MintActivityResult is the output of a mint activity analysis.
type MintActivityResult struct {
	Data      []MintActivity `json:"data"`
	Truncated bool           `json:"truncated"`
}

type mintCounter struct {
	total, success, failed int
	lastSeen               int64
}

// MintActivityReducer counts, per mint, the transactions in which owner held
// a token balance of that mint before or after execution.
type MintActivityReducer struct {
	owner    string
	order    []string
	counters map[string]*mintCounter
}

func NewMintActivityReducer(owner string) *MintActivityReducer {
	return &MintActivityReducer{
		owner:    owner,
		counters: make(map[string]*mintCounter),
	}
}

// Add folds one transaction into the counters. Transactions without a block
// time are ignored.
func (r *MintActivityReducer) Add(txn *solana.Transaction) {
	if txn == nil || txn.BlockTime == nil {
		return
	}

	seen := make(map[string]struct{}, len(txn.TokenBalances))
	for _, tb := range txn.TokenBalances {
		if tb.Owner != r.owner || tb.Mint == "" {
			continue
		}
		if _, dup := seen[tb.Mint]; dup {
			continue
		}
		seen[tb.Mint] = struct{}{}

		c, ok := r.counters[tb.Mint]
		if !ok {
			c = &mintCounter{}
			r.counters[tb.Mint] = c
			r.order = append(r.order, tb.Mint)
		}
		c.total++
		if txn.Succeeded {
			c.success++
		} else {
			c.failed++
		}
		c.lastSeen = max(c.lastSeen, *txn.BlockTime)
	}
}

// Result returns one record per mint in first-seen order. With filterFailed,
// mints that never appeared in a successful transaction are left out.
func (r *MintActivityReducer) Result(filterFailed bool) []MintActivity {
	out := make([]MintActivity, 0, len(r.order))
	for _, mint := range r.order {
		c := r.counters[mint]
		if filterFailed && c.success == 0 {
			continue
		}
		out = append(out, MintActivity{
			MintAddress:         mint,
			TotalCount:          c.total,
			SuccessCount:        c.success,
			FailedCount:         c.failed,
			LastTransactionTime: time.Unix(c.lastSeen, 0).UTC(),
			Type:                TokenTypeDefault,
		})
	}
	return out
}
