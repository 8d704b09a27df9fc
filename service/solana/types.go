package solana

import (
	"time"
)

// SignatureRef is one entry of a wallet's signature history as returned by
// getSignaturesForAddress. Entries arrive newest first.
type SignatureRef struct {
	Signature string
	BlockTime *int64 // unix seconds, nil when the node did not report one
}

// Phase marks whether a token balance was captured before or after execution.
type Phase string

const (
	PhasePre  Phase = "pre"
	PhasePost Phase = "post"
)

// BalanceDelta is the native SOL balance of one account before and after a transaction.
type BalanceDelta struct {
	AccountIndex   int
	LamportsBefore uint64
	LamportsAfter  uint64
}

// Delta returns the signed lamport change for the account.
func (b BalanceDelta) Delta() int64 {
	return int64(b.LamportsAfter) - int64(b.LamportsBefore)
}

// TokenBalance is an SPL token balance record from the transaction meta.
type TokenBalance struct {
	Owner  string
	Mint   string
	Amount string // raw integer amount as reported by the node
	Phase  Phase
}

// Transaction represents a fetched Solana transaction.
// This is our domain model, independent of the RPC response format.
// Only balance-level information is kept; instructions are not decoded.
type Transaction struct {
	Signature     string
	BlockTime     *int64 // nil if the node has no block time for this slot
	Succeeded     bool
	BalanceDeltas []BalanceDelta
	TokenBalances []TokenBalance
}

// Time returns the block time as a time.Time, or the zero time if unknown.
func (t *Transaction) Time() time.Time {
	if t.BlockTime == nil {
		return time.Time{}
	}
	return time.Unix(*t.BlockTime, 0).UTC()
}

// FeePayerDelta returns the lamport change of account index 0 (the fee payer / signer).
// The second return value is false when the transaction carries no balance information.
func (t *Transaction) FeePayerDelta() (int64, bool) {
	for _, b := range t.BalanceDeltas {
		if b.AccountIndex == 0 {
			return b.Delta(), true
		}
	}
	return 0, false
}
