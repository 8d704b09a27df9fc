package solana

import (
	"github.com/gagliardetto/solana-go/rpc"
)

// signatureToRef converts an RPC TransactionSignature to our SignatureRef.
func signatureToRef(sig *rpc.TransactionSignature) SignatureRef {
	ref := SignatureRef{
		Signature: sig.Signature.String(),
	}
	if sig.BlockTime != nil {
		bt := int64(*sig.BlockTime)
		ref.BlockTime = &bt
	}
	return ref
}

// transactionFromResult extracts the balance-level view of a getTransaction result.
// Returns nil when the node returned no body or no meta, which callers treat as absent.
func transactionFromResult(signature string, result *rpc.GetTransactionResult) *Transaction {
	if result == nil || result.Meta == nil {
		return nil
	}

	txn := &Transaction{
		Signature: signature,
		Succeeded: result.Meta.Err == nil,
	}

	if result.BlockTime != nil {
		bt := int64(*result.BlockTime)
		txn.BlockTime = &bt
	}

	// preBalances and postBalances are parallel arrays indexed by account key position.
	// A malformed response could make them differ in length; only the shared prefix is usable.
	n := min(len(result.Meta.PreBalances), len(result.Meta.PostBalances))
	txn.BalanceDeltas = make([]BalanceDelta, 0, n)
	for i := 0; i < n; i++ {
		txn.BalanceDeltas = append(txn.BalanceDeltas, BalanceDelta{
			AccountIndex:   i,
			LamportsBefore: result.Meta.PreBalances[i],
			LamportsAfter:  result.Meta.PostBalances[i],
		})
	}

	txn.TokenBalances = make([]TokenBalance, 0, len(result.Meta.PreTokenBalances)+len(result.Meta.PostTokenBalances))
	txn.TokenBalances = appendTokenBalances(txn.TokenBalances, result.Meta.PreTokenBalances, PhasePre)
	txn.TokenBalances = appendTokenBalances(txn.TokenBalances, result.Meta.PostTokenBalances, PhasePost)

	return txn
}

func appendTokenBalances(dst []TokenBalance, src []rpc.TokenBalance, phase Phase) []TokenBalance {
	for _, b := range src {
		tb := TokenBalance{
			Mint:  b.Mint.String(),
			Phase: phase,
		}
		// Owner is only present on nodes newer than v1.9; without it we cannot
		// attribute the balance to a wallet.
		if b.Owner != nil {
			tb.Owner = b.Owner.String()
		}
		if b.UiTokenAmount != nil {
			tb.Amount = b.UiTokenAmount.Amount
		}
		dst = append(dst, tb)
	}
	return dst
}
