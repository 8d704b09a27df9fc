package retrieval

import (
	"context"

	"github.com/brojonat/walletlens/service/solana"
	solanago "github.com/gagliardetto/solana-go"
)

// Gateway is the subset of the ledger RPC client a retrieval needs.
type Gateway interface {
	SignatureLister
	TransactionGetter
}

// Stream yields a wallet's usable transactions, newest page first, holding at
// most one page of bodies in memory. It is finite and cannot be restarted.
//
//	s := retrieval.NewStream(gw, addr, retrieval.TimeBound{Start: start}, opts)
//	for s.Next(ctx) {
//		reducer.Add(s.Transaction())
//	}
//	if err := s.Err(); err != nil { ... }
type Stream struct {
	cursor  *Cursor
	fetcher *BatchFetcher
	stop    StopCondition
	opts    Options

	buf     []*solana.Transaction
	current *solana.Transaction
	err     error
}

// NewStream creates a stream over address's history ending at stop.
func NewStream(gw Gateway, address solanago.PublicKey, stop StopCondition, opts Options) *Stream {
	opts = opts.withDefaults()
	return &Stream{
		cursor:  NewCursor(gw, address, stop, opts),
		fetcher: NewBatchFetcher(gw, opts.Retry, opts.BatchSize, opts.BatchDelay, opts.Sleep, opts.Logger),
		stop:    stop,
		opts:    opts,
	}
}

// Next advances to the next transaction. It returns false when the history
// is exhausted or an error occurred; check Err afterwards.
func (s *Stream) Next(ctx context.Context) bool {
	for len(s.buf) == 0 {
		if s.err != nil || s.cursor.State() == StateDone {
			s.current = nil
			return false
		}
		if err := s.fill(ctx); err != nil {
			s.err = err
			s.current = nil
			return false
		}
	}
	s.current = s.buf[0]
	s.buf[0] = nil
	s.buf = s.buf[1:]
	s.opts.Metrics.RecordTransactionStreamed(s.stop.mode())
	return true
}

// Transaction returns the transaction Next moved to.
func (s *Stream) Transaction() *solana.Transaction { return s.current }

// Err returns the error that ended the stream, if any.
func (s *Stream) Err() error { return s.err }

// Truncated reports whether the stream ended at the page cap.
func (s *Stream) Truncated() bool { return s.cursor.Truncated() }

// Emitted is the number of transactions accepted from the pages fetched so far.
func (s *Stream) Emitted() int { return s.cursor.FetchedCount() }

// ForEach drains the stream into fn.
func (s *Stream) ForEach(ctx context.Context, fn func(*solana.Transaction)) error {
	for s.Next(ctx) {
		fn(s.Transaction())
	}
	return s.Err()
}

func (s *Stream) fill(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	refs, err := s.cursor.NextPage(ctx)
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		return nil
	}

	bodies, missing, err := s.fetcher.Fetch(ctx, refs)
	if err != nil {
		return err
	}

	mode := s.stop.mode()
	var start int64
	tb, timeBound := s.stop.(TimeBound)
	if timeBound {
		start = tb.Start.Unix()
	}

	kept := make([]*solana.Transaction, 0, len(bodies))
	var noTime, outside int
	for _, txn := range bodies {
		switch {
		case txn.BlockTime == nil:
			noTime++
		case timeBound && *txn.BlockTime < start:
			outside++
		default:
			kept = append(kept, txn)
		}
	}

	s.opts.Metrics.RecordTransactionsDiscarded(mode, "missing_body", missing)
	s.opts.Metrics.RecordTransactionsDiscarded(mode, "missing_block_time", noTime)
	s.opts.Metrics.RecordTransactionsDiscarded(mode, "out_of_window", outside)

	s.cursor.Advance(ctx, len(kept))
	s.buf = kept
	return nil
}
