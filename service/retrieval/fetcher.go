package retrieval

import (
	"context"
	"log/slog"
	"time"

	"github.com/brojonat/walletlens/service/solana"
	"golang.org/x/sync/errgroup"
)

const DefaultBatchSize = 5

// TransactionGetter resolves one signature to its transaction body.
// A nil body with a nil error means the ledger has no body for it.
type TransactionGetter interface {
	GetTransaction(ctx context.Context, signature string) (*solana.Transaction, error)
}

// BatchFetcher resolves signature refs to bodies in fixed-size chunks.
// Calls within a chunk run concurrently; chunks run one after another with
// Delay between them. A BatchFetcher belongs to a single retrieval and is not
// safe for concurrent use, since the delay spans pages of that retrieval.
type BatchFetcher struct {
	getter    TransactionGetter
	retry     RetryPolicy
	batchSize int
	delay     time.Duration
	sleep     SleepFunc
	logger    *slog.Logger

	fetchedChunk bool
}

// NewBatchFetcher creates a fetcher. batchSize <= 0 uses DefaultBatchSize.
func NewBatchFetcher(getter TransactionGetter, retry RetryPolicy, batchSize int, delay time.Duration, sleep SleepFunc, logger *slog.Logger) *BatchFetcher {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if sleep == nil {
		sleep = sleepContext
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchFetcher{
		getter:    getter,
		retry:     retry,
		batchSize: batchSize,
		delay:     delay,
		sleep:     sleep,
		logger:    logger,
	}
}

// Fetch resolves refs and returns the bodies that exist, in input order.
// The second return value counts refs whose body was absent. Any failure that
// survives the retry policy aborts the whole call.
func (f *BatchFetcher) Fetch(ctx context.Context, refs []solana.SignatureRef) ([]*solana.Transaction, int, error) {
	out := make([]*solana.Transaction, 0, len(refs))
	missing := 0

	for start := 0; start < len(refs); start += f.batchSize {
		if f.fetchedChunk && f.delay > 0 {
			if err := f.sleep(ctx, f.delay); err != nil {
				return nil, 0, err
			}
		}
		f.fetchedChunk = true

		chunk := refs[start:min(start+f.batchSize, len(refs))]
		bodies, err := f.fetchChunk(ctx, chunk)
		if err != nil {
			return nil, 0, err
		}
		for _, txn := range bodies {
			if txn == nil {
				missing++
				continue
			}
			out = append(out, txn)
		}
	}

	if missing > 0 {
		f.logger.DebugContext(ctx, "transaction bodies missing", "count", missing)
	}
	return out, missing, nil
}

func (f *BatchFetcher) fetchChunk(ctx context.Context, chunk []solana.SignatureRef) ([]*solana.Transaction, error) {
	bodies := make([]*solana.Transaction, len(chunk))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.batchSize)
	for i, ref := range chunk {
		g.Go(func() error {
			txn, err := Retry(gctx, f.retry, "getTransaction", func(ctx context.Context) (*solana.Transaction, error) {
				return f.getter.GetTransaction(ctx, ref.Signature)
			})
			if err != nil {
				return err
			}
			bodies[i] = txn
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return bodies, nil
}
