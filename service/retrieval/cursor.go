package retrieval

import (
	"context"
	"log/slog"
	"time"

	"github.com/brojonat/walletlens/service/metrics"
	"github.com/brojonat/walletlens/service/solana"
	solanago "github.com/gagliardetto/solana-go"
)

const (
	DefaultCountPageSize = 20
	DefaultTimePageSize  = 1000
	DefaultMaxPages      = 50
)

// SignatureLister pages through a wallet's signatures, newest first.
type SignatureLister interface {
	ListSignatures(ctx context.Context, address solanago.PublicKey, before string, limit int) ([]solana.SignatureRef, error)
}

// StopCondition decides when a retrieval ends. It is either CountBound or TimeBound.
type StopCondition interface {
	mode() string
}

// CountBound stops after Max transactions have been emitted.
type CountBound struct {
	Max int
}

func (CountBound) mode() string { return "count" }

// TimeBound stops once history older than Start is reached.
type TimeBound struct {
	Start time.Time
}

func (TimeBound) mode() string { return "time" }

// CursorState is the position of a Cursor in its lifecycle.
type CursorState int

const (
	StateFetchingPage CursorState = iota
	StateFiltering
	StateDone
)

func (s CursorState) String() string {
	switch s {
	case StateFetchingPage:
		return "fetching_page"
	case StateFiltering:
		return "filtering"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Cursor walks a wallet's signature history from newest to oldest.
// Each call to NextPage must be followed by Advance before the next NextPage.
type Cursor struct {
	lister  SignatureLister
	address solanago.PublicKey
	stop    StopCondition
	opts    Options
	logger  *slog.Logger
	metrics *metrics.Metrics

	state        CursorState
	before       string
	pageIndex    int
	fetchedCount int
	shortPage    bool
	truncated    bool
}

// NewCursor creates a cursor positioned before the newest signature.
func NewCursor(lister SignatureLister, address solanago.PublicKey, stop StopCondition, opts Options) *Cursor {
	opts = opts.withDefaults()
	return &Cursor{
		lister:    lister,
		address:   address,
		stop:      stop,
		opts:      opts,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		state:     StateFetchingPage,
		pageIndex: 1,
	}
}

// State reports where the cursor is.
func (c *Cursor) State() CursorState { return c.state }

// PageIndex is the 1-based index of the next page to fetch.
func (c *Cursor) PageIndex() int { return c.pageIndex }

// FetchedCount is the number of transactions emitted so far.
func (c *Cursor) FetchedCount() int { return c.fetchedCount }

// Truncated reports whether the cursor stopped at the page cap rather than at
// the end of the requested history.
func (c *Cursor) Truncated() bool { return c.truncated }

// NextPage fetches the next page of signatures and returns the refs whose
// bodies should be resolved. It returns nil once the cursor is done.
func (c *Cursor) NextPage(ctx context.Context) ([]solana.SignatureRef, error) {
	if c.state != StateFetchingPage {
		return nil, nil
	}

	limit := c.opts.TimePageSize
	if cb, ok := c.stop.(CountBound); ok {
		remaining := cb.Max - c.fetchedCount
		if remaining <= 0 {
			c.finish(ctx, "count_reached")
			return nil, nil
		}
		limit = min(c.opts.CountPageSize, remaining)
	}

	refs, err := Retry(ctx, c.opts.Retry, "getSignaturesForAddress", func(ctx context.Context) ([]solana.SignatureRef, error) {
		return c.lister.ListSignatures(ctx, c.address, c.before, limit)
	})
	if err != nil {
		return nil, err
	}
	c.metrics.RecordPageFetched(c.stop.mode())

	c.logger.DebugContext(ctx, "fetched signature page",
		"wallet", c.address.String(),
		"page", c.pageIndex,
		"limit", limit,
		"count", len(refs),
	)

	if len(refs) == 0 {
		c.finish(ctx, "empty_page")
		return nil, nil
	}

	c.shortPage = len(refs) < limit
	c.before = refs[len(refs)-1].Signature
	c.pageIndex++

	if tb, ok := c.stop.(TimeBound); ok {
		start := tb.Start.Unix()
		if newest := refs[0].BlockTime; newest != nil && *newest < start {
			c.finish(ctx, "window_passed")
			return nil, nil
		}
		kept := make([]solana.SignatureRef, 0, len(refs))
		for _, ref := range refs {
			if ref.BlockTime != nil && *ref.BlockTime >= start {
				kept = append(kept, ref)
			}
		}
		if len(kept) == 0 {
			c.finish(ctx, "window_passed")
			return nil, nil
		}
		refs = kept
	}

	c.state = StateFiltering
	return refs, nil
}

// Advance records how many transactions from the last page were emitted and
// decides whether another page is needed.
func (c *Cursor) Advance(ctx context.Context, emitted int) {
	if c.state != StateFiltering {
		return
	}
	c.fetchedCount += emitted

	switch {
	case c.shortPage:
		c.finish(ctx, "short_page")
	case c.countReached():
		c.finish(ctx, "count_reached")
	case c.pageIndex > c.opts.MaxPages:
		c.truncated = true
		c.metrics.RecordTruncatedRetrieval(c.stop.mode())
		c.logger.WarnContext(ctx, "page cap reached, result is truncated",
			"wallet", c.address.String(),
			"max_pages", c.opts.MaxPages,
			"fetched", c.fetchedCount,
		)
		c.finish(ctx, "page_cap")
	default:
		c.state = StateFetchingPage
	}
}

func (c *Cursor) countReached() bool {
	cb, ok := c.stop.(CountBound)
	return ok && c.fetchedCount >= cb.Max
}

func (c *Cursor) finish(ctx context.Context, reason string) {
	c.state = StateDone
	c.logger.DebugContext(ctx, "history cursor done",
		"wallet", c.address.String(),
		"reason", reason,
		"pages", c.pageIndex-1,
		"fetched", c.fetchedCount,
	)
}
