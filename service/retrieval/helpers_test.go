package retrieval

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/brojonat/walletlens/service/solana"
	solanago "github.com/gagliardetto/solana-go"
)

var testWallet = solanago.MustPublicKeyFromBase58("11111111111111111111111111111111")

type listCall struct {
	before string
	limit  int
}

// fakeGateway serves a fixed newest-first history. Behaviour is configured up
// front; calls are recorded so tests can assert on paging.
type fakeGateway struct {
	mu sync.Mutex

	history []solana.SignatureRef
	bodies  map[string]*solana.Transaction

	listErr   error
	getErr    map[string]error
	failFirst map[string]int

	listCalls []listCall
	getCalls  int
	inFlight  int
	maxFlight int
}

func newFakeGateway(history []solana.SignatureRef) *fakeGateway {
	g := &fakeGateway{
		history:   history,
		bodies:    make(map[string]*solana.Transaction),
		getErr:    make(map[string]error),
		failFirst: make(map[string]int),
	}
	for _, ref := range history {
		g.bodies[ref.Signature] = &solana.Transaction{
			Signature: ref.Signature,
			BlockTime: ref.BlockTime,
			Succeeded: true,
		}
	}
	return g
}

func (g *fakeGateway) ListSignatures(ctx context.Context, address solanago.PublicKey, before string, limit int) ([]solana.SignatureRef, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listCalls = append(g.listCalls, listCall{before: before, limit: limit})
	if g.listErr != nil {
		return nil, g.listErr
	}

	start := 0
	if before != "" {
		start = len(g.history)
		for i, ref := range g.history {
			if ref.Signature == before {
				start = i + 1
				break
			}
		}
	}
	end := min(start+limit, len(g.history))
	out := make([]solana.SignatureRef, end-start)
	copy(out, g.history[start:end])
	return out, nil
}

func (g *fakeGateway) GetTransaction(ctx context.Context, signature string) (*solana.Transaction, error) {
	g.mu.Lock()
	g.getCalls++
	g.inFlight++
	g.maxFlight = max(g.maxFlight, g.inFlight)
	err := g.getErr[signature]
	if n := g.failFirst[signature]; n > 0 {
		g.failFirst[signature] = n - 1
		err = fmt.Errorf("HTTP 429 Too Many Requests")
	}
	body := g.bodies[signature]
	g.mu.Unlock()

	// give concurrent calls a chance to overlap
	time.Sleep(time.Millisecond)

	g.mu.Lock()
	g.inFlight--
	g.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return body, nil
}

func (g *fakeGateway) calls() ([]listCall, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]listCall(nil), g.listCalls...), g.getCalls
}

// makeHistory returns n refs newest first, the newest at newest and each
// older one step seconds earlier.
func makeHistory(n int, newest time.Time, step time.Duration) []solana.SignatureRef {
	refs := make([]solana.SignatureRef, n)
	for i := range refs {
		bt := newest.Add(-time.Duration(i) * step).Unix()
		refs[i] = solana.SignatureRef{
			Signature: fmt.Sprintf("sig-%04d", i),
			BlockTime: &bt,
		}
	}
	return refs
}

// sleepRecorder captures requested delays without waiting.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func (r *sleepRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOptions() Options {
	opts := VolumeOptions()
	opts.BatchDelay = 0
	opts.Logger = discardLogger()
	opts.Retry.Sleep = (&sleepRecorder{}).Sleep
	return opts
}

func drain(s *Stream) []*solana.Transaction {
	var out []*solana.Transaction
	_ = s.ForEach(context.Background(), func(txn *solana.Transaction) {
		out = append(out, txn)
	})
	return out
}

type ctxKey struct{}

// ctxHandler records each message with the value stored under ctxKey in the
// context it was logged with.
type ctxHandler struct {
	mu      sync.Mutex
	records map[string]any
}

func newCtxHandler() *ctxHandler { return &ctxHandler{records: make(map[string]any)} }

func (h *ctxHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *ctxHandler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records[r.Message] = ctx.Value(ctxKey{})
	return nil
}

func (h *ctxHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *ctxHandler) WithGroup(string) slog.Handler      { return h }

func (h *ctxHandler) value(msg string) (any, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.records[msg]
	return v, ok
}
