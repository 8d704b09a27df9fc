package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/brojonat/walletlens/service/solana"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStream_CountBoundPagesUntilMax(t *testing.T) {
	history := makeHistory(100, time.Now(), time.Minute)
	gw := newFakeGateway(history)

	s := NewStream(gw, testWallet, CountBound{Max: 50}, testOptions())
	got := drain(s)

	require.NoError(t, s.Err())
	assert.Len(t, got, 50)
	assert.False(t, s.Truncated())

	lists, gets := gw.calls()
	require.Len(t, lists, 3)
	assert.Equal(t, listCall{before: "", limit: 20}, lists[0])
	assert.Equal(t, listCall{before: history[19].Signature, limit: 20}, lists[1])
	assert.Equal(t, listCall{before: history[39].Signature, limit: 10}, lists[2])
	assert.Equal(t, 50, gets)
}

func TestStream_CountBoundSinglePageTermination(t *testing.T) {
	history := makeHistory(7, time.Now(), time.Minute)
	gw := newFakeGateway(history)

	s := NewStream(gw, testWallet, CountBound{Max: 50}, testOptions())
	got := drain(s)

	require.NoError(t, s.Err())
	assert.Len(t, got, 7)
	lists, _ := gw.calls()
	assert.Len(t, lists, 1)
}

func TestStream_CountBoundNonPositiveMax(t *testing.T) {
	gw := newFakeGateway(makeHistory(5, time.Now(), time.Minute))

	s := NewStream(gw, testWallet, CountBound{Max: 0}, testOptions())
	assert.Empty(t, drain(s))
	require.NoError(t, s.Err())

	lists, gets := gw.calls()
	assert.Empty(t, lists)
	assert.Zero(t, gets)
}

func TestStream_CountBoundRefillsAfterDiscards(t *testing.T) {
	history := makeHistory(30, time.Now(), time.Minute)
	gw := newFakeGateway(history)
	gw.bodies[history[0].Signature].BlockTime = nil
	delete(gw.bodies, history[1].Signature)

	s := NewStream(gw, testWallet, CountBound{Max: 20}, testOptions())
	got := drain(s)

	require.NoError(t, s.Err())
	assert.Len(t, got, 20)
	lists, _ := gw.calls()
	require.Len(t, lists, 2)
	assert.Equal(t, 2, lists[1].limit)
}

func TestStream_TimeBoundSinglePageTermination(t *testing.T) {
	now := time.Now()
	gw := newFakeGateway(makeHistory(5, now, time.Minute))

	s := NewStream(gw, testWallet, TimeBound{Start: now.Add(-time.Hour)}, testOptions())
	got := drain(s)

	require.NoError(t, s.Err())
	assert.Len(t, got, 5)
	lists, _ := gw.calls()
	require.Len(t, lists, 1)
	assert.Equal(t, 1000, lists[0].limit)
}

func TestStream_TimeBoundEarlyExitFetchesNoBodies(t *testing.T) {
	now := time.Now()
	gw := newFakeGateway(makeHistory(10, now.Add(-48*time.Hour), time.Minute))

	s := NewStream(gw, testWallet, TimeBound{Start: now.Add(-24 * time.Hour)}, testOptions())
	got := drain(s)

	require.NoError(t, s.Err())
	assert.Empty(t, got)
	lists, gets := gw.calls()
	assert.Len(t, lists, 1)
	assert.Zero(t, gets)
}

func TestStream_TimeBoundFiltersOlderRefs(t *testing.T) {
	now := time.Now()
	// 10 refs an hour apart; only the newest 3 fall inside a 2.5h window
	gw := newFakeGateway(makeHistory(10, now, time.Hour))

	s := NewStream(gw, testWallet, TimeBound{Start: now.Add(-150 * time.Minute)}, testOptions())
	got := drain(s)

	require.NoError(t, s.Err())
	assert.Len(t, got, 3)
	_, gets := gw.calls()
	assert.Equal(t, 3, gets)
}

func TestStream_TimeBoundDropsBodiesOutsideWindow(t *testing.T) {
	now := time.Now()
	history := makeHistory(3, now, time.Minute)
	gw := newFakeGateway(history)
	old := now.Add(-48 * time.Hour).Unix()
	gw.bodies[history[2].Signature].BlockTime = &old

	s := NewStream(gw, testWallet, TimeBound{Start: now.Add(-time.Hour)}, testOptions())
	got := drain(s)

	require.NoError(t, s.Err())
	assert.Len(t, got, 2)
}

func TestStream_PageCapTruncates(t *testing.T) {
	now := time.Now()
	gw := newFakeGateway(makeHistory(100, now, time.Second))

	opts := testOptions()
	opts.TimePageSize = 2
	opts.MaxPages = 3

	s := NewStream(gw, testWallet, TimeBound{Start: now.Add(-time.Hour)}, opts)
	got := drain(s)

	require.NoError(t, s.Err())
	assert.True(t, s.Truncated())
	assert.Len(t, got, 6)
	lists, _ := gw.calls()
	assert.Len(t, lists, 3)
}

func TestStream_PageCapLogsWithCallerContext(t *testing.T) {
	now := time.Now()
	gw := newFakeGateway(makeHistory(100, now, time.Second))

	h := newCtxHandler()
	opts := testOptions()
	opts.TimePageSize = 2
	opts.MaxPages = 3
	opts.Logger = slog.New(h)

	ctx := context.WithValue(context.Background(), ctxKey{}, "req-1")
	s := NewStream(gw, testWallet, TimeBound{Start: now.Add(-time.Hour)}, opts)
	require.NoError(t, s.ForEach(ctx, func(*solana.Transaction) {}))
	require.True(t, s.Truncated())

	for _, msg := range []string{"page cap reached, result is truncated", "history cursor done"} {
		v, ok := h.value(msg)
		require.True(t, ok, msg)
		assert.Equal(t, "req-1", v, msg)
	}
}

func TestStream_ShortFinalPageIsNotTruncated(t *testing.T) {
	now := time.Now()
	gw := newFakeGateway(makeHistory(5, now, time.Second))

	opts := testOptions()
	opts.TimePageSize = 2
	opts.MaxPages = 3

	s := NewStream(gw, testWallet, TimeBound{Start: now.Add(-time.Hour)}, opts)
	got := drain(s)

	require.NoError(t, s.Err())
	assert.False(t, s.Truncated())
	assert.Len(t, got, 5)
}

func TestStream_EmptyHistory(t *testing.T) {
	gw := newFakeGateway(nil)

	s := NewStream(gw, testWallet, TimeBound{Start: time.Now().Add(-time.Hour)}, testOptions())
	assert.False(t, s.Next(context.Background()))
	assert.NoError(t, s.Err())
	assert.Nil(t, s.Transaction())
}

func TestStream_RemoteFailurePropagates(t *testing.T) {
	gw := newFakeGateway(makeHistory(5, time.Now(), time.Minute))
	cause := errors.New("HTTP 503")
	gw.listErr = cause

	s := NewStream(gw, testWallet, CountBound{Max: 10}, testOptions())
	assert.False(t, s.Next(context.Background()))

	var rf *RemoteFailure
	require.ErrorAs(t, s.Err(), &rf)
	assert.Equal(t, "getSignaturesForAddress", rf.Op)
	assert.ErrorIs(t, s.Err(), cause)

	lists, _ := gw.calls()
	assert.Len(t, lists, 3)

	// finished streams stay finished
	assert.False(t, s.Next(context.Background()))
}

func TestStream_CancelledContext(t *testing.T) {
	gw := newFakeGateway(makeHistory(5, time.Now(), time.Minute))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := testOptions()
	opts.Retry.Sleep = nil
	gw.listErr = context.Canceled

	s := NewStream(gw, testWallet, CountBound{Max: 5}, opts)
	assert.False(t, s.Next(ctx))
	assert.ErrorIs(t, s.Err(), context.Canceled)
}

func TestStream_BatchDelayAcrossPages(t *testing.T) {
	now := time.Now()
	gw := newFakeGateway(makeHistory(8, now, time.Second))
	rec := &sleepRecorder{}

	opts := testOptions()
	opts.TimePageSize = 4
	opts.BatchSize = 3
	opts.BatchDelay = 300 * time.Millisecond
	opts.Sleep = rec.Sleep

	s := NewStream(gw, testWallet, TimeBound{Start: now.Add(-time.Hour)}, opts)
	var got []*solana.Transaction
	require.NoError(t, s.ForEach(context.Background(), func(txn *solana.Transaction) {
		got = append(got, txn)
	}))

	assert.Len(t, got, 8)
	// pages of 4 split into chunks 3+1, 3+1, last page empty
	assert.Len(t, rec.recorded(), 3)
}
