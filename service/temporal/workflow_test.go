package temporal

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"
)

func newRefreshEnv(t *testing.T) (*testsuite.TestWorkflowEnvironment, *Activities, *RecordRefreshInput) {
	t.Helper()

	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	acts := NewActivities(nil, nil, nil, nil, discardLogger())
	register(env, acts)

	recorded := &RecordRefreshInput{}
	env.OnActivity(acts.RecordRefresh, mock.Anything, mock.Anything).Return(
		func(_ context.Context, in RecordRefreshInput) error {
			*recorded = in
			return nil
		})

	return env, acts, recorded
}

func TestRefreshLatestMintsWorkflow(t *testing.T) {
	env, acts, recorded := newRefreshEnv(t)

	env.OnActivity(acts.ListLatestWallets, mock.Anything, ListLatestWalletsInput{Limit: 3}).
		Return(&ListLatestWalletsResult{Addresses: []string{"walletA", "walletB", "walletC"}}, nil)
	env.OnActivity(acts.AnalyzeWalletMints, mock.Anything, AnalyzeWalletMintsInput{Address: "walletA", MaxTxCount: 500}).
		Return(&AnalyzeWalletMintsResult{Address: "walletA", Mints: []string{"mintM", "mintN"}}, nil)
	env.OnActivity(acts.AnalyzeWalletMints, mock.Anything, AnalyzeWalletMintsInput{Address: "walletB", MaxTxCount: 500}).
		Return(nil, errors.New("rpc unavailable"))
	env.OnActivity(acts.AnalyzeWalletMints, mock.Anything, AnalyzeWalletMintsInput{Address: "walletC", MaxTxCount: 500}).
		Return(&AnalyzeWalletMintsResult{Address: "walletC", Mints: []string{"mintN", "mintP"}}, nil)

	env.ExecuteWorkflow(RefreshLatestMintsWorkflow, RefreshLatestMintsInput{WalletCount: 3})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result RefreshLatestMintsResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, []string{"walletA", "walletB", "walletC"}, result.Wallets)
	assert.Equal(t, 2, result.Analyzed)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, []string{"mintM", "mintN", "mintP"}, result.Mints)

	assert.Equal(t, "success", recorded.Status)
	assert.Equal(t, 3, recorded.Mints)
	assert.Equal(t, 1, recorded.Failed)
}

func TestRefreshLatestMintsWorkflow_Defaults(t *testing.T) {
	env, acts, _ := newRefreshEnv(t)

	env.OnActivity(acts.ListLatestWallets, mock.Anything, ListLatestWalletsInput{Limit: DefaultRefreshWalletCount}).
		Return(&ListLatestWalletsResult{Addresses: []string{}}, nil)

	env.ExecuteWorkflow(RefreshLatestMintsWorkflow, RefreshLatestMintsInput{})

	require.NoError(t, env.GetWorkflowError())

	var result RefreshLatestMintsResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Empty(t, result.Wallets)
	assert.Empty(t, result.Mints)
	assert.NotNil(t, result.Mints)
}

func TestRefreshLatestMintsWorkflow_ListFails(t *testing.T) {
	env, acts, recorded := newRefreshEnv(t)

	env.OnActivity(acts.ListLatestWallets, mock.Anything, mock.Anything).
		Return(nil, errors.New("database error"))

	env.ExecuteWorkflow(RefreshLatestMintsWorkflow, RefreshLatestMintsInput{WalletCount: 1})

	require.True(t, env.IsWorkflowCompleted())
	assert.Error(t, env.GetWorkflowError())
	assert.Equal(t, "error", recorded.Status)
}

func TestRefreshLatestMintsWorkflow_ActivityRetries(t *testing.T) {
	env, acts, _ := newRefreshEnv(t)

	env.OnActivity(acts.ListLatestWallets, mock.Anything, mock.Anything).
		Return(&ListLatestWalletsResult{Addresses: []string{"walletA"}}, nil)

	callCount := 0
	env.OnActivity(acts.AnalyzeWalletMints, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		callCount++
		if callCount < 3 {
			panic("transient error") // Temporal retries on panics
		}
	}).Return(&AnalyzeWalletMintsResult{Address: "walletA", Mints: []string{"mintM"}}, nil)

	env.ExecuteWorkflow(RefreshLatestMintsWorkflow, RefreshLatestMintsInput{WalletCount: 1})

	require.NoError(t, env.GetWorkflowError())

	var result RefreshLatestMintsResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, []string{"mintM"}, result.Mints)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 3, callCount)
}

func TestMockScheduler(t *testing.T) {
	ctx := context.Background()
	s := NewMockScheduler()

	assert.Error(t, s.DeleteRefreshSchedule(ctx))

	require.NoError(t, s.UpsertRefreshSchedule(ctx, "*/30 * * * *", RefreshLatestMintsInput{WalletCount: 5}))
	cron, input, ok := s.Schedule()
	assert.True(t, ok)
	assert.Equal(t, "*/30 * * * *", cron)
	assert.Equal(t, 5, input.WalletCount)

	id, err := s.TriggerRefresh(ctx, RefreshLatestMintsInput{WalletCount: 2})
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", id)
	assert.Len(t, s.Triggers(), 1)

	require.NoError(t, s.DeleteRefreshSchedule(ctx))
	_, _, ok = s.Schedule()
	assert.False(t, ok)
}
