package temporal

import (
	"time"

	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	// DefaultRefreshWalletCount is how many of the most recently discovered
	// wallets a scheduled refresh analyses.
	DefaultRefreshWalletCount = 5

	// DefaultRefreshMaxTxCount is the per-wallet transaction bound of a refresh.
	DefaultRefreshMaxTxCount = 500
)

var a *Activities // for type-safe activity invocation

// RefreshLatestMintsWorkflow analyses the most recently discovered wallets and
// returns the union of the mints they touched.
//
// Wallets are analysed concurrently. A wallet whose analysis fails after
// retries is logged and skipped; it never fails the run.
func RefreshLatestMintsWorkflow(ctx workflow.Context, input RefreshLatestMintsInput) (*RefreshLatestMintsResult, error) {
	logger := workflow.GetLogger(ctx)
	if input.WalletCount <= 0 {
		input.WalletCount = DefaultRefreshWalletCount
	}
	if input.MaxTxCount <= 0 {
		input.MaxTxCount = DefaultRefreshMaxTxCount
	}
	logger.Info("RefreshLatestMintsWorkflow started",
		"wallet_count", input.WalletCount,
		"max_tx_count", input.MaxTxCount,
	)

	started := workflow.Now(ctx)
	result := &RefreshLatestMintsResult{RunTime: started}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 300 * time.Second,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	})

	var listResult *ListLatestWalletsResult
	err := workflow.ExecuteActivity(ctx, a.ListLatestWallets, ListLatestWalletsInput{Limit: input.WalletCount}).Get(ctx, &listResult)
	if err != nil {
		logger.Error("failed to list latest wallets", "error", err)
		recordRefresh(ctx, started, "error", result)
		return nil, err
	}
	result.Wallets = listResult.Addresses

	futures := make([]workflow.Future, len(result.Wallets))
	for i, addr := range result.Wallets {
		futures[i] = workflow.ExecuteActivity(ctx, a.AnalyzeWalletMints, AnalyzeWalletMintsInput{
			Address:    addr,
			MaxTxCount: input.MaxTxCount,
		})
	}

	seen := make(map[string]bool)
	result.Mints = []string{}
	for i, f := range futures {
		var r *AnalyzeWalletMintsResult
		if err := f.Get(ctx, &r); err != nil {
			logger.Warn("skipping wallet after failed analysis", "address", result.Wallets[i], "error", err)
			result.Failed++
			continue
		}
		result.Analyzed++
		for _, mint := range r.Mints {
			if !seen[mint] {
				seen[mint] = true
				result.Mints = append(result.Mints, mint)
			}
		}
	}

	logger.Info("RefreshLatestMintsWorkflow completed",
		"wallets", len(result.Wallets),
		"analyzed", result.Analyzed,
		"failed", result.Failed,
		"mints", len(result.Mints),
	)

	recordRefresh(ctx, started, "success", result)
	return result, nil
}

// recordRefresh reports the run outcome. Failures here are logged only.
func recordRefresh(ctx workflow.Context, started time.Time, status string, result *RefreshLatestMintsResult) {
	input := RecordRefreshInput{
		Status:   status,
		Duration: workflow.Now(ctx).Sub(started),
		Wallets:  len(result.Wallets),
		Failed:   result.Failed,
		Mints:    len(result.Mints),
	}
	if err := workflow.ExecuteActivity(ctx, a.RecordRefresh, input).Get(ctx, nil); err != nil {
		workflow.GetLogger(ctx).Warn("failed to record refresh outcome", "error", err)
	}
}
