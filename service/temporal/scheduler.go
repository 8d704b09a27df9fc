package temporal

import "context"

// Scheduler manages the periodic refresh of recently discovered wallets.
type Scheduler interface {
	// UpsertRefreshSchedule creates the refresh schedule, or updates its cron
	// expression and input if it already exists.
	UpsertRefreshSchedule(ctx context.Context, cron string, input RefreshLatestMintsInput) error

	// DeleteRefreshSchedule removes the refresh schedule.
	DeleteRefreshSchedule(ctx context.Context) error

	// TriggerRefresh starts a refresh run immediately and returns its workflow ID.
	TriggerRefresh(ctx context.Context, input RefreshLatestMintsInput) (string, error)
}

// RefreshScheduleID is the Temporal schedule ID of the refresh schedule.
const RefreshScheduleID = "refresh-latest-mints"
