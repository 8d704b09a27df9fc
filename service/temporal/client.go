package temporal

import (
	"context"
	"fmt"
	"log/slog"

	"go.temporal.io/sdk/client"
)

// Client is a production implementation of Scheduler that talks to Temporal.
type Client struct {
	client    client.Client
	taskQueue string
	logger    *slog.Logger
}

// NewClient creates a new Temporal client.
func NewClient(host, namespace, taskQueue string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("connecting to temporal",
		"host", host,
		"namespace", namespace,
		"task_queue", taskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  host,
		Namespace: namespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}

	logger.Info("connected to temporal successfully")

	return &Client{
		client:    c,
		taskQueue: taskQueue,
		logger:    logger,
	}, nil
}

func (c *Client) refreshAction(input RefreshLatestMintsInput) *client.ScheduleWorkflowAction {
	return &client.ScheduleWorkflowAction{
		ID:        RefreshScheduleID,
		Workflow:  RefreshLatestMintsWorkflow,
		TaskQueue: c.taskQueue,
		Args:      []interface{}{input},
	}
}

// UpsertRefreshSchedule creates or updates the refresh schedule.
func (c *Client) UpsertRefreshSchedule(ctx context.Context, cron string, input RefreshLatestMintsInput) error {
	c.logger.DebugContext(ctx, "upserting refresh schedule",
		"schedule_id", RefreshScheduleID,
		"cron", cron,
		"wallet_count", input.WalletCount,
	)

	spec := client.ScheduleSpec{CronExpressions: []string{cron}}

	handle := c.client.ScheduleClient().GetHandle(ctx, RefreshScheduleID)
	if _, err := handle.Describe(ctx); err != nil {
		c.logger.DebugContext(ctx, "schedule not found, creating new one",
			"schedule_id", RefreshScheduleID,
			"error", err,
		)
		_, err := c.client.ScheduleClient().Create(ctx, client.ScheduleOptions{
			ID:     RefreshScheduleID,
			Spec:   spec,
			Action: c.refreshAction(input),
			Memo: map[string]interface{}{
				"created_by": "walletlens",
			},
		})
		if err != nil {
			c.logger.ErrorContext(ctx, "failed to create schedule", "schedule_id", RefreshScheduleID, "error", err)
			return fmt.Errorf("failed to create schedule %q: %w", RefreshScheduleID, err)
		}
		c.logger.InfoContext(ctx, "refresh schedule created", "schedule_id", RefreshScheduleID, "cron", cron)
		return nil
	}

	err := handle.Update(ctx, client.ScheduleUpdateOptions{
		DoUpdate: func(in client.ScheduleUpdateInput) (*client.ScheduleUpdate, error) {
			in.Description.Schedule.Spec = &spec
			in.Description.Schedule.Action = c.refreshAction(input)
			return &client.ScheduleUpdate{
				Schedule: &in.Description.Schedule,
			}, nil
		},
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to update schedule", "schedule_id", RefreshScheduleID, "error", err)
		return fmt.Errorf("failed to update schedule %q: %w", RefreshScheduleID, err)
	}

	c.logger.InfoContext(ctx, "refresh schedule updated", "schedule_id", RefreshScheduleID, "cron", cron)
	return nil
}

// DeleteRefreshSchedule deletes the refresh schedule.
func (c *Client) DeleteRefreshSchedule(ctx context.Context) error {
	handle := c.client.ScheduleClient().GetHandle(ctx, RefreshScheduleID)
	if err := handle.Delete(ctx); err != nil {
		c.logger.ErrorContext(ctx, "failed to delete schedule", "schedule_id", RefreshScheduleID, "error", err)
		return fmt.Errorf("failed to delete schedule %q: %w", RefreshScheduleID, err)
	}

	c.logger.InfoContext(ctx, "refresh schedule deleted", "schedule_id", RefreshScheduleID)
	return nil
}

// TriggerRefresh starts a refresh run outside the schedule.
func (c *Client) TriggerRefresh(ctx context.Context, input RefreshLatestMintsInput) (string, error) {
	run, err := c.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		TaskQueue: c.taskQueue,
	}, RefreshLatestMintsWorkflow, input)
	if err != nil {
		return "", fmt.Errorf("failed to start refresh workflow: %w", err)
	}

	c.logger.InfoContext(ctx, "refresh workflow started",
		"workflow_id", run.GetID(),
		"run_id", run.GetRunID(),
	)
	return run.GetID(), nil
}

// RefreshResult blocks until the given refresh run finishes and returns its result.
func (c *Client) RefreshResult(ctx context.Context, workflowID string) (*RefreshLatestMintsResult, error) {
	var result RefreshLatestMintsResult
	if err := c.client.GetWorkflow(ctx, workflowID, "").Get(ctx, &result); err != nil {
		return nil, fmt.Errorf("refresh workflow %s failed: %w", workflowID, err)
	}
	return &result, nil
}

// SDKClient returns the underlying Temporal SDK client for direct workflow operations.
func (c *Client) SDKClient() client.Client {
	return c.client
}

// TaskQueue returns the configured task queue for this client.
func (c *Client) TaskQueue() string {
	return c.taskQueue
}

// Close closes the Temporal client connection.
func (c *Client) Close() {
	c.logger.Info("closing temporal client")
	c.client.Close()
}

// temporalLogger adapts slog.Logger to Temporal's logger interface.
type temporalLogger struct {
	logger *slog.Logger
}

func newTemporalLogger(logger *slog.Logger) *temporalLogger {
	return &temporalLogger{logger: logger}
}

func (l *temporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug(msg, keyvals...)
}

func (l *temporalLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info(msg, keyvals...)
}

func (l *temporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn(msg, keyvals...)
}

func (l *temporalLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error(msg, keyvals...)
}
