package temporal

import (
	"context"
	"fmt"
	"sync"
)

// MockScheduler is a mock implementation of Scheduler for testing.
type MockScheduler struct {
	mu         sync.Mutex
	cron       string
	input      RefreshLatestMintsInput
	scheduled  bool
	triggers   []RefreshLatestMintsInput
	upsertErr  error
	deleteErr  error
	triggerErr error
}

// NewMockScheduler creates a new MockScheduler.
func NewMockScheduler() *MockScheduler {
	return &MockScheduler{}
}

// UpsertRefreshSchedule records the schedule.
func (m *MockScheduler) UpsertRefreshSchedule(ctx context.Context, cron string, input RefreshLatestMintsInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.cron = cron
	m.input = input
	m.scheduled = true
	return nil
}

// DeleteRefreshSchedule removes the recorded schedule.
func (m *MockScheduler) DeleteRefreshSchedule(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.deleteErr != nil {
		return m.deleteErr
	}
	if !m.scheduled {
		return fmt.Errorf("schedule %q not found", RefreshScheduleID)
	}
	m.scheduled = false
	return nil
}

// TriggerRefresh records the trigger and returns a synthetic workflow ID.
func (m *MockScheduler) TriggerRefresh(ctx context.Context, input RefreshLatestMintsInput) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.triggerErr != nil {
		return "", m.triggerErr
	}
	m.triggers = append(m.triggers, input)
	return fmt.Sprintf("refresh-%d", len(m.triggers)), nil
}

// SetUpsertError makes UpsertRefreshSchedule return an error.
func (m *MockScheduler) SetUpsertError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertErr = err
}

// SetDeleteError makes DeleteRefreshSchedule return an error.
func (m *MockScheduler) SetDeleteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteErr = err
}

// SetTriggerError makes TriggerRefresh return an error.
func (m *MockScheduler) SetTriggerError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggerErr = err
}

// Schedule returns the recorded cron expression and input, and whether a
// schedule exists.
func (m *MockScheduler) Schedule() (string, RefreshLatestMintsInput, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cron, m.input, m.scheduled
}

// Triggers returns the inputs of all triggered runs.
func (m *MockScheduler) Triggers() []RefreshLatestMintsInput {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RefreshLatestMintsInput, len(m.triggers))
	copy(out, m.triggers)
	return out
}
