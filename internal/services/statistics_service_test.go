package services

import (
	"testing"
	"time"

	"taskelio/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatisticsService_AutomationStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := env.ctx()
	stats := NewStatisticsService(env.db, quietLogger())
	stats.now = func() time.Time { return testNow }

	seeded, err := env.automations.SeedPredefined(ctx, env.scope)
	require.NoError(t, err)
	_, err = env.automations.SetActive(ctx, env.scope, mustAutomation(t, env, TriggerWeeklyReport).ID, false)
	require.NoError(t, err)

	rows := []struct {
		trigger, status string
		at              time.Time
	}{
		{TriggerClientCreated, models.ExecutionSuccess, testNow.Add(-time.Hour)},
		{TriggerClientCreated, models.ExecutionSkipped, testNow.Add(-time.Hour)},
		{TriggerBudgetExceeded, models.ExecutionSuccess, testNow.Add(-26 * time.Hour)},
		{TriggerBudgetExceeded, models.ExecutionFailed, testNow.Add(-26 * time.Hour)},
		{TriggerBudgetExceeded, models.ExecutionSuccess, testNow.Add(-40 * 24 * time.Hour)},
	}
	for _, r := range rows {
		require.NoError(t, env.scope.Create(ctx, &models.AutomationExecution{
			AutomationID: mustAutomation(t, env, r.trigger).ID,
			TriggerType:  r.trigger,
			Status:       r.status,
			CreatedAt:    r.at,
		}))
	}

	start, end := stats.Window(7)
	assert.Equal(t, time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), start)

	got, err := stats.GetAutomationStats(ctx, env.scope, start)
	require.NoError(t, err)
	assert.EqualValues(t, seeded, got.TotalAutomations)
	assert.EqualValues(t, seeded-1, got.ActiveAutomations)
	assert.EqualValues(t, 4, got.TotalExecutions, "the 40-day-old row is outside the window")
	assert.EqualValues(t, 2, got.SuccessExecutions)
	assert.EqualValues(t, 1, got.SkippedExecutions)
	assert.EqualValues(t, 1, got.FailedExecutions)
	assert.InDelta(t, 2.0/3.0, got.SuccessRate, 1e-9)
	assert.Len(t, got.ByTrigger, 4)

	daily, err := stats.GetDailyExecutionStats(ctx, env.scope, start, end)
	require.NoError(t, err)
	require.Len(t, daily, 7)
	assert.Equal(t, "2026-03-10", daily[6].Date)
	assert.EqualValues(t, 1, daily[6].Success)
	assert.EqualValues(t, 1, daily[6].Skipped)
	assert.Equal(t, "2026-03-09", daily[5].Date)
	assert.EqualValues(t, 1, daily[5].Failed)
}

func TestStatisticsService_WindowClamps(t *testing.T) {
	stats := NewStatisticsService(nil, nil)
	stats.now = func() time.Time { return testNow }

	start, _ := stats.Window(0)
	assert.Equal(t, time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC), start)
	start, _ = stats.Window(1000)
	assert.Equal(t, testNow.Truncate(24*time.Hour).Add(-89*24*time.Hour), start)
}

func mustAutomation(t *testing.T, env *testEnv, trigger string) *models.AutomationConfig {
	t.Helper()
	var a models.AutomationConfig
	require.NoError(t, env.scope.Query(env.ctx()).Where("trigger_type = ?", trigger).First(&a).Error)
	return &a
}
