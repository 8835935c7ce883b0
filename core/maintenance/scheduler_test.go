package maintenance

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warroom/config"
	"warroom/core/store"
	"warroom/core/utils"
)

func setupActivity(t *testing.T) store.ActivityStore {
	t.Helper()
	cfg := &config.AppConfig{DBDriver: "sqlite", DBPath: filepath.Join(t.TempDir(), "maint.db")}
	logger := utils.NewNopLogger()
	db, err := store.NewDB(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, store.ApplyMigrations(context.Background(), db, logger))
	return store.NewActivityStore(db)
}

func TestRunOnceDeletesOldEntries(t *testing.T) {
	activity := setupActivity(t)
	ctx := context.Background()
	now := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, activity.LogActivity(ctx, &store.ActivityEntry{Method: "GET", Path: "/old", StatusCode: 200, CreatedAt: now.Add(-72 * time.Hour)}))
	require.NoError(t, activity.LogActivity(ctx, &store.ActivityEntry{Method: "GET", Path: "/new", StatusCode: 200, CreatedAt: now.Add(-time.Hour)}))

	s := NewScheduler(config.SchedulerConfig{Enabled: true}, 24*time.Hour, activity, utils.NewNopLogger())
	s.now = func() time.Time { return now }
	n, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	rest, err := activity.ListActivity(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "/new", rest[0].Path)
}

func TestStartStop(t *testing.T) {
	s := NewScheduler(config.SchedulerConfig{Enabled: true, ActivityRetention: "@every 1h"}, time.Hour, setupActivity(t), utils.NewNopLogger())
	s.StartWithContext(context.Background())
	s.StartWithContext(context.Background())
	assert.True(t, s.running)
	require.NoError(t, s.StopWithContext(context.Background()))
	assert.False(t, s.running)
	require.NoError(t, s.StopWithContext(context.Background()))
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(config.SchedulerConfig{Enabled: true, ActivityRetention: "whenever"}, time.Hour, setupActivity(t), utils.NewNopLogger())
	s.StartWithContext(context.Background())
	assert.False(t, s.running)
}

func TestDisabledSchedulerIsNoop(t *testing.T) {
	s := NewScheduler(config.SchedulerConfig{Enabled: false}, time.Hour, setupActivity(t), nil)
	s.StartWithContext(context.Background())
	assert.False(t, s.running)
	require.NoError(t, s.StopWithContext(context.Background()))
}
