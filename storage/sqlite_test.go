package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auction_monitor/models"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ops.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	store := newTestSQLite(t)

	started := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	run := &models.ScrapeRun{SiteID: "megaleiloes", StartedAt: started, Status: models.RunStatusRunning}
	id, err := store.CreateRun(run)
	require.NoError(t, err)
	require.NotZero(t, id)

	finished := started.Add(90 * time.Second)
	run.ID = id
	run.FinishedAt = &finished
	run.Status = models.RunStatusCompleted
	run.Apply(models.RunSummary{ItemsScraped: 10, ItemsMatched: 8, ItemsNew: 2, SnapshotsCreated: 8, ItemsUpdated: 8, Errors: 1})
	require.NoError(t, store.UpdateRun(run))

	got, err := store.GetRun(id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.RunStatusCompleted, got.Status)
	assert.Equal(t, int64(10), got.ItemsScraped)
	assert.Equal(t, int64(2), got.ItemsNew)
	assert.Equal(t, int64(1), got.ErrorsCount)
	assert.JSONEq(t, string(run.Stats), string(got.Stats))

	missing, err := store.GetRun(id + 100)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLiteStore_Logs(t *testing.T) {
	store := newTestSQLite(t)

	id, err := store.CreateRun(&models.ScrapeRun{SiteID: "megaleiloes", StartedAt: time.Now(), Status: models.RunStatusRunning})
	require.NoError(t, err)

	require.NoError(t, store.Log(&id, models.LogLevelInfo, "starting", "megaleiloes"))
	require.NoError(t, store.Log(&id, models.LogLevelError, "chunk 2 failed", "megaleiloes"))
	require.NoError(t, store.Log(nil, models.LogLevelWarn, "unscoped", "megaleiloes"))

	logs, err := store.GetRunLogs(id)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "starting", logs[0].Message)
	assert.Equal(t, models.LogLevelError, logs[1].Level)
	require.NotNil(t, logs[1].RunID)
	assert.Equal(t, id, *logs[1].RunID)
}

func TestSQLiteStore_SiteStats(t *testing.T) {
	store := newTestSQLite(t)
	base := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)

	for i, status := range []models.RunStatus{models.RunStatusCompleted, models.RunStatusFailed, models.RunStatusCompleted, models.RunStatusCompleted} {
		started := base.Add(time.Duration(i) * time.Hour)
		run := &models.ScrapeRun{SiteID: "megaleiloes", StartedAt: started, Status: models.RunStatusRunning}
		id, err := store.CreateRun(run)
		require.NoError(t, err)

		finished := started.Add(time.Minute)
		run.ID = id
		run.FinishedAt = &finished
		run.Status = status
		run.SnapshotsCreated = 5
		require.NoError(t, store.UpdateRun(run))
	}

	require.NoError(t, store.UpdateSiteStats("megaleiloes"))
	stats, err := store.GetSiteStats("megaleiloes")
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, 4, stats.TotalRuns)
	assert.Equal(t, int64(20), stats.TotalSnapshots)
	assert.InDelta(t, 0.75, stats.SuccessRate, 0.001)
	assert.Equal(t, string(models.RunStatusCompleted), stats.LastRunStatus)

	// Upsert, not duplicate.
	require.NoError(t, store.UpdateSiteStats("megaleiloes"))
	stats, err = store.GetSiteStats("megaleiloes")
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalRuns)

	none, err := store.GetSiteStats("other")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestSQLiteStore_Commands(t *testing.T) {
	store := newTestSQLite(t)

	first, err := store.EnqueueCommand(models.CmdPause, nil)
	require.NoError(t, err)
	_, err = store.EnqueueCommand(models.CmdScrapeNow, &models.CommandParams{Site: "megaleiloes"})
	require.NoError(t, err)

	cmds, err := store.GetPendingCommands()
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Equal(t, models.CmdPause, cmds[0].Command)
	assert.Equal(t, models.CmdScrapeNow, cmds[1].Command)

	params, err := ParseCommandParams(&cmds[0])
	require.NoError(t, err)
	assert.Empty(t, params.Site)

	params, err = ParseCommandParams(&cmds[1])
	require.NoError(t, err)
	assert.Equal(t, "megaleiloes", params.Site)

	require.NoError(t, store.MarkCommandProcessed(first))
	cmds, err = store.GetPendingCommands()
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, models.CmdScrapeNow, cmds[0].Command)
}

func TestParseCommandParams_Invalid(t *testing.T) {
	_, err := ParseCommandParams(&models.Command{Params: []byte(`{"site":`)})
	assert.Error(t, err)
}

func TestSQLiteStore_ConsoleQueries(t *testing.T) {
	store := newTestSQLite(t)
	base := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)

	for i, site := range []string{"b-site", "a-site", "a-site"} {
		run := &models.ScrapeRun{SiteID: site, StartedAt: base.Add(time.Duration(i) * time.Hour), Status: models.RunStatusCompleted}
		id, err := store.CreateRun(run)
		require.NoError(t, err)
		require.NoError(t, store.Log(&id, models.LogLevelInfo, "run started", site))
		require.NoError(t, store.UpdateSiteStats(site))
	}
	require.NoError(t, store.Log(nil, models.LogLevelError, "boom", "a-site"))

	stats, err := store.ListSiteStats()
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "a-site", stats[0].SiteID)
	assert.Equal(t, 2, stats[0].TotalRuns)

	runs, err := store.RecentRuns(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.True(t, runs[0].StartedAt.After(runs[1].StartedAt))

	logs, err := store.RecentLogs(10, nil)
	require.NoError(t, err)
	require.Len(t, logs, 4)
	assert.Equal(t, "boom", logs[0].Message)

	level := models.LogLevelError
	logs, err = store.RecentLogs(10, &level)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Nil(t, logs[0].RunID)
}
