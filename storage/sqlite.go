package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"auction_monitor/models"
)

// SQLiteStore holds operational data: run history, run logs, per-site
// stats and the command queue the daemon polls.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scrape_runs (
		id INTEGER PRIMARY KEY,
		site_id TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		items_scraped INTEGER DEFAULT 0,
		items_matched INTEGER DEFAULT 0,
		items_new INTEGER DEFAULT 0,
		snapshots_created INTEGER DEFAULT 0,
		items_updated INTEGER DEFAULT 0,
		errors_count INTEGER DEFAULT 0,
		stats JSON
	);

	CREATE TABLE IF NOT EXISTS scrape_logs (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		site_id TEXT
	);

	CREATE TABLE IF NOT EXISTS site_stats (
		site_id TEXT PRIMARY KEY,
		last_run_at DATETIME,
		last_run_status TEXT,
		total_runs INTEGER,
		total_snapshots INTEGER,
		success_rate REAL,
		avg_run_duration_sec INTEGER
	);

	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY,
		command TEXT,
		params JSON,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		processed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_commands_pending ON commands(processed_at) WHERE processed_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_logs_run ON scrape_logs(run_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON scrape_runs(status, started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// Runs
// =============================================================================

func (s *SQLiteStore) CreateRun(run *models.ScrapeRun) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO scrape_runs (site_id, started_at, status)
		VALUES (?, ?, ?)`,
		run.SiteID, run.StartedAt, run.Status)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) UpdateRun(run *models.ScrapeRun) error {
	var stats any
	if len(run.Stats) > 0 {
		stats = string(run.Stats)
	}
	_, err := s.db.Exec(`
		UPDATE scrape_runs SET finished_at = ?, status = ?, items_scraped = ?, items_matched = ?,
			items_new = ?, snapshots_created = ?, items_updated = ?, errors_count = ?, stats = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.ItemsScraped, run.ItemsMatched,
		run.ItemsNew, run.SnapshotsCreated, run.ItemsUpdated, run.ErrorsCount, stats, run.ID)
	return err
}

func (s *SQLiteStore) GetRun(id int64) (*models.ScrapeRun, error) {
	var run models.ScrapeRun
	var stats sql.NullString
	err := s.db.QueryRow(`
		SELECT id, site_id, started_at, finished_at, status, items_scraped, items_matched,
			items_new, snapshots_created, items_updated, errors_count, stats
		FROM scrape_runs WHERE id = ?`, id).Scan(
		&run.ID, &run.SiteID, &run.StartedAt, &run.FinishedAt, &run.Status, &run.ItemsScraped,
		&run.ItemsMatched, &run.ItemsNew, &run.SnapshotsCreated, &run.ItemsUpdated, &run.ErrorsCount, &stats)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if stats.Valid {
		run.Stats = json.RawMessage(stats.String)
	}
	return &run, nil
}

func (s *SQLiteStore) Log(runID *int64, level models.LogLevel, message, siteID string) error {
	_, err := s.db.Exec(`
		INSERT INTO scrape_logs (run_id, timestamp, level, message, site_id)
		VALUES (?, ?, ?, ?, ?)`,
		runID, time.Now(), level, message, siteID)
	return err
}

func (s *SQLiteStore) GetRunLogs(runID int64) ([]models.ScrapeLog, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, timestamp, level, message, site_id
		FROM scrape_logs WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.ScrapeLog
	for rows.Next() {
		var l models.ScrapeLog
		if err := rows.Scan(&l.ID, &l.RunID, &l.Timestamp, &l.Level, &l.Message, &l.SiteID); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *SQLiteStore) UpdateSiteStats(siteID string) error {
	_, err := s.db.Exec(`
		INSERT INTO site_stats (site_id, last_run_at, last_run_status, total_runs,
			total_snapshots, success_rate, avg_run_duration_sec)
		SELECT
			?,
			(SELECT started_at FROM scrape_runs WHERE site_id = ? ORDER BY started_at DESC LIMIT 1),
			(SELECT status FROM scrape_runs WHERE site_id = ? ORDER BY started_at DESC LIMIT 1),
			(SELECT COUNT(*) FROM scrape_runs WHERE site_id = ?),
			(SELECT COALESCE(SUM(snapshots_created), 0) FROM scrape_runs WHERE site_id = ?),
			(SELECT CAST(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END) AS REAL) /
				NULLIF(COUNT(*), 0) FROM scrape_runs WHERE site_id = ?),
			(SELECT CAST(AVG((julianday(finished_at) - julianday(started_at)) * 86400) AS INTEGER)
				FROM scrape_runs WHERE site_id = ? AND finished_at IS NOT NULL)
		ON CONFLICT(site_id) DO UPDATE SET
			last_run_at = excluded.last_run_at,
			last_run_status = excluded.last_run_status,
			total_runs = excluded.total_runs,
			total_snapshots = excluded.total_snapshots,
			success_rate = excluded.success_rate,
			avg_run_duration_sec = excluded.avg_run_duration_sec`,
		siteID, siteID, siteID, siteID, siteID, siteID, siteID)
	return err
}

func (s *SQLiteStore) GetSiteStats(siteID string) (*models.SiteStats, error) {
	var st models.SiteStats
	var rate sql.NullFloat64
	var avg sql.NullInt64
	err := s.db.QueryRow(`
		SELECT site_id, last_run_at, COALESCE(last_run_status, ''), COALESCE(total_runs, 0),
			COALESCE(total_snapshots, 0), success_rate, avg_run_duration_sec
		FROM site_stats WHERE site_id = ?`, siteID).Scan(
		&st.SiteID, &st.LastRunAt, &st.LastRunStatus, &st.TotalRuns, &st.TotalSnapshots, &rate, &avg)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	st.SuccessRate = rate.Float64
	st.AvgRunDurationSec = int(avg.Int64)
	return &st, nil
}

// =============================================================================
// Commands
// =============================================================================

func (s *SQLiteStore) EnqueueCommand(cmd models.CommandType, params *models.CommandParams) (int64, error) {
	var raw any
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return 0, err
		}
		raw = string(data)
	}
	result, err := s.db.Exec(`INSERT INTO commands (command, params, created_at) VALUES (?, ?, ?)`, cmd, raw, time.Now())
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) GetPendingCommands() ([]models.Command, error) {
	rows, err := s.db.Query(`
		SELECT id, command, params, created_at, processed_at
		FROM commands WHERE processed_at IS NULL ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []models.Command
	for rows.Next() {
		var cmd models.Command
		var params sql.NullString
		if err := rows.Scan(&cmd.ID, &cmd.Command, &params, &cmd.CreatedAt, &cmd.ProcessedAt); err != nil {
			return nil, err
		}
		if params.Valid {
			cmd.Params = json.RawMessage(params.String)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, rows.Err()
}

func (s *SQLiteStore) MarkCommandProcessed(id int64) error {
	_, err := s.db.Exec(`UPDATE commands SET processed_at = ? WHERE id = ?`, time.Now(), id)
	return err
}

func ParseCommandParams(cmd *models.Command) (*models.CommandParams, error) {
	if cmd.Params == nil || string(cmd.Params) == "null" {
		return &models.CommandParams{}, nil
	}
	var params models.CommandParams
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		return nil, err
	}
	return &params, nil
}

// =============================================================================
// Console queries
// =============================================================================

func (s *SQLiteStore) ListSiteStats() ([]models.SiteStats, error) {
	rows, err := s.db.Query(`
		SELECT site_id, last_run_at, COALESCE(last_run_status, ''), COALESCE(total_runs, 0),
			COALESCE(total_snapshots, 0), success_rate, avg_run_duration_sec
		FROM site_stats ORDER BY site_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SiteStats
	for rows.Next() {
		var st models.SiteStats
		var rate sql.NullFloat64
		var avg sql.NullInt64
		if err := rows.Scan(&st.SiteID, &st.LastRunAt, &st.LastRunStatus, &st.TotalRuns,
			&st.TotalSnapshots, &rate, &avg); err != nil {
			return nil, err
		}
		st.SuccessRate = rate.Float64
		st.AvgRunDurationSec = int(avg.Int64)
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) RecentRuns(limit int) ([]models.ScrapeRun, error) {
	rows, err := s.db.Query(`
		SELECT id, site_id, started_at, finished_at, status, items_scraped, items_matched,
			items_new, snapshots_created, items_updated, errors_count
		FROM scrape_runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.ScrapeRun
	for rows.Next() {
		var r models.ScrapeRun
		if err := rows.Scan(&r.ID, &r.SiteID, &r.StartedAt, &r.FinishedAt, &r.Status, &r.ItemsScraped,
			&r.ItemsMatched, &r.ItemsNew, &r.SnapshotsCreated, &r.ItemsUpdated, &r.ErrorsCount); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RecentLogs returns the newest run logs first. A nil level means every level.
func (s *SQLiteStore) RecentLogs(limit int, level *models.LogLevel) ([]models.ScrapeLog, error) {
	query := `SELECT id, run_id, timestamp, level, message, site_id FROM scrape_logs`
	args := []any{}
	if level != nil {
		query += ` WHERE level = ?`
		args = append(args, *level)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.ScrapeLog
	for rows.Next() {
		var l models.ScrapeLog
		if err := rows.Scan(&l.ID, &l.RunID, &l.Timestamp, &l.Level, &l.Message, &l.SiteID); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
