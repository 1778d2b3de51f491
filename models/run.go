package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// RunSummary is the read-only view of a run's counters.
type RunSummary struct {
	ItemsScraped     int64 `json:"items_scraped"`
	ItemsMatched     int64 `json:"items_matched"`
	ItemsNew         int64 `json:"items_new"`
	SnapshotsCreated int64 `json:"snapshots_created"`
	ItemsUpdated     int64 `json:"items_updated"`
	BidChanges       int64 `json:"bid_changes"`
	ValueChanges     int64 `json:"value_changes"`
	StatusChanges    int64 `json:"status_changes"`
	PagesScraped     int64 `json:"pages_scraped"`
	Errors           int64 `json:"errors"`
}

func (s RunSummary) String() string {
	return fmt.Sprintf("scraped=%d matched=%d new=%d snapshots=%d updated=%d bid_changes=%d value_changes=%d status_changes=%d pages=%d errors=%d",
		s.ItemsScraped, s.ItemsMatched, s.ItemsNew, s.SnapshotsCreated, s.ItemsUpdated,
		s.BidChanges, s.ValueChanges, s.StatusChanges, s.PagesScraped, s.Errors)
}

func (s RunSummary) ToJSON() json.RawMessage {
	data, _ := json.Marshal(s)
	return data
}

type ScrapeRun struct {
	ID               int64           `json:"id" db:"id"`
	SiteID           string          `json:"site_id" db:"site_id"`
	StartedAt        time.Time       `json:"started_at" db:"started_at"`
	FinishedAt       *time.Time      `json:"finished_at" db:"finished_at"`
	Status           RunStatus       `json:"status" db:"status"`
	ItemsScraped     int64           `json:"items_scraped" db:"items_scraped"`
	ItemsMatched     int64           `json:"items_matched" db:"items_matched"`
	ItemsNew         int64           `json:"items_new" db:"items_new"`
	SnapshotsCreated int64           `json:"snapshots_created" db:"snapshots_created"`
	ItemsUpdated     int64           `json:"items_updated" db:"items_updated"`
	ErrorsCount      int64           `json:"errors_count" db:"errors_count"`
	Stats            json.RawMessage `json:"stats" db:"stats"`
}

// Apply copies the summary counters onto the run record.
func (r *ScrapeRun) Apply(s RunSummary) {
	r.ItemsScraped = s.ItemsScraped
	r.ItemsMatched = s.ItemsMatched
	r.ItemsNew = s.ItemsNew
	r.SnapshotsCreated = s.SnapshotsCreated
	r.ItemsUpdated = s.ItemsUpdated
	r.ErrorsCount = s.Errors
	r.Stats = s.ToJSON()
}

type SiteStats struct {
	SiteID            string     `json:"site_id" db:"site_id"`
	LastRunAt         *time.Time `json:"last_run_at" db:"last_run_at"`
	LastRunStatus     string     `json:"last_run_status" db:"last_run_status"`
	TotalRuns         int        `json:"total_runs" db:"total_runs"`
	TotalSnapshots    int64      `json:"total_snapshots" db:"total_snapshots"`
	SuccessRate       float64    `json:"success_rate" db:"success_rate"`
	AvgRunDurationSec int        `json:"avg_run_duration_sec" db:"avg_run_duration_sec"`
}
