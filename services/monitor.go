package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"auction_monitor/logging"
	"auction_monitor/models"
)

var ErrRunInProgress = errors.New("monitor run already in progress")

// ItemReader loads the stored catalog for a source.
type ItemReader interface {
	FetchStoredItems(ctx context.Context, source string) ([]models.StoredItem, error)
}

// SnapshotReader loads the most recent snapshot per item id.
type SnapshotReader interface {
	FetchLatestSnapshots(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Snapshot, error)
}

// Store is everything a monitor run needs from the primary store.
type Store interface {
	ItemReader
	SnapshotReader
	SnapshotWriter
	ItemWriter
}

// Scraper walks the site and returns every listing it could read.
type Scraper interface {
	ScrapeAll(ctx context.Context) (*models.ScrapeResult, error)
}

// RunRecorder keeps run history and run-scoped logs.
type RunRecorder interface {
	CreateRun(run *models.ScrapeRun) (int64, error)
	UpdateRun(run *models.ScrapeRun) error
	Log(runID *int64, level models.LogLevel, message, siteID string) error
	UpdateSiteStats(siteID string) error
}

// Archiver stores a finished run's report.
type Archiver interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string) error
}

// RunObserver receives the outcome of each run.
type RunObserver interface {
	ObserveRun(summary models.RunSummary, status models.RunStatus, duration time.Duration)
}

// RunContext carries the state owned by a single run.
type RunContext struct {
	RunID     *int64
	SiteID    string
	Source    string
	StartedAt time.Time
	Stats     *RunStats
}

// RunReport is archived after each run.
type RunReport struct {
	RunID          *int64                  `json:"run_id,omitempty"`
	SiteID         string                  `json:"site_id"`
	Source         string                  `json:"source"`
	StartedAt      time.Time               `json:"started_at"`
	FinishedAt     time.Time               `json:"finished_at"`
	Status         models.RunStatus        `json:"status"`
	Stats          models.RunSummary       `json:"stats"`
	FailedSections []string                `json:"failed_sections,omitempty"`
	Listings       []models.ScrapedListing `json:"listings"`
}

// MonitorService runs the scrape, reconcile and persist pass for one site.
type MonitorService struct {
	siteID    string
	source    string
	store     Store
	scraper   Scraper
	persister *Persister
	recorder  RunRecorder
	archiver  Archiver
	observer  RunObserver
	now       func() time.Time

	mu     sync.Mutex
	paused atomic.Bool
}

func NewMonitorService(siteID, source string, store Store, scraper Scraper, persister *Persister) *MonitorService {
	return &MonitorService{
		siteID:    siteID,
		source:    source,
		store:     store,
		scraper:   scraper,
		persister: persister,
		now:       time.Now,
	}
}

func (m *MonitorService) SetRecorder(r RunRecorder) { m.recorder = r }
func (m *MonitorService) SetArchiver(a Archiver)    { m.archiver = a }
func (m *MonitorService) SetObserver(o RunObserver) { m.observer = o }

func (m *MonitorService) Pause()         { m.paused.Store(true) }
func (m *MonitorService) Resume()        { m.paused.Store(false) }
func (m *MonitorService) IsPaused() bool { return m.paused.Load() }

// Run executes one full pass. Only a failure to load the stored catalog
// aborts the run; every other failure is counted and the run completes.
func (m *MonitorService) Run(ctx context.Context) (models.RunSummary, error) {
	if m.IsPaused() {
		log.Println("Monitor is paused, skipping run")
		return models.RunSummary{}, nil
	}
	if !m.mu.TryLock() {
		return models.RunSummary{}, ErrRunInProgress
	}
	defer m.mu.Unlock()

	rc := &RunContext{
		SiteID:    m.siteID,
		Source:    m.source,
		StartedAt: m.now().UTC(),
		Stats:     &RunStats{},
	}

	run := &models.ScrapeRun{
		SiteID:    m.siteID,
		StartedAt: rc.StartedAt,
		Status:    models.RunStatusRunning,
	}
	if m.recorder != nil {
		if id, err := m.recorder.CreateRun(run); err != nil {
			log.Printf("Warning: failed to create run record: %v", err)
		} else {
			run.ID = id
			rc.RunID = &id
		}
	}

	m.log(rc, models.LogLevelInfo, fmt.Sprintf("Starting monitor run for %s", m.source))

	scraped, err := m.execute(ctx, rc)

	status := models.RunStatusCompleted
	if err != nil {
		status = models.RunStatusFailed
		m.log(rc, models.LogLevelError, fmt.Sprintf("Run aborted: %v", err))
	}
	summary := rc.Stats.Summary()
	finished := m.now().UTC()

	run.FinishedAt = &finished
	run.Status = status
	run.Apply(summary)
	if m.recorder != nil && rc.RunID != nil {
		if uerr := m.recorder.UpdateRun(run); uerr != nil {
			log.Printf("Warning: failed to update run record: %v", uerr)
		}
		if uerr := m.recorder.UpdateSiteStats(m.siteID); uerr != nil {
			log.Printf("Warning: failed to update site stats: %v", uerr)
		}
	}

	if m.observer != nil {
		m.observer.ObserveRun(summary, status, finished.Sub(rc.StartedAt))
	}

	if m.archiver != nil && scraped != nil {
		m.archive(ctx, rc, status, finished, scraped)
	}

	m.log(rc, models.LogLevelInfo, "Run summary: "+summary.String())

	return summary, err
}

func (m *MonitorService) execute(ctx context.Context, rc *RunContext) (*models.ScrapeResult, error) {
	items, err := m.store.FetchStoredItems(ctx, m.source)
	if err != nil {
		return nil, fmt.Errorf("load stored items: %w", err)
	}
	stored := BuildStoredIndex(items)
	m.log(rc, models.LogLevelInfo, fmt.Sprintf("Loaded %d stored items (%d distinct links)", len(items), len(stored)))

	ids := make([]uuid.UUID, 0, len(items))
	for i := range items {
		ids = append(ids, items[i].ID)
	}

	snaps := SnapshotIndex{}
	latest, err := m.store.FetchLatestSnapshots(ctx, ids)
	if err != nil {
		m.log(rc, models.LogLevelWarn, fmt.Sprintf("Could not load last snapshots, using stored items as baseline: %v", err))
	} else {
		snaps = BuildSnapshotIndex(latest)
		m.log(rc, models.LogLevelInfo, fmt.Sprintf("Loaded last snapshot for %d items", len(snaps)))
	}

	scraped, err := m.scraper.ScrapeAll(ctx)
	if err != nil {
		rc.Stats.Errors.Add(1)
		m.log(rc, models.LogLevelError, fmt.Sprintf("Scrape failed: %v", err))
	}
	if scraped == nil {
		scraped = &models.ScrapeResult{}
	}
	for _, section := range scraped.FailedSections {
		rc.Stats.Errors.Add(1)
		m.log(rc, models.LogLevelWarn, fmt.Sprintf("Section %s failed, continuing without it", section))
	}
	rc.Stats.ItemsScraped.Add(int64(len(scraped.Listings)))
	rc.Stats.PagesScraped.Add(int64(scraped.PagesScraped))

	result := Reconcile(scraped.Listings, stored, snaps, m.now().UTC())
	rc.Stats.Merge(result.Stats)
	m.log(rc, models.LogLevelInfo, fmt.Sprintf("Matched %d listings, %d not in catalog",
		result.Stats.ItemsMatched, result.Stats.ItemsNew))

	m.persister.SetLogger(func(level models.LogLevel, message string) {
		m.record(rc, level, message)
	})
	defer m.persister.SetLogger(NoOpLogger)

	if len(result.Snapshots) > 0 {
		n := m.persister.InsertSnapshots(ctx, result.Snapshots, rc.Stats)
		m.log(rc, models.LogLevelInfo, fmt.Sprintf("Inserted %d/%d snapshots", n, len(result.Snapshots)))
	}
	if len(result.Updates) > 0 {
		n := m.persister.UpdateBaseRecords(ctx, result.Updates, rc.Stats)
		m.log(rc, models.LogLevelInfo, fmt.Sprintf("Updated %d/%d items", n, len(result.Updates)))
	}

	return scraped, nil
}

func (m *MonitorService) archive(ctx context.Context, rc *RunContext, status models.RunStatus, finished time.Time, scraped *models.ScrapeResult) {
	report := RunReport{
		RunID:          rc.RunID,
		SiteID:         rc.SiteID,
		Source:         rc.Source,
		StartedAt:      rc.StartedAt,
		FinishedAt:     finished,
		Status:         status,
		Stats:          rc.Stats.Summary(),
		FailedSections: scraped.FailedSections,
		Listings:       scraped.Listings,
	}
	data, err := json.Marshal(report)
	if err != nil {
		log.Printf("Warning: failed to encode run report: %v", err)
		return
	}

	key := ArchiveKey(rc.Source, rc.StartedAt, rc.RunID)
	if err := m.archiver.Upload(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
		m.log(rc, models.LogLevelWarn, fmt.Sprintf("Archive upload failed: %v", err))
		return
	}
	m.log(rc, models.LogLevelInfo, "Archived run report to "+key)
}

// ArchiveKey builds the object key for a run report.
func ArchiveKey(source string, startedAt time.Time, runID *int64) string {
	name := uuid.NewString()
	if runID != nil {
		name = fmt.Sprintf("run-%d", *runID)
	}
	return fmt.Sprintf("runs/%s/%s/%s.json", source, startedAt.UTC().Format("2006-01-02"), name)
}

func (m *MonitorService) log(rc *RunContext, level models.LogLevel, message string) {
	logging.Logf(string(level), "%s", message)
	m.record(rc, level, message)
}

// record writes to the run log only.
func (m *MonitorService) record(rc *RunContext, level models.LogLevel, message string) {
	if m.recorder == nil {
		return
	}
	if err := m.recorder.Log(rc.RunID, level, message, rc.SiteID); err != nil {
		log.Printf("Warning: failed to write run log: %v", err)
	}
}
