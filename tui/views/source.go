package views

import "auction_monitor/models"

// Source is what the console reads from the operational store.
type Source interface {
	ListSiteStats() ([]models.SiteStats, error)
	RecentRuns(limit int) ([]models.ScrapeRun, error)
	RecentLogs(limit int, level *models.LogLevel) ([]models.ScrapeLog, error)
}
