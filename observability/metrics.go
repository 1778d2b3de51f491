// Package observability exposes Prometheus metrics for monitor runs.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"auction_monitor/models"
)

const namespace = "auction_monitor"

// Metrics holds the run-level collectors for one site.
type Metrics struct {
	RunsTotal        *prometheus.CounterVec
	RunDuration      prometheus.Histogram
	ItemsScraped     prometheus.Counter
	ItemsMatched     prometheus.Counter
	ItemsNew         prometheus.Counter
	SnapshotsCreated prometheus.Counter
	ItemsUpdated     prometheus.Counter
	Changes          *prometheus.CounterVec
	PagesScraped     prometheus.Counter
	Errors           prometheus.Counter

	LastRunItems      prometheus.Gauge
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics registers every collector on reg, labelled with the site id.
func NewMetrics(reg *prometheus.Registry, siteID string) *Metrics {
	f := promauto.With(reg)
	labels := prometheus.Labels{"site": siteID}

	return &Metrics{
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "run",
			Name:        "total",
			Help:        "Total number of monitor runs by status",
			ConstLabels: labels,
		}, []string{"status"}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "run",
			Name:        "duration_seconds",
			Help:        "Monitor run duration in seconds",
			Buckets:     []float64{10, 30, 60, 120, 300, 600, 1200, 1800},
			ConstLabels: labels,
		}),
		ItemsScraped: f.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "scrape",
			Name:        "items_total",
			Help:        "Listings read from the site",
			ConstLabels: labels,
		}),
		ItemsMatched: f.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "reconcile",
			Name:        "matched_total",
			Help:        "Listings matched to a stored item",
			ConstLabels: labels,
		}),
		ItemsNew: f.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "reconcile",
			Name:        "new_total",
			Help:        "Listings with no stored item",
			ConstLabels: labels,
		}),
		SnapshotsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "persist",
			Name:        "snapshots_created_total",
			Help:        "Snapshots confirmed written",
			ConstLabels: labels,
		}),
		ItemsUpdated: f.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "persist",
			Name:        "items_updated_total",
			Help:        "Stored items refreshed with current values",
			ConstLabels: labels,
		}),
		Changes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "reconcile",
			Name:        "changes_total",
			Help:        "Detected changes by kind",
			ConstLabels: labels,
		}, []string{"kind"}),
		PagesScraped: f.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "scrape",
			Name:        "pages_total",
			Help:        "Listing pages fetched",
			ConstLabels: labels,
		}),
		Errors: f.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "run",
			Name:        "errors_total",
			Help:        "Errors counted during runs",
			ConstLabels: labels,
		}),
		LastRunItems: f.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "run",
			Name:        "last_items_scraped",
			Help:        "Listings read by the most recent run",
			ConstLabels: labels,
		}),
		LastSuccessfulRun: f.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "health",
			Name:        "last_successful_run_timestamp",
			Help:        "Unix timestamp of the last completed run",
			ConstLabels: labels,
		}),
	}
}

func (m *Metrics) ObserveRun(s models.RunSummary, status models.RunStatus, duration time.Duration) {
	m.RunsTotal.WithLabelValues(string(status)).Inc()
	m.RunDuration.Observe(duration.Seconds())

	m.ItemsScraped.Add(float64(s.ItemsScraped))
	m.ItemsMatched.Add(float64(s.ItemsMatched))
	m.ItemsNew.Add(float64(s.ItemsNew))
	m.SnapshotsCreated.Add(float64(s.SnapshotsCreated))
	m.ItemsUpdated.Add(float64(s.ItemsUpdated))
	m.Changes.WithLabelValues("bid").Add(float64(s.BidChanges))
	m.Changes.WithLabelValues("value").Add(float64(s.ValueChanges))
	m.Changes.WithLabelValues("status").Add(float64(s.StatusChanges))
	m.PagesScraped.Add(float64(s.PagesScraped))
	m.Errors.Add(float64(s.Errors))

	m.LastRunItems.Set(float64(s.ItemsScraped))
	if status == models.RunStatusCompleted {
		m.LastSuccessfulRun.SetToCurrentTime()
	}
}

// Handler serves everything registered on g, so sites sharing a registry
// share one endpoint.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
