package services

import (
	"sync/atomic"

	"auction_monitor/models"
)

// RunStats accumulates a run's counters. Safe for concurrent use.
type RunStats struct {
	ItemsScraped     atomic.Int64
	ItemsMatched     atomic.Int64
	ItemsNew         atomic.Int64
	SnapshotsCreated atomic.Int64
	ItemsUpdated     atomic.Int64
	BidChanges       atomic.Int64
	ValueChanges     atomic.Int64
	StatusChanges    atomic.Int64
	PagesScraped     atomic.Int64
	Errors           atomic.Int64
}

// Merge adds every counter of s into the run totals.
func (r *RunStats) Merge(s models.RunSummary) {
	r.ItemsScraped.Add(s.ItemsScraped)
	r.ItemsMatched.Add(s.ItemsMatched)
	r.ItemsNew.Add(s.ItemsNew)
	r.SnapshotsCreated.Add(s.SnapshotsCreated)
	r.ItemsUpdated.Add(s.ItemsUpdated)
	r.BidChanges.Add(s.BidChanges)
	r.ValueChanges.Add(s.ValueChanges)
	r.StatusChanges.Add(s.StatusChanges)
	r.PagesScraped.Add(s.PagesScraped)
	r.Errors.Add(s.Errors)
}

func (r *RunStats) Summary() models.RunSummary {
	return models.RunSummary{
		ItemsScraped:     r.ItemsScraped.Load(),
		ItemsMatched:     r.ItemsMatched.Load(),
		ItemsNew:         r.ItemsNew.Load(),
		SnapshotsCreated: r.SnapshotsCreated.Load(),
		ItemsUpdated:     r.ItemsUpdated.Load(),
		BidChanges:       r.BidChanges.Load(),
		ValueChanges:     r.ValueChanges.Load(),
		StatusChanges:    r.StatusChanges.Load(),
		PagesScraped:     r.PagesScraped.Load(),
		Errors:           r.Errors.Load(),
	}
}
