package services

import (
	"time"

	"github.com/google/uuid"

	"auction_monitor/identity"
	"auction_monitor/models"
)

// StoredIndex maps identity keys to stored items.
type StoredIndex map[string]*models.StoredItem

// SnapshotIndex maps item ids to their most recent snapshot.
type SnapshotIndex map[uuid.UUID]*models.Snapshot

// BuildStoredIndex keys items by their normalized link. Items with an empty
// key are skipped. When two items share a key the later one wins.
func BuildStoredIndex(items []models.StoredItem) StoredIndex {
	idx := make(StoredIndex, len(items))
	for i := range items {
		item := &items[i]
		item.IdentityKey = identity.Normalize(item.Link)
		if item.IdentityKey == "" {
			continue
		}
		idx[item.IdentityKey] = item
	}
	return idx
}

// BuildSnapshotIndex wraps a store result for lookup by item id.
func BuildSnapshotIndex(latest map[uuid.UUID]models.Snapshot) SnapshotIndex {
	idx := make(SnapshotIndex, len(latest))
	for id, snap := range latest {
		s := snap
		idx[id] = &s
	}
	return idx
}

// ReconciliationResult is what one reconciliation pass produces.
type ReconciliationResult struct {
	Snapshots []models.Snapshot
	Updates   []models.BaseUpdate
	Stats     models.RunSummary
}

// Reconcile matches scraped listings to stored items and builds the
// snapshots and base updates to persist. Each listing is handled on its own,
// so the output for one never depends on the others.
func Reconcile(listings []models.ScrapedListing, stored StoredIndex, snaps SnapshotIndex, now time.Time) *ReconciliationResult {
	res := &ReconciliationResult{}

	for i := range listings {
		l := &listings[i]

		item, ok := stored[listingKey(l)]
		if !ok {
			res.Stats.ItemsNew++
			continue
		}
		res.Stats.ItemsMatched++

		snap, update, delta := reconcileListing(l, item, snaps[item.ID], now)
		res.Snapshots = append(res.Snapshots, snap)
		res.Updates = append(res.Updates, update)

		if delta.BidStatusChanged {
			res.Stats.BidChanges++
		}
		if delta.ValueChanged() {
			res.Stats.ValueChanges++
		}
		if delta.StatusChanged {
			res.Stats.StatusChanges++
		}
	}

	return res
}

func listingKey(l *models.ScrapedListing) string {
	if l.Link != "" {
		return identity.Normalize(l.Link)
	}
	return l.IdentityKey
}

func reconcileListing(l *models.ScrapedListing, item *models.StoredItem, last *models.Snapshot, now time.Time) (models.Snapshot, models.BaseUpdate, Delta) {
	baseline := ResolveBaseline(item, last)
	delta := ComputeDelta(baseline, l, now)

	hasBid := l.HasBid
	isActive := l.IsActive

	snap := models.Snapshot{
		ItemID:     item.ID,
		ExternalID: item.ExternalID,
		SnapshotAt: now,

		CurrentValue:       l.CurrentValue,
		HasBid:             &hasBid,
		AuctionRound:       l.AuctionRound,
		AuctionDate:        l.AuctionDate,
		FirstRoundValue:    l.FirstRoundValue,
		FirstRoundDate:     l.FirstRoundDate,
		DiscountPercentage: l.DiscountPercentage,
		IsActive:           &isActive,

		ValueChange:            delta.ValueChange,
		ValueChangePercentage:  delta.ValueChangePercentage,
		DiscountFromFirstRound: delta.DiscountFromFirstRound,
		BidStatusChanged:       delta.BidStatusChanged,
		RoundChanged:           delta.RoundChanged,
		AuctionDateChanged:     delta.AuctionDateChanged,
		StatusChanged:          delta.StatusChanged,
		HoursSinceLastSnapshot: delta.HoursSinceLastSnapshot,
		ValueVelocity:          delta.ValueVelocity,
		DaysUntilAuction:       delta.DaysUntilAuction,

		Category:    item.Category,
		City:        item.City,
		State:       item.State,
		AuctionType: item.AuctionType,
	}

	link := l.Link
	if link == "" {
		link = item.Link
	} else {
		link = identity.Normalize(link)
	}

	update := models.BaseUpdate{
		ID:                 item.ID,
		Link:               link,
		CurrentValue:       l.CurrentValue,
		HasBid:             l.HasBid,
		AuctionRound:       l.AuctionRound,
		AuctionDate:        l.AuctionDate,
		FirstRoundValue:    l.FirstRoundValue,
		FirstRoundDate:     l.FirstRoundDate,
		DiscountPercentage: l.DiscountPercentage,
		IsActive:           l.IsActive,
		UpdatedAt:          now,
		LastScrapedAt:      now,
	}

	return snap, update, delta
}
