package services

import (
	"time"

	"github.com/shopspring/decimal"

	"auction_monitor/models"
)

// Baseline is the last known state a fresh observation is compared with.
type Baseline struct {
	CurrentValue *decimal.Decimal
	HasBid       bool
	AuctionRound *int
	AuctionDate  *time.Time
	IsActive     bool

	// SnapshotAt is nil when there is no prior snapshot or its timestamp was unreadable.
	SnapshotAt *time.Time
}

// ResolveBaseline picks the comparison state for a matched item. Fields come
// from the last snapshot when it carries them and from the stored item
// otherwise. A missing bid flag counts as false and a missing active flag as true.
func ResolveBaseline(item *models.StoredItem, last *models.Snapshot) Baseline {
	b := Baseline{
		HasBid:   false,
		IsActive: true,
	}

	if item != nil {
		b.CurrentValue = item.CurrentValue
		b.AuctionRound = item.AuctionRound
		b.AuctionDate = item.AuctionDate
		if item.HasBid != nil {
			b.HasBid = *item.HasBid
		}
		if item.IsActive != nil {
			b.IsActive = *item.IsActive
		}
	}

	if last == nil {
		return b
	}

	if last.CurrentValue != nil {
		b.CurrentValue = last.CurrentValue
	}
	if last.AuctionRound != nil {
		b.AuctionRound = last.AuctionRound
	}
	if last.AuctionDate != nil {
		b.AuctionDate = last.AuctionDate
	}
	if last.HasBid != nil {
		b.HasBid = *last.HasBid
	}
	if last.IsActive != nil {
		b.IsActive = *last.IsActive
	}
	if !last.SnapshotAt.IsZero() {
		at := last.SnapshotAt
		b.SnapshotAt = &at
	}

	return b
}
