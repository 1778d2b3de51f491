package services

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"auction_monitor/models"
)

// Derived ratios are stored with two decimal places.
const ratioPlaces = 2

var hundred = decimal.NewFromInt(100)

// Delta holds the field-level differences between a baseline and a fresh
// observation. Nil means the inputs needed for that value were missing.
type Delta struct {
	ValueChange            *decimal.Decimal
	ValueChangePercentage  *decimal.Decimal
	DiscountFromFirstRound *decimal.Decimal
	BidStatusChanged       bool
	RoundChanged           bool
	AuctionDateChanged     bool
	StatusChanged          bool
	HoursSinceLastSnapshot *float64
	ValueVelocity          *decimal.Decimal
	DaysUntilAuction       *int
}

// ValueChanged reports a known, non-zero value movement.
func (d Delta) ValueChanged() bool {
	return d.ValueChange != nil && !d.ValueChange.IsZero()
}

// ComputeDelta diffs a scraped listing against its baseline at time now.
// It performs no I/O and never fails.
func ComputeDelta(b Baseline, s *models.ScrapedListing, now time.Time) Delta {
	var d Delta

	if s.CurrentValue != nil && b.CurrentValue != nil {
		change := s.CurrentValue.Sub(*b.CurrentValue)
		d.ValueChange = &change

		if b.CurrentValue.IsPositive() {
			pct := change.Div(*b.CurrentValue).Mul(hundred).Round(ratioPlaces)
			d.ValueChangePercentage = &pct
		}
	}

	// Computed whatever the active round is; the scrape-time discount is not.
	if s.FirstRoundValue != nil && s.FirstRoundValue.IsPositive() && s.CurrentValue != nil {
		disc := s.FirstRoundValue.Sub(*s.CurrentValue).Div(*s.FirstRoundValue).Mul(hundred).Round(ratioPlaces)
		d.DiscountFromFirstRound = &disc
	}

	d.BidStatusChanged = s.HasBid != b.HasBid
	d.StatusChanged = s.IsActive != b.IsActive

	if s.AuctionRound != nil && b.AuctionRound != nil {
		d.RoundChanged = *s.AuctionRound != *b.AuctionRound
	}
	if s.AuctionDate != nil && b.AuctionDate != nil {
		d.AuctionDateChanged = !s.AuctionDate.Equal(*b.AuctionDate)
	}

	if b.SnapshotAt != nil {
		hours := now.Sub(*b.SnapshotAt).Hours()
		d.HoursSinceLastSnapshot = &hours

		if d.ValueChange != nil && hours > 0 {
			v := d.ValueChange.Div(decimal.NewFromFloat(hours)).Round(ratioPlaces)
			d.ValueVelocity = &v
		}
	}

	if s.AuctionDate != nil {
		days := int(math.Floor(s.AuctionDate.Sub(now).Hours() / 24))
		d.DaysUntilAuction = &days
	}

	return d
}
