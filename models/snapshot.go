package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Snapshot is an append-only observation of a stored item together with its
// deltas against the previous known state.
//
// When loaded from the store as a baseline, a zero SnapshotAt means the stored
// timestamp could not be parsed.
type Snapshot struct {
	ID         int64     `json:"id,omitempty" db:"id"`
	ItemID     uuid.UUID `json:"item_id" db:"item_id"`
	ExternalID string    `json:"external_id" db:"external_id"`
	SnapshotAt time.Time `json:"snapshot_at" db:"snapshot_at"`

	CurrentValue       *decimal.Decimal `json:"current_value" db:"current_value"`
	HasBid             *bool            `json:"has_bid" db:"has_bid"`
	AuctionRound       *int             `json:"auction_round" db:"auction_round"`
	AuctionDate        *time.Time       `json:"auction_date" db:"auction_date"`
	FirstRoundValue    *decimal.Decimal `json:"first_round_value" db:"first_round_value"`
	FirstRoundDate     *time.Time       `json:"first_round_date" db:"first_round_date"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage" db:"discount_percentage"`
	IsActive           *bool            `json:"is_active" db:"is_active"`

	ValueChange            *decimal.Decimal `json:"value_change" db:"value_change"`
	ValueChangePercentage  *decimal.Decimal `json:"value_change_percentage" db:"value_change_percentage"`
	DiscountFromFirstRound *decimal.Decimal `json:"discount_from_first_round" db:"discount_from_first_round"`
	BidStatusChanged       bool             `json:"bid_status_changed" db:"bid_status_changed"`
	RoundChanged           bool             `json:"round_changed" db:"round_changed"`
	AuctionDateChanged     bool             `json:"auction_date_changed" db:"auction_date_changed"`
	StatusChanged          bool             `json:"status_changed" db:"status_changed"`
	HoursSinceLastSnapshot *float64         `json:"hours_since_last_snapshot" db:"hours_since_last_snapshot"`
	ValueVelocity          *decimal.Decimal `json:"value_velocity" db:"value_velocity"`
	DaysUntilAuction       *int             `json:"days_until_auction" db:"days_until_auction"`

	// Denormalized from the stored item
	Category    *string `json:"category" db:"category"`
	City        *string `json:"city" db:"city"`
	State       *string `json:"state" db:"state"`
	AuctionType *string `json:"auction_type" db:"auction_type"`
}

// BaseUpdate is the current-state payload written back to a stored item.
type BaseUpdate struct {
	ID                 uuid.UUID        `json:"-" db:"id"`
	Link               string           `json:"link" db:"link"`
	CurrentValue       *decimal.Decimal `json:"value" db:"value"`
	HasBid             bool             `json:"has_bid" db:"has_bid"`
	AuctionRound       *int             `json:"auction_round" db:"auction_round"`
	AuctionDate        *time.Time       `json:"auction_date" db:"auction_date"`
	FirstRoundValue    *decimal.Decimal `json:"first_round_value" db:"first_round_value"`
	FirstRoundDate     *time.Time       `json:"first_round_date" db:"first_round_date"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage" db:"discount_percentage"`
	IsActive           bool             `json:"is_active" db:"is_active"`
	UpdatedAt          time.Time        `json:"updated_at" db:"updated_at"`
	LastScrapedAt      time.Time        `json:"last_scraped_at" db:"last_scraped_at"`
}
