package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ScrapedListing is one card observed on a section page during a run.
// Optional fields are nil when the card did not carry them or they failed to parse.
type ScrapedListing struct {
	IdentityKey        string           `json:"identity_key"`
	Link               string           `json:"link"`
	ExternalID         string           `json:"external_id,omitempty"`
	Title              string           `json:"title,omitempty"`
	Section            string           `json:"section,omitempty"`
	CurrentValue       *decimal.Decimal `json:"current_value"`
	HasBid             bool             `json:"has_bid"`
	AuctionRound       *int             `json:"auction_round"`
	AuctionDate        *time.Time       `json:"auction_date"`
	FirstRoundValue    *decimal.Decimal `json:"first_round_value"`
	FirstRoundDate     *time.Time       `json:"first_round_date"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage"`
	IsActive           bool             `json:"is_active"`
}

// StoredItem is the long-lived catalog row for a listing. IdentityKey is
// derived from Link at load time and never persisted.
type StoredItem struct {
	ID                 uuid.UUID        `json:"id" db:"id"`
	ExternalID         string           `json:"external_id" db:"external_id"`
	Source             string           `json:"source" db:"source"`
	Link               string           `json:"link" db:"link"`
	IdentityKey        string           `json:"-" db:"-"`
	Title              *string          `json:"title" db:"title"`
	CurrentValue       *decimal.Decimal `json:"value" db:"value"`
	HasBid             *bool            `json:"has_bid" db:"has_bid"`
	AuctionRound       *int             `json:"auction_round" db:"auction_round"`
	AuctionDate        *time.Time       `json:"auction_date" db:"auction_date"`
	FirstRoundValue    *decimal.Decimal `json:"first_round_value" db:"first_round_value"`
	FirstRoundDate     *time.Time       `json:"first_round_date" db:"first_round_date"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage" db:"discount_percentage"`
	IsActive           *bool            `json:"is_active" db:"is_active"`
	Category           *string          `json:"category" db:"category"`
	City               *string          `json:"city" db:"city"`
	State              *string          `json:"state" db:"state"`
	AuctionType        *string          `json:"auction_type" db:"auction_type"`
}

// ScrapeResult is the output of walking every configured section once.
// Listings are deduplicated by identity key, first seen wins.
type ScrapeResult struct {
	Listings       []ScrapedListing `json:"listings"`
	PagesScraped   int              `json:"pages_scraped"`
	FailedSections []string         `json:"failed_sections,omitempty"`
}
