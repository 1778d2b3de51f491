package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"auction_monitor/models"
)

const restPageSize = 1000

// PostgRESTStore talks to the catalog through Supabase's REST interface.
type PostgRESTStore struct {
	client    *resty.Client
	baseURL   string
	schema    string
	items     string
	snapshots string
	loadChunk int
}

func NewPostgRESTStore(httpClient *http.Client, supabaseURL, serviceKey string, tables Tables) *PostgRESTStore {
	tables = tables.withDefaults()

	client := resty.NewWithClient(httpClient)
	client.SetHeader("apikey", serviceKey)
	client.SetAuthToken(serviceKey)
	client.SetHeader("Content-Type", "application/json")

	return &PostgRESTStore{
		client:    client,
		baseURL:   strings.TrimSuffix(supabaseURL, "/") + "/rest/v1/",
		schema:    tables.Schema,
		items:     tables.Items,
		snapshots: tables.Snapshots,
		loadChunk: tables.LoadChunk,
	}
}

func (s *PostgRESTStore) read(ctx context.Context) *resty.Request {
	return s.client.R().SetContext(ctx).SetHeader("Accept-Profile", s.schema)
}

func (s *PostgRESTStore) write(ctx context.Context) *resty.Request {
	return s.client.R().SetContext(ctx).SetHeader("Content-Profile", s.schema)
}

func checkResponse(resp *resty.Response, err error, what string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%s: supabase error %d: %s", what, resp.StatusCode(), resp.String())
	}
	return nil
}

// =============================================================================
// Stored items
// =============================================================================

type itemRow struct {
	ID                 uuid.UUID        `json:"id"`
	ExternalID         *string          `json:"external_id"`
	Source             *string          `json:"source"`
	Link               *string          `json:"link"`
	Title              *string          `json:"title"`
	Value              *decimal.Decimal `json:"value"`
	HasBid             *bool            `json:"has_bid"`
	AuctionRound       *int             `json:"auction_round"`
	AuctionDate        *string          `json:"auction_date"`
	FirstRoundValue    *decimal.Decimal `json:"first_round_value"`
	FirstRoundDate     *string          `json:"first_round_date"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage"`
	IsActive           *bool            `json:"is_active"`
	Category           *string          `json:"category"`
	City               *string          `json:"city"`
	State              *string          `json:"state"`
	AuctionType        *string          `json:"auction_type"`
}

func (r itemRow) toModel() models.StoredItem {
	return models.StoredItem{
		ID:                 r.ID,
		ExternalID:         deref(r.ExternalID),
		Source:             deref(r.Source),
		Link:               deref(r.Link),
		Title:              r.Title,
		CurrentValue:       r.Value,
		HasBid:             r.HasBid,
		AuctionRound:       r.AuctionRound,
		AuctionDate:        parseTimestampPtr(r.AuctionDate),
		FirstRoundValue:    r.FirstRoundValue,
		FirstRoundDate:     parseTimestampPtr(r.FirstRoundDate),
		DiscountPercentage: r.DiscountPercentage,
		IsActive:           r.IsActive,
		Category:           r.Category,
		City:               r.City,
		State:              r.State,
		AuctionType:        r.AuctionType,
	}
}

func (s *PostgRESTStore) FetchStoredItems(ctx context.Context, source string) ([]models.StoredItem, error) {
	var items []models.StoredItem
	for offset := 0; ; offset += restPageSize {
		resp, err := s.read(ctx).
			SetQueryParam("select", "*").
			SetQueryParam("source", "eq."+source).
			SetQueryParam("order", "id").
			SetQueryParam("limit", strconv.Itoa(restPageSize)).
			SetQueryParam("offset", strconv.Itoa(offset)).
			Get(s.baseURL + s.items)
		if err := checkResponse(resp, err, "fetch items"); err != nil {
			return nil, err
		}

		var rows []itemRow
		if err := json.Unmarshal(resp.Body(), &rows); err != nil {
			return nil, fmt.Errorf("decode items: %w", err)
		}
		for _, r := range rows {
			items = append(items, r.toModel())
		}
		if len(rows) < restPageSize {
			return items, nil
		}
	}
}

func (s *PostgRESTStore) UpdateItem(ctx context.Context, up models.BaseUpdate) error {
	resp, err := s.write(ctx).
		SetHeader("Prefer", "return=representation").
		SetQueryParam("id", "eq."+up.ID.String()).
		SetQueryParam("select", "id").
		SetBody(up).
		Patch(s.baseURL + s.items)
	if err := checkResponse(resp, err, "update item"); err != nil {
		return err
	}

	var rows []struct {
		ID uuid.UUID `json:"id"`
	}
	if err := json.Unmarshal(resp.Body(), &rows); err != nil {
		return fmt.Errorf("decode update: %w", err)
	}
	if len(rows) == 0 {
		return ErrItemNotFound
	}
	return nil
}

// =============================================================================
// Snapshots
// =============================================================================

type snapshotRow struct {
	ItemID       uuid.UUID        `json:"item_id"`
	ExternalID   *string          `json:"external_id"`
	SnapshotAt   *string          `json:"snapshot_at"`
	CurrentValue *decimal.Decimal `json:"current_value"`
	HasBid       *bool            `json:"has_bid"`
	AuctionRound *int             `json:"auction_round"`
	AuctionDate  *string          `json:"auction_date"`
	IsActive     *bool            `json:"is_active"`
}

func (r snapshotRow) toModel() models.Snapshot {
	snap := models.Snapshot{
		ItemID:       r.ItemID,
		ExternalID:   deref(r.ExternalID),
		CurrentValue: r.CurrentValue,
		HasBid:       r.HasBid,
		AuctionRound: r.AuctionRound,
		AuctionDate:  parseTimestampPtr(r.AuctionDate),
		IsActive:     r.IsActive,
	}
	if at := parseTimestampPtr(r.SnapshotAt); at != nil {
		snap.SnapshotAt = *at
	}
	return snap
}

// FetchLatestSnapshots pages through each id chunk newest first and keeps the
// first snapshot seen per item.
func (s *PostgRESTStore) FetchLatestSnapshots(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Snapshot, error) {
	latest := make(map[uuid.UUID]models.Snapshot, len(ids))

	for _, chunk := range chunkIDs(ids, s.loadChunk) {
		parts := make([]string, len(chunk))
		for i, id := range chunk {
			parts[i] = id.String()
		}
		filter := "in.(" + strings.Join(parts, ",") + ")"

		for offset := 0; ; offset += restPageSize {
			resp, err := s.read(ctx).
				SetQueryParam("select", "item_id,external_id,snapshot_at,current_value,has_bid,auction_round,auction_date,is_active").
				SetQueryParam("item_id", filter).
				SetQueryParam("order", "snapshot_at.desc,id.desc").
				SetQueryParam("limit", strconv.Itoa(restPageSize)).
				SetQueryParam("offset", strconv.Itoa(offset)).
				Get(s.baseURL + s.snapshots)
			if err := checkResponse(resp, err, "fetch snapshots"); err != nil {
				return nil, err
			}

			var rows []snapshotRow
			if err := json.Unmarshal(resp.Body(), &rows); err != nil {
				return nil, fmt.Errorf("decode snapshots: %w", err)
			}
			snaps := make([]models.Snapshot, len(rows))
			for i, r := range rows {
				snaps[i] = r.toModel()
			}
			keepLatest(latest, snaps)

			if len(rows) < restPageSize {
				break
			}
		}
	}
	return latest, nil
}

// InsertSnapshots posts one chunk as a single bulk insert.
func (s *PostgRESTStore) InsertSnapshots(ctx context.Context, chunk []models.Snapshot) error {
	if len(chunk) == 0 {
		return nil
	}
	resp, err := s.write(ctx).
		SetHeader("Prefer", "return=minimal").
		SetBody(chunk).
		Post(s.baseURL + s.snapshots)
	return checkResponse(resp, err, "insert snapshots")
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999",
}

// parseTimestampPtr reads the timestamp forms PostgREST emits. Layouts
// without an offset are taken as UTC. Unreadable values become nil.
func parseTimestampPtr(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, *s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
