package storage

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"auction_monitor/models"
)

//go:embed schema.sql
var schemaSQL string

type PostgresStore struct {
	pool      *pgxpool.Pool
	items     string
	snapshots string
	loadChunk int
}

func NewPostgresStore(ctx context.Context, connString string, tables Tables) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	tables = tables.withDefaults()
	return &PostgresStore{
		pool:      pool,
		items:     pgx.Identifier{tables.Schema, tables.Items}.Sanitize(),
		snapshots: pgx.Identifier{tables.Schema, tables.Snapshots}.Sanitize(),
		loadChunk: tables.LoadChunk,
	}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

// EnsureSchema creates the default catalog and snapshot tables when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// =============================================================================
// Stored items
// =============================================================================

func (s *PostgresStore) FetchStoredItems(ctx context.Context, source string) ([]models.StoredItem, error) {
	query := fmt.Sprintf(`
		SELECT id, COALESCE(external_id, ''), COALESCE(source, ''), COALESCE(link, ''), title,
			value, has_bid, auction_round, auction_date, first_round_value, first_round_date,
			discount_percentage, is_active, category, city, state, auction_type
		FROM %s
		WHERE source = $1`, s.items)

	rows, err := s.pool.Query(ctx, query, source)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []models.StoredItem
	for rows.Next() {
		var it models.StoredItem
		var value, firstValue, discount decimal.NullDecimal
		if err := rows.Scan(
			&it.ID, &it.ExternalID, &it.Source, &it.Link, &it.Title,
			&value, &it.HasBid, &it.AuctionRound, &it.AuctionDate, &firstValue, &it.FirstRoundDate,
			&discount, &it.IsActive, &it.Category, &it.City, &it.State, &it.AuctionType,
		); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		it.CurrentValue = fromNull(value)
		it.FirstRoundValue = fromNull(firstValue)
		it.DiscountPercentage = fromNull(discount)
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *PostgresStore) UpdateItem(ctx context.Context, up models.BaseUpdate) error {
	query := fmt.Sprintf(`
		UPDATE %s SET
			link = $2, value = $3, has_bid = $4, auction_round = $5, auction_date = $6,
			first_round_value = $7, first_round_date = $8, discount_percentage = $9,
			is_active = $10, updated_at = $11, last_scraped_at = $12
		WHERE id = $1`, s.items)

	tag, err := s.pool.Exec(ctx, query,
		up.ID, up.Link, numericArg(up.CurrentValue), up.HasBid, up.AuctionRound, up.AuctionDate,
		numericArg(up.FirstRoundValue), up.FirstRoundDate, numericArg(up.DiscountPercentage),
		up.IsActive, up.UpdatedAt, up.LastScrapedAt,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

// =============================================================================
// Snapshots
// =============================================================================

// FetchLatestSnapshots returns the newest snapshot per item, querying ids in chunks.
func (s *PostgresStore) FetchLatestSnapshots(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Snapshot, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT ON (item_id) item_id, COALESCE(external_id, ''), snapshot_at,
			current_value, has_bid, auction_round, auction_date, is_active
		FROM %s
		WHERE item_id = ANY($1)
		ORDER BY item_id, snapshot_at DESC`, s.snapshots)

	latest := make(map[uuid.UUID]models.Snapshot, len(ids))
	for _, chunk := range chunkIDs(ids, s.loadChunk) {
		snaps, err := s.querySnapshots(ctx, query, chunk)
		if err != nil {
			return nil, err
		}
		keepLatest(latest, snaps)
	}
	return latest, nil
}

func (s *PostgresStore) querySnapshots(ctx context.Context, query string, ids []uuid.UUID) ([]models.Snapshot, error) {
	rows, err := s.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []models.Snapshot
	for rows.Next() {
		var snap models.Snapshot
		var at *time.Time
		var value decimal.NullDecimal
		if err := rows.Scan(
			&snap.ItemID, &snap.ExternalID, &at,
			&value, &snap.HasBid, &snap.AuctionRound, &snap.AuctionDate, &snap.IsActive,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if at != nil {
			snap.SnapshotAt = *at
		}
		snap.CurrentValue = fromNull(value)
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// InsertSnapshots writes one chunk in a single transaction.
func (s *PostgresStore) InsertSnapshots(ctx context.Context, chunk []models.Snapshot) error {
	if len(chunk) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (
			item_id, external_id, snapshot_at, current_value, has_bid, auction_round, auction_date,
			first_round_value, first_round_date, discount_percentage, is_active,
			value_change, value_change_percentage, discount_from_first_round,
			bid_status_changed, round_changed, auction_date_changed, status_changed,
			hours_since_last_snapshot, value_velocity, days_until_auction,
			category, city, state, auction_type
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25
		)`, s.snapshots)

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, snap := range chunk {
			batch.Queue(query,
				snap.ItemID, snap.ExternalID, snap.SnapshotAt, numericArg(snap.CurrentValue), snap.HasBid,
				snap.AuctionRound, snap.AuctionDate, numericArg(snap.FirstRoundValue), snap.FirstRoundDate,
				numericArg(snap.DiscountPercentage), snap.IsActive,
				numericArg(snap.ValueChange), numericArg(snap.ValueChangePercentage), numericArg(snap.DiscountFromFirstRound),
				snap.BidStatusChanged, snap.RoundChanged, snap.AuctionDateChanged, snap.StatusChanged,
				floatArg(snap.HoursSinceLastSnapshot), numericArg(snap.ValueVelocity), snap.DaysUntilAuction,
				snap.Category, snap.City, snap.State, snap.AuctionType,
			)
		}

		br := tx.SendBatch(ctx, batch)
		for i := range chunk {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("insert snapshot %d of chunk: %w", i+1, err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("close batch: %w", err)
		}
		return nil
	})
}
