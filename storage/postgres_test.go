package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"auction_monitor/models"
)

// setupPostgres starts a disposable database with the default schema applied.
func setupPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := NewPostgresStore(ctx, dsn, Tables{LoadChunk: 2})
	require.NoError(t, err)
	t.Cleanup(store.Close)

	require.NoError(t, store.EnsureSchema(ctx))
	return store
}

func seedItem(t *testing.T, store *PostgresStore, link, source string, value string) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := store.pool.QueryRow(context.Background(), `
		INSERT INTO auctions.megaleiloes_items (external_id, source, link, value, has_bid, is_active, city)
		VALUES ($1, $2, $3, $4::numeric, false, true, 'Campinas')
		RETURNING id`, "ext-"+link, source, link, value).Scan(&id)
	require.NoError(t, err)
	return id
}

func TestPostgresStore_RoundTrip(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()

	a := seedItem(t, store, "https://www.megaleiloes.com.br/imoveis/a-1", "megaleiloes", "100000.00")
	b := seedItem(t, store, "https://www.megaleiloes.com.br/imoveis/b-2", "megaleiloes", "5000.00")
	c := seedItem(t, store, "https://www.megaleiloes.com.br/imoveis/c-3", "megaleiloes", "7000.00")
	seedItem(t, store, "https://other.example/x", "other", "1.00")

	items, err := store.FetchStoredItems(ctx, "megaleiloes")
	require.NoError(t, err)
	require.Len(t, items, 3)

	byID := map[uuid.UUID]models.StoredItem{}
	for _, it := range items {
		byID[it.ID] = it
	}
	require.NotNil(t, byID[a].CurrentValue)
	assert.True(t, byID[a].CurrentValue.Equal(decimal.NewFromInt(100000)))
	require.NotNil(t, byID[a].City)
	assert.Equal(t, "Campinas", *byID[a].City)
	assert.Nil(t, byID[a].AuctionDate)

	older := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	newer := older.Add(24 * time.Hour)
	v1, v2 := decimal.NewFromInt(100000), decimal.RequireFromString("95000.00")
	active := true

	require.NoError(t, store.InsertSnapshots(ctx, []models.Snapshot{
		{ItemID: a, ExternalID: "ext-a", SnapshotAt: older, CurrentValue: &v1, IsActive: &active},
		{ItemID: a, ExternalID: "ext-a", SnapshotAt: newer, CurrentValue: &v2, IsActive: &active},
		{ItemID: c, ExternalID: "ext-c", SnapshotAt: older, CurrentValue: &v1},
	}))

	latest, err := store.FetchLatestSnapshots(ctx, []uuid.UUID{a, b, c})
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.True(t, latest[a].SnapshotAt.Equal(newer))
	assert.True(t, latest[a].CurrentValue.Equal(v2))
	_, hasB := latest[b]
	assert.False(t, hasB)

	round := 2
	up := models.BaseUpdate{
		ID:            b,
		Link:          "https://www.megaleiloes.com.br/imoveis/b-2",
		CurrentValue:  &v2,
		HasBid:        true,
		AuctionRound:  &round,
		IsActive:      false,
		UpdatedAt:     newer,
		LastScrapedAt: newer,
	}
	require.NoError(t, store.UpdateItem(ctx, up))

	items, err = store.FetchStoredItems(ctx, "megaleiloes")
	require.NoError(t, err)
	for _, it := range items {
		if it.ID != b {
			continue
		}
		require.NotNil(t, it.HasBid)
		assert.True(t, *it.HasBid)
		require.NotNil(t, it.IsActive)
		assert.False(t, *it.IsActive)
		require.NotNil(t, it.AuctionRound)
		assert.Equal(t, 2, *it.AuctionRound)
	}

	up.ID = uuid.New()
	assert.ErrorIs(t, store.UpdateItem(ctx, up), ErrItemNotFound)
}

func TestPostgresStore_ChunkFailureIsAtomic(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()

	a := seedItem(t, store, "https://www.megaleiloes.com.br/imoveis/a-1", "megaleiloes", "1.00")
	now := time.Now().UTC()

	err := store.InsertSnapshots(ctx, []models.Snapshot{
		{ItemID: a, SnapshotAt: now},
		{ItemID: uuid.New(), SnapshotAt: now}, // violates the item foreign key
	})
	require.Error(t, err)

	latest, err := store.FetchLatestSnapshots(ctx, []uuid.UUID{a})
	require.NoError(t, err)
	assert.Empty(t, latest)
}

func TestPostgresStore_StoresExtremeRatios(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()

	a := seedItem(t, store, "https://www.megaleiloes.com.br/imoveis/a-1", "megaleiloes", "1.00")
	b := seedItem(t, store, "https://www.megaleiloes.com.br/imoveis/b-2", "megaleiloes", "100.00")
	now := time.Now().UTC()

	current := decimal.RequireFromString("5000000.00")
	change := decimal.RequireFromString("4999999.00")
	pct := decimal.RequireFromString("499999900")
	velocity := decimal.RequireFromString("17999640000000")
	discount := decimal.RequireFromString("-4999999900")
	hours := 1.0 / 3_600_000
	v := decimal.RequireFromString("90.00")

	require.NoError(t, store.InsertSnapshots(ctx, []models.Snapshot{
		{
			ItemID:                 a,
			SnapshotAt:             now,
			CurrentValue:           &current,
			ValueChange:            &change,
			ValueChangePercentage:  &pct,
			DiscountFromFirstRound: &discount,
			HoursSinceLastSnapshot: &hours,
			ValueVelocity:          &velocity,
		},
		{ItemID: b, SnapshotAt: now, CurrentValue: &v},
	}))

	latest, err := store.FetchLatestSnapshots(ctx, []uuid.UUID{a, b})
	require.NoError(t, err)
	require.Len(t, latest, 2)
	require.NotNil(t, latest[a].CurrentValue)
	assert.True(t, latest[a].CurrentValue.Equal(current))

	var gotPct, gotVelocity, gotDiscount decimal.Decimal
	err = store.pool.QueryRow(ctx, `
		SELECT value_change_percentage::text, value_velocity::text, discount_from_first_round::text
		FROM auctions.megaleiloes_monitoring WHERE item_id = $1`, a).Scan(&gotPct, &gotVelocity, &gotDiscount)
	require.NoError(t, err)
	assert.True(t, gotPct.Equal(pct))
	assert.True(t, gotVelocity.Equal(velocity))
	assert.True(t, gotDiscount.Equal(discount))
}
