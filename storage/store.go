package storage

import (
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"auction_monitor/models"
)

// ErrItemNotFound is returned when an update matched no stored item.
var ErrItemNotFound = errors.New("stored item not found")

// DefaultLoadChunk is how many item ids go into one latest-snapshot query.
const DefaultLoadChunk = 1000

// Tables names where the catalog and its snapshots live.
type Tables struct {
	Schema    string
	Items     string
	Snapshots string
	LoadChunk int
}

func (t Tables) withDefaults() Tables {
	if t.Schema == "" {
		t.Schema = "auctions"
	}
	if t.Items == "" {
		t.Items = "megaleiloes_items"
	}
	if t.Snapshots == "" {
		t.Snapshots = "megaleiloes_monitoring"
	}
	if t.LoadChunk <= 0 || t.LoadChunk > DefaultLoadChunk {
		t.LoadChunk = DefaultLoadChunk
	}
	return t
}

func chunkIDs(ids []uuid.UUID, size int) [][]uuid.UUID {
	var chunks [][]uuid.UUID
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// keepLatest adds snaps to latest, assuming snaps are ordered newest first.
// An item already present is left alone.
func keepLatest(latest map[uuid.UUID]models.Snapshot, snaps []models.Snapshot) {
	for _, s := range snaps {
		if _, ok := latest[s.ItemID]; ok {
			continue
		}
		latest[s.ItemID] = s
	}
}

func numericArg(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func floatArg(f *float64) any {
	if f == nil {
		return nil
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func fromNull(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}
