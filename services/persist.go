package services

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"auction_monitor/models"
)

// MaxSnapshotChunk is the largest number of snapshots sent in one insert.
const MaxSnapshotChunk = 500

// SnapshotWriter inserts one chunk of snapshots. A chunk either lands whole or fails whole.
type SnapshotWriter interface {
	InsertSnapshots(ctx context.Context, chunk []models.Snapshot) error
}

// ItemWriter applies a current-state update to one stored item.
type ItemWriter interface {
	UpdateItem(ctx context.Context, update models.BaseUpdate) error
}

// LogFunc receives persistence failures for the run log.
type LogFunc func(level models.LogLevel, message string)

// NoOpLogger does nothing (default)
var NoOpLogger LogFunc = func(level models.LogLevel, message string) {}

type PersisterOptions struct {
	ChunkSize         int
	InsertConcurrency int
	UpdateConcurrency int
}

// Persister writes reconciliation output. Failures are isolated per chunk and
// per item, counted in the run stats and never retried.
type Persister struct {
	snapshots SnapshotWriter
	items     ItemWriter
	opts      PersisterOptions
	logFunc   LogFunc
}

func NewPersister(snapshots SnapshotWriter, items ItemWriter, opts PersisterOptions) *Persister {
	if opts.ChunkSize <= 0 || opts.ChunkSize > MaxSnapshotChunk {
		opts.ChunkSize = MaxSnapshotChunk
	}
	if opts.InsertConcurrency <= 0 {
		opts.InsertConcurrency = 1
	}
	if opts.UpdateConcurrency <= 0 {
		opts.UpdateConcurrency = 1
	}
	return &Persister{
		snapshots: snapshots,
		items:     items,
		opts:      opts,
		logFunc:   NoOpLogger,
	}
}

func (p *Persister) SetLogger(fn LogFunc) {
	p.logFunc = fn
}

// ChunkSnapshots splits batch into consecutive groups of at most size records.
func ChunkSnapshots(batch []models.Snapshot, size int) [][]models.Snapshot {
	if size <= 0 {
		size = MaxSnapshotChunk
	}
	var chunks [][]models.Snapshot
	for start := 0; start < len(batch); start += size {
		end := start + size
		if end > len(batch) {
			end = len(batch)
		}
		chunks = append(chunks, batch[start:end])
	}
	return chunks
}

// InsertSnapshots writes batch chunk by chunk. Only chunks the store confirmed
// count towards snapshots_created; each failed chunk adds one error.
// Returns the number of snapshots inserted.
func (p *Persister) InsertSnapshots(ctx context.Context, batch []models.Snapshot, stats *RunStats) int64 {
	chunks := ChunkSnapshots(batch, p.opts.ChunkSize)

	var created atomic.Int64

	var g errgroup.Group
	g.SetLimit(p.opts.InsertConcurrency)

	for i, chunk := range chunks {
		g.Go(func() error {
			if err := p.snapshots.InsertSnapshots(ctx, chunk); err != nil {
				stats.Errors.Add(1)
				msg := fmt.Sprintf("snapshot chunk %d/%d (%d rows) failed: %v", i+1, len(chunks), len(chunk), err)
				log.Print(msg)
				p.logFunc(models.LogLevelError, msg)
				return nil
			}
			created.Add(int64(len(chunk)))
			return nil
		})
	}
	_ = g.Wait()

	stats.SnapshotsCreated.Add(created.Load())
	return created.Load()
}

// UpdateBaseRecords applies each update with its own call. A failed update
// adds one error and the rest carry on. Returns the number of items updated.
func (p *Persister) UpdateBaseRecords(ctx context.Context, batch []models.BaseUpdate, stats *RunStats) int64 {
	var updated atomic.Int64

	var g errgroup.Group
	g.SetLimit(p.opts.UpdateConcurrency)

	for _, up := range batch {
		g.Go(func() error {
			if err := p.items.UpdateItem(ctx, up); err != nil {
				stats.Errors.Add(1)
				msg := fmt.Sprintf("update item %s failed: %v", up.ID, err)
				log.Print(msg)
				p.logFunc(models.LogLevelError, msg)
				return nil
			}
			updated.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	stats.ItemsUpdated.Add(updated.Load())
	return updated.Load()
}
