package queue

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ignite/listflow/internal/domain"
	"github.com/ignite/listflow/internal/metrics"
	"github.com/ignite/listflow/internal/pkg/errs"
	"github.com/ignite/listflow/internal/pkg/logger"
	"github.com/ignite/listflow/internal/pkg/workpool"
	"github.com/ignite/listflow/internal/service/scheduling"
)

// HistoryLimit caps the entries returned by History.
const HistoryLimit = 100

// Purge reasons recorded in metrics.
const (
	PurgeUnsubscribe = "unsubscribe"
	PurgeListRemoval = "list-removal"
	PurgeTagRemoval  = "tag-removal"
	PurgeDelete      = "delete"
	PurgeBounce      = "bounce"
	PurgeComplaint   = "complaint"
)

// Options tunes batch work.
type Options struct {
	BatchSize   int
	Concurrency int
}

// Service implements queue operations. It is safe for concurrent use.
type Service struct {
	repo        Repository
	engine      *scheduling.Engine
	batchSize   int
	concurrency int
}

// NewService creates a queue service backed by the given repository.
func NewService(repo Repository, engine *scheduling.Engine, opts Options) *Service {
	if opts.BatchSize <= 0 || opts.BatchSize > MaxBatchWrite {
		opts.BatchSize = MaxBatchWrite
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = workpool.DefaultConcurrency
	}
	return &Service{repo: repo, engine: engine, batchSize: opts.BatchSize, concurrency: opts.Concurrency}
}

// Engine returns the scheduling engine entries are built with.
func (s *Service) Engine() *scheduling.Engine {
	return s.engine
}

func origin(item *domain.QueueItem) string {
	if item.AutoresponderID != "" {
		return "autoresponder"
	}
	return "direct"
}

// Enqueue schedules p for sub and writes the entry.
func (s *Service) Enqueue(ctx context.Context, p domain.Payload, base time.Time, sub *domain.Subscriber, link scheduling.Enrollment) (*domain.QueueItem, error) {
	item := s.engine.Schedule(p, base, sub, link)
	if err := s.repo.Put(ctx, &item); err != nil {
		return nil, errs.Transient(err, "put queue item")
	}
	metrics.QueueScheduled.WithLabelValues(origin(&item)).Inc()
	return &item, nil
}

// EnqueueAll writes already scheduled entries in chunks.
func (s *Service) EnqueueAll(ctx context.Context, items []domain.QueueItem) error {
	err := workpool.ForEachChunk(ctx, items, s.batchSize, s.concurrency, func(ctx context.Context, chunk []domain.QueueItem) error {
		return s.repo.PutBatch(ctx, chunk)
	})
	if err != nil {
		return errs.Transient(err, "put queue items")
	}
	for i := range items {
		metrics.QueueScheduled.WithLabelValues(origin(&items[i])).Inc()
	}
	return nil
}

// PurgePending deletes every pending entry for a subscriber and returns
// how many were removed.
func (s *Service) PurgePending(ctx context.Context, subscriberID, reason string) (int, error) {
	keys, err := s.repo.QueryPending(ctx, subscriberID)
	if err != nil {
		return 0, errs.Transient(err, "query pending queue items")
	}
	return len(keys), s.deleteKeys(ctx, keys, reason)
}

// PurgeByTagReason deletes pending entries that originate from any of
// tags, leaving entries for other lists in place.
func (s *Service) PurgeByTagReason(ctx context.Context, subscriberID string, tags []string, reason string) (int, error) {
	if len(tags) == 0 {
		return 0, nil
	}
	keys, err := s.repo.QueryPendingByTagReason(ctx, subscriberID, tags)
	if err != nil {
		return 0, errs.Transient(err, "query pending queue items by tag reason")
	}
	return len(keys), s.deleteKeys(ctx, keys, reason)
}

func (s *Service) deleteKeys(ctx context.Context, keys []domain.QueueKey, reason string) error {
	if len(keys) == 0 {
		return nil
	}
	err := workpool.ForEachChunk(ctx, keys, s.batchSize, s.concurrency, func(ctx context.Context, chunk []domain.QueueKey) error {
		return s.repo.DeleteBatch(ctx, chunk)
	})
	if err != nil {
		return errs.Transient(err, "delete queue items")
	}
	metrics.QueuePurged.WithLabelValues(reason).Add(float64(len(keys)))
	return nil
}

// PropagateSnapshot rewrites the subscriber snapshot of every pending
// entry so the eventual send uses current data. Entries dequeued in the
// meantime are skipped.
func (s *Service) PropagateSnapshot(ctx context.Context, sub *domain.Subscriber) (int, error) {
	keys, err := s.repo.QueryPending(ctx, sub.SubscriberID)
	if err != nil {
		return 0, errs.Transient(err, "query pending queue items")
	}
	if len(keys) == 0 {
		return 0, nil
	}

	snapshot := scheduling.Snapshot(sub)
	var rewritten int64
	err = workpool.ForEach(ctx, keys, s.concurrency, func(ctx context.Context, key domain.QueueKey) error {
		err := s.repo.UpdateSnapshot(ctx, key, snapshot)
		if errs.Is(err, ErrItemGone) {
			return nil
		}
		if err != nil {
			return err
		}
		atomic.AddInt64(&rewritten, 1)
		return nil
	})
	if err != nil {
		return int(rewritten), errs.Transient(err, "rewrite queue snapshots")
	}
	metrics.SnapshotsRewritten.Add(float64(rewritten))
	return int(rewritten), nil
}

// History returns the most recent entries for a subscriber, newest first.
func (s *Service) History(ctx context.Context, subscriberID string) ([]domain.QueueItem, error) {
	projected, err := s.repo.QueryBySubscriber(ctx, subscriberID)
	if err != nil {
		return nil, errs.Transient(err, "query queue history")
	}
	sort.SliceStable(projected, func(i, j int) bool { return projected[i].RunAt > projected[j].RunAt })
	if len(projected) > HistoryLimit {
		projected = projected[:HistoryLimit]
	}

	keys := make([]domain.QueueKey, 0, len(projected))
	for i := range projected {
		keys = append(keys, projected[i].Key())
	}

	var (
		mu    sync.Mutex
		items = make([]domain.QueueItem, 0, len(keys))
	)
	err = workpool.ForEachChunk(ctx, keys, MaxBatchGet, s.concurrency, func(ctx context.Context, chunk []domain.QueueKey) error {
		got, err := s.repo.GetBatch(ctx, chunk)
		if err != nil {
			return err
		}
		mu.Lock()
		items = append(items, got...)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, errs.Transient(err, "load queue history")
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].RunAt > items[j].RunAt })
	return items, nil
}

// RecordInteraction stamps an open or click on a sent entry. An entry that
// has already been purged is not an error.
func (s *Service) RecordInteraction(ctx context.Context, key domain.QueueKey, field InteractionField, at time.Time) error {
	err := s.repo.MarkInteraction(ctx, key, field, at.UnixMilli())
	if errs.Is(err, ErrItemGone) {
		logger.Debug("interaction for missing queue item ignored", "key", key.String(), "field", string(field))
		return nil
	}
	if err != nil {
		return errs.Transient(err, "mark queue item interaction")
	}
	return nil
}
