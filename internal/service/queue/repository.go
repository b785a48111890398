package queue

import (
	"context"

	"github.com/ignite/listflow/internal/domain"
)

// Per-call item limits of the backing store.
const (
	MaxBatchWrite = 25
	MaxBatchGet   = 100
)

// InteractionField names the timestamp an event stamps on an entry.
type InteractionField string

const (
	FieldOpen  InteractionField = "open"
	FieldClick InteractionField = "click"
)

// Repository defines the data access contract for the queue table.
type Repository interface {
	// Put writes one entry.
	Put(ctx context.Context, item *domain.QueueItem) error

	// PutBatch writes at most MaxBatchWrite entries.
	PutBatch(ctx context.Context, items []domain.QueueItem) error

	// QueryPending returns the keys of every pending entry for a subscriber.
	QueryPending(ctx context.Context, subscriberID string) ([]domain.QueueKey, error)

	// QueryPendingByTagReason returns the keys of pending entries whose
	// tagReason contains any of tags.
	QueryPendingByTagReason(ctx context.Context, subscriberID string, tags []string) ([]domain.QueueKey, error)

	// QueryBySubscriber returns the index projection (keys and runAt) of
	// every entry for a subscriber, sent or not.
	QueryBySubscriber(ctx context.Context, subscriberID string) ([]domain.QueueItem, error)

	// GetBatch loads at most MaxBatchGet full entries. Missing keys are
	// skipped.
	GetBatch(ctx context.Context, keys []domain.QueueKey) ([]domain.QueueItem, error)

	// DeleteBatch deletes at most MaxBatchWrite entries.
	DeleteBatch(ctx context.Context, keys []domain.QueueKey) error

	// UpdateSnapshot replaces the subscriber snapshot of an existing entry.
	// Returns ErrItemGone if the entry no longer exists.
	UpdateSnapshot(ctx context.Context, key domain.QueueKey, snapshot *domain.Subscriber) error

	// MarkInteraction sets the open or click timestamp of an existing
	// entry. Returns ErrItemGone if the entry no longer exists.
	MarkInteraction(ctx context.Context, key domain.QueueKey, field InteractionField, at int64) error
}
