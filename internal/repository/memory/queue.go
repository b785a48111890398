package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ignite/listflow/internal/domain"
	"github.com/ignite/listflow/internal/service/queue"
)

// QueueRepository is an in-memory queue table.
type QueueRepository struct {
	mu    sync.RWMutex
	items map[domain.QueueKey]domain.QueueItem
}

var _ queue.Repository = (*QueueRepository)(nil)

// NewQueueRepository returns an empty repository.
func NewQueueRepository() *QueueRepository {
	return &QueueRepository{items: make(map[domain.QueueKey]domain.QueueItem)}
}

func (r *QueueRepository) Put(_ context.Context, item *domain.QueueItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[item.Key()] = *item
	return nil
}

func (r *QueueRepository) PutBatch(_ context.Context, items []domain.QueueItem) error {
	if len(items) > queue.MaxBatchWrite {
		return queue.ErrBatchTooLarge
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, it := range items {
		r.items[it.Key()] = it
	}
	return nil
}

func (r *QueueRepository) pending(subscriberID string, match func(*domain.QueueItem) bool) []domain.QueueKey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var keys []domain.QueueKey
	for k, it := range r.items {
		if it.SubscriberID == subscriberID && it.Pending() && match(&it) {
			keys = append(keys, k)
		}
	}
	return keys
}

func (r *QueueRepository) QueryPending(_ context.Context, subscriberID string) ([]domain.QueueKey, error) {
	return r.pending(subscriberID, func(*domain.QueueItem) bool { return true }), nil
}

func (r *QueueRepository) QueryPendingByTagReason(_ context.Context, subscriberID string, tags []string) ([]domain.QueueKey, error) {
	return r.pending(subscriberID, func(it *domain.QueueItem) bool { return it.HasTagReason(tags...) }), nil
}

func (r *QueueRepository) QueryBySubscriber(_ context.Context, subscriberID string) ([]domain.QueueItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.QueueItem
	for _, it := range r.items {
		if it.SubscriberID == subscriberID {
			out = append(out, domain.QueueItem{
				QueuePlacement: it.QueuePlacement,
				RunAtModified:  it.RunAtModified,
				RunAt:          it.RunAt,
				SubscriberID:   it.SubscriberID,
			})
		}
	}
	return out, nil
}

func (r *QueueRepository) GetBatch(_ context.Context, keys []domain.QueueKey) ([]domain.QueueItem, error) {
	if len(keys) > queue.MaxBatchGet {
		return nil, queue.ErrBatchTooLarge
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.QueueItem, 0, len(keys))
	for _, k := range keys {
		if it, ok := r.items[k]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

func (r *QueueRepository) DeleteBatch(_ context.Context, keys []domain.QueueKey) error {
	if len(keys) > queue.MaxBatchWrite {
		return queue.ErrBatchTooLarge
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		delete(r.items, k)
	}
	return nil
}

func (r *QueueRepository) UpdateSnapshot(_ context.Context, key domain.QueueKey, snapshot *domain.Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[key]
	if !ok {
		return queue.ErrItemGone
	}
	it.Subscriber = snapshot
	r.items[key] = it
	return nil
}

func (r *QueueRepository) MarkInteraction(_ context.Context, key domain.QueueKey, field queue.InteractionField, at int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[key]
	if !ok {
		return queue.ErrItemGone
	}
	switch field {
	case queue.FieldClick:
		it.Click = at
	case queue.FieldOpen:
		it.Open = at
	}
	r.items[key] = it
	return nil
}

// Items returns every stored entry ordered by key.
func (r *QueueRepository) Items() []domain.QueueItem {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.QueueItem, 0, len(r.items))
	for _, it := range r.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].QueuePlacement != out[j].QueuePlacement {
			return out[i].QueuePlacement < out[j].QueuePlacement
		}
		return out[i].RunAtModified < out[j].RunAtModified
	})
	return out
}
