package queue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/listflow/internal/domain"
	"github.com/ignite/listflow/internal/service/scheduling"
)

// mockRepo is an in-memory queue table for testing.
type mockRepo struct {
	mu          sync.Mutex
	items       map[domain.QueueKey]domain.QueueItem
	deleteCalls [][]domain.QueueKey
	putCalls    int
	failDelete  error
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[domain.QueueKey]domain.QueueItem)}
}

func (m *mockRepo) Put(_ context.Context, item *domain.QueueItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putCalls++
	m.items[item.Key()] = *item
	return nil
}

func (m *mockRepo) PutBatch(_ context.Context, items []domain.QueueItem) error {
	if len(items) > MaxBatchWrite {
		return ErrBatchTooLarge
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putCalls++
	for _, it := range items {
		m.items[it.Key()] = it
	}
	return nil
}

func (m *mockRepo) QueryPending(_ context.Context, subscriberID string) ([]domain.QueueKey, error) {
	return m.query(subscriberID, nil), nil
}

func (m *mockRepo) QueryPendingByTagReason(_ context.Context, subscriberID string, tags []string) ([]domain.QueueKey, error) {
	return m.query(subscriberID, tags), nil
}

func (m *mockRepo) query(subscriberID string, tags []string) []domain.QueueKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []domain.QueueKey
	for k, it := range m.items {
		if it.SubscriberID != subscriberID || !it.Pending() {
			continue
		}
		if tags != nil && !it.HasTagReason(tags...) {
			continue
		}
		keys = append(keys, k)
	}
	return keys
}

func (m *mockRepo) QueryBySubscriber(_ context.Context, subscriberID string) ([]domain.QueueItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.QueueItem
	for _, it := range m.items {
		if it.SubscriberID == subscriberID {
			out = append(out, domain.QueueItem{QueuePlacement: it.QueuePlacement, RunAtModified: it.RunAtModified, RunAt: it.RunAt, SubscriberID: it.SubscriberID})
		}
	}
	return out, nil
}

func (m *mockRepo) GetBatch(_ context.Context, keys []domain.QueueKey) ([]domain.QueueItem, error) {
	if len(keys) > MaxBatchGet {
		return nil, ErrBatchTooLarge
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.QueueItem
	for _, k := range keys {
		if it, ok := m.items[k]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *mockRepo) DeleteBatch(_ context.Context, keys []domain.QueueKey) error {
	if len(keys) > MaxBatchWrite {
		return ErrBatchTooLarge
	}
	if m.failDelete != nil {
		return m.failDelete
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls = append(m.deleteCalls, keys)
	for _, k := range keys {
		delete(m.items, k)
	}
	return nil
}

func (m *mockRepo) UpdateSnapshot(_ context.Context, key domain.QueueKey, snapshot *domain.Subscriber) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[key]
	if !ok {
		return ErrItemGone
	}
	it.Subscriber = snapshot
	m.items[key] = it
	return nil
}

func (m *mockRepo) MarkInteraction(_ context.Context, key domain.QueueKey, field InteractionField, at int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[key]
	if !ok {
		return ErrItemGone
	}
	if field == FieldClick {
		it.Click = at
	} else {
		it.Open = at
	}
	m.items[key] = it
	return nil
}

func (m *mockRepo) count(subscriberID string) int {
	return len(m.query(subscriberID, nil))
}

func newTestService(repo *mockRepo) *Service {
	return NewService(repo, scheduling.NewEngine(), Options{})
}

func seed(t *testing.T, svc *Service, sub *domain.Subscriber, n int, tagReason ...string) {
	t.Helper()
	base := time.Now()
	for i := 0; i < n; i++ {
		_, err := svc.Enqueue(context.Background(), domain.Payload{TemplateID: "t", TagReason: tagReason}, base.Add(time.Duration(i)*time.Minute), sub, scheduling.Enrollment{})
		require.NoError(t, err)
	}
}

func TestEnqueue(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	sub := &domain.Subscriber{SubscriberID: "s1", Email: "a@example.com"}

	item, err := svc.Enqueue(context.Background(), domain.Payload{TemplateID: "welcome"}, time.Now(), sub, scheduling.Enrollment{})
	require.NoError(t, err)

	stored, ok := repo.items[item.Key()]
	require.True(t, ok)
	assert.Equal(t, domain.PendingPlacement, stored.QueuePlacement)
	assert.Equal(t, "welcome", stored.TemplateID)
}

func TestEnqueueAll_Chunks(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	sub := &domain.Subscriber{SubscriberID: "s1"}

	items := make([]domain.QueueItem, 60)
	for i := range items {
		items[i] = svc.Engine().Schedule(domain.Payload{TemplateID: "t"}, time.Now(), sub, scheduling.Enrollment{})
	}
	require.NoError(t, svc.EnqueueAll(context.Background(), items))

	assert.Equal(t, 60, repo.count("s1"))
	assert.Equal(t, 3, repo.putCalls)
}

func TestPurgePending_RemovesAllInChunks(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	sub := &domain.Subscriber{SubscriberID: "s1"}
	other := &domain.Subscriber{SubscriberID: "s2"}
	seed(t, svc, sub, 57)
	seed(t, svc, other, 3)

	n, err := svc.PurgePending(context.Background(), "s1", PurgeUnsubscribe)
	require.NoError(t, err)

	assert.Equal(t, 57, n)
	assert.Zero(t, repo.count("s1"))
	assert.Equal(t, 3, repo.count("s2"), "other subscribers are untouched")
	require.Len(t, repo.deleteCalls, 3)
	for _, call := range repo.deleteCalls {
		assert.LessOrEqual(t, len(call), MaxBatchWrite)
	}
}

func TestPurgePending_SkipsSentEntries(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	sub := &domain.Subscriber{SubscriberID: "s1"}
	seed(t, svc, sub, 2)

	sent := domain.QueueItem{QueuePlacement: "2024-01-02", RunAtModified: "1700000000123.000000001", SubscriberID: "s1"}
	repo.items[sent.Key()] = sent

	_, err := svc.PurgePending(context.Background(), "s1", PurgeDelete)
	require.NoError(t, err)

	_, kept := repo.items[sent.Key()]
	assert.True(t, kept, "entries outside the pending partition are history")
}

func TestPurgeByTagReason_LeavesOtherLists(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	sub := &domain.Subscriber{SubscriberID: "s1"}
	seed(t, svc, sub, 4, "list-a")
	seed(t, svc, sub, 2, "list-b")
	seed(t, svc, sub, 1, "list-a", "list-c")

	n, err := svc.PurgeByTagReason(context.Background(), "s1", []string{"list-a"}, PurgeListRemoval)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	remaining, _ := repo.QueryPending(context.Background(), "s1")
	require.Len(t, remaining, 2)
	for _, k := range remaining {
		it := repo.items[k]
		assert.False(t, it.HasTagReason("list-a"))
	}
}

func TestPurgeByTagReason_NoTags(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	n, err := svc.PurgeByTagReason(context.Background(), "s1", nil, PurgeListRemoval)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPurge_StoreFailure(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	seed(t, svc, &domain.Subscriber{SubscriberID: "s1"}, 3)
	repo.failDelete = errors.New("throttled")

	_, err := svc.PurgePending(context.Background(), "s1", PurgeUnsubscribe)
	assert.Error(t, err)
}

func TestPropagateSnapshot(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	sub := &domain.Subscriber{SubscriberID: "s1", Email: "old@example.com"}
	seed(t, svc, sub, 30)

	updated := *sub
	updated.Email = "new@example.com"
	updated.DisplayEmail = "New@Example.com"

	n, err := svc.PropagateSnapshot(context.Background(), &updated)
	require.NoError(t, err)
	assert.Equal(t, 30, n)

	for _, it := range repo.items {
		require.NotNil(t, it.Subscriber)
		assert.Equal(t, "new@example.com", it.Subscriber.Email)
		assert.Equal(t, "New@Example.com", it.Subscriber.DisplayEmail)
	}
}

// goneRepo reports every snapshot target as already dequeued.
type goneRepo struct{ *mockRepo }

func (g goneRepo) UpdateSnapshot(context.Context, domain.QueueKey, *domain.Subscriber) error {
	return ErrItemGone
}

func TestPropagateSnapshot_SkipsDequeued(t *testing.T) {
	repo := newMockRepo()
	seed(t, newTestService(repo), &domain.Subscriber{SubscriberID: "s1"}, 3)

	svc := NewService(goneRepo{repo}, scheduling.NewEngine(), Options{})
	n, err := svc.PropagateSnapshot(context.Background(), &domain.Subscriber{SubscriberID: "s1"})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestHistory_NewestFirstCapped(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	for i := 0; i < 130; i++ {
		it := domain.QueueItem{
			QueuePlacement: "2024-01-02",
			RunAtModified:  fmt.Sprintf("%013d.000000000", 1_700_000_000_000+i),
			RunAt:          int64(1_700_000_000_000 + i),
			SubscriberID:   "s1",
		}
		repo.items[it.Key()] = it
	}

	items, err := svc.History(context.Background(), "s1")
	require.NoError(t, err)

	require.Len(t, items, HistoryLimit)
	assert.Equal(t, int64(1_700_000_000_129), items[0].RunAt)
	assert.True(t, sort.SliceIsSorted(items, func(i, j int) bool { return items[i].RunAt > items[j].RunAt }))
}

func TestRecordInteraction(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	key := domain.QueueKey{QueuePlacement: "2024-01-02", RunAtModified: "1700000000123.456"}
	repo.items[key] = domain.QueueItem{QueuePlacement: key.QueuePlacement, RunAtModified: key.RunAtModified}

	at := time.UnixMilli(1_700_000_500_000)
	require.NoError(t, svc.RecordInteraction(context.Background(), key, FieldClick, at))
	assert.Equal(t, at.UnixMilli(), repo.items[key].Click)
	assert.Zero(t, repo.items[key].Open)

	missing := domain.QueueKey{QueuePlacement: "2024-01-02", RunAtModified: "1.1"}
	assert.NoError(t, svc.RecordInteraction(context.Background(), missing, FieldOpen, at))
	_, created := repo.items[missing]
	assert.False(t, created)
}
