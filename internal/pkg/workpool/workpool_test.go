package workpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk(t *testing.T) {
	items := make([]int, 53)
	for i := range items {
		items[i] = i
	}

	chunks := Chunk(items, 25)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 25)
	assert.Len(t, chunks[1], 25)
	assert.Equal(t, []int{50, 51, 52}, chunks[2])

	assert.Nil(t, Chunk([]int{}, 25))
}

func TestForEach_BoundsConcurrency(t *testing.T) {
	var inFlight, peak int32
	items := make([]int, 40)

	err := ForEach(context.Background(), items, 4, func(ctx context.Context, _ int) error {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return nil
	})

	require.NoError(t, err)
	assert.LessOrEqual(t, peak, int32(4))
	assert.Greater(t, peak, int32(0))
}

func TestForEachChunk_VisitsEveryItem(t *testing.T) {
	items := make([]int, 60)
	for i := range items {
		items[i] = i
	}

	var mu sync.Mutex
	seen := map[int]bool{}
	err := ForEachChunk(context.Background(), items, 25, 10, func(_ context.Context, chunk []int) error {
		assert.LessOrEqual(t, len(chunk), 25)
		mu.Lock()
		defer mu.Unlock()
		for _, v := range chunk {
			seen[v] = true
		}
		return nil
	})

	require.NoError(t, err)
	assert.Len(t, seen, 60)
}

func TestForEach_ReturnsFirstError(t *testing.T) {
	boom := errors.New("boom")
	err := ForEach(context.Background(), []int{1, 2, 3}, 1, func(_ context.Context, v int) error {
		if v == 2 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
}
