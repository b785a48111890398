// Package workpool runs I/O-bound sub-operations with bounded concurrency.
// Callers block until every task has finished; the first error cancels the
// context handed to the remaining tasks and is returned.
package workpool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency caps parallel store calls within one request.
const DefaultConcurrency = 10

// Chunk splits items into consecutive slices of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}
	if len(items) == 0 {
		return nil
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

// ForEach calls fn for every item with at most limit calls in flight.
func ForEach[T any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, item T) error) error {
	if len(items) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, item := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, item)
		})
	}
	return g.Wait()
}

// ForEachChunk splits items into chunks of size and processes the chunks
// through ForEach.
func ForEachChunk[T any](ctx context.Context, items []T, size, limit int, fn func(ctx context.Context, chunk []T) error) error {
	return ForEach(ctx, Chunk(items, size), limit, fn)
}
