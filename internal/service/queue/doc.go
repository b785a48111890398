// Package queue implements the queue-store operations the rest of the
// system needs: enqueueing scheduled entries, purging pending entries when
// a subscriber leaves a list, rewriting subscriber snapshots, reading send
// history, and stamping opens and clicks on sent entries.
//
// Dequeue and send belong to an external worker. It must move an entry out
// of the "queued" partition (or mark it completed/failed) and keep
// (queuePlacement, runAtModified) stable while interaction events can
// still arrive for it.
//
// Batch work is chunked to the store's per-call limit and run through a
// bounded worker pool; every method waits for the pool to drain.
package queue
