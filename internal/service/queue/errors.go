package queue

import "github.com/ignite/listflow/internal/pkg/errs"

// Sentinel errors for the queue service layer.
var (
	// ErrItemGone is returned by conditional updates whose target no
	// longer exists. Callers treat it as a no-op.
	ErrItemGone = errs.Mark(errs.New("queue item no longer exists"), errs.ErrNotFound)

	ErrBatchTooLarge = errs.New("batch exceeds the store's per-call limit")
)
