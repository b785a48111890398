package segmentation

import "github.com/ignite/listflow/internal/pkg/errs"

// Sentinel errors for the segmentation service layer.
var (
	ErrBroadcastInProgress = errs.Mark(errs.New("A broadcast is already in progress. Try again later."), errs.ErrConflict)
	ErrTemplateNotFound    = errs.Mark(errs.New("Template not found"), errs.ErrNotFound)
	ErrNoPendingBroadcast  = errs.Mark(errs.New("No pending broadcast"), errs.ErrNotFound)
	ErrPreviewNotFound     = errs.Mark(errs.New("Not found"), errs.ErrNotFound)
)
