package settings

import "github.com/ignite/listflow/internal/pkg/errs"

// Sentinel errors for the settings service layer.
var (
	ErrListNotFound          = errs.Mark(errs.New("list not found"), errs.ErrNotFound)
	ErrAutoresponderNotFound = errs.Mark(errs.New("autoresponder not found"), errs.ErrNotFound)
)
