package subscriber

import "github.com/ignite/listflow/internal/pkg/errs"

// Sentinel errors for the subscriber service layer.
var (
	ErrNotFound = errs.Mark(errs.New("Subscriber not found"), errs.ErrNotFound)

	// ErrEmailTaken is returned by the repository when another subscriber
	// already holds the canonical email.
	ErrEmailTaken = errs.Mark(errs.New("Email address already in use"), errs.ErrConflict)

	ErrUnknownAutoresponder = errs.Mark(errs.New("Autoresponder not found"), errs.ErrValidation)
)
