package unsubscribe

import "github.com/ignite/listflow/internal/pkg/errs"

// Token rejections. Both are reported as 403.
var (
	ErrExpiredToken = errs.Mark(errs.New("Forbidden: expired token"), errs.ErrForbidden)
	ErrInvalidToken = errs.Mark(errs.New("Forbidden: invalid token"), errs.ErrForbidden)
)
