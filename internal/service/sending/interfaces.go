package sending

import (
	"context"

	"github.com/ignite/listflow/internal/domain"
)

// Sender delivers a single email. Implementations must be safe for
// concurrent use.
type Sender interface {
	Send(ctx context.Context, msg *domain.EmailMessage) (*domain.SendResult, error)
}

// TemplateChecker reports whether a stored template exists.
type TemplateChecker interface {
	TemplateExists(ctx context.Context, templateID string) (bool, error)
}
