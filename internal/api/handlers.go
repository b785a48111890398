package api

import (
	"net/http"

	"github.com/ignite/listflow/internal/pkg/httputil"
	"github.com/ignite/listflow/internal/service/segmentation"
	"github.com/ignite/listflow/internal/service/sending"
	"github.com/ignite/listflow/internal/service/settings"
	"github.com/ignite/listflow/internal/service/subscriber"
	"github.com/ignite/listflow/internal/service/unsubscribe"
)

// Handlers contains all HTTP handlers and the services behind them.
type Handlers struct {
	Subscribers  *subscriber.Service
	Settings     *settings.Service
	Unsubscribe  *unsubscribe.Service
	Segmentation *segmentation.Service
	Sending      *sending.Service
	Health       *HealthChecker

	// ThankYouURL is where a confirmation link lands.
	ThankYouURL string
	// UnsubscribeURL is handed to template authors.
	UnsubscribeURL string
}

// UnsubscribeLink returns the configured unsubscribe link.
//
//	GET /unsubscribe-link
func (h *Handlers) UnsubscribeLink(w http.ResponseWriter, r *http.Request) {
	httputil.Message(w, h.UnsubscribeURL)
}
