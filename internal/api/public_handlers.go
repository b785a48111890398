package api

import (
	"net/http"

	"github.com/ignite/listflow/internal/pkg/httputil"
	"github.com/ignite/listflow/internal/service/unsubscribe"
)

// PublicSubscribe handles the subscribe form. Blocked domains and repeat
// submissions answer the same as a new subscription.
//
//	POST /public/subscriber
func (h *Handlers) PublicSubscribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	if _, err := h.Subscribers.PublicSubscribe(r.Context(), req.Email); err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.Message(w, "OK")
}

// ConfirmSubscriber confirms the subscriber named by the link token and
// redirects to the thank-you page.
//
//	GET /public/subscriber/confirm?t=
func (h *Handlers) ConfirmSubscriber(w http.ResponseWriter, r *http.Request) {
	if err := h.Subscribers.Confirm(r.Context(), r.URL.Query().Get("t")); err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.Redirect(w, http.StatusTemporaryRedirect, h.ThankYouURL)
}

// UnsubscribePage issues an unsubscribe token and redirects to the
// unsubscribe page. Failures redirect too, with an error code.
//
//	GET /public/subscriber/unsubscribe?email=
func (h *Handlers) UnsubscribePage(w http.ResponseWriter, r *http.Request) {
	target := h.Unsubscribe.PageRedirect(r.Context(), r.URL.Query().Get("email"))
	httputil.Redirect(w, http.StatusSeeOther, target)
}

// UnsubscribeSubmit applies a token-verified unsubscribe.
//
//	POST /public/subscriber/unsubscribe
func (h *Handlers) UnsubscribeSubmit(w http.ResponseWriter, r *http.Request) {
	var req unsubscribe.Request
	if !httputil.Decode(w, r, &req) {
		return
	}
	if err := h.Unsubscribe.Unsubscribe(r.Context(), req); err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.Message(w, "OK")
}
