package api

import (
	"net/http"

	"github.com/ignite/listflow/internal/domain"
	"github.com/ignite/listflow/internal/pkg/httputil"
	"github.com/ignite/listflow/internal/service/sending"
)

// SubmitBroadcast validates and stores a broadcast for the resolver.
//
//	POST /broadcast
func (h *Handlers) SubmitBroadcast(w http.ResponseWriter, r *http.Request) {
	var req domain.BroadcastRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if _, err := h.Segmentation.Submit(r.Context(), req); err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.Message(w, "OK")
}

// GetPendingBroadcast returns the broadcast waiting for resolution.
//
//	GET /broadcast
func (h *Handlers) GetPendingBroadcast(w http.ResponseWriter, r *http.Request) {
	b, err := h.Segmentation.PendingBroadcast(r.Context())
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, b)
}

// ReleaseBroadcastLease ends a broadcast so another can be submitted.
//
//	DELETE /broadcast/lease?broadcastId=
func (h *Handlers) ReleaseBroadcastLease(w http.ResponseWriter, r *http.Request) {
	if err := h.Segmentation.ReleaseLease(r.Context(), r.URL.Query().Get("broadcastId")); err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.Message(w, "OK")
}

// PreviewCount requests an audience count for a predicate.
//
//	POST /subscriber-count
func (h *Handlers) PreviewCount(w http.ResponseWriter, r *http.Request) {
	var p domain.Predicate
	if !httputil.Decode(w, r, &p) {
		return
	}
	if _, err := h.Segmentation.PreviewCount(r.Context(), p); err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.Message(w, "OK")
}

// PreviewResult returns the stored count preview.
//
//	GET /subscriber-count
func (h *Handlers) PreviewResult(w http.ResponseWriter, r *http.Request) {
	preview, err := h.Segmentation.PreviewResult(r.Context())
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, preview)
}

type singleEmailRequest struct {
	ToEmailAddress   string       `json:"toEmailAddress"`
	FromEmailAddress string       `json:"fromEmailAddress"`
	Subject          string       `json:"subject"`
	Body             sending.Body `json:"body"`
}

// SendSingleEmail sends one message outside the queue.
//
//	POST /email
func (h *Handlers) SendSingleEmail(w http.ResponseWriter, r *http.Request) {
	var req singleEmailRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	_, err := h.Sending.SendSingle(r.Context(), sending.SingleEmail{
		To:      req.ToEmailAddress,
		From:    req.FromEmailAddress,
		Subject: req.Subject,
		Body:    req.Body,
	})
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.Message(w, "OK")
}
