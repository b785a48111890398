package api

import (
	"net/http"

	"github.com/ignite/listflow/internal/domain"
	"github.com/ignite/listflow/internal/pkg/httputil"
)

//	GET /lists
func (h *Handlers) ListLists(w http.ResponseWriter, r *http.Request) {
	lists, err := h.Settings.Lists(r.Context())
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	if lists == nil {
		lists = []domain.List{}
	}
	httputil.OK(w, lists)
}

// PutList creates or replaces a list definition.
//
//	POST /list
func (h *Handlers) PutList(w http.ResponseWriter, r *http.Request) {
	var l domain.List
	if !httputil.Decode(w, r, &l) {
		return
	}
	created, err := h.Settings.PutList(r.Context(), l)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	if created {
		httputil.Message(w, "List created")
		return
	}
	httputil.Message(w, "List updated")
}

//	DELETE /list?id=
func (h *Handlers) DeleteList(w http.ResponseWriter, r *http.Request) {
	if err := h.Settings.DeleteList(r.Context(), r.URL.Query().Get("id")); err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.Message(w, "List deleted")
}

//	GET /autoresponders
func (h *Handlers) ListAutoresponders(w http.ResponseWriter, r *http.Request) {
	ars, err := h.Settings.Autoresponders(r.Context())
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	if ars == nil {
		ars = []domain.Autoresponder{}
	}
	httputil.OK(w, ars)
}

//	GET /autoresponder?autoresponderId=
func (h *Handlers) GetAutoresponder(w http.ResponseWriter, r *http.Request) {
	a, err := h.Settings.Autoresponder(r.Context(), r.URL.Query().Get("autoresponderId"))
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, a)
}

//	POST /autoresponder
func (h *Handlers) PutAutoresponder(w http.ResponseWriter, r *http.Request) {
	var a domain.Autoresponder
	if !httputil.Decode(w, r, &a) {
		return
	}
	if err := h.Settings.PutAutoresponder(r.Context(), &a); err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.Message(w, "OK")
}

//	DELETE /autoresponder?autoresponderId=
func (h *Handlers) DeleteAutoresponder(w http.ResponseWriter, r *http.Request) {
	if err := h.Settings.DeleteAutoresponder(r.Context(), r.URL.Query().Get("autoresponderId")); err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.Message(w, "OK")
}

//	GET /settings/blocked-domains
func (h *Handlers) GetBlockedDomains(w http.ResponseWriter, r *http.Request) {
	domains, err := h.Settings.BlockedDomains(r.Context())
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	if domains == nil {
		domains = []string{}
	}
	httputil.OK(w, domains)
}

//	POST /settings/blocked-domains
func (h *Handlers) PutBlockedDomains(w http.ResponseWriter, r *http.Request) {
	var domains []string
	if !httputil.Decode(w, r, &domains) {
		return
	}
	if err := h.Settings.PutBlockedDomains(r.Context(), domains); err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.Message(w, "OK")
}

//	GET /settings/auto-confirm-tags
func (h *Handlers) GetAutoConfirmTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.Settings.AutoConfirmTags(r.Context())
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	if tags == nil {
		tags = []string{}
	}
	httputil.OK(w, tags)
}

// PutAutoConfirmTags stores the comma-separated tag list.
//
//	POST /settings/auto-confirm-tags
func (h *Handlers) PutAutoConfirmTags(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tags string `json:"tags"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	if err := h.Settings.PutAutoConfirmTags(r.Context(), req.Tags); err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.Message(w, "OK")
}
