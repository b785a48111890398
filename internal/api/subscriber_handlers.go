package api

import (
	"net/http"

	"github.com/ignite/listflow/internal/pkg/errs"
	"github.com/ignite/listflow/internal/pkg/httputil"
	"github.com/ignite/listflow/internal/service/subscriber"
)

// triggerFromQuery reads the triggerType/triggerId pair.
func triggerFromQuery(r *http.Request) (subscriber.Trigger, error) {
	q := r.URL.Query()
	return subscriber.ParseTrigger(q.Get("triggerType"), q.Get("triggerId"))
}

// UpsertSubscriber creates or updates a subscriber and runs the requested
// trigger.
//
//	POST /subscriber?triggerType=&triggerId=&triggerAutoresponders=
func (h *Handlers) UpsertSubscriber(w http.ResponseWriter, r *http.Request) {
	var in subscriber.Input
	if !httputil.Decode(w, r, &in) {
		return
	}
	trig, err := triggerFromQuery(r)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	extra := r.URL.Query()["triggerAutoresponders"]
	if err := subscriber.ValidateAutoresponderIDs(extra); err != nil {
		httputil.FromError(w, err)
		return
	}

	res, err := h.Subscribers.Upsert(r.Context(), in, trig, extra)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	if res.Outcome == subscriber.OutcomeSuppressed {
		httputil.Message(w, string(subscriber.OutcomeAdded))
		return
	}
	httputil.Message(w, string(res.Outcome))
}

// GetSubscriber returns the full subscriber record.
//
//	GET /subscriber?email=
func (h *Handlers) GetSubscriber(w http.ResponseWriter, r *http.Request) {
	sub, err := h.Subscribers.GetByEmail(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, sub)
}

// SubscriberStatus returns the status projection.
//
//	GET /subscriber/status?email=
func (h *Handlers) SubscriberStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.Subscribers.Status(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, st)
}

// SubscriberHistory returns the latest queue entries, newest first.
//
//	GET /subscriber/history?email=
func (h *Handlers) SubscriberHistory(w http.ResponseWriter, r *http.Request) {
	items, err := h.Subscribers.History(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, items)
}

type tagRequest struct {
	Email string `json:"email"`
	Tag   string `json:"tag"`
}

// TagSubscriber adds a tag. A trigger in the query runs after the tag is
// stored; its failure is logged, not returned.
//
//	POST /subscriber/tag?triggerType=&triggerId=
func (h *Handlers) TagSubscriber(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	trig, err := triggerFromQuery(r)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	if err := h.Subscribers.AddTag(r.Context(), req.Email, req.Tag, trig); err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.Message(w, "OK")
}

// UntagSubscriber removes a tag and the pending entries it caused.
//
//	POST /subscriber/untag
func (h *Handlers) UntagSubscriber(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if _, err := h.Subscribers.RemoveTag(r.Context(), req.Email, req.Tag); err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.Message(w, "OK")
}

// ChangeEmail moves a subscriber to a new address.
//
//	POST /subscriber/email
func (h *Handlers) ChangeEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SubscriberID string `json:"subscriberId"`
		Email        string `json:"email"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	if err := h.Subscribers.ChangeEmail(r.Context(), req.SubscriberID, req.Email); err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.Message(w, "OK")
}

// AdminUnsubscribe unsubscribes an address from everything.
//
//	POST /subscriber/unsubscribe
func (h *Handlers) AdminUnsubscribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	if err := h.Subscribers.Unsubscribe(r.Context(), req.Email); err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.Message(w, "OK")
}

// DeleteSubscriber purges pending entries and deletes the subscriber.
//
//	DELETE /subscriber?subscriberId=
func (h *Handlers) DeleteSubscriber(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("subscriberId")
	if id == "" {
		httputil.FromError(w, errs.Validation(`"subscriberId" is required`))
		return
	}
	if err := h.Subscribers.Delete(r.Context(), id); err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.Message(w, "OK")
}

// TriggerAutoresponder enrolls a subscriber in an autoresponder step.
//
//	POST /autoresponder/trigger?triggerId=&triggerStep=
func (h *Handlers) TriggerAutoresponder(w http.ResponseWriter, r *http.Request) {
	var ref subscriber.SubscriberRef
	if !httputil.Decode(w, r, &ref) {
		return
	}
	q := r.URL.Query()
	t := subscriber.AutoresponderTrigger{AutoresponderID: q.Get("triggerId"), Step: q.Get("triggerStep")}
	if err := h.Subscribers.TriggerAutoresponder(r.Context(), ref, t); err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.Message(w, "OK")
}
