package subscriber

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/listflow/internal/domain"
	"github.com/ignite/listflow/internal/mailing"
	"github.com/ignite/listflow/internal/metrics"
	"github.com/ignite/listflow/internal/pkg/errs"
	"github.com/ignite/listflow/internal/pkg/logger"
	"github.com/ignite/listflow/internal/service/queue"
	"github.com/ignite/listflow/internal/service/scheduling"
	"github.com/ignite/listflow/internal/service/sending"
	"github.com/ignite/listflow/internal/service/settings"
)

// Options configures the subscriber service.
type Options struct {
	// SourceEmail is the From address of confirmation emails.
	SourceEmail string
	// ConfirmationTemplate is the stored template used when a
	// confirmation trigger names none.
	ConfirmationTemplate string
	// APIURL is the public base URL confirmation links point at.
	APIURL string
	// DefaultList is tagged onto every public subscriber.
	DefaultList string

	Now   func() time.Time
	NewID func() string
}

// Service implements subscriber business logic. It is safe for concurrent use.
type Service struct {
	repo      Repository
	settings  *settings.Service
	queue     *queue.Service
	sender    sending.Sender
	templates *mailing.TemplateService
	opts      Options
}

// NewService creates a subscriber service.
func NewService(repo Repository, st *settings.Service, q *queue.Service, sender sending.Sender, templates *mailing.TemplateService, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.NewString() }
	}
	if opts.ConfirmationTemplate == "" {
		opts.ConfirmationTemplate = "Confirmation"
	}
	return &Service{repo: repo, settings: st, queue: q, sender: sender, templates: templates, opts: opts}
}

// Get loads a subscriber by id.
func (s *Service) Get(ctx context.Context, subscriberID string) (*domain.Subscriber, error) {
	sub, err := s.repo.Get(ctx, subscriberID)
	if err != nil {
		return nil, classify(err, "get subscriber")
	}
	return sub, nil
}

// GetByEmail loads a subscriber by address in any case.
func (s *Service) GetByEmail(ctx context.Context, email string) (*domain.Subscriber, error) {
	if err := ValidateLookupEmail(email); err != nil {
		return nil, err
	}
	sub, err := s.repo.GetByEmail(ctx, domain.CanonicalEmail(email))
	if err != nil {
		return nil, classify(err, "get subscriber by email")
	}
	return sub, nil
}

// Status returns the index projection for an address.
func (s *Service) Status(ctx context.Context, email string) (*domain.SubscriberStatus, error) {
	sub, err := s.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	st := sub.Status()
	return &st, nil
}

// History returns the latest queue entries for an address, newest first.
func (s *Service) History(ctx context.Context, email string) ([]domain.QueueItem, error) {
	sub, err := s.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return s.queue.History(ctx, sub.SubscriberID)
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, subscriberID string, p Patch) error {
	if p.Empty() {
		return nil
	}
	if err := s.repo.Update(ctx, subscriberID, p); err != nil {
		return classify(err, "update subscriber")
	}
	return nil
}

// AddTag tags the subscriber holding email and runs an optional
// autoresponder trigger. Trigger failures are logged, not returned.
func (s *Service) AddTag(ctx context.Context, email, tag string, trig Trigger) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}
	if err := ValidateTag(tag); err != nil {
		return err
	}
	if trig == nil {
		trig = NoTrigger{}
	}
	if _, ok := trig.(ConfirmationTrigger); ok {
		return errs.Validation(`"triggerType" must be [autoresponder]`)
	}

	sub, err := s.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !domain.HasAllTags(sub.Tags, []string{tag}) {
		tags := domain.MergeTags(sub.Tags, []string{tag})
		if err := s.Update(ctx, sub.SubscriberID, Patch{Tags: &tags}); err != nil {
			return err
		}
		sub.Tags = tags
	}

	if t, ok := trig.(AutoresponderTrigger); ok {
		if err := s.enroll(ctx, sub, t.AutoresponderID, t.StepOrStart(), false); err != nil {
			logger.Error("tag trigger failed", "subscriberId", sub.SubscriberID, "autoresponderId", t.AutoresponderID, "error", err)
		}
	}
	return nil
}

// RemoveTag untags the subscriber holding email and purges pending
// entries that originate from the tag. It returns the purge count.
func (s *Service) RemoveTag(ctx context.Context, email, tag string) (int, error) {
	if err := ValidateEmail(email); err != nil {
		return 0, err
	}
	if err := ValidateTag(tag); err != nil {
		return 0, err
	}
	sub, err := s.GetByEmail(ctx, email)
	if err != nil {
		return 0, err
	}
	if domain.HasAnyTag(sub.Tags, []string{tag}) {
		tags := domain.RemoveTags(sub.Tags, []string{tag})
		if err := s.Update(ctx, sub.SubscriberID, Patch{Tags: &tags}); err != nil {
			return 0, err
		}
	}
	return s.queue.PurgeByTagReason(ctx, sub.SubscriberID, []string{tag}, queue.PurgeTagRemoval)
}

// ChangeEmail moves a subscriber to a new address and rewrites pending
// snapshots.
func (s *Service) ChangeEmail(ctx context.Context, subscriberID, email string) error {
	if err := ValidateSubscriberID(subscriberID); err != nil {
		return err
	}
	if err := ValidateEmail(email); err != nil {
		return err
	}
	sub, err := s.Get(ctx, subscriberID)
	if err != nil {
		return err
	}

	email = strings.TrimSpace(email)
	canonical := domain.CanonicalEmail(email)
	if canonical == sub.Email {
		return nil
	}
	display := ""
	if email != canonical {
		display = email
	}
	if err := s.repo.ChangeEmail(ctx, subscriberID, sub.Email, canonical, display); err != nil {
		return classify(err, "change subscriber email")
	}

	sub.Email = canonical
	sub.DisplayEmail = display
	if _, err := s.queue.PropagateSnapshot(ctx, sub); err != nil {
		return err
	}
	return nil
}

// UnsubscribeAll unsubscribes a subscriber from everything and purges its
// pending entries. A non-empty reason is stamped with the current time.
func (s *Service) UnsubscribeAll(ctx context.Context, subscriberID, reason string) (int, error) {
	unsubscribed := true
	p := Patch{Unsubscribed: &unsubscribed}
	purgeReason := queue.PurgeUnsubscribe
	if reason != "" {
		now := s.opts.Now().UnixMilli()
		p.UnsubscribeReason = &reason
		p.UnsubscribeTimestamp = &now
		switch reason {
		case domain.ReasonComplaint:
			purgeReason = queue.PurgeComplaint
		case domain.ReasonBouncePermanent:
			purgeReason = queue.PurgeBounce
		}
	}
	if err := s.Update(ctx, subscriberID, p); err != nil {
		return 0, err
	}
	return s.queue.PurgePending(ctx, subscriberID, purgeReason)
}

// Unsubscribe is the admin unsubscribe-by-email operation.
func (s *Service) Unsubscribe(ctx context.Context, email string) error {
	if err := ValidateEmail(email); err != nil {
		return errs.Validationf("Bad request: %s", errs.PublicMessage(err))
	}
	sub, err := s.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	_, err = s.UnsubscribeAll(ctx, sub.SubscriberID, "")
	return err
}

// Delete purges a subscriber's pending entries and removes it.
func (s *Service) Delete(ctx context.Context, subscriberID string) error {
	if err := ValidateSubscriberID(subscriberID); err != nil {
		return err
	}
	sub, err := s.Get(ctx, subscriberID)
	if err != nil {
		return err
	}
	if _, err := s.queue.PurgePending(ctx, subscriberID, queue.PurgeDelete); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, subscriberID, sub.Email); err != nil {
		return errs.Transient(err, "delete subscriber")
	}
	logger.Info("subscriber deleted", "subscriberId", subscriberID)
	return nil
}

// Confirm marks the subscriber confirmed and subscribed, then enrolls it
// in every autoresponder triggered by confirmation. Confirming an already
// confirmed, subscribed subscriber does nothing.
func (s *Service) Confirm(ctx context.Context, subscriberID string) error {
	if err := ValidateSubscriberID(subscriberID); err != nil {
		return errs.Validation("Bad request")
	}
	sub, err := s.Get(ctx, subscriberID)
	if err != nil {
		return err
	}
	if sub.Confirmed.Confirmed && !sub.Unsubscribed {
		return nil
	}

	now := s.opts.Now()
	confirmed := domain.Confirmed(true)
	unsubscribed := false
	ts := now.UnixMilli()
	p := Patch{Confirmed: &confirmed, Unsubscribed: &unsubscribed, ConfirmTimestamp: &ts}
	if err := s.Update(ctx, subscriberID, p); err != nil {
		return err
	}
	p.Apply(sub)

	ars, err := s.settings.TriggeredAutoresponders(ctx, domain.TriggerSubscriberConfirmed)
	if err != nil {
		return err
	}
	var items []domain.QueueItem
	for _, a := range ars {
		start, ok := a.Step(domain.StartStep)
		if !ok || start.Type != domain.TypeSendEmail || start.TemplateID == "" {
			continue
		}
		payload := domain.Payload{Type: start.Type, TemplateID: start.TemplateID}
		link := scheduling.Enrollment{AutoresponderID: a.AutoresponderID, Step: domain.StartStep}
		items = append(items, s.queue.Engine().Schedule(payload, now, sub, link))
	}
	if len(items) == 0 {
		return nil
	}
	return s.queue.EnqueueAll(ctx, items)
}

// SubscriberRef identifies a subscriber by id or by email.
type SubscriberRef struct {
	SubscriberID string `json:"subscriberId,omitempty"`
	Email        string `json:"email,omitempty"`
}

// TriggerAutoresponder enrolls a subscriber explicitly. Unlike enrollment
// from the reconciler, a missing autoresponder or step is an error.
func (s *Service) TriggerAutoresponder(ctx context.Context, ref SubscriberRef, t AutoresponderTrigger) error {
	if !triggerIDPattern.MatchString(t.AutoresponderID) {
		return errs.Validation(`"triggerId" must be alphanumeric`)
	}
	step, err := ParseStep(t.Step)
	if err != nil {
		return err
	}

	var sub *domain.Subscriber
	switch {
	case ref.SubscriberID != "":
		if err := ValidateSubscriberID(ref.SubscriberID); err != nil {
			return err
		}
		sub, err = s.Get(ctx, ref.SubscriberID)
	case ref.Email != "":
		if err := ValidateEmail(ref.Email); err != nil {
			return err
		}
		sub, err = s.GetByEmail(ctx, ref.Email)
	default:
		return errs.Validation(`"value" must contain at least one of [email, subscriberId]`)
	}
	if err != nil {
		return err
	}
	return s.enroll(ctx, sub, t.AutoresponderID, step, true)
}

// enroll queues the named step of an autoresponder for sub. A missing
// autoresponder or step is logged and skipped unless strict.
func (s *Service) enroll(ctx context.Context, sub *domain.Subscriber, autoresponderID, step string, strict bool) error {
	a, err := s.settings.Autoresponder(ctx, autoresponderID)
	if errs.Is(err, settings.ErrAutoresponderNotFound) {
		return s.missingStep(autoresponderID, step, strict)
	}
	if err != nil {
		return err
	}
	payload, ok := a.Step(step)
	if !ok {
		return s.missingStep(autoresponderID, step, strict)
	}
	link := scheduling.Enrollment{AutoresponderID: a.AutoresponderID, Step: step}
	_, err = s.queue.Enqueue(ctx, payload, s.opts.Now(), sub, link)
	return err
}

func (s *Service) missingStep(autoresponderID, step string, strict bool) error {
	if strict {
		return ErrUnknownAutoresponder
	}
	logger.Warn("autoresponder or step not found, skipping enrollment",
		"autoresponderId", autoresponderID, "step", step)
	return nil
}

// confirmLink is the public confirmation URL for a subscriber.
func (s *Service) confirmLink(sub *domain.Subscriber) string {
	return strings.TrimRight(s.opts.APIURL, "/") + "/subscriber/confirm?t=" + sub.SubscriberID
}

// sendConfirmation sends the stored confirmation template.
func (s *Service) sendConfirmation(ctx context.Context, sub *domain.Subscriber, templateID string) error {
	if templateID == "" {
		templateID = s.opts.ConfirmationTemplate
	}
	msg := &domain.EmailMessage{
		To:         sub.SendAddress(),
		From:       s.opts.SourceEmail,
		TemplateID: templateID,
		TemplateData: map[string]any{
			"subscriber":       sub,
			"confirmationLink": s.confirmLink(sub),
		},
		Tags: map[string]string{domain.TagTemplateID: templateID},
	}
	return s.send(ctx, "confirmation", msg)
}

// sendBuiltInConfirmation sends the built-in confirmation content.
func (s *Service) sendBuiltInConfirmation(ctx context.Context, sub *domain.Subscriber) error {
	c := mailing.Confirmation{
		APIURL:       strings.TrimRight(s.opts.APIURL, "/"),
		SubscriberID: sub.SubscriberID,
		Email:        sub.SendAddress(),
	}
	if s.opts.DefaultList != "" {
		if l, err := s.settings.ListByID(ctx, s.opts.DefaultList); err == nil {
			c.ListName = l.Name
		}
	}
	content, err := s.templates.ConfirmationContent(c)
	if err != nil {
		return errs.Wrap(err, "render confirmation")
	}
	msg := &domain.EmailMessage{
		To:          sub.SendAddress(),
		From:        s.opts.SourceEmail,
		Subject:     content.Subject,
		HTMLContent: content.HTML,
		TextContent: content.Text,
	}
	return s.send(ctx, "confirmation", msg)
}

func (s *Service) send(ctx context.Context, kind string, msg *domain.EmailMessage) error {
	if _, err := s.sender.Send(ctx, msg); err != nil {
		metrics.EmailsSent.WithLabelValues(kind, "error").Inc()
		return errs.Wrapf(err, "send %s email", kind)
	}
	metrics.EmailsSent.WithLabelValues(kind, "ok").Inc()
	return nil
}

// classify passes through sentinel errors and marks everything else as a
// store failure.
func classify(err error, msg string) error {
	if errs.Is(err, ErrNotFound) || errs.Is(err, ErrEmailTaken) {
		return err
	}
	return errs.Transient(err, msg)
}
