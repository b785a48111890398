package subscriber

import (
	"context"
	"strings"

	"github.com/ignite/listflow/internal/domain"
	"github.com/ignite/listflow/internal/metrics"
	"github.com/ignite/listflow/internal/pkg/errs"
	"github.com/ignite/listflow/internal/pkg/logger"
)

// Outcome describes what Upsert did.
type Outcome string

const (
	OutcomeAdded      Outcome = "Added"
	OutcomeUpdated    Outcome = "Updated"
	OutcomeSuppressed Outcome = "Suppressed"
)

// Result is returned by Upsert.
type Result struct {
	Outcome    Outcome
	Subscriber *domain.Subscriber
	// Triggered reports whether the requested trigger and autoresponders ran.
	Triggered bool
}

// Upsert creates or updates the subscriber holding in.Email and runs the
// requested trigger when the subscriber is new or gained a tag. Requests
// for blocked domains succeed without side effects.
func (s *Service) Upsert(ctx context.Context, in Input, trig Trigger, autoresponderIDs []string) (*Result, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateAutoresponderIDs(autoresponderIDs); err != nil {
		return nil, err
	}
	if trig == nil {
		trig = NoTrigger{}
	}

	blocked, err := s.settings.IsBlocked(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if blocked {
		logger.Warn("suppressing subscriber mutation for blocked email domain", "email", in.Email)
		metrics.Suppressed.Inc()
		return &Result{Outcome: OutcomeSuppressed}, nil
	}

	existing, err := s.repo.GetByEmail(ctx, domain.CanonicalEmail(in.Email))
	switch {
	case errs.Is(err, ErrNotFound):
		res, err := s.create(ctx, in, trig, autoresponderIDs)
		if !errs.Is(err, ErrEmailTaken) {
			return res, err
		}
		// Lost a concurrent create for the same address.
		logger.Info("concurrent create detected, updating existing subscriber", "email", in.Email)
		existing, err = s.repo.GetByEmail(ctx, domain.CanonicalEmail(in.Email))
		if err != nil {
			return nil, classify(err, "reload subscriber after create race")
		}
	case err != nil:
		return nil, classify(err, "look up subscriber")
	}
	return s.update(ctx, existing, in, trig, autoresponderIDs)
}

func (s *Service) create(ctx context.Context, in Input, trig Trigger, autoresponderIDs []string) (*Result, error) {
	email := strings.TrimSpace(in.Email)
	sub := &domain.Subscriber{
		SubscriberID:           s.opts.NewID(),
		Email:                  domain.CanonicalEmail(email),
		Tags:                   domain.MergeTags(nil, in.Tags),
		Timezone:               in.Timezone,
		DeliveryTimePreference: in.DeliveryTimePreference,
		Properties:             in.Properties,
		Joined:                 s.opts.Now().UnixMilli(),
		ConfirmationToken:      s.opts.NewID(),
	}
	if email != sub.Email {
		sub.DisplayEmail = email
	}
	if in.Confirmed != nil {
		sub.Confirmed = *in.Confirmed
	}
	if in.Unsubscribed != nil {
		sub.Unsubscribed = *in.Unsubscribed
	}

	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, classify(err, "create subscriber")
	}
	logger.Info("subscriber created", "subscriberId", sub.SubscriberID)

	if err := s.runTriggers(ctx, sub, trig, autoresponderIDs); err != nil {
		return nil, err
	}
	return &Result{Outcome: OutcomeAdded, Subscriber: sub, Triggered: true}, nil
}

func (s *Service) update(ctx context.Context, existing *domain.Subscriber, in Input, trig Trigger, autoresponderIDs []string) (*Result, error) {
	hasAll := domain.HasAllTags(existing.Tags, in.Tags)
	updated := *existing
	if !hasAll {
		updated.Tags = domain.MergeTags(existing.Tags, in.Tags)
	}
	if email := strings.TrimSpace(in.Email); email != existing.Email && domain.CanonicalEmail(email) == existing.Email {
		updated.DisplayEmail = email
	}
	if in.Timezone != "" {
		updated.Timezone = in.Timezone
	}
	if in.DeliveryTimePreference != nil {
		pref := *in.DeliveryTimePreference
		updated.DeliveryTimePreference = &pref
	}
	if len(in.Properties) > 0 {
		props := make(map[string]string, len(existing.Properties)+len(in.Properties))
		for k, v := range existing.Properties {
			props[k] = v
		}
		for k, v := range in.Properties {
			props[k] = v
		}
		updated.Properties = props
	}
	if in.Confirmed != nil {
		updated.Confirmed = *in.Confirmed
	}
	if in.Unsubscribed != nil {
		updated.Unsubscribed = *in.Unsubscribed
	}

	if existing.Unsubscribed {
		updated.Unsubscribed = false
		updated.Tags = domain.MergeTags(nil, in.Tags)
		if in.Confirmed == nil {
			updated.Confirmed = domain.Confirmation{}
		}
	}
	if existing.Confirmed.Confirmed && in.Confirmed != nil && in.Confirmed.Confirmed {
		updated.Confirmed = existing.Confirmed
	}

	if err := s.repo.Put(ctx, &updated); err != nil {
		return nil, classify(err, "put subscriber")
	}

	if !hasAll {
		if err := s.runTriggers(ctx, &updated, trig, autoresponderIDs); err != nil {
			return nil, err
		}
	}
	if _, err := s.queue.PropagateSnapshot(ctx, &updated); err != nil {
		return nil, err
	}
	return &Result{Outcome: OutcomeUpdated, Subscriber: &updated, Triggered: !hasAll}, nil
}

// runTriggers applies the requested trigger, then enrolls the extra
// autoresponders at their start step.
func (s *Service) runTriggers(ctx context.Context, sub *domain.Subscriber, trig Trigger, autoresponderIDs []string) error {
	switch t := trig.(type) {
	case ConfirmationTrigger:
		if err := s.sendConfirmation(ctx, sub, t.TemplateID); err != nil {
			return err
		}
	case AutoresponderTrigger:
		if err := s.enroll(ctx, sub, t.AutoresponderID, t.StepOrStart(), false); err != nil {
			return err
		}
	}
	for _, id := range autoresponderIDs {
		if err := s.enroll(ctx, sub, id, domain.StartStep, false); err != nil {
			return err
		}
	}
	return nil
}
