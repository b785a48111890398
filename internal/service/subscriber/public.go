package subscriber

import (
	"context"
	"strings"
	"time"

	"github.com/ignite/listflow/internal/domain"
	"github.com/ignite/listflow/internal/metrics"
	"github.com/ignite/listflow/internal/pkg/errs"
	"github.com/ignite/listflow/internal/pkg/logger"
)

// ConfirmationResendInterval is how long an unconfirmed subscriber waits
// before a repeated public subscribe sends another confirmation.
const ConfirmationResendInterval = 3 * time.Hour

// PublicSubscribe handles the self-service subscribe form. New addresses
// are created unconfirmed and sent the built-in confirmation email.
// Existing subscribers only get the confirmation again when they are
// unsubscribed or have not been sent one recently.
func (s *Service) PublicSubscribe(ctx context.Context, email string) (Outcome, error) {
	if err := ValidateEmail(email); err != nil {
		return "", err
	}
	email = strings.TrimSpace(email)

	blocked, err := s.settings.IsBlocked(ctx, email)
	if err != nil {
		return "", err
	}
	if blocked {
		logger.Warn("suppressing public subscribe for blocked email domain", "email", email)
		metrics.Suppressed.Inc()
		return OutcomeSuppressed, nil
	}

	canonical := domain.CanonicalEmail(email)
	existing, err := s.repo.GetByEmail(ctx, canonical)
	if errs.Is(err, ErrNotFound) {
		err = s.publicCreate(ctx, email)
		if !errs.Is(err, ErrEmailTaken) {
			if err != nil {
				return "", err
			}
			return OutcomeAdded, nil
		}
		existing, err = s.repo.GetByEmail(ctx, canonical)
	}
	if err != nil {
		return "", classify(err, "look up subscriber")
	}

	if s.needsConfirmation(existing) {
		if err := s.resendConfirmation(ctx, existing); err != nil {
			return "", err
		}
	}
	return OutcomeUpdated, nil
}

func (s *Service) publicCreate(ctx context.Context, email string) error {
	now := s.opts.Now()
	sub := &domain.Subscriber{
		SubscriberID:      s.opts.NewID(),
		Email:             domain.CanonicalEmail(email),
		Tags:              []string{},
		Joined:            now.UnixMilli(),
		ConfirmationToken: s.opts.NewID(),
		LastConfirmation:  now.UnixMilli(),
	}
	if email != sub.Email {
		sub.DisplayEmail = email
	}
	if s.opts.DefaultList != "" {
		sub.Tags = append(sub.Tags, s.opts.DefaultList)
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		return classify(err, "create subscriber")
	}
	logger.Info("public subscriber created", "subscriberId", sub.SubscriberID)
	return s.sendBuiltInConfirmation(ctx, sub)
}

func (s *Service) needsConfirmation(sub *domain.Subscriber) bool {
	if sub.Unsubscribed {
		return true
	}
	if sub.Confirmed.Confirmed {
		return false
	}
	if sub.LastConfirmation == 0 {
		return true
	}
	return s.opts.Now().Sub(time.UnixMilli(sub.LastConfirmation)) > ConfirmationResendInterval
}

func (s *Service) resendConfirmation(ctx context.Context, sub *domain.Subscriber) error {
	if err := s.sendBuiltInConfirmation(ctx, sub); err != nil {
		return err
	}
	ts := s.opts.Now().UnixMilli()
	return s.Update(ctx, sub.SubscriberID, Patch{LastConfirmation: &ts})
}
