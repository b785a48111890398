package interaction

import (
	"context"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ignite/listflow/internal/domain"
	"github.com/ignite/listflow/internal/metrics"
	"github.com/ignite/listflow/internal/pkg/errs"
	"github.com/ignite/listflow/internal/pkg/logger"
	"github.com/ignite/listflow/internal/service/queue"
	"github.com/ignite/listflow/internal/service/settings"
	"github.com/ignite/listflow/internal/service/subscriber"
)

// ActiveTag is added alongside every add-tag directive.
const ActiveTag = "active"

var addTagPattern = regexp.MustCompile(`^add-tag_([a-zA-Z0-9_-]{1,248})$`)

// Result labels recorded in metrics.
const (
	resultApplied = "applied"
	resultIgnored = "ignored"
	resultUnknown = "unknown-subscriber"
	resultError   = "error"
)

// Service implements the correlator. It is safe for concurrent use.
type Service struct {
	subscribers *subscriber.Service
	settings    *settings.Service
	queue       *queue.Service
	now         func() time.Time
}

// NewService creates a correlator.
func NewService(subs *subscriber.Service, st *settings.Service, q *queue.Service, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{subscribers: subs, settings: st, queue: q, now: now}
}

// Handle dispatches one event. Events for unknown subscribers are logged
// and dropped.
func (s *Service) Handle(ctx context.Context, ev *domain.InteractionEvent) error {
	var err error
	result := resultApplied
	switch ev.Type {
	case domain.EventOpen, domain.EventClick:
		result, err = s.engagement(ctx, ev)
	case domain.EventBounce:
		if ev.BounceType != domain.BouncePermanent {
			result = resultIgnored
			break
		}
		result, err = s.unsubscribe(ctx, ev.Recipient, domain.ReasonBouncePermanent)
	case domain.EventComplaint:
		result, err = s.unsubscribe(ctx, ev.Recipient, domain.ReasonComplaint)
	default:
		result = resultIgnored
	}
	if err != nil {
		result = resultError
	}
	metrics.Interactions.WithLabelValues(string(ev.Type), result).Inc()
	return err
}

// IsUnsubscribeLink reports whether a clicked link leads to an unsubscribe
// page. Such clicks are not engagement.
func IsUnsubscribeLink(link string) bool {
	return strings.Contains(link, "unsubscribe")
}

// engagement handles opens and clicks. The subscriber update and the
// queue entry stamp run concurrently.
func (s *Service) engagement(ctx context.Context, ev *domain.InteractionEvent) (string, error) {
	if ev.Type == domain.EventClick && IsUnsubscribeLink(ev.Link) {
		return resultIgnored, nil
	}
	now := s.now()
	result := resultApplied

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		found, err := s.stampSubscriber(gctx, ev, now)
		if !found {
			result = resultUnknown
		}
		return err
	})
	g.Go(func() error {
		return s.stampQueueItem(gctx, ev, now)
	})
	if err := g.Wait(); err != nil {
		return resultError, err
	}
	return result, nil
}

// directive returns the send-time trigger tag for the event type.
func directive(ev *domain.InteractionEvent) string {
	if ev.Type == domain.EventClick {
		return ev.Tag(domain.TagInteractionClick)
	}
	return ev.Tag(domain.TagInteractionOpen)
}

func (s *Service) stampSubscriber(ctx context.Context, ev *domain.InteractionEvent, now time.Time) (bool, error) {
	sub, err := s.subscribers.GetByEmail(ctx, ev.Recipient)
	if errs.Is(err, subscriber.ErrNotFound) {
		logger.Warn("interaction for unknown subscriber", "email", ev.Recipient, "type", string(ev.Type))
		return false, nil
	}
	if err != nil {
		return true, err
	}

	ts := now.UnixMilli()
	p := subscriber.Patch{LastOpenOrClick: &ts}
	if ev.Type == domain.EventClick {
		p.LastClick = &ts
	} else {
		p.LastOpen = &ts
	}

	if m := addTagPattern.FindStringSubmatch(directive(ev)); m != nil {
		tag := m[1]
		tags := domain.MergeTags(sub.Tags, []string{tag, ActiveTag})
		p.Tags = &tags
		if ev.Type == domain.EventClick && !sub.Confirmed.Confirmed {
			autoConfirm, err := s.settings.AutoConfirmTags(ctx)
			if err != nil {
				return true, err
			}
			if domain.HasAnyTag(autoConfirm, []string{tag}) {
				c := domain.ConfirmedAt(now)
				p.Confirmed = &c
				logger.Info("subscriber auto-confirmed by click", "subscriberId", sub.SubscriberID, "tag", tag)
			}
		}
	}
	return true, s.subscribers.Update(ctx, sub.SubscriberID, p)
}

// stampQueueItem records the interaction on the originating entry when
// the message carries its key.
func (s *Service) stampQueueItem(ctx context.Context, ev *domain.InteractionEvent, now time.Time) error {
	dateStamp, runAtModified := ev.Tag(domain.TagDateStamp), ev.Tag(domain.TagRunAtModified)
	if dateStamp == "" || runAtModified == "" {
		return nil
	}
	key, err := domain.ParseTransportKey(dateStamp, runAtModified)
	if err != nil {
		logger.Debug("ignoring malformed queue key tags", "error", err)
		return nil
	}
	field := queue.FieldOpen
	if ev.Type == domain.EventClick {
		field = queue.FieldClick
	}
	return s.queue.RecordInteraction(ctx, key, field, now)
}

// unsubscribe handles permanent bounces and complaints.
func (s *Service) unsubscribe(ctx context.Context, email, reason string) (string, error) {
	if email == "" {
		return resultError, errs.New("event carries no recipient")
	}
	sub, err := s.subscribers.GetByEmail(ctx, email)
	if errs.Is(err, subscriber.ErrNotFound) {
		logger.Warn("delivery failure for unknown subscriber", "email", email, "reason", reason)
		return resultUnknown, nil
	}
	if err != nil {
		return resultError, err
	}
	if sub.Unsubscribed {
		return resultIgnored, nil
	}
	purged, err := s.subscribers.UnsubscribeAll(ctx, sub.SubscriberID, reason)
	if err != nil {
		return resultError, err
	}
	logger.Info("subscriber unsubscribed by delivery event", "subscriberId", sub.SubscriberID, "reason", reason, "purged", purged)
	return resultApplied, nil
}
