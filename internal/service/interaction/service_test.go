package interaction_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/listflow/internal/domain"
	"github.com/ignite/listflow/internal/mailing"
	"github.com/ignite/listflow/internal/repository/memory"
	"github.com/ignite/listflow/internal/service/interaction"
	"github.com/ignite/listflow/internal/service/queue"
	"github.com/ignite/listflow/internal/service/scheduling"
	"github.com/ignite/listflow/internal/service/settings"
	"github.com/ignite/listflow/internal/service/subscriber"
)

type nopSender struct{}

func (nopSender) Send(context.Context, *domain.EmailMessage) (*domain.SendResult, error) {
	return &domain.SendResult{}, nil
}

var now = time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *interaction.Service
	subs     *subscriber.Service
	settings *settings.Service
	items    *memory.QueueRepository
}

func newFixture(t *testing.T, autoConfirm ...string) *fixture {
	t.Helper()
	clock := func() time.Time { return now }
	f := &fixture{items: memory.NewQueueRepository()}
	f.settings = settings.NewService(memory.NewSettingsRepository(), autoConfirm)
	q := queue.NewService(f.items, scheduling.NewEngine(), queue.Options{})
	f.subs = subscriber.NewService(memory.NewSubscriberRepository(), f.settings, q, nopSender{}, mailing.NewTemplateService(), subscriber.Options{Now: clock})
	f.svc = interaction.NewService(f.subs, f.settings, q, clock)
	return f
}

func (f *fixture) seed(t *testing.T, email string, tags ...string) *domain.Subscriber {
	t.Helper()
	res, err := f.subs.Upsert(context.Background(), subscriber.Input{Email: email, Tags: tags}, nil, nil)
	require.NoError(t, err)
	return res.Subscriber
}

func tags(kv ...string) map[string][]string {
	out := make(map[string][]string)
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i]] = []string{kv[i+1]}
	}
	return out
}

func TestClick_StampsQueueItemByTransportKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.seed(t, "a@example.com")
	sent := &domain.QueueItem{QueuePlacement: "2024-01-02", RunAtModified: "1700000000123.456", SubscriberID: sub.SubscriberID}
	require.NoError(t, f.items.Put(ctx, sent))

	err := f.svc.Handle(ctx, &domain.InteractionEvent{
		Type:      domain.EventClick,
		Recipient: "a@example.com",
		Link:      "https://example.com/article",
		Tags:      tags(domain.TagDateStamp, "2024-01-02", domain.TagRunAtModified, "1700000000123_456"),
	})
	require.NoError(t, err)

	items := f.items.Items()
	require.Len(t, items, 1)
	assert.Equal(t, now.UnixMilli(), items[0].Click)
	assert.Zero(t, items[0].Open)

	got, _ := f.subs.Get(ctx, sub.SubscriberID)
	assert.Equal(t, now.UnixMilli(), got.LastClick)
	assert.Equal(t, now.UnixMilli(), got.LastOpenOrClick)
	assert.Zero(t, got.LastOpen)
}

func TestClick_MissingQueueItemIsNoop(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "a@example.com")
	err := f.svc.Handle(context.Background(), &domain.InteractionEvent{
		Type:      domain.EventClick,
		Recipient: "a@example.com",
		Tags:      tags(domain.TagDateStamp, "2024-01-02", domain.TagRunAtModified, "1700000000123_456"),
	})
	assert.NoError(t, err)
	assert.Empty(t, f.items.Items())
}

func TestOpen_AddTagDirective(t *testing.T) {
	f := newFixture(t, "engaged")
	ctx := context.Background()
	sub := f.seed(t, "a@example.com", "list-a")

	err := f.svc.Handle(ctx, &domain.InteractionEvent{
		Type:      domain.EventOpen,
		Recipient: "a@example.com",
		Tags:      tags(domain.TagInteractionOpen, "add-tag_engaged", domain.TagInteractionClick, "add-tag_clicker"),
	})
	require.NoError(t, err)

	got, _ := f.subs.Get(ctx, sub.SubscriberID)
	assert.Equal(t, []string{"list-a", "engaged", interaction.ActiveTag}, got.Tags)
	assert.Equal(t, now.UnixMilli(), got.LastOpen)
	assert.False(t, got.Confirmed.Confirmed, "opens never auto-confirm")
}

func TestClick_AutoConfirm(t *testing.T) {
	f := newFixture(t, "engaged")
	ctx := context.Background()
	sub := f.seed(t, "a@example.com")

	err := f.svc.Handle(ctx, &domain.InteractionEvent{
		Type:      domain.EventClick,
		Recipient: "a@example.com",
		Tags:      tags(domain.TagInteractionClick, "add-tag_engaged"),
	})
	require.NoError(t, err)

	got, _ := f.subs.Get(ctx, sub.SubscriberID)
	assert.True(t, got.Confirmed.Confirmed)
	assert.Equal(t, domain.ConfirmedAt(now), got.Confirmed)
}

func TestClick_NotOnAllowListDoesNotConfirm(t *testing.T) {
	f := newFixture(t, "engaged")
	ctx := context.Background()
	sub := f.seed(t, "a@example.com")
	require.NoError(t, f.settings.PutAutoConfirmTags(ctx, "other"))

	err := f.svc.Handle(ctx, &domain.InteractionEvent{
		Type:      domain.EventClick,
		Recipient: "a@example.com",
		Tags:      tags(domain.TagInteractionClick, "add-tag_engaged"),
	})
	require.NoError(t, err)
	got, _ := f.subs.Get(ctx, sub.SubscriberID)
	assert.False(t, got.Confirmed.Confirmed)
	assert.Contains(t, got.Tags, "engaged")
}

func TestClick_UnsubscribeLinkIgnored(t *testing.T) {
	f := newFixture(t, "engaged")
	ctx := context.Background()
	sub := f.seed(t, "a@example.com")

	err := f.svc.Handle(ctx, &domain.InteractionEvent{
		Type:      domain.EventClick,
		Recipient: "a@example.com",
		Link:      "https://api.example.com/subscriber/unsubscribe?email=a@example.com",
		Tags:      tags(domain.TagInteractionClick, "add-tag_engaged"),
	})
	require.NoError(t, err)
	got, _ := f.subs.Get(ctx, sub.SubscriberID)
	assert.Empty(t, got.Tags)
	assert.Zero(t, got.LastClick)
}

func TestUnknownSubscriberIsDropped(t *testing.T) {
	f := newFixture(t)
	err := f.svc.Handle(context.Background(), &domain.InteractionEvent{Type: domain.EventOpen, Recipient: "ghost@example.com"})
	assert.NoError(t, err)
	err = f.svc.Handle(context.Background(), &domain.InteractionEvent{Type: domain.EventComplaint, Recipient: "ghost@example.com"})
	assert.NoError(t, err)
}

func TestBounceAndComplaint(t *testing.T) {
	tests := []struct {
		name       string
		ev         domain.InteractionEvent
		wantUnsub  bool
		wantReason string
	}{
		{"permanent bounce", domain.InteractionEvent{Type: domain.EventBounce, BounceType: domain.BouncePermanent}, true, domain.ReasonBouncePermanent},
		{"transient bounce", domain.InteractionEvent{Type: domain.EventBounce, BounceType: "Transient"}, false, ""},
		{"complaint", domain.InteractionEvent{Type: domain.EventComplaint}, true, domain.ReasonComplaint},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			sub := f.seed(t, "a@example.com")
			q := queue.NewService(f.items, scheduling.NewEngine(), queue.Options{})
			for i := 0; i < 30; i++ {
				_, err := q.Enqueue(ctx, domain.Payload{TemplateID: "T"}, now, sub, scheduling.Enrollment{})
				require.NoError(t, err)
			}

			ev := tt.ev
			ev.Recipient = "A@example.com"
			require.NoError(t, f.svc.Handle(ctx, &ev))

			got, _ := f.subs.Get(ctx, sub.SubscriberID)
			assert.Equal(t, tt.wantUnsub, got.Unsubscribed)
			assert.Equal(t, tt.wantReason, got.UnsubscribeReason)
			if tt.wantUnsub {
				assert.Empty(t, f.items.Items())
				assert.Equal(t, now.UnixMilli(), got.UnsubscribeTimestamp)
			} else {
				assert.Len(t, f.items.Items(), 30)
			}
		})
	}
}

func TestComplaint_AlreadyUnsubscribedIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.seed(t, "a@example.com")
	_, err := f.subs.UnsubscribeAll(ctx, sub.SubscriberID, "")
	require.NoError(t, err)

	require.NoError(t, f.svc.Handle(ctx, &domain.InteractionEvent{Type: domain.EventComplaint, Recipient: "a@example.com"}))
	got, _ := f.subs.Get(ctx, sub.SubscriberID)
	assert.Empty(t, got.UnsubscribeReason, "reason is not overwritten")
}
