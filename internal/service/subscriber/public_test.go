package subscriber_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/listflow/internal/domain"
	"github.com/ignite/listflow/internal/service/subscriber"
)

func TestPublicSubscribe_ResendWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.svc.PublicSubscribe(ctx, "New@Example.com")
	require.NoError(t, err)
	assert.Equal(t, subscriber.OutcomeAdded, out)
	require.Equal(t, 1, f.sender.count())

	sub, err := f.svc.GetByEmail(ctx, "new@example.com")
	require.NoError(t, err)
	assert.Equal(t, "New@Example.com", sub.DisplayEmail)
	assert.Equal(t, []string{"list-default"}, sub.Tags)
	assert.False(t, sub.Confirmed.Confirmed)

	f.now = testNow.Add(time.Hour)
	out, err = f.svc.PublicSubscribe(ctx, "new@example.com")
	require.NoError(t, err)
	assert.Equal(t, subscriber.OutcomeUpdated, out)
	assert.Equal(t, 1, f.sender.count(), "inside the resend window")

	f.now = testNow.Add(subscriber.ConfirmationResendInterval + time.Minute)
	_, err = f.svc.PublicSubscribe(ctx, "new@example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, f.sender.count())

	sub, err = f.svc.GetByEmail(ctx, "new@example.com")
	require.NoError(t, err)
	assert.Equal(t, f.now.UnixMilli(), sub.LastConfirmation)
	assert.Equal(t, 1, f.subs.Len())
}

func TestPublicSubscribe_ConfirmedAndUnsubscribed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.PublicSubscribe(ctx, "a@example.com")
	require.NoError(t, err)
	sub, err := f.svc.GetByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	require.NoError(t, f.svc.Confirm(ctx, sub.SubscriberID))

	f.now = testNow.Add(24 * time.Hour)
	_, err = f.svc.PublicSubscribe(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, f.sender.count(), "confirmed subscribers get nothing")

	require.NoError(t, f.svc.Unsubscribe(ctx, "a@example.com"))
	_, err = f.svc.PublicSubscribe(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, f.sender.count(), "unsubscribed subscribers always get it")
}

func TestPublicSubscribe_BlockedDomain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.settings.PutBlockedDomains(ctx, []string{"blocked.example"}))

	out, err := f.svc.PublicSubscribe(ctx, "x@blocked.example")
	require.NoError(t, err)
	assert.Equal(t, subscriber.OutcomeSuppressed, out)
	assert.Zero(t, f.sender.count())
	assert.Zero(t, f.subs.Len())
}

func TestPublicSubscribe_InvalidEmail(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.PublicSubscribe(context.Background(), "not-an-email")
	assert.Error(t, err)
}

func TestPublicSubscribe_ConfirmationNamesDefaultList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.settings.PutList(ctx, domain.List{ID: "list-default", Name: "Weekly"})
	require.NoError(t, err)

	_, err = f.svc.PublicSubscribe(ctx, "reader@example.com")
	require.NoError(t, err)
	sub, err := f.svc.GetByEmail(ctx, "reader@example.com")
	require.NoError(t, err)

	require.Equal(t, 1, f.sender.count())
	msg := f.sender.sent[0]
	assert.Equal(t, "Confirm your subscription", msg.Subject)
	assert.Contains(t, msg.TextContent, "re***@example.com to Weekly")
	assert.Contains(t, msg.HTMLContent, `href="https://api.example.com/subscriber/confirm?t=`+sub.SubscriberID+`"`)
}
