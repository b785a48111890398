package unsubscribe_test

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/listflow/internal/domain"
	"github.com/ignite/listflow/internal/mailing"
	"github.com/ignite/listflow/internal/pkg/errs"
	"github.com/ignite/listflow/internal/repository/memory"
	"github.com/ignite/listflow/internal/service/queue"
	"github.com/ignite/listflow/internal/service/scheduling"
	"github.com/ignite/listflow/internal/service/settings"
	"github.com/ignite/listflow/internal/service/subscriber"
	"github.com/ignite/listflow/internal/service/unsubscribe"
)

type nopSender struct{}

func (nopSender) Send(context.Context, *domain.EmailMessage) (*domain.SendResult, error) {
	return &domain.SendResult{}, nil
}

type fixture struct {
	svc      *unsubscribe.Service
	subs     *subscriber.Service
	settings *settings.Service
	queue    *queue.Service
	items    *memory.QueueRepository
	now      time.Time
	tokens   int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), items: memory.NewQueueRepository()}
	clock := func() time.Time { return f.now }
	f.settings = settings.NewService(memory.NewSettingsRepository(), nil)
	f.queue = queue.NewService(f.items, scheduling.NewEngine(), queue.Options{})
	f.subs = subscriber.NewService(memory.NewSubscriberRepository(), f.settings, f.queue, nopSender{}, mailing.NewTemplateService(), subscriber.Options{Now: clock})
	f.svc = unsubscribe.NewService(f.subs, f.settings, f.queue, unsubscribe.Options{
		PageURL: "https://example.com/unsubscribe",
		APIURL:  "https://api.example.com/",
		Now:     clock,
		NewToken: func() (string, error) {
			f.tokens++
			return strings.Repeat(string(rune('a'+f.tokens-1)), 12), nil
		},
	})
	return f
}

func (f *fixture) seed(t *testing.T, email string, tags []string) *domain.Subscriber {
	t.Helper()
	ctx := context.Background()
	res, err := f.subs.Upsert(ctx, subscriber.Input{Email: email, Tags: tags}, nil, nil)
	require.NoError(t, err)
	for _, tag := range tags {
		_, err := f.queue.Enqueue(ctx, domain.Payload{TemplateID: "T-" + tag, TagReason: []string{tag}}, f.now, res.Subscriber, scheduling.Enrollment{})
		require.NoError(t, err)
	}
	return res.Subscriber
}

func decodeParams(t *testing.T, redirect string) unsubscribe.PageParams {
	t.Helper()
	u, err := url.Parse(redirect)
	require.NoError(t, err)
	var p unsubscribe.PageParams
	require.NoError(t, json.Unmarshal([]byte(u.Query().Get("p")), &p))
	return p
}

func TestNewToken(t *testing.T) {
	tok, err := unsubscribe.NewToken()
	require.NoError(t, err)
	assert.Regexp(t, `^[0-9a-f]{12}$`, tok)
}

func TestPageRedirect_IssuesAndReusesToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.settings.PutList(ctx, domain.List{ID: "list-news", Name: "News"})
	require.NoError(t, err)
	_, err = f.settings.PutList(ctx, domain.List{ID: "list-other", Name: "Other"})
	require.NoError(t, err)
	f.seed(t, "Ann@Example.com", []string{"list-news", "vip"})

	loc := f.svc.PageRedirect(ctx, "ann@example.com")
	require.True(t, strings.HasPrefix(loc, "https://example.com/unsubscribe?p="))
	p := decodeParams(t, loc)
	assert.Equal(t, "Ann@Example.com", p.Email)
	assert.Equal(t, "aaaaaaaaaaaa", p.UnsubscribeTokenValue)
	assert.Equal(t, "https://api.example.com/", p.API)
	require.Len(t, p.Lists, 1)
	assert.Equal(t, "list-news", p.Lists[0].ID)

	f.now = f.now.Add(23 * time.Hour)
	p = decodeParams(t, f.svc.PageRedirect(ctx, "ann@example.com"))
	assert.Equal(t, "aaaaaaaaaaaa", p.UnsubscribeTokenValue, "token reused within 24h")

	f.now = f.now.Add(time.Hour)
	p = decodeParams(t, f.svc.PageRedirect(ctx, "ann@example.com"))
	assert.Equal(t, "bbbbbbbbbbbb", p.UnsubscribeTokenValue, "token reissued at 24h")
}

func TestPageRedirect_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	assert.Equal(t, "https://example.com/unsubscribe?error=bad-request", f.svc.PageRedirect(ctx, "not an email"))
	assert.Equal(t, "https://example.com/unsubscribe?error=not-found", f.svc.PageRedirect(ctx, "nobody@example.com"))
}

func TestVerify(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	stored := &domain.UnsubscribeToken{Value: "0123456789ab", Created: now.Add(-47 * time.Hour).UnixMilli()}

	tests := []struct {
		name   string
		stored *domain.UnsubscribeToken
		value  string
		want   error
	}{
		{"valid", stored, "0123456789ab", nil},
		{"mismatch", stored, "ba9876543210", unsubscribe.ErrInvalidToken},
		{"missing", nil, "0123456789ab", unsubscribe.ErrExpiredToken},
		{"expired", &domain.UnsubscribeToken{Value: "0123456789ab", Created: now.Add(-48 * time.Hour).UnixMilli()}, "0123456789ab", unsubscribe.ErrExpiredToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := unsubscribe.Verify(tt.stored, tt.value, now)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errs.Is(err, tt.want))
			assert.Equal(t, 403, errs.StatusCode(err))
		})
	}
}

func TestUnsubscribe_AllEmails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.seed(t, "a@example.com", []string{"list-a", "list-b"})
	p := decodeParams(t, f.svc.PageRedirect(ctx, "a@example.com"))

	err := f.svc.Unsubscribe(ctx, unsubscribe.Request{
		AllEmails: true, Email: "a@example.com", UnsubscribeTokenValue: p.UnsubscribeTokenValue, ListIDs: []string{},
	})
	require.NoError(t, err)

	got, _ := f.subs.Get(ctx, sub.SubscriberID)
	assert.True(t, got.Unsubscribed)
	assert.Empty(t, f.items.Items())
}

func TestUnsubscribe_FromOneList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.seed(t, "a@example.com", []string{"list-a", "list-b"})
	p := decodeParams(t, f.svc.PageRedirect(ctx, "a@example.com"))

	err := f.svc.Unsubscribe(ctx, unsubscribe.Request{
		Email: "a@example.com", UnsubscribeTokenValue: p.UnsubscribeTokenValue, ListIDs: []string{"list-a"},
	})
	require.NoError(t, err)

	got, _ := f.subs.Get(ctx, sub.SubscriberID)
	assert.False(t, got.Unsubscribed)
	assert.Equal(t, []string{"list-b"}, got.Tags)
	items := f.items.Items()
	require.Len(t, items, 1)
	assert.Equal(t, []string{"list-b"}, items[0].TagReason)

	err = f.svc.Unsubscribe(ctx, unsubscribe.Request{
		Email: "a@example.com", UnsubscribeTokenValue: p.UnsubscribeTokenValue, ListIDs: []string{"list-b"},
	})
	require.NoError(t, err)
	got, _ = f.subs.Get(ctx, sub.SubscriberID)
	assert.True(t, got.Unsubscribed, "removing the last tag unsubscribes")
	assert.Empty(t, f.items.Items())
}

func TestUnsubscribe_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.seed(t, "a@example.com", []string{"list-a"})
	_ = f.svc.PageRedirect(ctx, "a@example.com")

	err := f.svc.Unsubscribe(ctx, unsubscribe.Request{AllEmails: true, Email: "a@example.com", UnsubscribeTokenValue: "ffffffffffff", ListIDs: []string{}})
	assert.True(t, errs.Is(err, unsubscribe.ErrInvalidToken))

	f.now = f.now.Add(48 * time.Hour)
	err = f.svc.Unsubscribe(ctx, unsubscribe.Request{AllEmails: true, Email: "a@example.com", UnsubscribeTokenValue: "aaaaaaaaaaaa", ListIDs: []string{}})
	assert.True(t, errs.Is(err, unsubscribe.ErrExpiredToken))

	got, _ := f.subs.Get(ctx, sub.SubscriberID)
	assert.False(t, got.Unsubscribed)
	assert.Len(t, f.items.Items(), 1)

	bad := []unsubscribe.Request{
		{Email: "a@example.com", UnsubscribeTokenValue: "short", ListIDs: []string{}},
		{Email: "a@example.com", UnsubscribeTokenValue: "AAAAAAAAAAAA", ListIDs: []string{}},
		{Email: "a@example.com", UnsubscribeTokenValue: "aaaaaaaaaaaa"},
		{Email: "a@example.com", UnsubscribeTokenValue: "aaaaaaaaaaaa", ListIDs: []string{strings.Repeat("x", 65)}},
	}
	for _, req := range bad {
		err := f.svc.Unsubscribe(ctx, req)
		assert.Equal(t, 400, errs.StatusCode(err))
	}
}
