package unsubscribe

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/ignite/listflow/internal/domain"
	"github.com/ignite/listflow/internal/pkg/errs"
	"github.com/ignite/listflow/internal/pkg/logger"
	"github.com/ignite/listflow/internal/service/queue"
	"github.com/ignite/listflow/internal/service/settings"
	"github.com/ignite/listflow/internal/service/subscriber"
)

const (
	// ReissueAge is the age at which the page request issues a new token.
	ReissueAge = 24 * time.Hour
	// MaxTokenAge is the age at which a token is no longer accepted.
	MaxTokenAge = 48 * time.Hour

	tokenLength   = 12
	maxListIDs    = 64
	maxListIDLen  = 64
	listTagPrefix = "list-"
)

var tokenPattern = regexp.MustCompile(`^[0-9a-f]{12}$`)

// Page error codes passed to the unsubscribe page.
const (
	PageErrBadRequest = "bad-request"
	PageErrNotFound   = "not-found"
	PageErrServer     = "server-error"
)

// Options configures the service.
type Options struct {
	// PageURL is the global unsubscribe page.
	PageURL string
	// APIURL is the public API base the page posts back to.
	APIURL string

	Now      func() time.Time
	NewToken func() (string, error)
}

// Service implements the token manager. It is safe for concurrent use.
type Service struct {
	subscribers *subscriber.Service
	settings    *settings.Service
	queue       *queue.Service
	opts        Options
}

// NewService creates an unsubscribe service.
func NewService(subs *subscriber.Service, st *settings.Service, q *queue.Service, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewToken == nil {
		opts.NewToken = NewToken
	}
	return &Service{subscribers: subs, settings: st, queue: q, opts: opts}
}

// NewToken returns 12 lowercase hex characters from crypto/rand.
func NewToken() (string, error) {
	b := make([]byte, tokenLength/2)
	if _, err := rand.Read(b); err != nil {
		return "", errs.Wrap(err, "read random token")
	}
	return hex.EncodeToString(b), nil
}

// PageParams is the JSON handed to the unsubscribe page.
type PageParams struct {
	Unsubscribed          bool          `json:"unsubscribed"`
	Email                 string        `json:"email"`
	Lists                 []domain.List `json:"lists"`
	UnsubscribeTokenValue string        `json:"unsubscribeTokenValue"`
	API                   string        `json:"api"`
}

// PageRedirect resolves the page URL for an unsubscribe link click. Every
// outcome is a redirect; failures carry an error code instead of params.
func (s *Service) PageRedirect(ctx context.Context, email string) string {
	params, err := s.Page(ctx, email)
	switch {
	case err == nil:
		raw, err := json.Marshal(params)
		if err != nil {
			logger.Error("encode unsubscribe page params", "error", err)
			return s.errorURL(PageErrServer)
		}
		return s.opts.PageURL + "?p=" + url.QueryEscape(string(raw))
	case errs.Is(err, errs.ErrValidation):
		return s.errorURL(PageErrBadRequest)
	case errs.Is(err, errs.ErrNotFound):
		return s.errorURL(PageErrNotFound)
	default:
		logger.Error("unsubscribe page failed", "error", err)
		return s.errorURL(PageErrServer)
	}
}

func (s *Service) errorURL(code string) string {
	return s.opts.PageURL + "?error=" + code
}

// Page issues or reuses the subscriber's token and builds the page params.
func (s *Service) Page(ctx context.Context, email string) (*PageParams, error) {
	if err := subscriber.ValidateEmail(email); err != nil {
		return nil, err
	}
	sub, err := s.subscribers.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	lists, err := s.settings.Lists(ctx)
	if err != nil {
		return nil, err
	}
	token, err := s.currentOrNewToken(ctx, sub)
	if err != nil {
		return nil, err
	}

	member := make(map[string]struct{})
	for _, t := range sub.Tags {
		if strings.HasPrefix(t, listTagPrefix) {
			member[t] = struct{}{}
		}
	}
	matched := []domain.List{}
	for _, l := range lists {
		if _, ok := member[l.ID]; ok {
			matched = append(matched, l)
		}
	}
	return &PageParams{
		Unsubscribed:          sub.Unsubscribed,
		Email:                 sub.SendAddress(),
		Lists:                 matched,
		UnsubscribeTokenValue: token.Value,
		API:                   s.opts.APIURL,
	}, nil
}

func (s *Service) currentOrNewToken(ctx context.Context, sub *domain.Subscriber) (domain.UnsubscribeToken, error) {
	now := s.opts.Now()
	if t := sub.UnsubscribeToken; t != nil && t.Created != 0 && t.Value != "" && t.Age(now) < ReissueAge {
		return *t, nil
	}
	value, err := s.opts.NewToken()
	if err != nil {
		return domain.UnsubscribeToken{}, err
	}
	token := domain.UnsubscribeToken{Value: value, Created: now.UnixMilli()}
	if err := s.subscribers.Update(ctx, sub.SubscriberID, subscriber.Patch{UnsubscribeToken: &token}); err != nil {
		return domain.UnsubscribeToken{}, err
	}
	return token, nil
}

// Request is a self-service unsubscribe submission.
type Request struct {
	AllEmails             bool     `json:"allEmails"`
	Email                 string   `json:"email"`
	UnsubscribeTokenValue string   `json:"unsubscribeTokenValue"`
	ListIDs               []string `json:"listIds"`
}

// Validate checks the request shape.
func (r *Request) Validate() error {
	if err := subscriber.ValidateEmail(r.Email); err != nil {
		return errs.Validation("Bad request")
	}
	if !tokenPattern.MatchString(r.UnsubscribeTokenValue) {
		return errs.Validation("Bad request")
	}
	if r.ListIDs == nil || len(r.ListIDs) > maxListIDs {
		return errs.Validation("Bad request")
	}
	for _, id := range r.ListIDs {
		if len(id) > maxListIDLen {
			return errs.Validation("Bad request")
		}
	}
	return nil
}

// Verify checks a supplied token against the stored one.
func Verify(stored *domain.UnsubscribeToken, value string, now time.Time) error {
	if stored == nil || stored.Created == 0 || stored.Value == "" || stored.Age(now) >= MaxTokenAge {
		return ErrExpiredToken
	}
	if stored.Value != value {
		return ErrInvalidToken
	}
	return nil
}

// Unsubscribe verifies the token and applies the request. A request that
// is neither all-email nor names a list changes nothing.
func (s *Service) Unsubscribe(ctx context.Context, req Request) error {
	if err := req.Validate(); err != nil {
		return err
	}
	sub, err := s.subscribers.GetByEmail(ctx, req.Email)
	if err != nil {
		return err
	}
	if err := Verify(sub.UnsubscribeToken, req.UnsubscribeTokenValue, s.opts.Now()); err != nil {
		logger.Info("unsubscribe token rejected", "subscriberId", sub.SubscriberID, "reason", err.Error())
		return err
	}

	switch {
	case req.AllEmails:
		_, err = s.subscribers.UnsubscribeAll(ctx, sub.SubscriberID, "")
		return err
	case len(req.ListIDs) > 0:
		return s.fromLists(ctx, sub, req.ListIDs)
	}
	return nil
}

func (s *Service) fromLists(ctx context.Context, sub *domain.Subscriber, listIDs []string) error {
	tags := domain.RemoveTags(sub.Tags, listIDs)
	p := subscriber.Patch{Tags: &tags}
	if len(tags) == 0 {
		unsubscribed := true
		p.Unsubscribed = &unsubscribed
	}
	if err := s.subscribers.Update(ctx, sub.SubscriberID, p); err != nil {
		return err
	}
	_, err := s.queue.PurgeByTagReason(ctx, sub.SubscriberID, listIDs, queue.PurgeListRemoval)
	return err
}
