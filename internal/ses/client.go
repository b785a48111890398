// Package ses delivers email through the Amazon SES v2 API.
//
// Every send goes through a circuit breaker; rejections of a single
// message do not count against it.
package ses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/sony/gobreaker"

	"github.com/ignite/listflow/internal/domain"
	"github.com/ignite/listflow/internal/metrics"
	"github.com/ignite/listflow/internal/pkg/logger"
)

// API is the subset of the SES v2 client the sender uses.
type API interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, opts ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
	GetEmailTemplate(ctx context.Context, in *sesv2.GetEmailTemplateInput, opts ...func(*sesv2.Options)) (*sesv2.GetEmailTemplateOutput, error)
}

// Options configures a Client.
type Options struct {
	SourceEmail      string
	ConfigurationSet string
	BreakerFailures  uint32
	BreakerTimeout   time.Duration
	Now              func() time.Time
}

// Client sends email through SES. It is safe for concurrent use.
type Client struct {
	client  API
	breaker *gobreaker.CircuitBreaker
	opts    Options
}

// NewClient wraps an SES v2 client.
func NewClient(client API, opts Options) *Client {
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerTimeout == 0 {
		opts.BreakerTimeout = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	failures := opts.BreakerFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ses",
		MaxRequests: 1,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || messageFault(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			metrics.SenderBreakerState.Set(float64(to))
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &Client{client: client, breaker: cb, opts: opts}
}

// messageFault reports errors caused by the message itself rather than
// the service being unavailable.
func messageFault(err error) bool {
	var rejected *types.MessageRejected
	var bad *types.BadRequestException
	var notFound *types.NotFoundException
	var notVerified *types.MailFromDomainNotVerifiedException
	return errors.As(err, &rejected) || errors.As(err, &bad) || errors.As(err, &notFound) || errors.As(err, &notVerified)
}

// ErrUnavailable is returned while the breaker is open.
var ErrUnavailable = errors.New("ses: sending temporarily disabled")

func (c *Client) execute(fn func() (interface{}, error)) (interface{}, error) {
	out, err := c.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrUnavailable
	}
	return out, err
}

func (c *Client) input(msg *domain.EmailMessage) (*sesv2.SendEmailInput, error) {
	from := msg.From
	if from == "" {
		from = c.opts.SourceEmail
	}
	in := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content:          &types.EmailContent{},
		EmailTags:        messageTags(msg.Tags),
	}
	if c.opts.ConfigurationSet != "" {
		in.ConfigurationSetName = aws.String(c.opts.ConfigurationSet)
	}

	if msg.Templated() {
		data := "{}"
		if msg.TemplateData != nil {
			b, err := json.Marshal(msg.TemplateData)
			if err != nil {
				return nil, fmt.Errorf("marshaling template data: %w", err)
			}
			data = string(b)
		}
		in.Content.Template = &types.Template{
			TemplateName: aws.String(msg.TemplateID),
			TemplateData: aws.String(data),
		}
		return in, nil
	}

	body := &types.Body{}
	if msg.HTMLContent != "" {
		body.Html = &types.Content{Data: aws.String(msg.HTMLContent), Charset: aws.String("UTF-8")}
	}
	if msg.TextContent != "" {
		body.Text = &types.Content{Data: aws.String(msg.TextContent), Charset: aws.String("UTF-8")}
	}
	in.Content.Simple = &types.Message{
		Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
		Body:    body,
	}
	return in, nil
}

// messageTags orders tags by name so requests are deterministic.
func messageTags(tags map[string]string) []types.MessageTag {
	if len(tags) == 0 {
		return nil
	}
	names := make([]string, 0, len(tags))
	for n := range tags {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]types.MessageTag, 0, len(names))
	for _, n := range names {
		out = append(out, types.MessageTag{Name: aws.String(n), Value: aws.String(tags[n])})
	}
	return out
}

// Send delivers a single email.
func (c *Client) Send(ctx context.Context, msg *domain.EmailMessage) (*domain.SendResult, error) {
	in, err := c.input(msg)
	if err != nil {
		return nil, err
	}
	out, err := c.execute(func() (interface{}, error) {
		return c.client.SendEmail(ctx, in)
	})
	if err != nil {
		return nil, fmt.Errorf("ses send: %w", err)
	}

	res := &domain.SendResult{SentAt: c.opts.Now()}
	if o, ok := out.(*sesv2.SendEmailOutput); ok && o != nil {
		res.MessageID = aws.ToString(o.MessageId)
	}
	logger.Debug("email sent", "email", msg.To, "messageId", res.MessageID, "templateId", msg.TemplateID)
	return res, nil
}

// TemplateExists reports whether a stored template exists.
func (c *Client) TemplateExists(ctx context.Context, templateID string) (bool, error) {
	_, err := c.execute(func() (interface{}, error) {
		return c.client.GetEmailTemplate(ctx, &sesv2.GetEmailTemplateInput{TemplateName: aws.String(templateID)})
	})
	var notFound *types.NotFoundException
	switch {
	case err == nil:
		return true, nil
	case errors.As(err, &notFound):
		return false, nil
	default:
		return false, fmt.Errorf("ses get template %s: %w", templateID, err)
	}
}
