package sending

import (
	"context"
	"encoding/json"
	"net/mail"
	"strings"

	"github.com/ignite/listflow/internal/domain"
	"github.com/ignite/listflow/internal/metrics"
	"github.com/ignite/listflow/internal/pkg/errs"
)

// Body is the content of a direct send. A plain string is HTML when it
// contains an html element, text otherwise.
type Body struct {
	Raw  string `json:"-"`
	HTML string `json:"html,omitempty"`
	Text string `json:"text,omitempty"`
}

// UnmarshalJSON accepts either a string or an {html, text} object.
func (b *Body) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		*b = Body{Raw: raw}
		return nil
	}
	type plain Body
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*b = Body(p)
	return nil
}

// SingleEmail is an ad-hoc message to one address.
type SingleEmail struct {
	To      string
	From    string
	Subject string
	Body    Body
}

// Service sends direct email.
type Service struct {
	sender      Sender
	sourceEmail string
}

// NewService creates a sending service. sourceEmail is the default From.
func NewService(sender Sender, sourceEmail string) *Service {
	return &Service{sender: sender, sourceEmail: sourceEmail}
}

// Sender returns the underlying sender.
func (s *Service) Sender() Sender {
	return s.sender
}

// SourceEmail returns the default From address.
func (s *Service) SourceEmail() string {
	return s.sourceEmail
}

// SendSingle delivers one message outside the queue.
func (s *Service) SendSingle(ctx context.Context, in SingleEmail) (*domain.SendResult, error) {
	if _, err := mail.ParseAddress(in.To); err != nil {
		return nil, errs.Validation("Invalid toEmailAddress")
	}
	if strings.TrimSpace(in.Subject) == "" {
		return nil, errs.Validation("No subject provided")
	}

	msg := &domain.EmailMessage{
		To:      in.To,
		From:    in.From,
		Subject: in.Subject,
	}
	if msg.From == "" {
		msg.From = s.sourceEmail
	}
	switch {
	case in.Body.Raw != "":
		raw := strings.TrimSpace(in.Body.Raw)
		if strings.Contains(raw, "html>") {
			msg.HTMLContent = raw
		} else {
			msg.TextContent = in.Body.Raw
		}
	default:
		msg.HTMLContent = in.Body.HTML
		msg.TextContent = in.Body.Text
	}
	if msg.HTMLContent == "" && msg.TextContent == "" {
		return nil, errs.Validation("No body provided")
	}

	res, err := s.sender.Send(ctx, msg)
	if err != nil {
		metrics.EmailsSent.WithLabelValues("single", "error").Inc()
		return nil, errs.Wrap(err, "send single email")
	}
	metrics.EmailsSent.WithLabelValues("single", "ok").Inc()
	return res, nil
}
