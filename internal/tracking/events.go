package tracking

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/ignite/listflow/internal/domain"
	"github.com/ignite/listflow/internal/pkg/errs"
)

// ErrUnsupported marks notifications that carry no delivery event, such
// as subscription confirmations.
var ErrUnsupported = errs.New("unsupported notification")

// snsEnvelope is the wrapper SNS puts around a message delivered to SQS.
type snsEnvelope struct {
	Type      string `json:"Type"`
	MessageID string `json:"MessageId"`
	Message   string `json:"Message"`
}

type recipient struct {
	EmailAddress string `json:"emailAddress"`
}

// sesEvent is the subset of an SES event-publishing record we read.
type sesEvent struct {
	EventType        string `json:"eventType"`
	NotificationType string `json:"notificationType"`
	Mail             struct {
		MessageID   string              `json:"messageId"`
		Timestamp   time.Time           `json:"timestamp"`
		Destination []string            `json:"destination"`
		Tags        map[string][]string `json:"tags"`
	} `json:"mail"`
	Click *struct {
		Link      string    `json:"link"`
		Timestamp time.Time `json:"timestamp"`
	} `json:"click"`
	Open *struct {
		Timestamp time.Time `json:"timestamp"`
	} `json:"open"`
	Bounce *struct {
		BounceType        string      `json:"bounceType"`
		BouncedRecipients []recipient `json:"bouncedRecipients"`
		Timestamp         time.Time   `json:"timestamp"`
	} `json:"bounce"`
	Complaint *struct {
		ComplainedRecipients []recipient `json:"complainedRecipients"`
		Timestamp            time.Time   `json:"timestamp"`
	} `json:"complaint"`
}

// Decode turns a queue message body into an InteractionEvent. Bodies may be
// an SNS notification envelope or a raw SES event.
func Decode(body []byte) (*domain.InteractionEvent, error) {
	var env snsEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errs.Wrap(err, "decoding message body")
	}
	payload := body
	switch env.Type {
	case "":
	case "Notification":
		payload = []byte(env.Message)
	default:
		return nil, errs.Wrapf(ErrUnsupported, "sns %s", env.Type)
	}

	var raw sesEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, errs.Wrap(err, "decoding ses event")
	}
	kind := raw.EventType
	if kind == "" {
		kind = raw.NotificationType
	}
	if kind == "" {
		return nil, errs.Wrap(ErrUnsupported, "missing event type")
	}

	ev := &domain.InteractionEvent{
		Type:      domain.EventType(kind),
		Tags:      raw.Mail.Tags,
		MessageID: raw.Mail.MessageID,
		Timestamp: raw.Mail.Timestamp,
	}
	if len(raw.Mail.Destination) > 0 {
		ev.Recipient = raw.Mail.Destination[0]
	}

	switch ev.Type {
	case domain.EventOpen:
		if raw.Open != nil && !raw.Open.Timestamp.IsZero() {
			ev.Timestamp = raw.Open.Timestamp
		}
	case domain.EventClick:
		if raw.Click != nil {
			ev.Link = raw.Click.Link
			if !raw.Click.Timestamp.IsZero() {
				ev.Timestamp = raw.Click.Timestamp
			}
		}
	case domain.EventBounce:
		if raw.Bounce != nil {
			ev.BounceType = raw.Bounce.BounceType
			if len(raw.Bounce.BouncedRecipients) > 0 {
				ev.Recipient = raw.Bounce.BouncedRecipients[0].EmailAddress
			}
		}
	case domain.EventComplaint:
		if raw.Complaint != nil && len(raw.Complaint.ComplainedRecipients) > 0 {
			ev.Recipient = raw.Complaint.ComplainedRecipients[0].EmailAddress
		}
	}
	ev.Recipient = strings.ToLower(strings.TrimSpace(ev.Recipient))
	if ev.Recipient == "" {
		return nil, errs.Validationf("%s event without recipient", kind)
	}
	return ev, nil
}
