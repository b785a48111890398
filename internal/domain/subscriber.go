package domain

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// DeliveryTime is the subscriber's preferred local send time.
type DeliveryTime struct {
	Hour   int `json:"hour" dynamodbav:"hour"`
	Minute int `json:"minute" dynamodbav:"minute"`
}

// DefaultDeliveryTime applies when a subscriber has a timezone but no
// preference.
var DefaultDeliveryTime = DeliveryTime{Hour: 9, Minute: 30}

// Valid reports whether the time is a real wall-clock time.
func (d DeliveryTime) Valid() bool {
	return d.Hour >= 0 && d.Hour <= 23 && d.Minute >= 0 && d.Minute <= 59
}

// UnsubscribeToken is a short-lived credential for self-service unsubscribe.
type UnsubscribeToken struct {
	Value   string `json:"value" dynamodbav:"value"`
	Created int64  `json:"created" dynamodbav:"created"`
}

// Age returns how long ago the token was issued.
func (t UnsubscribeToken) Age(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(t.Created))
}

// Confirmation is the subscriber's confirmed marker. Stored items hold
// either a boolean or a marker value (a millisecond timestamp or an
// RFC 3339 string written by auto-confirm); both mean confirmed.
type Confirmation struct {
	Confirmed bool
	Marker    string
}

// ConfirmedAt returns a confirmation stamped with t.
func ConfirmedAt(t time.Time) Confirmation {
	return Confirmation{Confirmed: true, Marker: t.UTC().Format(time.RFC3339Nano)}
}

// Confirmed returns the plain boolean confirmation.
func Confirmed(v bool) Confirmation {
	return Confirmation{Confirmed: v}
}

// Value is the stored representation: false, true, or the marker.
func (c Confirmation) Value() any {
	if !c.Confirmed {
		return false
	}
	if c.Marker != "" {
		return c.Marker
	}
	return true
}

// ConfirmationFrom interprets a decoded stored value.
func ConfirmationFrom(v any) Confirmation {
	switch t := v.(type) {
	case nil:
		return Confirmation{}
	case bool:
		return Confirmation{Confirmed: t}
	case string:
		switch strings.ToLower(t) {
		case "", "false", "0":
			return Confirmation{}
		case "true":
			return Confirmation{Confirmed: true}
		}
		return Confirmation{Confirmed: true, Marker: t}
	case float64:
		if t == 0 {
			return Confirmation{}
		}
		return Confirmation{Confirmed: true, Marker: strconv.FormatFloat(t, 'f', -1, 64)}
	case int64:
		if t == 0 {
			return Confirmation{}
		}
		return Confirmation{Confirmed: true, Marker: strconv.FormatInt(t, 10)}
	case int:
		return ConfirmationFrom(int64(t))
	default:
		return Confirmation{Confirmed: true}
	}
}

func (c Confirmation) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Value())
}

func (c *Confirmation) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*c = ConfirmationFrom(v)
	return nil
}

// Subscriber is one email recipient. Tags carry list membership.
type Subscriber struct {
	SubscriberID           string            `json:"subscriberId" dynamodbav:"subscriberId"`
	Email                  string            `json:"email" dynamodbav:"email"`
	DisplayEmail           string            `json:"displayEmail,omitempty" dynamodbav:"displayEmail,omitempty"`
	Confirmed              Confirmation      `json:"confirmed" dynamodbav:"-"`
	Unsubscribed           bool              `json:"unsubscribed" dynamodbav:"unsubscribed"`
	Tags                   []string          `json:"tags" dynamodbav:"tags,omitempty"`
	Timezone               string            `json:"timezone,omitempty" dynamodbav:"timezone,omitempty"`
	DeliveryTimePreference *DeliveryTime     `json:"deliveryTimePreference,omitempty" dynamodbav:"deliveryTimePreference,omitempty"`
	Properties             map[string]string `json:"properties,omitempty" dynamodbav:"properties,omitempty"`
	Joined                 int64             `json:"joined" dynamodbav:"joined"`
	ConfirmationToken      string            `json:"confirmationToken,omitempty" dynamodbav:"confirmationToken,omitempty"`
	LastConfirmation       int64             `json:"lastConfirmation,omitempty" dynamodbav:"lastConfirmation,omitempty"`
	UnsubscribeToken       *UnsubscribeToken `json:"unsubscribeToken,omitempty" dynamodbav:"unsubscribeToken,omitempty"`

	LastOpen             int64  `json:"lastOpen,omitempty" dynamodbav:"lastOpen,omitempty"`
	LastClick            int64  `json:"lastClick,omitempty" dynamodbav:"lastClick,omitempty"`
	LastOpenOrClick      int64  `json:"lastOpenOrClick,omitempty" dynamodbav:"lastOpenOrClick,omitempty"`
	ConfirmTimestamp     int64  `json:"confirmTimestamp,omitempty" dynamodbav:"confirmTimestamp,omitempty"`
	UnsubscribeTimestamp int64  `json:"unsubscribeTimestamp,omitempty" dynamodbav:"unsubscribeTimestamp,omitempty"`
	UnsubscribeReason    string `json:"unsubscribeReason,omitempty" dynamodbav:"unsubscribeReason,omitempty"`
}

// SendAddress is the address mail is delivered to.
func (s *Subscriber) SendAddress() string {
	if s.DisplayEmail != "" {
		return s.DisplayEmail
	}
	return s.Email
}

// Status projects the fields the email index exposes.
func (s *Subscriber) Status() SubscriberStatus {
	return SubscriberStatus{
		SubscriberID: s.SubscriberID,
		Email:        s.Email,
		Confirmed:    s.Confirmed,
		Unsubscribed: s.Unsubscribed,
	}
}

// SubscriberStatus is the email-index projection of a subscriber.
type SubscriberStatus struct {
	SubscriberID string       `json:"subscriberId"`
	Email        string       `json:"email"`
	Confirmed    Confirmation `json:"confirmed"`
	Unsubscribed bool         `json:"unsubscribed"`
}

// Unsubscribe reasons stamped on the subscriber.
const (
	ReasonComplaint       = "Complaint"
	ReasonBouncePermanent = "Bounce - Permanent"
	ReasonOther           = "Other"
)

// CanonicalEmail is the lookup and uniqueness key for an address.
func CanonicalEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailDomain returns the lowercase part after the last "@".
func EmailDomain(email string) string {
	e := CanonicalEmail(email)
	at := strings.LastIndex(e, "@")
	if at < 0 {
		return ""
	}
	return e[at+1:]
}
