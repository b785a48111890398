package subscriber

import (
	"net/mail"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/ignite/listflow/internal/domain"
	"github.com/ignite/listflow/internal/pkg/errs"
	"github.com/ignite/listflow/internal/service/scheduling"
)

const (
	maxEmailLen  = 254
	maxLookupLen = 256
	maxTags      = 50
	maxTagLen    = 64
)

var tagPattern = regexp.MustCompile(`^[\w-]+$`)

// Input is a subscriber as submitted by an admin client.
type Input struct {
	Email                  string               `json:"email"`
	Timezone               string               `json:"timezone,omitempty"`
	DeliveryTimePreference *domain.DeliveryTime `json:"deliveryTimePreference,omitempty"`
	Tags                   []string             `json:"tags"`
	Properties             map[string]string    `json:"properties,omitempty"`
	Confirmed              *domain.Confirmation `json:"confirmed,omitempty"`
	Unsubscribed           *bool                `json:"unsubscribed,omitempty"`
}

// Validate checks the input before any lookup or write.
func (in *Input) Validate() error {
	if err := ValidateEmail(in.Email); err != nil {
		return err
	}
	if in.Timezone != "" && !scheduling.ValidTimezone(in.Timezone) {
		return errs.Validation(`"timezone" must be a valid timezone`)
	}
	if in.DeliveryTimePreference != nil && !in.DeliveryTimePreference.Valid() {
		return errs.Validation(`"deliveryTimePreference" must have hour 0-23 and minute 0-59`)
	}
	if len(in.Tags) > maxTags {
		return errs.Validation(`"tags" must contain at most 50 items`)
	}
	for _, t := range in.Tags {
		if t == "" || len(t) > maxTagLen {
			return errs.Validation(`"tags" items must be 1-64 characters`)
		}
	}
	return nil
}

// ValidateEmail checks that email is a bare address.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return errs.Validation(`"email" is required`)
	}
	if len(email) > maxEmailLen {
		return errs.Validation(`"email" must be a valid email`)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return errs.Validation(`"email" must be a valid email`)
	}
	return nil
}

// ValidateLookupEmail checks an address used only for lookup.
func ValidateLookupEmail(email string) error {
	if email == "" || len(email) > maxLookupLen {
		return errs.Validation("Bad request")
	}
	return nil
}

// ValidateTag checks a single tag for the tag and untag operations.
func ValidateTag(tag string) error {
	if tag == "" || len(tag) > maxTagLen || !tagPattern.MatchString(tag) {
		return errs.Validation(`"tag" must be 1-64 word characters or dashes`)
	}
	return nil
}

// ValidateSubscriberID checks a version 4 uuid.
func ValidateSubscriberID(id string) error {
	u, err := uuid.Parse(id)
	if err != nil || u.Version() != 4 || len(id) != 36 {
		return errs.Validation("Invalid subscriber id")
	}
	return nil
}
