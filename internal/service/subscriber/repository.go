package subscriber

import (
	"context"

	"github.com/ignite/listflow/internal/domain"
)

// Repository defines the data access contract for the Subscribers table.
type Repository interface {
	// Get loads a subscriber by id. Returns ErrNotFound if absent.
	Get(ctx context.Context, subscriberID string) (*domain.Subscriber, error)

	// GetByEmail loads a subscriber by canonical email. Returns ErrNotFound
	// if no subscriber holds the address.
	GetByEmail(ctx context.Context, email string) (*domain.Subscriber, error)

	// Create inserts a new subscriber and claims its email. Returns
	// ErrEmailTaken if the email is already claimed.
	Create(ctx context.Context, s *domain.Subscriber) error

	// Put replaces an existing subscriber. The email must not change.
	Put(ctx context.Context, s *domain.Subscriber) error

	// Update applies a partial update to an existing subscriber. Returns
	// ErrNotFound if absent.
	Update(ctx context.Context, subscriberID string, p Patch) error

	// ChangeEmail moves the email claim and rewrites the address fields.
	// Returns ErrEmailTaken if newEmail belongs to someone else.
	ChangeEmail(ctx context.Context, subscriberID, oldEmail, newEmail, displayEmail string) error

	// Delete removes the subscriber and its email claim.
	Delete(ctx context.Context, subscriberID, email string) error
}

// Patch lists the fields a partial update sets. Nil fields are left alone.
type Patch struct {
	Tags                 *[]string
	Confirmed            *domain.Confirmation
	Unsubscribed         *bool
	UnsubscribeReason    *string
	UnsubscribeTimestamp *int64
	ConfirmTimestamp     *int64
	LastConfirmation     *int64
	UnsubscribeToken     *domain.UnsubscribeToken
	LastOpen             *int64
	LastClick            *int64
	LastOpenOrClick      *int64
}

// Empty reports whether the patch sets nothing.
func (p Patch) Empty() bool {
	return p == Patch{}
}

// Apply writes the patch onto s.
func (p Patch) Apply(s *domain.Subscriber) {
	if p.Tags != nil {
		s.Tags = append([]string(nil), (*p.Tags)...)
	}
	if p.Confirmed != nil {
		s.Confirmed = *p.Confirmed
	}
	if p.Unsubscribed != nil {
		s.Unsubscribed = *p.Unsubscribed
	}
	if p.UnsubscribeReason != nil {
		s.UnsubscribeReason = *p.UnsubscribeReason
	}
	if p.UnsubscribeTimestamp != nil {
		s.UnsubscribeTimestamp = *p.UnsubscribeTimestamp
	}
	if p.ConfirmTimestamp != nil {
		s.ConfirmTimestamp = *p.ConfirmTimestamp
	}
	if p.LastConfirmation != nil {
		s.LastConfirmation = *p.LastConfirmation
	}
	if p.UnsubscribeToken != nil {
		t := *p.UnsubscribeToken
		s.UnsubscribeToken = &t
	}
	if p.LastOpen != nil {
		s.LastOpen = *p.LastOpen
	}
	if p.LastClick != nil {
		s.LastClick = *p.LastClick
	}
	if p.LastOpenOrClick != nil {
		s.LastOpenOrClick = *p.LastOpenOrClick
	}
}
