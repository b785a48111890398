package memory

import (
	"context"
	"sync"

	"github.com/ignite/listflow/internal/domain"
	"github.com/ignite/listflow/internal/service/subscriber"
)

// SubscriberRepository keeps subscribers keyed by id with an email claim
// map standing in for the uniqueness claim items.
type SubscriberRepository struct {
	mu     sync.RWMutex
	byID   map[string]*domain.Subscriber
	claims map[string]string
}

var _ subscriber.Repository = (*SubscriberRepository)(nil)

// NewSubscriberRepository returns an empty repository.
func NewSubscriberRepository() *SubscriberRepository {
	return &SubscriberRepository{
		byID:   make(map[string]*domain.Subscriber),
		claims: make(map[string]string),
	}
}

func clone(s *domain.Subscriber) *domain.Subscriber {
	c := *s
	c.Tags = append([]string(nil), s.Tags...)
	if s.Properties != nil {
		c.Properties = make(map[string]string, len(s.Properties))
		for k, v := range s.Properties {
			c.Properties[k] = v
		}
	}
	if s.DeliveryTimePreference != nil {
		p := *s.DeliveryTimePreference
		c.DeliveryTimePreference = &p
	}
	if s.UnsubscribeToken != nil {
		t := *s.UnsubscribeToken
		c.UnsubscribeToken = &t
	}
	return &c
}

func (r *SubscriberRepository) Get(_ context.Context, subscriberID string) (*domain.Subscriber, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[subscriberID]
	if !ok {
		return nil, subscriber.ErrNotFound
	}
	return clone(s), nil
}

func (r *SubscriberRepository) GetByEmail(_ context.Context, email string) (*domain.Subscriber, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.claims[email]
	if !ok {
		return nil, subscriber.ErrNotFound
	}
	s, ok := r.byID[id]
	if !ok {
		return nil, subscriber.ErrNotFound
	}
	return clone(s), nil
}

func (r *SubscriberRepository) Create(_ context.Context, s *domain.Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.claims[s.Email]; taken {
		return subscriber.ErrEmailTaken
	}
	r.claims[s.Email] = s.SubscriberID
	r.byID[s.SubscriberID] = clone(s)
	return nil
}

func (r *SubscriberRepository) Put(_ context.Context, s *domain.Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[s.SubscriberID] = clone(s)
	r.claims[s.Email] = s.SubscriberID
	return nil
}

func (r *SubscriberRepository) Update(_ context.Context, subscriberID string, p subscriber.Patch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[subscriberID]
	if !ok {
		return subscriber.ErrNotFound
	}
	p.Apply(s)
	return nil
}

func (r *SubscriberRepository) ChangeEmail(_ context.Context, subscriberID, oldEmail, newEmail, displayEmail string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if owner, taken := r.claims[newEmail]; taken && owner != subscriberID {
		return subscriber.ErrEmailTaken
	}
	s, ok := r.byID[subscriberID]
	if !ok {
		return subscriber.ErrNotFound
	}
	delete(r.claims, oldEmail)
	r.claims[newEmail] = subscriberID
	s.Email = newEmail
	s.DisplayEmail = displayEmail
	return nil
}

func (r *SubscriberRepository) Delete(_ context.Context, subscriberID, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, subscriberID)
	if r.claims[email] == subscriberID {
		delete(r.claims, email)
	}
	return nil
}

// Len returns the number of stored subscribers.
func (r *SubscriberRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
