package scheduling

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
	_ "time/tzdata" // zone database for minimal images

	"github.com/ignite/listflow/internal/domain"
	"github.com/ignite/listflow/internal/pkg/logger"
)

const tiebreakerSpace = 1_000_000_000

// WallClockLayout is the local start format of subscriber-time broadcasts.
const WallClockLayout = "2006-01-02T15:04"

// earliestZone is the first offset to reach any given wall-clock time.
var earliestZone = time.FixedZone("+12:00", 12*60*60)

// Enrollment links an entry to the autoresponder step it came from.
type Enrollment struct {
	AutoresponderID string
	Step            string
}

// Engine computes due times and sort keys.
type Engine struct {
	random func() uint64
	zones  sync.Map
}

// Option configures an Engine.
type Option func(*Engine)

// WithRandom replaces the tiebreaker source.
func WithRandom(r func() uint64) Option {
	return func(e *Engine) { e.random = r }
}

// NewEngine creates an Engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{random: rand.Uint64}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ValidTimezone reports whether name is a known IANA zone.
func ValidTimezone(name string) bool {
	if name == "" || strings.EqualFold(name, "local") {
		return false
	}
	_, err := time.LoadLocation(name)
	return err == nil
}

func (e *Engine) location(name string) (*time.Location, error) {
	if loc, ok := e.zones.Load(name); ok {
		return loc.(*time.Location), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, err
	}
	e.zones.Store(name, loc)
	return loc, nil
}

// DueTime resolves when an entry for sub should fire. Without a timezone
// the base instant is used. Otherwise base is read in the subscriber's
// zone and its time of day replaced by the delivery preference (9:30 by
// default) with seconds zeroed.
func (e *Engine) DueTime(base time.Time, sub *domain.Subscriber) time.Time {
	if sub == nil || sub.Timezone == "" {
		return base
	}
	loc, err := e.location(sub.Timezone)
	if err != nil {
		logger.Warn("unknown subscriber timezone, sending at base time",
			"subscriberId", sub.SubscriberID, "timezone", sub.Timezone)
		return base
	}
	pref := domain.DefaultDeliveryTime
	if sub.DeliveryTimePreference != nil && sub.DeliveryTimePreference.Valid() {
		pref = *sub.DeliveryTimePreference
	}
	local := base.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), pref.Hour, pref.Minute, 0, 0, loc)
}

// dueMillis is t in epoch milliseconds. Instants before the epoch are
// already due and map to 0.
func dueMillis(t time.Time) int64 {
	return max(t.UnixMilli(), 0)
}

// SortKey builds a unique, time-ordered sort key for an entry due at t.
func (e *Engine) SortKey(t time.Time) string {
	return fmt.Sprintf("%013d.%09d", dueMillis(t), e.random()%tiebreakerSpace)
}

// Schedule builds a pending queue entry for sub. The subscriber snapshot
// is a copy; later changes reach it only through snapshot propagation.
func (e *Engine) Schedule(p domain.Payload, base time.Time, sub *domain.Subscriber, link Enrollment) domain.QueueItem {
	due := e.DueTime(base, sub)
	if p.Type == "" && link.AutoresponderID == "" {
		p.Type = domain.TypeSendEmail
	}
	p.TagReason = append([]string(nil), p.TagReason...)

	return domain.QueueItem{
		QueuePlacement:    domain.PendingPlacement,
		RunAtModified:     e.SortKey(due),
		RunAt:             dueMillis(due),
		Payload:           p,
		Subscriber:        Snapshot(sub),
		SubscriberID:      sub.SubscriberID,
		AutoresponderID:   link.AutoresponderID,
		AutoresponderStep: link.Step,
		Attempts:          0,
		Failed:            false,
		Completed:         false,
	}
}

// Snapshot copies the subscriber fields a queued send needs. Credentials
// are not carried into the queue.
func Snapshot(sub *domain.Subscriber) *domain.Subscriber {
	s := *sub
	s.UnsubscribeToken = nil
	s.Tags = append([]string(nil), sub.Tags...)
	if sub.Properties != nil {
		s.Properties = make(map[string]string, len(sub.Properties))
		for k, v := range sub.Properties {
			s.Properties[k] = v
		}
	}
	if sub.DeliveryTimePreference != nil {
		pref := *sub.DeliveryTimePreference
		s.DeliveryTimePreference = &pref
	}
	return &s
}

// EarliestLocalStart is the first instant at which any subscriber's local
// clock reads wallClock.
func EarliestLocalStart(wallClock string) (time.Time, error) {
	return time.ParseInLocation(WallClockLayout, wallClock, earliestZone)
}
