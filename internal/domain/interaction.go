package domain

import "time"

// EventType is the delivery outcome reported by the sending service.
type EventType string

const (
	EventOpen      EventType = "Open"
	EventClick     EventType = "Click"
	EventBounce    EventType = "Bounce"
	EventComplaint EventType = "Complaint"
)

// BouncePermanent is the only bounce type that unsubscribes.
const BouncePermanent = "Permanent"

// Message tag names set at send time and echoed back on events.
const (
	TagDateStamp        = "DateStamp"
	TagRunAtModified    = "RunAtModified"
	TagInteractionClick = "Interaction-Click"
	TagInteractionOpen  = "Interaction-Open"
	TagTemplateID       = "TemplateId"
)

// InteractionEvent is a decoded delivery-outcome notification.
type InteractionEvent struct {
	Type       EventType
	Recipient  string
	Tags       map[string][]string
	Link       string
	BounceType string
	MessageID  string
	Timestamp  time.Time
}

// Tag returns the first value of a message tag.
func (e *InteractionEvent) Tag(name string) string {
	if vals := e.Tags[name]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}
