package domain

// Datetime contexts for a broadcast start.
const (
	DatetimeUTC        = "utc"
	DatetimeSubscriber = "subscriber"
)

// A/B winner selection policies.
const (
	WinningByOpen  = "open"
	WinningByClick = "click"
)

// PhasePending marks a broadcast waiting for the external resolver.
const PhasePending = "pending"

// BroadcastTemplate is one A/B variant sent to TestPercent of the audience.
type BroadcastTemplate struct {
	TemplateID  string `json:"templateId" dynamodbav:"templateId"`
	TestPercent int    `json:"testPercent" dynamodbav:"testPercent"`
}

// InteractionFilter selects subscribers by how they treated one past send.
type InteractionFilter struct {
	TemplateID string `json:"templateId" dynamodbav:"templateId"`
	EmailDate  string `json:"emailDate" dynamodbav:"emailDate"`
	Click      *bool  `json:"click,omitempty" dynamodbav:"click,omitempty"`
	Open       *bool  `json:"open,omitempty" dynamodbav:"open,omitempty"`
}

// AnyEmailInteraction selects subscribers who did (or did not) open or
// click any email within the last Days days.
type AnyEmailInteraction struct {
	Days       int  `json:"days" dynamodbav:"days"`
	Interacted bool `json:"interacted" dynamodbav:"interacted"`
}

// Predicate is the declarative audience of a broadcast. It is resolved
// by an external process; only the profile part can be checked here.
type Predicate struct {
	Tags                    []string             `json:"tags,omitempty" dynamodbav:"tags,omitempty"`
	ExcludeTags             []string             `json:"excludeTags,omitempty" dynamodbav:"excludeTags,omitempty"`
	Properties              map[string]string    `json:"properties,omitempty" dynamodbav:"properties,omitempty"`
	Interactions            []InteractionFilter  `json:"interactions,omitempty" dynamodbav:"interactions,omitempty"`
	InteractionWithAnyEmail *AnyEmailInteraction `json:"interactionWithAnyEmail,omitempty" dynamodbav:"interactionWithAnyEmail,omitempty"`
	IgnoreConfirmed         bool                 `json:"ignoreConfirmed,omitempty" dynamodbav:"ignoreConfirmed,omitempty"`
	JoinedAfter             int64                `json:"joinedAfter,omitempty" dynamodbav:"joinedAfter,omitempty"`
}

// BroadcastRequest is a one-time send to the audience of its predicate.
type BroadcastRequest struct {
	BroadcastID string `json:"broadcastId" dynamodbav:"broadcastId"`

	TemplateID   string              `json:"templateId,omitempty" dynamodbav:"templateId,omitempty"`
	TemplateName string              `json:"TemplateName,omitempty" dynamodbav:"-"`
	Templates    []BroadcastTemplate `json:"templates,omitempty" dynamodbav:"templates,omitempty"`
	WinningType  string              `json:"winningType,omitempty" dynamodbav:"winningType,omitempty"`
	List         string              `json:"list,omitempty" dynamodbav:"list,omitempty"`
	TagOnClick   string              `json:"tagOnClick,omitempty" dynamodbav:"tagOnClick,omitempty"`

	Predicate

	RunAt           *int64 `json:"runAt,omitempty" dynamodbav:"runAt,omitempty"`
	SubscriberRunAt string `json:"subscriberRunAt,omitempty" dynamodbav:"subscriberRunAt,omitempty"`
	DatetimeContext string `json:"datetimeContext,omitempty" dynamodbav:"datetimeContext,omitempty"`

	Phase     string `json:"phase" dynamodbav:"phase"`
	CreatedAt int64  `json:"createdAt" dynamodbav:"createdAt"`
}

// TemplateIDs lists every template the broadcast sends.
func (b *BroadcastRequest) TemplateIDs() []string {
	if len(b.Templates) == 0 {
		return []string{b.TemplateID}
	}
	ids := make([]string, 0, len(b.Templates))
	for _, t := range b.Templates {
		ids = append(ids, t.TemplateID)
	}
	return ids
}

// CountPreview asks the resolver to count a predicate's audience.
type CountPreview struct {
	Status string `json:"status" dynamodbav:"status"`
	Count  int    `json:"count" dynamodbav:"count"`
	Predicate
}
