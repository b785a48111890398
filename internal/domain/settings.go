package domain

// Settings table item names.
const (
	SettingLists               = "lists"
	SettingBlockedEmailDomains = "blockedEmailDomains"
	SettingPendingBroadcast    = "pendingBroadcast"
	SettingPreviewCount        = "previewSubscriberCount"
	SettingAutoConfirmTags     = "autoConfirmTags"
	AutoresponderSettingPrefix = "autoresponder-"
)

// StartStep is the step every autoresponder enrollment begins at unless
// told otherwise.
const StartStep = "Start"

// TriggerSubscriberConfirmed enrolls every subscriber on confirmation.
const TriggerSubscriberConfirmed = "subscriber confirmed"

// Autoresponder is a named set of steps. A non-empty Trigger enrolls
// subscribers automatically when the matching event happens.
type Autoresponder struct {
	AutoresponderID string             `json:"autoresponderId" dynamodbav:"autoresponderId"`
	Name            string             `json:"name,omitempty" dynamodbav:"name,omitempty"`
	Trigger         string             `json:"trigger,omitempty" dynamodbav:"trigger,omitempty"`
	Steps           map[string]Payload `json:"steps" dynamodbav:"steps"`
}

// Step returns the named step.
func (a *Autoresponder) Step(name string) (Payload, bool) {
	p, ok := a.Steps[name]
	return p, ok
}

// List is a mailing list definition. Membership is the tag equal to ID.
type List struct {
	ID          string  `json:"id" dynamodbav:"id"`
	Name        string  `json:"name" dynamodbav:"name"`
	SourceEmail *string `json:"sourceEmail" dynamodbav:"sourceEmail"`
}
