package subscriber

import (
	"regexp"

	"github.com/ignite/listflow/internal/domain"
	"github.com/ignite/listflow/internal/pkg/errs"
)

// Trigger type names accepted on the wire.
const (
	TriggerTypeConfirmation  = "confirmation"
	TriggerTypeAutoresponder = "autoresponder"
)

var triggerIDPattern = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// Trigger is the side effect requested with a subscriber mutation. It is
// one of NoTrigger, ConfirmationTrigger or AutoresponderTrigger.
type Trigger interface {
	triggerType() string
}

// NoTrigger requests no side effect.
type NoTrigger struct{}

// ConfirmationTrigger sends the templated confirmation email. An empty
// TemplateID uses the configured default template.
type ConfirmationTrigger struct {
	TemplateID string
}

// AutoresponderTrigger enrolls the subscriber at Step, or at the start
// step when Step is empty.
type AutoresponderTrigger struct {
	AutoresponderID string
	Step            string
}

func (NoTrigger) triggerType() string            { return "" }
func (ConfirmationTrigger) triggerType() string  { return TriggerTypeConfirmation }
func (AutoresponderTrigger) triggerType() string { return TriggerTypeAutoresponder }

// StepOrStart returns the enrollment step.
func (t AutoresponderTrigger) StepOrStart() string {
	if t.Step == "" {
		return domain.StartStep
	}
	return t.Step
}

// ParseTrigger resolves the triggerType/triggerId query pair.
func ParseTrigger(triggerType, triggerID string) (Trigger, error) {
	switch triggerType {
	case "":
		if triggerID != "" {
			return nil, errs.Validation(`"triggerId" is not allowed without "triggerType"`)
		}
		return NoTrigger{}, nil
	case TriggerTypeConfirmation:
		if triggerID != "" && !triggerIDPattern.MatchString(triggerID) {
			return nil, errs.Validation(`"triggerId" must be alphanumeric`)
		}
		return ConfirmationTrigger{TemplateID: triggerID}, nil
	case TriggerTypeAutoresponder:
		if triggerID == "" {
			return nil, errs.Validation(`"triggerId" is required`)
		}
		if !triggerIDPattern.MatchString(triggerID) {
			return nil, errs.Validation(`"triggerId" must be alphanumeric`)
		}
		return AutoresponderTrigger{AutoresponderID: triggerID}, nil
	default:
		return nil, errs.Validation(`"triggerType" must be one of [confirmation, autoresponder]`)
	}
}

// ParseStep validates an explicit step name.
func ParseStep(step string) (string, error) {
	if step == "" {
		return domain.StartStep, nil
	}
	if !triggerIDPattern.MatchString(step) {
		return "", errs.Validation(`"triggerStep" must be alphanumeric`)
	}
	return step, nil
}

// ValidateAutoresponderIDs checks the extra autoresponders of a subscribe
// request.
func ValidateAutoresponderIDs(ids []string) error {
	for _, id := range ids {
		if !triggerIDPattern.MatchString(id) {
			return errs.Validationf(`"triggerAutoresponders" contains an invalid id %q`, id)
		}
	}
	return nil
}
