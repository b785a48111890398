package segmentation

import (
	"regexp"
	"time"

	"github.com/ignite/listflow/internal/domain"
	"github.com/ignite/listflow/internal/pkg/errs"
	"github.com/ignite/listflow/internal/service/scheduling"
)

var (
	identPattern     = regexp.MustCompile(`^[\w-]+$`)
	emailDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

const (
	maxTagLen          = 128
	maxTags            = 100
	maxTemplates       = 10
	maxInteractions    = 20
	maxInteractionDays = 365
	runAtGrace         = 24 * time.Hour
)

func validateIdent(field, v string, maxLen int) error {
	if v == "" || len(v) > maxLen || !identPattern.MatchString(v) {
		return errs.Validationf(`Bad request: %q must be 1-%d word characters or dashes`, field, maxLen)
	}
	return nil
}

func normalizeTags(field string, tags []string) ([]string, error) {
	if len(tags) > maxTags {
		return nil, errs.Validationf(`Bad request: %q must contain at most %d items`, field, maxTags)
	}
	for _, t := range tags {
		if err := validateIdent(field, t, maxTagLen); err != nil {
			return nil, err
		}
	}
	if len(tags) == 0 {
		return nil, nil
	}
	return domain.MergeTags(nil, tags), nil
}

// NormalizePredicate checks the audience filter and returns a copy with
// deduplicated tag sets.
func NormalizePredicate(p domain.Predicate) (domain.Predicate, error) {
	var err error
	if p.Tags, err = normalizeTags("tags", p.Tags); err != nil {
		return p, err
	}
	if p.ExcludeTags, err = normalizeTags("excludeTags", p.ExcludeTags); err != nil {
		return p, err
	}
	if domain.HasAnyTag(p.Tags, p.ExcludeTags) {
		return p, errs.Validation(`Bad request: "tags" and "excludeTags" overlap`)
	}
	for k := range p.Properties {
		if k == "" {
			return p, errs.Validation(`Bad request: "properties" keys must not be empty`)
		}
	}

	if len(p.Interactions) > maxInteractions {
		return p, errs.Validationf(`Bad request: "interactions" must contain at most %d items`, maxInteractions)
	}
	for i, f := range p.Interactions {
		if err := validateIdent("interactions.templateId", f.TemplateID, maxTagLen); err != nil {
			return p, err
		}
		if !emailDatePattern.MatchString(f.EmailDate) {
			return p, errs.Validationf(`Bad request: "interactions[%d].emailDate" must be YYYY-MM-DD`, i)
		}
		if _, err := time.Parse(domain.DateStampLayout, f.EmailDate); err != nil {
			return p, errs.Validationf(`Bad request: "interactions[%d].emailDate" is not a date`, i)
		}
		if f.Click == nil && f.Open == nil {
			return p, errs.Validationf(`Bad request: "interactions[%d]" needs "click" or "open"`, i)
		}
	}

	if a := p.InteractionWithAnyEmail; a != nil && (a.Days < 1 || a.Days > maxInteractionDays) {
		return p, errs.Validationf(`Bad request: "interactionWithAnyEmail.days" must be 1-%d`, maxInteractionDays)
	}
	if p.JoinedAfter < 0 {
		return p, errs.Validation(`Bad request: "joinedAfter" must not be negative`)
	}
	return p, nil
}

// NormalizeBroadcast checks a broadcast request and resolves its template
// selection, list membership and start time. now anchors runAt checks.
func NormalizeBroadcast(b domain.BroadcastRequest, now time.Time) (domain.BroadcastRequest, error) {
	if b.TemplateID == "" {
		b.TemplateID = b.TemplateName
	}
	b.TemplateName = ""

	switch {
	case b.TemplateID != "" && len(b.Templates) > 0:
		return b, errs.Validation(`Bad request: "templateId" and "templates" are mutually exclusive`)
	case b.TemplateID == "" && len(b.Templates) == 0:
		return b, errs.Validation(`Bad request: "templateId" or "templates" is required`)
	case b.TemplateID != "":
		if err := validateIdent("templateId", b.TemplateID, maxTagLen); err != nil {
			return b, err
		}
		if b.WinningType != "" {
			return b, errs.Validation(`Bad request: "winningType" requires "templates"`)
		}
	default:
		if err := validateVariants(b.Templates); err != nil {
			return b, err
		}
		if b.WinningType != "" && b.WinningType != domain.WinningByOpen && b.WinningType != domain.WinningByClick {
			return b, errs.Validation(`Bad request: "winningType" must be one of [open, click]`)
		}
	}

	if b.List != "" {
		if err := validateIdent("list", b.List, maxTagLen); err != nil {
			return b, err
		}
		b.Tags = append(append([]string(nil), b.Tags...), b.List)
	}
	if b.TagOnClick != "" {
		if err := validateIdent("tagOnClick", b.TagOnClick, maxTagLen); err != nil {
			return b, err
		}
	}

	pred, err := NormalizePredicate(b.Predicate)
	if err != nil {
		return b, err
	}
	b.Predicate = pred

	if err := resolveStart(&b, now); err != nil {
		return b, err
	}
	b.Phase = domain.PhasePending
	b.CreatedAt = now.UnixMilli()
	return b, nil
}

func validateVariants(ts []domain.BroadcastTemplate) error {
	if len(ts) < 2 || len(ts) > maxTemplates {
		return errs.Validationf(`Bad request: "templates" must contain 2-%d variants`, maxTemplates)
	}
	total := 0
	seen := make(map[string]struct{}, len(ts))
	for _, t := range ts {
		if err := validateIdent("templates.templateId", t.TemplateID, maxTagLen); err != nil {
			return err
		}
		if _, dup := seen[t.TemplateID]; dup {
			return errs.Validationf(`Bad request: template %q appears twice`, t.TemplateID)
		}
		seen[t.TemplateID] = struct{}{}
		if t.TestPercent < 1 || t.TestPercent > 100 {
			return errs.Validation(`Bad request: "testPercent" must be 1-100`)
		}
		total += t.TestPercent
	}
	if total > 100 {
		return errs.Validation(`Bad request: "testPercent" values must not add up to more than 100`)
	}
	return nil
}

// resolveStart fills runAt. A subscriber-local start begins at the first
// instant any timezone reaches the wall clock time.
func resolveStart(b *domain.BroadcastRequest, now time.Time) error {
	switch b.DatetimeContext {
	case "", domain.DatetimeUTC:
		b.DatetimeContext = domain.DatetimeUTC
		if b.SubscriberRunAt != "" {
			return errs.Validation(`Bad request: "subscriberRunAt" requires datetimeContext "subscriber"`)
		}
		if b.RunAt == nil {
			ms := now.UnixMilli()
			b.RunAt = &ms
			return nil
		}
		if *b.RunAt <= now.Add(-runAtGrace).UnixMilli() {
			return errs.Validation(`Bad request: "runAt" is too far in the past`)
		}
	case domain.DatetimeSubscriber:
		start, err := scheduling.EarliestLocalStart(b.SubscriberRunAt)
		if err != nil {
			return errs.Validationf(`Bad request: "subscriberRunAt" must be %s`, scheduling.WallClockLayout)
		}
		if !start.After(now.Add(-runAtGrace)) {
			return errs.Validation(`Bad request: "subscriberRunAt" is too far in the past`)
		}
		ms := start.UnixMilli()
		b.RunAt = &ms
	default:
		return errs.Validation(`Bad request: "datetimeContext" must be one of [utc, subscriber]`)
	}
	return nil
}
