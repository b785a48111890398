package settings

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/ignite/listflow/internal/domain"
	"github.com/ignite/listflow/internal/pkg/errs"
)

var (
	listIDPattern          = regexp.MustCompile(`^[a-zA-Z0-9_-]*$`)
	autoresponderIDPattern = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
	labelledEmailPattern   = regexp.MustCompile(`^.*<[^\s@]+@[^\s@]+\.[^\s@]+>$`)
	basicEmailPattern      = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

const (
	maxListIDLen        = 64
	maxListNameLen      = 64
	maxLabelledEmailLen = 256
	maxEmailLen         = 254
)

// Service implements settings business logic. It is safe for concurrent use.
type Service struct {
	repo                   Repository
	defaultAutoConfirmTags []string
}

// NewService creates a settings service. defaultAutoConfirmTags applies
// until the allow-list is stored in the Settings table.
func NewService(repo Repository, defaultAutoConfirmTags []string) *Service {
	return &Service{repo: repo, defaultAutoConfirmTags: defaultAutoConfirmTags}
}

// Repo exposes the underlying store to sibling services that persist
// their own settings items.
func (s *Service) Repo() Repository {
	return s.repo
}

// Lists returns every list definition.
func (s *Service) Lists(ctx context.Context) ([]domain.List, error) {
	var lists []domain.List
	if _, err := s.repo.Get(ctx, domain.SettingLists, &lists); err != nil {
		return nil, errs.Transient(err, "get lists setting")
	}
	if lists == nil {
		lists = []domain.List{}
	}
	return lists, nil
}

func validateListID(id string) error {
	switch {
	case id == "":
		return errs.Validation("No list id provided")
	case !listIDPattern.MatchString(id):
		return errs.Validation("Invalid list id: contains invalid characters")
	case len(id) > maxListIDLen:
		return errs.Validation("Invalid list id: over 64 characters")
	}
	return nil
}

// ValidateList checks a list definition before it is stored.
func ValidateList(l domain.List) error {
	if err := validateListID(l.ID); err != nil {
		return err
	}
	switch {
	case l.Name == "":
		return errs.Validation("No name provided")
	case len(l.Name) > maxListNameLen:
		return errs.Validation("Invalid list name: over 64 characters")
	}
	if l.SourceEmail == nil {
		return nil
	}
	email := *l.SourceEmail
	if labelledEmailPattern.MatchString(email) {
		if len(email) > maxLabelledEmailLen {
			return errs.Validation("Invalid source email: labelled email too long")
		}
		return nil
	}
	if !basicEmailPattern.MatchString(email) {
		return errs.Validation("Invalid source email: does not appear to be email")
	}
	if len(email) > maxEmailLen {
		return errs.Validation("Invalid source email: email address too long")
	}
	return nil
}

// PutList creates or updates a list definition. It reports whether the
// list was newly created.
func (s *Service) PutList(ctx context.Context, l domain.List) (bool, error) {
	if err := ValidateList(l); err != nil {
		return false, err
	}
	lists, err := s.Lists(ctx)
	if err != nil {
		return false, err
	}

	created := true
	for i := range lists {
		if lists[i].ID == l.ID {
			lists[i].Name = l.Name
			lists[i].SourceEmail = l.SourceEmail
			created = false
			break
		}
	}
	if created {
		lists = append(lists, l)
	}
	if err := s.repo.Put(ctx, domain.SettingLists, lists); err != nil {
		return false, errs.Transient(err, "put lists setting")
	}
	return created, nil
}

// DeleteList removes a list definition. Subscriber tags are left alone.
func (s *Service) DeleteList(ctx context.Context, id string) error {
	if err := validateListID(id); err != nil {
		return err
	}
	lists, err := s.Lists(ctx)
	if err != nil {
		return err
	}
	kept := lists[:0]
	for _, l := range lists {
		if l.ID != id {
			kept = append(kept, l)
		}
	}
	if len(kept) == len(lists) {
		return ErrListNotFound
	}
	if err := s.repo.Put(ctx, domain.SettingLists, kept); err != nil {
		return errs.Transient(err, "put lists setting")
	}
	return nil
}

// ListByID returns one list definition.
func (s *Service) ListByID(ctx context.Context, id string) (*domain.List, error) {
	lists, err := s.Lists(ctx)
	if err != nil {
		return nil, err
	}
	for i := range lists {
		if lists[i].ID == id {
			return &lists[i], nil
		}
	}
	return nil, ErrListNotFound
}

func autoresponderSetting(id string) string {
	return domain.AutoresponderSettingPrefix + id
}

// Autoresponder loads a definition by id.
func (s *Service) Autoresponder(ctx context.Context, id string) (*domain.Autoresponder, error) {
	if id == "" {
		return nil, errs.Validation("Bad request: invalid autoresponder id")
	}
	var a domain.Autoresponder
	found, err := s.repo.Get(ctx, autoresponderSetting(id), &a)
	if err != nil {
		return nil, errs.Transient(err, "get autoresponder")
	}
	if !found {
		return nil, ErrAutoresponderNotFound
	}
	if a.AutoresponderID == "" {
		a.AutoresponderID = id
	}
	return &a, nil
}

// PutAutoresponder stores a definition, replacing any with the same id.
func (s *Service) PutAutoresponder(ctx context.Context, a *domain.Autoresponder) error {
	if a == nil || !autoresponderIDPattern.MatchString(a.AutoresponderID) {
		return errs.Validation("Bad request: invalid autoresponder id")
	}
	for name, step := range a.Steps {
		if name == "" {
			return errs.Validation("Bad request: unnamed autoresponder step")
		}
		if step.TemplateID == "" && step.Subject == "" {
			return errs.Validationf("Bad request: step %q has neither templateId nor subject", name)
		}
	}
	if err := s.repo.Put(ctx, autoresponderSetting(a.AutoresponderID), a); err != nil {
		return errs.Transient(err, "put autoresponder")
	}
	return nil
}

// DeleteAutoresponder removes a definition. Already queued steps stay.
func (s *Service) DeleteAutoresponder(ctx context.Context, id string) error {
	if id == "" {
		return errs.Validation("Bad request: invalid autoresponder id")
	}
	if err := s.repo.Delete(ctx, autoresponderSetting(id)); err != nil {
		return errs.Transient(err, "delete autoresponder")
	}
	return nil
}

// Autoresponders returns every definition ordered by id.
func (s *Service) Autoresponders(ctx context.Context) ([]domain.Autoresponder, error) {
	decoders, err := s.repo.ScanPrefix(ctx, domain.AutoresponderSettingPrefix)
	if err != nil {
		return nil, errs.Transient(err, "scan autoresponders")
	}
	out := make([]domain.Autoresponder, 0, len(decoders))
	for _, decode := range decoders {
		var a domain.Autoresponder
		if err := decode(&a); err != nil {
			return nil, errs.Wrap(err, "decode autoresponder")
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AutoresponderID < out[j].AutoresponderID })
	return out, nil
}

// TriggeredAutoresponders returns the definitions enrolled automatically
// on the given event.
func (s *Service) TriggeredAutoresponders(ctx context.Context, trigger string) ([]domain.Autoresponder, error) {
	all, err := s.Autoresponders(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.Autoresponder
	for _, a := range all {
		if a.Trigger == trigger {
			out = append(out, a)
		}
	}
	return out, nil
}

// BlockedDomains returns the deny-listed email domains.
func (s *Service) BlockedDomains(ctx context.Context) ([]string, error) {
	var domains []string
	if _, err := s.repo.Get(ctx, domain.SettingBlockedEmailDomains, &domains); err != nil {
		return nil, errs.Transient(err, "get blocked email domains")
	}
	if domains == nil {
		domains = []string{}
	}
	return domains, nil
}

// PutBlockedDomains replaces the deny-list. Entries are lowercased and
// may be given with a leading "@".
func (s *Service) PutBlockedDomains(ctx context.Context, domains []string) error {
	normalized := make([]string, 0, len(domains))
	seen := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		d = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), "@")
		if d == "" {
			continue
		}
		if strings.ContainsAny(d, "@ \t") {
			return errs.Validationf("Invalid domain: %s", d)
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		normalized = append(normalized, d)
	}
	if err := s.repo.Put(ctx, domain.SettingBlockedEmailDomains, normalized); err != nil {
		return errs.Transient(err, "put blocked email domains")
	}
	return nil
}

// IsBlocked reports whether email belongs to a deny-listed domain.
func (s *Service) IsBlocked(ctx context.Context, email string) (bool, error) {
	d := domain.EmailDomain(email)
	if d == "" {
		return false, nil
	}
	domains, err := s.BlockedDomains(ctx)
	if err != nil {
		return false, err
	}
	for _, b := range domains {
		if b == d {
			return true, nil
		}
	}
	return false, nil
}

// AutoConfirmTags returns the tags whose click confirms a subscriber.
func (s *Service) AutoConfirmTags(ctx context.Context) ([]string, error) {
	var tags []string
	found, err := s.repo.Get(ctx, domain.SettingAutoConfirmTags, &tags)
	if err != nil {
		return nil, errs.Transient(err, "get auto-confirm tags")
	}
	if !found {
		return append([]string(nil), s.defaultAutoConfirmTags...), nil
	}
	return tags, nil
}

// PutAutoConfirmTags stores the allow-list from its comma-separated form.
func (s *Service) PutAutoConfirmTags(ctx context.Context, raw string) error {
	tags := SplitTags(raw)
	if err := s.repo.Put(ctx, domain.SettingAutoConfirmTags, tags); err != nil {
		return errs.Transient(err, "put auto-confirm tags")
	}
	return nil
}

// SplitTags parses a comma-separated tag list, dropping blanks.
func SplitTags(raw string) []string {
	tags := []string{}
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
