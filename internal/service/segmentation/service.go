package segmentation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/listflow/internal/domain"
	"github.com/ignite/listflow/internal/metrics"
	"github.com/ignite/listflow/internal/pkg/distlock"
	"github.com/ignite/listflow/internal/pkg/errs"
	"github.com/ignite/listflow/internal/pkg/logger"
	"github.com/ignite/listflow/internal/service/sending"
	"github.com/ignite/listflow/internal/service/settings"
)

// PreviewTriggered is the status of a count preview awaiting the resolver.
const PreviewTriggered = "triggered"

// Archiver keeps a durable copy of every accepted broadcast.
type Archiver interface {
	ArchiveBroadcast(ctx context.Context, b *domain.BroadcastRequest) error
}

// Options configures a Service.
type Options struct {
	Now   func() time.Time
	NewID func() string
}

// Service accepts broadcasts and count previews.
type Service struct {
	settings  *settings.Service
	templates sending.TemplateChecker
	locks     distlock.Factory
	archive   Archiver
	opts      Options
}

// NewService creates a segmentation service. archive may be nil.
func NewService(st *settings.Service, templates sending.TemplateChecker, locks distlock.Factory, archive Archiver, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Service{settings: st, templates: templates, locks: locks, archive: archive, opts: opts}
}

// Submit validates a broadcast, takes the broadcast lease and stores the
// request for the resolver. The lease is owned by the broadcast id.
func (s *Service) Submit(ctx context.Context, req domain.BroadcastRequest) (*domain.BroadcastRequest, error) {
	b, err := NormalizeBroadcast(req, s.opts.Now())
	if err != nil {
		metrics.Broadcasts.WithLabelValues("invalid").Inc()
		return nil, err
	}
	if err := s.checkTemplates(ctx, b.TemplateIDs()); err != nil {
		metrics.Broadcasts.WithLabelValues("invalid").Inc()
		return nil, err
	}
	b.BroadcastID = s.opts.NewID()

	lock := s.locks(b.BroadcastID)
	ok, err := lock.Acquire(ctx)
	if err != nil {
		return nil, errs.Transient(err, "acquire broadcast lease")
	}
	if !ok {
		metrics.Broadcasts.WithLabelValues("rejected").Inc()
		return nil, ErrBroadcastInProgress
	}

	repo := s.settings.Repo()
	var existing domain.BroadcastRequest
	found, err := repo.Get(ctx, domain.SettingPendingBroadcast, &existing)
	if err == nil && found {
		s.release(ctx, lock, b.BroadcastID)
		metrics.Broadcasts.WithLabelValues("rejected").Inc()
		return nil, ErrBroadcastInProgress
	}
	if err == nil {
		err = repo.Put(ctx, domain.SettingPendingBroadcast, &b)
	}
	if err != nil {
		s.release(ctx, lock, b.BroadcastID)
		return nil, errs.Transient(err, "store pending broadcast")
	}

	if s.archive != nil {
		if err := s.archive.ArchiveBroadcast(ctx, &b); err != nil {
			logger.Warn("broadcast archive failed", "broadcastId", b.BroadcastID, "error", err)
		}
	}
	metrics.Broadcasts.WithLabelValues("accepted").Inc()
	logger.Info("broadcast accepted", "broadcastId", b.BroadcastID, "templates", b.TemplateIDs(), "runAt", *b.RunAt)
	return &b, nil
}

func (s *Service) checkTemplates(ctx context.Context, ids []string) error {
	for _, id := range ids {
		ok, err := s.templates.TemplateExists(ctx, id)
		if err != nil {
			return errs.Transient(err, "check template")
		}
		if !ok {
			return errs.Wrapf(ErrTemplateNotFound, "template %q", id)
		}
	}
	return nil
}

func (s *Service) release(ctx context.Context, lock distlock.DistLock, id string) {
	if err := lock.Release(ctx); err != nil {
		logger.Error("release broadcast lease", "broadcastId", id, "error", err)
	}
}

// PendingBroadcast returns the broadcast waiting for the resolver.
func (s *Service) PendingBroadcast(ctx context.Context) (*domain.BroadcastRequest, error) {
	var b domain.BroadcastRequest
	found, err := s.settings.Repo().Get(ctx, domain.SettingPendingBroadcast, &b)
	if err != nil {
		return nil, errs.Transient(err, "get pending broadcast")
	}
	if !found {
		return nil, ErrNoPendingBroadcast
	}
	return &b, nil
}

// ReleaseLease ends a broadcast once the resolver has taken it. An empty
// id releases the lease of the stored pending broadcast. The pending
// request is removed only when it belongs to id.
func (s *Service) ReleaseLease(ctx context.Context, id string) error {
	pending, err := s.PendingBroadcast(ctx)
	switch {
	case errs.Is(err, ErrNoPendingBroadcast) && id != "":
	case err != nil:
		return err
	}
	if id == "" {
		id = pending.BroadcastID
	}
	if err := s.locks(id).Release(ctx); err != nil {
		return errs.Transient(err, "release broadcast lease")
	}
	if pending != nil && pending.BroadcastID == id {
		if err := s.settings.Repo().Delete(ctx, domain.SettingPendingBroadcast); err != nil {
			return errs.Transient(err, "delete pending broadcast")
		}
	}
	logger.Info("broadcast lease released", "broadcastId", id)
	return nil
}

// PreviewCount stores a count request for the resolver, replacing any
// earlier one.
func (s *Service) PreviewCount(ctx context.Context, p domain.Predicate) (*domain.CountPreview, error) {
	p, err := NormalizePredicate(p)
	if err != nil {
		return nil, err
	}
	preview := &domain.CountPreview{Status: PreviewTriggered, Predicate: p}
	if err := s.settings.Repo().Put(ctx, domain.SettingPreviewCount, preview); err != nil {
		return nil, errs.Transient(err, "store count preview")
	}
	return preview, nil
}

// PreviewResult returns the latest count preview with whatever status the
// resolver has recorded.
func (s *Service) PreviewResult(ctx context.Context) (*domain.CountPreview, error) {
	var preview domain.CountPreview
	found, err := s.settings.Repo().Get(ctx, domain.SettingPreviewCount, &preview)
	if err != nil {
		return nil, errs.Transient(err, "get count preview")
	}
	if !found {
		return nil, ErrPreviewNotFound
	}
	return &preview, nil
}
