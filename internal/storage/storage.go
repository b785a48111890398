// Package storage archives accepted broadcast requests as JSON documents,
// either in S3 or in a local directory for development.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/ignite/listflow/internal/config"
	"github.com/ignite/listflow/internal/domain"
)

// Archive stores broadcast documents under dated keys.
type Archive struct {
	prefix string

	s3 *bucketStore

	mu        sync.Mutex
	localPath string
}

// BroadcastKey returns the object key of a broadcast document:
// <prefix>/YYYY/MM/DD/<id>.json, dated by the creation time.
func BroadcastKey(prefix string, b *domain.BroadcastRequest) string {
	day := time.UnixMilli(b.CreatedAt).UTC().Format("2006/01/02")
	return path.Join(prefix, day, b.BroadcastID+".json")
}

// New builds the configured archive. It returns nil when archiving is
// disabled.
func New(cfg config.ArchiveConfig, s3Client S3API) (*Archive, error) {
	a := &Archive{prefix: cfg.Prefix}
	switch {
	case cfg.Bucket != "":
		if s3Client == nil {
			return nil, fmt.Errorf("archive bucket %s configured without an S3 client", cfg.Bucket)
		}
		a.s3 = &bucketStore{client: s3Client, bucket: cfg.Bucket}
	case cfg.LocalPath != "":
		if err := os.MkdirAll(cfg.LocalPath, 0755); err != nil {
			return nil, fmt.Errorf("creating archive directory: %w", err)
		}
		a.localPath = cfg.LocalPath
	default:
		return nil, nil
	}
	return a, nil
}

// ArchiveBroadcast writes one broadcast document.
func (a *Archive) ArchiveBroadcast(ctx context.Context, b *domain.BroadcastRequest) error {
	key := BroadcastKey(a.prefix, b)
	if a.s3 != nil {
		return a.s3.putBroadcast(ctx, key, b)
	}
	return a.saveLocal(key, b)
}

// GetBroadcast reads a broadcast document back.
func (a *Archive) GetBroadcast(ctx context.Context, key string) (*domain.BroadcastRequest, error) {
	if a.s3 != nil {
		return a.s3.getBroadcast(ctx, key)
	}
	var b domain.BroadcastRequest
	data, err := os.ReadFile(filepath.Join(a.localPath, filepath.FromSlash(key)))
	if err != nil {
		return nil, fmt.Errorf("reading archived broadcast: %w", err)
	}
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("unmarshaling archived broadcast: %w", err)
	}
	return &b, nil
}

func (a *Archive) saveLocal(key string, b *domain.BroadcastRequest) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	p := filepath.Join(a.localPath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("creating archive directory: %w", err)
	}
	body, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling broadcast %s: %w", b.BroadcastID, err)
	}
	if err := os.WriteFile(p, body, 0644); err != nil {
		return fmt.Errorf("writing archive file: %w", err)
	}
	return nil
}
