package memory

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/ignite/listflow/internal/service/settings"
)

// SettingsRepository stores setting values as JSON keyed by setting name.
type SettingsRepository struct {
	mu     sync.RWMutex
	values map[string][]byte
}

var _ settings.Repository = (*SettingsRepository)(nil)

// NewSettingsRepository returns an empty repository.
func NewSettingsRepository() *SettingsRepository {
	return &SettingsRepository{values: make(map[string][]byte)}
}

func (r *SettingsRepository) Get(_ context.Context, name string, out any) (bool, error) {
	r.mu.RLock()
	raw, ok := r.values[name]
	r.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, out)
}

func (r *SettingsRepository) Put(_ context.Context, name string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[name] = raw
	return nil
}

func (r *SettingsRepository) Delete(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.values, name)
	return nil
}

func (r *SettingsRepository) ScanPrefix(_ context.Context, prefix string) ([]settings.Decode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []settings.Decode
	for name, raw := range r.values {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		raw := raw
		out = append(out, func(v any) error { return json.Unmarshal(raw, v) })
	}
	return out, nil
}
