// Package mailing renders the content of built-in messages with the
// Liquid template language.
package mailing

import (
	"html"
	"net/url"
	"strings"
	"sync"

	"github.com/osteele/liquid"

	"github.com/ignite/listflow/internal/pkg/logger"
)

// TemplateService renders Liquid templates and keeps parsed ones by key.
type TemplateService struct {
	engine *liquid.Engine
	parsed sync.Map // cache key -> *liquid.Template
}

// NewTemplateService returns a service with the message filters installed.
func NewTemplateService() *TemplateService {
	e := liquid.NewEngine()
	e.RegisterFilter("default", orDefault)
	e.RegisterFilter("urlencode", url.QueryEscape)
	e.RegisterFilter("escape", html.EscapeString)
	e.RegisterFilter("mask_email", maskEmail)
	return &TemplateService{engine: e}
}

// orDefault replaces missing and blank values with fallback.
func orDefault(v any, fallback string) any {
	switch s := v.(type) {
	case nil:
		return fallback
	case string:
		if strings.TrimSpace(s) == "" {
			return fallback
		}
	}
	return v
}

// maskEmail keeps the first two characters of the local part:
// john@example.com becomes jo***@example.com.
func maskEmail(addr string) string {
	at := strings.LastIndexByte(addr, '@')
	if at <= 0 {
		return addr
	}
	keep := min(at, 2)
	return addr[:keep] + "***" + addr[at:]
}

// Render executes src with bindings. When key is set the parsed template
// is reused on later calls with the same key, whatever src they pass.
func (ts *TemplateService) Render(key, src string, bindings map[string]any) (string, error) {
	var tpl *liquid.Template
	if key != "" {
		if v, ok := ts.parsed.Load(key); ok {
			tpl = v.(*liquid.Template)
		}
	}
	if tpl == nil {
		var err error
		if tpl, err = ts.engine.ParseString(src); err != nil {
			logger.Error("template parse failed", "key", key, "error", err.Error())
			return "", err
		}
		if key != "" {
			ts.parsed.Store(key, tpl)
		}
	}
	return tpl.RenderString(bindings)
}
