package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ignite/listflow/internal/pkg/httputil"
)

// HealthStatus represents the overall health of the system.
type HealthStatus struct {
	Status string                    `json:"status"` // "healthy", "degraded", "unhealthy"
	Uptime string                    `json:"uptime"`
	Checks map[string]ComponentCheck `json:"checks"`
}

// ComponentCheck represents the health of a single component.
type ComponentCheck struct {
	Status  string `json:"status"` // "up", "down", "degraded"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// Check tests one dependency.
type Check func(ctx context.Context) error

// HealthChecker runs the registered dependency checks.
type HealthChecker struct {
	checks    map[string]Check
	slow      time.Duration
	startTime time.Time
}

// NewHealthChecker creates a checker with no checks registered.
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{checks: map[string]Check{}, slow: time.Second, startTime: time.Now()}
}

// Register adds a named check.
func (hc *HealthChecker) Register(name string, c Check) {
	hc.checks[name] = c
}

// HandleHealth reports every check. The status code is 503 only when a
// check is down.
//
//	GET /health
func (hc *HealthChecker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())
	overall := determineOverallStatus(checks)

	code := http.StatusOK
	if overall == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	httputil.JSON(w, code, HealthStatus{
		Status: overall,
		Uptime: time.Since(hc.startTime).Truncate(time.Second).String(),
		Checks: checks,
	})
}

// HandleLiveness always returns 200 while the process runs.
//
//	GET /health/live
func (hc *HealthChecker) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "alive"})
}

func (hc *HealthChecker) runAllChecks(ctx context.Context) map[string]ComponentCheck {
	type result struct {
		name  string
		check ComponentCheck
	}
	ch := make(chan result, len(hc.checks))
	for name, c := range hc.checks {
		go func(name string, c Check) {
			ch <- result{name, hc.run(ctx, c)}
		}(name, c)
	}

	out := make(map[string]ComponentCheck, len(hc.checks))
	for range hc.checks {
		r := <-ch
		out[r.name] = r.check
	}
	return out
}

func (hc *HealthChecker) run(ctx context.Context, c Check) ComponentCheck {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	start := time.Now()
	err := c(ctx)
	latency := time.Since(start)
	switch {
	case err != nil:
		return ComponentCheck{Status: "down", Latency: latency.String(), Message: fmt.Sprintf("check failed: %v", err)}
	case latency > hc.slow:
		return ComponentCheck{Status: "degraded", Latency: latency.String(), Message: fmt.Sprintf("slow response (%s)", latency)}
	default:
		return ComponentCheck{Status: "up", Latency: latency.String()}
	}
}

func determineOverallStatus(checks map[string]ComponentCheck) string {
	overall := "healthy"
	for _, c := range checks {
		switch c.Status {
		case "down":
			return "unhealthy"
		case "degraded":
			overall = "degraded"
		}
	}
	return overall
}
