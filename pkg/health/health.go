// Package health serves liveness and readiness probes backed by dependency
// checks.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// DefaultTimeout bounds a readiness probe when none is configured.
const DefaultTimeout = 5 * time.Second

// Checker reports a dependency as healthy by returning nil.
type Checker func(ctx context.Context) error

// Status of the service or of one dependency.
type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// Response is the probe body.
type Response struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is the outcome of one dependency check.
type CheckResult struct {
	Status    Status `json:"status"`
	Critical  bool   `json:"critical"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type dependency struct {
	name     string
	check    Checker
	critical bool
}

// Handler aggregates dependency checks. Any failing critical dependency makes
// the service down and the readiness probe 503. Failing non-critical ones
// only degrade it.
type Handler struct {
	mu      sync.RWMutex
	deps    map[string]dependency
	timeout time.Duration
	now     func() time.Time
}

// NewHandler creates a handler with DefaultTimeout.
func NewHandler() *Handler {
	return NewHandlerWithTimeout(DefaultTimeout)
}

// NewHandlerWithTimeout creates a handler that gives all checks of one probe
// at most timeout.
func NewHandlerWithTimeout(timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Handler{
		deps:    make(map[string]dependency),
		timeout: timeout,
		now:     time.Now,
	}
}

// RegisterCritical adds or replaces a dependency the service cannot serve without.
func (h *Handler) RegisterCritical(name string, check Checker) {
	h.register(dependency{name: name, check: check, critical: true})
}

// RegisterNonCritical adds or replaces an optional dependency.
func (h *Handler) RegisterNonCritical(name string, check Checker) {
	h.register(dependency{name: name, check: check})
}

func (h *Handler) register(d dependency) {
	h.mu.Lock()
	h.deps[d.name] = d
	h.mu.Unlock()
}

// Names returns the registered dependency names in order.
func (h *Handler) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.deps))
	for name := range h.deps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check runs every dependency check concurrently and aggregates the results.
func (h *Handler) Check(ctx context.Context) Response {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	h.mu.RLock()
	deps := make([]dependency, 0, len(h.deps))
	for _, d := range h.deps {
		deps = append(deps, d)
	}
	h.mu.RUnlock()

	results := make([]CheckResult, len(deps))
	var wg sync.WaitGroup
	for i, d := range deps {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = h.run(ctx, d)
		}()
	}
	wg.Wait()

	resp := Response{Status: StatusUp, Timestamp: h.now().UTC()}
	if len(deps) > 0 {
		resp.Checks = make(map[string]CheckResult, len(deps))
	}
	for i, d := range deps {
		res := results[i]
		resp.Checks[d.name] = res
		if res.Status == StatusUp {
			continue
		}
		if res.Critical {
			resp.Status = StatusDown
		} else if resp.Status == StatusUp {
			resp.Status = StatusDegraded
		}
	}
	return resp
}

func (h *Handler) run(ctx context.Context, d dependency) CheckResult {
	start := h.now()
	err := d.check(ctx)
	res := CheckResult{
		Status:    StatusUp,
		Critical:  d.critical,
		LatencyMS: h.now().Sub(start).Milliseconds(),
	}
	if err != nil {
		res.Status = StatusDown
		res.Error = err.Error()
	}
	return res
}

// LivenessHandler answers 200 while the process runs.
func (h *Handler) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, Response{Status: StatusUp, Timestamp: h.now().UTC()})
	}
}

// ReadinessHandler answers 200 unless a critical dependency is down, then 503.
func (h *Handler) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := h.Check(r.Context())
		code := http.StatusOK
		if resp.Status == StatusDown {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	}
}

func writeJSON(w http.ResponseWriter, code int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
