package httpclient

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"

	apperrors "github.com/utafrali/productsearch/pkg/errors"
)

// CircuitBreakerConfig tunes the breaker guarding one backend.
type CircuitBreakerConfig struct {
	// Name labels the breaker in logs and metrics.
	Name string
	// MaxRequests admitted while half-open. Zero admits one.
	MaxRequests uint32
	// Interval clears the closed-state counts. Zero never clears them.
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration
	// FailureRatio of failed requests that trips the breaker.
	FailureRatio float64
	// MinRequests seen before FailureRatio is evaluated.
	MinRequests uint32
}

// DefaultCircuitBreakerConfig trips when half of at least five calls fail
// within a minute and probes again after 30s.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:         name,
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

var (
	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "productsearch",
			Subsystem: "circuit_breaker",
			Name:      "state",
			Help:      "Circuit breaker state: 0 closed, 1 half-open, 2 open",
		},
		[]string{"name"},
	)
	breakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "productsearch",
			Subsystem: "circuit_breaker",
			Name:      "transitions_total",
			Help:      "Circuit breaker state changes by target state",
		},
		[]string{"name", "to"},
	)
	breakerRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "productsearch",
			Subsystem: "circuit_breaker",
			Name:      "rejected_total",
			Help:      "Requests refused without reaching the backend",
		},
		[]string{"name"},
	)
)

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return -1
}

// ErrCircuitOpen matches requests refused by an open or saturated breaker.
var ErrCircuitOpen = gobreaker.ErrOpenState

// BreakerTransport is an http.RoundTripper guarded by a circuit breaker.
// Transport errors and retryable statuses (429, 5xx) count as failures but
// failing responses still reach the caller, body intact.
type BreakerTransport struct {
	next    http.RoundTripper
	breaker *gobreaker.TwoStepCircuitBreaker[*http.Response]
	name    string
}

// NewBreakerTransport wraps next, or http.DefaultTransport when nil.
func NewBreakerTransport(next http.RoundTripper, cfg CircuitBreakerConfig, logger *slog.Logger) *BreakerTransport {
	if next == nil {
		next = http.DefaultTransport
	}
	if logger == nil {
		logger = slog.Default()
	}

	breakerState.WithLabelValues(cfg.Name).Set(stateValue(gobreaker.StateClosed))
	return &BreakerTransport{
		next: next,
		name: cfg.Name,
		breaker: gobreaker.NewTwoStepCircuitBreaker[*http.Response](gobreaker.Settings{
			Name:        cfg.Name,
			MaxRequests: cfg.MaxRequests,
			Interval:    cfg.Interval,
			Timeout:     cfg.Timeout,
			ReadyToTrip: tripAt(cfg.MinRequests, cfg.FailureRatio),
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state change",
					slog.String("breaker", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()),
				)
				breakerState.WithLabelValues(name).Set(stateValue(to))
				breakerTransitions.WithLabelValues(name, to.String()).Inc()
			},
		}),
	}
}

func tripAt(minRequests uint32, ratio float64) func(gobreaker.Counts) bool {
	return func(c gobreaker.Counts) bool {
		if c.Requests == 0 || c.Requests < minRequests {
			return false
		}
		return float64(c.TotalFailures)/float64(c.Requests) >= ratio
	}
}

// RoundTrip refuses the request while the breaker is open. Refusals match
// ErrCircuitOpen and apperrors.ErrBackendUnavailable.
func (t *BreakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	done, err := t.breaker.Allow()
	if err != nil {
		breakerRejected.WithLabelValues(t.name).Inc()
		return nil, fmt.Errorf("%s: %w: %w", t.name, apperrors.ErrBackendUnavailable, err)
	}

	resp, err := t.next.RoundTrip(req)
	switch {
	case err != nil && req.Context().Err() != nil:
		// Abandoned by the caller, not the backend's fault.
		done(true)
	case err != nil:
		done(false)
	default:
		done(!IsRetryable(resp.StatusCode))
	}
	return resp, err
}

// State returns the breaker's current state.
func (t *BreakerTransport) State() gobreaker.State {
	return t.breaker.State()
}
