package httpclient

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/productsearch/pkg/errors"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedTransport answers with status, or err when set, and counts calls.
type scriptedTransport struct {
	status atomic.Int32
	err    error
	calls  atomic.Int32
}

func (s *scriptedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return &http.Response{
		StatusCode: int(s.status.Load()),
		Body:       io.NopCloser(strings.NewReader(`{}`)),
		Request:    req,
	}, nil
}

func answering(status int) *scriptedTransport {
	s := &scriptedTransport{}
	s.status.Store(int32(status))
	return s
}

func breakerConfig(name string) CircuitBreakerConfig {
	cfg := DefaultCircuitBreakerConfig(name)
	cfg.MinRequests = 3
	cfg.Timeout = time.Second
	return cfg
}

func send(t *testing.T, rt http.RoundTripper, ctx context.Context) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://es.invalid/products/_search", http.NoBody)
	require.NoError(t, err)
	resp, err := rt.RoundTrip(req)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return resp, err
}

func TestBreakerTransport_Statuses(t *testing.T) {
	tests := []struct {
		status int
		want   gobreaker.State
	}{
		{http.StatusOK, gobreaker.StateClosed},
		{http.StatusNotFound, gobreaker.StateClosed},
		{http.StatusConflict, gobreaker.StateClosed},
		{http.StatusTooManyRequests, gobreaker.StateOpen},
		{http.StatusInternalServerError, gobreaker.StateOpen},
		{http.StatusServiceUnavailable, gobreaker.StateOpen},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			bt := NewBreakerTransport(answering(tt.status), breakerConfig("statuses"), discardLogger())

			for range 3 {
				resp, err := send(t, bt, context.Background())
				require.NoError(t, err)
				assert.Equal(t, tt.status, resp.StatusCode)
			}
			assert.Equal(t, tt.want, bt.State())
		})
	}
}

func TestBreakerTransport_OpenRejectsWithoutCalling(t *testing.T) {
	backend := answering(http.StatusBadGateway)
	name := "reject-" + t.Name()
	bt := NewBreakerTransport(backend, breakerConfig(name), discardLogger())

	for range 3 {
		_, _ = send(t, bt, context.Background())
	}
	require.Equal(t, gobreaker.StateOpen, bt.State())

	for range 4 {
		_, err := send(t, bt, context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCircuitOpen)
		assert.ErrorIs(t, err, apperrors.ErrBackendUnavailable)
		assert.Equal(t, http.StatusServiceUnavailable, apperrors.HTTPStatus(err))
	}
	assert.EqualValues(t, 3, backend.calls.Load())
	assert.Equal(t, 4.0, testutil.ToFloat64(breakerRejected.WithLabelValues(name)))
	assert.Equal(t, 2.0, testutil.ToFloat64(breakerState.WithLabelValues(name)))
	assert.Equal(t, 1.0, testutil.ToFloat64(breakerTransitions.WithLabelValues(name, "open")))
}

func TestBreakerTransport_RecoversThroughHalfOpen(t *testing.T) {
	backend := answering(http.StatusInternalServerError)
	cfg := breakerConfig("recovery-" + t.Name())
	cfg.Timeout = 50 * time.Millisecond
	bt := NewBreakerTransport(backend, cfg, discardLogger())

	for range 3 {
		_, _ = send(t, bt, context.Background())
	}
	require.Equal(t, gobreaker.StateOpen, bt.State())

	backend.status.Store(http.StatusOK)
	require.Eventually(t, func() bool { return bt.State() == gobreaker.StateHalfOpen }, time.Second, 10*time.Millisecond)

	resp, err := send(t, bt, context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, gobreaker.StateClosed, bt.State())
	assert.Equal(t, 0.0, testutil.ToFloat64(breakerState.WithLabelValues(cfg.Name)))
}

func TestBreakerTransport_TransportErrors(t *testing.T) {
	bt := NewBreakerTransport(&scriptedTransport{err: errors.New("connection refused")}, breakerConfig("dial"), discardLogger())

	for range 3 {
		_, err := send(t, bt, context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
	}
	assert.Equal(t, gobreaker.StateOpen, bt.State())
}

func TestBreakerTransport_CanceledCallsDoNotCount(t *testing.T) {
	bt := NewBreakerTransport(&scriptedTransport{err: context.Canceled}, breakerConfig("cancel"), discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for range 5 {
		_, err := send(t, bt, ctx)
		require.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, gobreaker.StateClosed, bt.State())
}

func TestBreakerTransport_PassesBodyThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":{"type":"search_phase_execution_exception"}}`)
	}))
	defer srv.Close()

	client := &http.Client{Transport: NewBreakerTransport(nil, breakerConfig("body"), discardLogger())}
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "search_phase_execution_exception")
}

func TestTripAt(t *testing.T) {
	trip := tripAt(4, 0.5)

	assert.False(t, trip(gobreaker.Counts{}))
	assert.False(t, trip(gobreaker.Counts{Requests: 3, TotalFailures: 3}))
	assert.False(t, trip(gobreaker.Counts{Requests: 4, TotalFailures: 1}))
	assert.True(t, trip(gobreaker.Counts{Requests: 4, TotalFailures: 2}))
	assert.True(t, tripAt(0, 0.5)(gobreaker.Counts{Requests: 1, TotalFailures: 1}))
}

func TestDefaultCircuitBreakerConfig(t *testing.T) {
	assert.Equal(t, CircuitBreakerConfig{
		Name:         "elasticsearch",
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}, DefaultCircuitBreakerConfig("elasticsearch"))
}
