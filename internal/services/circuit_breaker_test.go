package services

import (
	"errors"
	"testing"
	"time"

	"taskelio/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_Transitions(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(config.CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Minute, HalfOpenMaxReqs: 1})
	cb.now = func() time.Time { return now }

	boom := errors.New("upstream 502")
	assert.Equal(t, boom, cb.Execute(func() error { return boom }))
	assert.Equal(t, StateClosedCB, cb.State())
	assert.Equal(t, boom, cb.Execute(func() error { return boom }))
	require.Equal(t, StateOpenCB, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.True(t, errors.Is(err, ErrCircuitOpen))
	assert.False(t, called, "open breaker must not call upstream")

	now = now.Add(2 * time.Minute)
	require.True(t, cb.Allow())
	assert.Equal(t, StateHalfOpenCB, cb.State())
	assert.False(t, cb.Allow(), "only one probe in half-open")

	cb.OnSuccess()
	assert.Equal(t, StateClosedCB, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(config.CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Second})
	cb.now = func() time.Time { return now }

	cb.OnFailure()
	require.Equal(t, StateOpenCB, cb.State())

	now = now.Add(2 * time.Second)
	require.True(t, cb.Allow())
	cb.OnFailure()
	assert.Equal(t, StateOpenCB, cb.State())
}

func TestCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker(config.CircuitBreakerConfig{})
	stats := cb.Stats()
	assert.Equal(t, "closed", stats["state"])
	assert.Equal(t, 5, stats["max_failures"])
	assert.Equal(t, "1m0s", stats["reset_timeout"])

	cb.OnFailure()
	cb.Reset()
	assert.Equal(t, 0, cb.Stats()["failure_count"])
}

func TestCircuitBreakerState_String(t *testing.T) {
	tests := []struct {
		state    CircuitBreakerState
		expected string
	}{
		{StateClosedCB, "closed"},
		{StateOpenCB, "open"},
		{StateHalfOpenCB, "half-open"},
		{CircuitBreakerState(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("String() = %v, want %v", got, tt.expected)
		}
	}
}
