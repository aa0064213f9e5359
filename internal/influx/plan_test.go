package influx

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanSpan(t *testing.T) {
	tests := []struct {
		name         string
		span         time.Duration
		wantStart    string
		wantWindowMs uint64
	}{
		{
			name:         "narrow span hits the 30s floor",
			span:         time.Minute,
			wantStart:    "-60000ms",
			wantWindowMs: 30_000,
		},
		{
			name:         "one hour still floors",
			span:         time.Hour,
			wantStart:    "-3600000ms",
			wantWindowMs: 30_000,
		},
		{
			name:         "wide span scales with span/1000",
			span:         100 * time.Hour,
			wantStart:    "-360000000ms",
			wantWindowMs: 360_000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bounds, window, err := PlanSpan(tt.span)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, bounds.Start)
			assert.Empty(t, bounds.Stop, "span requests use a relative start only")
			assert.Equal(t, tt.wantWindowMs, window.WindowMs)
		})
	}
}

func TestPlanSpanRejectsNonPositive(t *testing.T) {
	for _, span := range []time.Duration{0, -time.Second} {
		_, _, err := PlanSpan(span)
		assert.ErrorIs(t, err, ErrInvalidRange, "span %s", span)
	}
}

func TestPlanSpanWindowMonotonic(t *testing.T) {
	var prev uint64
	for _, span := range []time.Duration{
		time.Second, time.Minute, time.Hour, 12 * time.Hour, 24 * time.Hour, 30 * 24 * time.Hour,
	} {
		_, window, err := PlanSpan(span)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, window.WindowMs, prev, "window must not shrink as the span grows")
		prev = window.WindowMs
	}
}

func TestPlanRange(t *testing.T) {
	tests := []struct {
		name            string
		startMs, stopMs uint64
		wantStart       string
		wantStop        string
		wantWindowMs    uint64
	}{
		{
			name:    "sub-second range never collapses",
			startMs: 1_000, stopMs: 1_500,
			wantStart: "1", wantStop: "2",
			wantWindowMs: 30_000,
		},
		{
			name:    "bounds truncate to whole seconds with stop rounded up",
			startMs: 1_999, stopMs: 2_001,
			wantStart: "1", wantStop: "3",
			wantWindowMs: 30_000,
		},
		{
			name:    "wide range scales the window",
			startMs: 1_000_000, stopMs: 101_000_000,
			wantStart: "1000", wantStop: "101001",
			wantWindowMs: 100_000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bounds, window, err := PlanRange(tt.startMs, tt.stopMs)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, bounds.Start)
			assert.Equal(t, tt.wantStop, bounds.Stop)
			assert.Equal(t, tt.wantWindowMs, window.WindowMs)
		})
	}
}

func TestPlanRangeRejectsEmptyOrInverted(t *testing.T) {
	tests := []struct {
		startMs, stopMs uint64
	}{
		{1_000, 1_000},
		{1_000, 999},
		{5, 0},
	}
	for _, tt := range tests {
		_, _, err := PlanRange(tt.startMs, tt.stopMs)
		assert.ErrorIs(t, err, ErrInvalidRange, "start=%d stop=%d", tt.startMs, tt.stopMs)
	}
}

func TestPlanRangeStopBoundMonotonic(t *testing.T) {
	// Growing stop_ms by 1ms must never shrink the computed stop second.
	start := uint64(10_000)
	var prevStop uint64
	for stop := start + 1; stop < start+3_000; stop++ {
		bounds, _, err := PlanRange(start, stop)
		require.NoError(t, err)

		var stopSec uint64
		_, err = fmt.Sscanf(bounds.Stop, "%d", &stopSec)
		require.NoError(t, err)

		assert.GreaterOrEqual(t, stopSec, prevStop)
		assert.Greater(t, stopSec, start/1000, "derived interval must be non-empty")
		prevStop = stopSec
	}
}

func TestFluxRangeRendering(t *testing.T) {
	assert.Equal(t, "start: -60000ms", RangeBounds{Start: "-60000ms"}.fluxRange())
	assert.Equal(t, "start: 1, stop: 3", RangeBounds{Start: "1", Stop: "3"}.fluxRange())
}
