package influx

import (
	"fmt"
	"time"
)

// minWindowMs bounds result cardinality and store load: no matter how narrow
// the request, buckets are never finer than 30 seconds.
const minWindowMs uint64 = 30_000

// RangeBounds holds the arguments for a Flux range() call: either a relative
// start such as "-3600000ms" (span requests, resolved against now by the
// store itself) or absolute whole-second start/stop bounds.
type RangeBounds struct {
	Start string
	Stop  string // empty for span requests
}

func (b RangeBounds) fluxRange() string {
	if b.Stop == "" {
		return fmt.Sprintf("start: %s", b.Start)
	}
	return fmt.Sprintf("start: %s, stop: %s", b.Start, b.Stop)
}

// WindowSpec is the aggregation bucket width requested from the store.
type WindowSpec struct {
	WindowMs uint64
}

// PlanSpan computes the query bounds and window for a "last d" request.
// The window scales with the span (span/1000) so wider requests return
// proportionally fewer, coarser points. The start bound is emitted relative,
// so the "now" anchor is resolved exactly once, by the store.
func PlanSpan(d time.Duration) (RangeBounds, WindowSpec, error) {
	if d <= 0 {
		return RangeBounds{}, WindowSpec{}, fmt.Errorf("%w: non-positive span %s", ErrInvalidRange, d)
	}
	ms := uint64(d.Milliseconds())
	return RangeBounds{Start: fmt.Sprintf("-%dms", ms)},
		WindowSpec{WindowMs: max(minWindowMs, ms/1000)},
		nil
}

// PlanRange computes the query bounds and window for an explicit half-open
// [startMs, stopMs) request. Store bounds are whole seconds; the stop bound
// is rounded up by a full second before truncating so a sub-second range is
// never silently collapsed to an empty interval.
func PlanRange(startMs, stopMs uint64) (RangeBounds, WindowSpec, error) {
	if stopMs <= startMs {
		return RangeBounds{}, WindowSpec{}, fmt.Errorf("%w: stop %d <= start %d", ErrInvalidRange, stopMs, startMs)
	}
	durationMs := stopMs - startMs
	return RangeBounds{
			Start: fmt.Sprintf("%d", startMs/1000),
			Stop:  fmt.Sprintf("%d", (stopMs+1000)/1000),
		},
		WindowSpec{WindowMs: max(minWindowMs, durationMs/1000)},
		nil
}
