// Package influx implements the query and normalization layer between the
// HTTP handlers and InfluxDB.
//
// The package has two halves:
//   - planning: turning a request shape (explicit [start, stop) bounds or a
//     "last N" span) into Flux range bounds and an aggregation window
//   - querying: building the Flux text, executing it, converting store rows
//     into domain samples (epoch-ms timestamps, two-decimal rounding) and
//     returning them time-sorted
//
// Range queries surface failures to the caller; the latest-value lookups
// log and return absence instead, because a temporarily offline sensor is a
// normal state, not an error.
package influx

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"strings"

	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/query"
	"github.com/sirupsen/logrus"

	"github.com/mkarlsen/roomsense/internal/models"
)

// aggregateFn reduces each window to one output point.
const aggregateFn = "mean"

// latestLookback bounds the latest-value query. A sensor silent for longer
// than this is reported as having no current reading.
const latestLookback = "-24h"

// resultStream is the cursor shape returned by the Flux query API.
// *api.QueryTableResult satisfies it.
type resultStream interface {
	Next() bool
	Record() *query.FluxRecord
	Err() error
}

type queryFunc func(ctx context.Context, flux string) (resultStream, error)

// Client builds and executes Flux queries against a fixed bucket and
// measurement. It holds no per-request state and the underlying query API is
// safe for concurrent use, so one Client serves all requests.
type Client struct {
	run         queryFunc
	bucket      string
	measurement string
	log         *logrus.Logger
}

// NewClient wraps an InfluxDB query API for the given bucket and measurement.
func NewClient(queryAPI api.QueryAPI, bucket, measurement string, log *logrus.Logger) *Client {
	return &Client{
		run: func(ctx context.Context, flux string) (resultStream, error) {
			return queryAPI.Query(ctx, flux)
		},
		bucket:      bucket,
		measurement: measurement,
		log:         log,
	}
}

// ScalarSeries fetches the windowed mean of a single field over the given
// bounds. The result is finite, already materialized and sorted ascending by
// time, and yields at most once.
func (c *Client) ScalarSeries(ctx context.Context, field models.Field, bounds RangeBounds, window WindowSpec) (iter.Seq[models.ScalarSample], error) {
	return fetchSeries(ctx, c, c.seriesFlux(&field, bounds, window), scalarFromRecord)
}

// CombinedSeries fetches the windowed mean of all fields over the given
// bounds, one pivoted row per window. Rows missing the optional CO2 reading
// convert with CO2 == nil; rows missing temperature or humidity fail with
// ErrMalformedRow.
func (c *Client) CombinedSeries(ctx context.Context, bounds RangeBounds, window WindowSpec) (iter.Seq[models.Sample], error) {
	return fetchSeries(ctx, c, c.seriesFlux(nil, bounds, window), sampleFromRecord)
}

// LatestScalar returns the most recent reading of one field within the last
// 24 hours, or nil when the store has none or the lookup fails. Failures are
// logged, never returned: "no current reading" is an acceptable steady state
// for a sensor that may be offline.
func (c *Client) LatestScalar(ctx context.Context, field models.Field) *models.ScalarSample {
	res, err := c.run(ctx, c.latestFlux(&field))
	if err != nil {
		c.log.WithError(err).WithField("field", field).Warn("latest-value query failed")
		return nil
	}

	var latest *models.ScalarSample
	for res.Next() {
		s, err := scalarFromRecord(res.Record())
		if err != nil {
			c.log.WithError(err).WithField("field", field).Warn("latest-value row malformed")
			return nil
		}
		if latest == nil || s.Time >= latest.Time {
			latest = &s
		}
	}
	if err := res.Err(); err != nil {
		c.log.WithError(err).WithField("field", field).Warn("latest-value query failed")
		return nil
	}
	return latest
}

// LatestCombined returns the most recent combined reading within the last 24
// hours, or nil when none is available. last() produces one row per field and
// those rows may land on different timestamps, so they are overlaid in time
// order; the reported time is that of the newest contributing row.
func (c *Client) LatestCombined(ctx context.Context) *models.Sample {
	res, err := c.run(ctx, c.latestFlux(nil))
	if err != nil {
		c.log.WithError(err).Warn("latest-value query failed")
		return nil
	}

	type partial struct {
		time int64
		vals map[models.Field]float64
	}
	var rows []partial
	for res.Next() {
		t, vals := partialFromRecord(res.Record())
		rows = append(rows, partial{time: t, vals: vals})
	}
	if err := res.Err(); err != nil {
		c.log.WithError(err).Warn("latest-value query failed")
		return nil
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].time < rows[j].time })

	merged := make(map[models.Field]float64, 3)
	var at int64
	for _, r := range rows {
		for f, v := range r.vals {
			merged[f] = v
		}
		at = r.time
	}

	temperature, ok := merged[models.FieldTemperature]
	if !ok {
		return nil
	}
	humidity, ok := merged[models.FieldHumidity]
	if !ok {
		return nil
	}

	s := &models.Sample{
		Time:        at,
		Temperature: models.Round2(temperature),
		Humidity:    models.Round2(humidity),
	}
	if co2, ok := merged[models.FieldCO2]; ok {
		rounded := models.Round2(co2)
		s.CO2 = &rounded
	}
	return s
}

// fetchSeries executes one range query: run the Flux, convert every row,
// sort ascending by time (the store's result order is not contractually
// guaranteed, so the sort is unconditional and stable) and wrap the result
// in a one-shot sequence. No retry on failure.
func fetchSeries[T interface{ Timestamp() int64 }](ctx context.Context, c *Client, flux string, convert func(*query.FluxRecord) (T, error)) (iter.Seq[T], error) {
	res, err := c.run(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}

	var out []T
	for res.Next() {
		v, err := convert(res.Record())
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp() < out[j].Timestamp() })
	return sequence(out), nil
}

// sequence wraps an already materialized result set in a finite,
// non-restartable iterator. No store interaction happens during iteration.
func sequence[T any](items []T) iter.Seq[T] {
	consumed := false
	return func(yield func(T) bool) {
		if consumed {
			return
		}
		consumed = true
		for _, v := range items {
			if !yield(v) {
				return
			}
		}
	}
}

// seriesFlux builds the windowed range query. A nil field selects all fields
// and pivots them into one row per window; empty windows are dropped, not
// synthesized as zero.
func (c *Client) seriesFlux(field *models.Field, bounds RangeBounds, window WindowSpec) string {
	var b strings.Builder
	fmt.Fprintf(&b, "from(bucket: %q)\n", c.bucket)
	fmt.Fprintf(&b, "  |> range(%s)\n", bounds.fluxRange())
	fmt.Fprintf(&b, "  |> filter(fn: (r) => r[\"_measurement\"] == %q)\n", c.measurement)
	if field != nil {
		fmt.Fprintf(&b, "  |> filter(fn: (r) => r[\"_field\"] == %q)\n", string(*field))
	}
	fmt.Fprintf(&b, "  |> aggregateWindow(every: %dms, fn: %s, createEmpty: false)\n", window.WindowMs, aggregateFn)
	if field == nil {
		b.WriteString("  |> pivot(rowKey: [\"_time\"], columnKey: [\"_field\"], valueColumn: \"_value\")\n")
	}
	fmt.Fprintf(&b, "  |> yield(name: %q)", aggregateFn)
	return b.String()
}

// latestFlux builds the unaggregated last-row query over the fixed lookback.
func (c *Client) latestFlux(field *models.Field) string {
	var b strings.Builder
	fmt.Fprintf(&b, "from(bucket: %q)\n", c.bucket)
	fmt.Fprintf(&b, "  |> range(start: %s)\n", latestLookback)
	fmt.Fprintf(&b, "  |> filter(fn: (r) => r[\"_measurement\"] == %q)\n", c.measurement)
	if field != nil {
		fmt.Fprintf(&b, "  |> filter(fn: (r) => r[\"_field\"] == %q)\n", string(*field))
	}
	b.WriteString("  |> last()")
	if field == nil {
		b.WriteString("\n  |> pivot(rowKey: [\"_time\"], columnKey: [\"_field\"], valueColumn: \"_value\")")
	}
	return b.String()
}
