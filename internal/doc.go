// Package roomsense implements a read-only HTTP API over sensor telemetry
// stored in InfluxDB.
//
// # Architecture
//
// The service is structured into several key packages:
//   - config: environment-driven configuration
//   - influx: query planning, Flux construction and row normalization
//   - models: shared domain types (samples, fields, rounding)
//   - server: fiber HTTP surface and middleware chain
//   - scheduler: periodic store health probe
//
// Key Features
//
//   - Window planning:
//     Span and explicit-range requests are turned into Flux bounds with an
//     aggregation window of max(30s, span/1000), so wider requests return
//     proportionally fewer, coarser points.
//
//   - Normalization:
//     Store rows are converted to epoch-millisecond timestamps with values
//     rounded to two decimals, sorted ascending by time.
//
//   - Tolerant optional fields:
//     Combined rows without a CO2 reading are served with the field absent
//     rather than rejected.
//
// For more information about specific packages, see their respective
// documentation.
package roomsense
