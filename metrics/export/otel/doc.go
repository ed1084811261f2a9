// Package otel publishes authgate engine metrics through an OpenTelemetry Meter.
//
// [NewExporter] registers an Int64ObservableCounter per engine counter, one
// Int64ObservableGauge per latency bucket, and gauges for audit drops and cache
// size. A single callback reads the engine snapshot on each collection.
//
// The caller owns the MeterProvider.
package otel
