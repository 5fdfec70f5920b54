// Package metrics provides observability hooks for nightly runs.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so no call site needs a nil check. When metrics are enabled the
// CLI swaps in a PrometheusRecorder, whose registry is either written to a
// node-exporter textfile after a one-shot run or served over HTTP by the
// scheduler daemon.
package metrics
