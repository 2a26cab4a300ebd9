// Package metrics records install and uninstall outcomes.
//
// Components hold a Recorder and default to NoopRecorder, so callers never
// nil-check. PrometheusRecorder registers its collectors on a private
// registry which the CLI can dump to a node-exporter textfile after each run.
package metrics
