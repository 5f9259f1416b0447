// Package metrics provides the observability hooks for step accounting.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so nothing needs a nil check:
//
//	t := tracker.New(store, writer, counter, detector, tracker.WithRecorder(rec))
//
// The daemon swaps in a PrometheusRecorder bound to its own registry and
// serves it on /metrics through HTTPHandler.
package metrics
