package metrics

import "time"

// ResultLabel enumerates command and persistence outcomes for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultFailed  ResultLabel = "failed"
	ResultNoop    ResultLabel = "noop"
)

// SampleLabel classifies what a raw counter sample did to the state.
type SampleLabel string

const (
	SampleUpdated   SampleLabel = "updated"
	SampleUnchanged SampleLabel = "unchanged"
	SampleIgnored   SampleLabel = "ignored"
)

// Recorder defines observability hooks for the tracker, the record writer
// and the event bus.
type Recorder interface {
	IncSample(result SampleLabel)
	IncPulse()
	SetSteps(daily, total uint64)
	SetListening(listening bool)
	IncDayClosed()
	IncCommand(command string, result ResultLabel)
	ObservePersist(backend string, d time.Duration, result ResultLabel)
	IncPersistCoalesced()
	IncEventDropped(eventType string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncSample(SampleLabel)                              {}
func (NoopRecorder) IncPulse()                                          {}
func (NoopRecorder) SetSteps(uint64, uint64)                            {}
func (NoopRecorder) SetListening(bool)                                  {}
func (NoopRecorder) IncDayClosed()                                      {}
func (NoopRecorder) IncCommand(string, ResultLabel)                     {}
func (NoopRecorder) ObservePersist(string, time.Duration, ResultLabel) {}
func (NoopRecorder) IncPersistCoalesced()                               {}
func (NoopRecorder) IncEventDropped(string)                             {}
