// Package source adapts platform step counters to a uniform callback API.
//
// A Counter reports the cumulative, boot-relative step count; a Detector
// emits one pulse per detected step and is used for liveness only.
package source

import (
	"time"

	ferrors "git.home.luguber.info/inful/stepd/internal/foundation/errors"
)

// SampleFunc receives one raw cumulative counter reading.
type SampleFunc func(raw uint64, at time.Time)

// PulseFunc receives one step detector pulse.
type PulseFunc func(at time.Time)

// Counter is a cumulative step counter. Subscribe fails with ErrUnavailable
// when the hardware is missing and ErrAlreadySubscribed when called twice.
// Unsubscribe is idempotent; no callback runs after it returns.
type Counter interface {
	Name() string
	Available() bool
	Subscribe(fn SampleFunc) error
	Unsubscribe()
}

// Detector emits step pulses.
type Detector interface {
	Name() string
	Available() bool
	Subscribe(fn PulseFunc) error
	Unsubscribe()
}

var (
	// ErrUnavailable reports a missing counter or detector.
	ErrUnavailable = ferrors.SourceError("step counter source unavailable").Build()
	// ErrAlreadySubscribed reports a second Subscribe without Unsubscribe.
	ErrAlreadySubscribed = ferrors.NewError(ferrors.CategorySource, "source already subscribed").
				WithSeverity(ferrors.SeverityWarning).
				Build()
)

// Availability reports which sources exist on this device.
type Availability struct {
	CounterAvailable  bool `json:"counter_available"`
	DetectorAvailable bool `json:"detector_available"`
}

// Check probes counter and detector. Either may be nil.
func Check(counter Counter, detector Detector) Availability {
	var a Availability
	if counter != nil {
		a.CounterAvailable = counter.Available()
	}
	if detector != nil {
		a.DetectorAvailable = detector.Available()
	}
	return a
}

// NoDetector is used where the platform has no pulse source.
type NoDetector struct{}

func (NoDetector) Name() string               { return "none" }
func (NoDetector) Available() bool            { return false }
func (NoDetector) Subscribe(PulseFunc) error  { return ErrUnavailable }
func (NoDetector) Unsubscribe()               {}
