package source

import (
	"sync"
	"time"
)

// FakeCounter is a Counter driven by tests through Emit.
type FakeCounter struct {
	mu         sync.Mutex
	available  bool
	fn         SampleFunc
	subscribes int
}

// NewFakeCounter returns a fake that reports available.
func NewFakeCounter() *FakeCounter {
	return &FakeCounter{available: true}
}

func (f *FakeCounter) Name() string { return "fake" }

func (f *FakeCounter) Available() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.available
}

// SetAvailable toggles hardware presence.
func (f *FakeCounter) SetAvailable(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.available = v
}

func (f *FakeCounter) Subscribe(fn SampleFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.available {
		return ErrUnavailable
	}
	if f.fn != nil {
		return ErrAlreadySubscribed
	}
	f.fn = fn
	f.subscribes++
	return nil
}

func (f *FakeCounter) Unsubscribe() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fn = nil
}

// Subscribed reports whether a callback is registered.
func (f *FakeCounter) Subscribed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fn != nil
}

// Subscribes counts successful Subscribe calls.
func (f *FakeCounter) Subscribes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribes
}

// Emit delivers raw synchronously if subscribed and reports whether it did.
func (f *FakeCounter) Emit(raw uint64, at time.Time) bool {
	f.mu.Lock()
	fn := f.fn
	f.mu.Unlock()
	if fn == nil {
		return false
	}
	fn(raw, at)
	return true
}

// Callback returns the registered callback, letting tests deliver a sample
// late, after Unsubscribe.
func (f *FakeCounter) Callback() SampleFunc {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fn
}

// FakeDetector is a Detector driven by tests through Pulse.
type FakeDetector struct {
	mu        sync.Mutex
	available bool
	fn        PulseFunc
}

func NewFakeDetector(available bool) *FakeDetector {
	return &FakeDetector{available: available}
}

func (f *FakeDetector) Name() string { return "fake" }

func (f *FakeDetector) Available() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.available
}

func (f *FakeDetector) Subscribe(fn PulseFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.available {
		return ErrUnavailable
	}
	if f.fn != nil {
		return ErrAlreadySubscribed
	}
	f.fn = fn
	return nil
}

func (f *FakeDetector) Unsubscribe() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fn = nil
}

func (f *FakeDetector) Subscribed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fn != nil
}

// Pulse delivers one pulse if subscribed.
func (f *FakeDetector) Pulse(at time.Time) bool {
	f.mu.Lock()
	fn := f.fn
	f.mu.Unlock()
	if fn == nil {
		return false
	}
	fn(at)
	return true
}
