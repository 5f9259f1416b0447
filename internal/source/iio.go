package source

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"git.home.luguber.info/inful/stepd/internal/logfields"
)

// IIOCounter reads a Linux industrial-I/O step counter attribute such as
// /sys/bus/iio/devices/iio:device1/in_steps_input.
//
// sysfs attributes do not raise inotify events, so the attribute is polled.
// Readings are delivered when they differ from the previous reading; the
// first reading after Subscribe is always delivered.
type IIOCounter struct {
	path       string
	enablePath string
	interval   time.Duration
	now        func() time.Time
	logger     *slog.Logger

	mu      sync.Mutex
	poll    *poller
	fn      SampleFunc
	gen     uint64
	last    uint64
	hasLast bool
	failing bool
}

// IIOOption configures an IIOCounter.
type IIOOption func(*IIOCounter)

// WithEnablePath sets the in_steps_en attribute written on subscribe.
func WithEnablePath(path string) IIOOption {
	return func(c *IIOCounter) { c.enablePath = path }
}

// WithClock overrides the sample timestamp source.
func WithClock(now func() time.Time) IIOOption {
	return func(c *IIOCounter) { c.now = now }
}

// NewIIOCounter returns a counter polling path every interval.
func NewIIOCounter(path string, interval time.Duration, opts ...IIOOption) *IIOCounter {
	c := &IIOCounter{
		path:     path,
		interval: interval,
		now:      time.Now,
		logger:   slog.Default().With(logfields.Source("iio")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *IIOCounter) Name() string { return "iio" }

// Available reports whether the counter attribute exists and is readable.
func (c *IIOCounter) Available() bool {
	f, err := os.Open(c.path)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}

func (c *IIOCounter) Subscribe(fn SampleFunc) error {
	if !c.Available() {
		return ErrUnavailable
	}

	c.mu.Lock()
	if c.fn != nil {
		c.mu.Unlock()
		return ErrAlreadySubscribed
	}
	c.fn = fn
	c.gen++
	gen := c.gen
	c.hasLast = false
	c.mu.Unlock()

	c.setEnabled(true)

	p, err := startPoller("iio-step-counter", c.interval, func() { c.tick(gen) })
	if err != nil {
		c.mu.Lock()
		c.fn = nil
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	c.poll = p
	c.mu.Unlock()
	c.logger.Info("Subscribed to IIO step counter", slog.String("path", c.path), logfields.Duration(c.interval))
	return nil
}

func (c *IIOCounter) Unsubscribe() {
	c.mu.Lock()
	p := c.poll
	wasSubscribed := c.fn != nil
	c.poll = nil
	c.fn = nil
	c.gen++
	c.mu.Unlock()

	p.stop()
	if wasSubscribed {
		c.setEnabled(false)
		c.logger.Info("Unsubscribed from IIO step counter")
	}
}

func (c *IIOCounter) tick(gen uint64) {
	raw, err := c.read()

	c.mu.Lock()
	if c.gen != gen || c.fn == nil {
		c.mu.Unlock()
		return
	}
	if err != nil {
		if !c.failing {
			c.logger.Warn("Failed to read IIO step counter", slog.String("path", c.path), logfields.Error(err))
		}
		c.failing = true
		c.mu.Unlock()
		return
	}
	if c.failing {
		c.logger.Info("IIO step counter readable again")
		c.failing = false
	}
	if c.hasLast && raw == c.last {
		c.mu.Unlock()
		return
	}
	c.last, c.hasLast = raw, true
	fn := c.fn
	c.mu.Unlock()

	fn(raw, c.now())
}

func (c *IIOCounter) read() (uint64, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return 0, err
	}
	s := strings.TrimSpace(string(data))
	if s == "" {
		return 0, errors.New("empty counter attribute")
	}
	return strconv.ParseUint(s, 10, 64)
}

func (c *IIOCounter) setEnabled(on bool) {
	if c.enablePath == "" {
		return
	}
	val := "0\n"
	if on {
		val = "1\n"
	}
	if err := os.WriteFile(c.enablePath, []byte(val), 0o644); err != nil {
		c.logger.Warn("Failed to toggle IIO step counter", slog.String("path", c.enablePath), logfields.Error(err))
	}
}
