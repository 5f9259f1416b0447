package source

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/stepd/internal/logfields"
)

// Sample is the wire form of one counter reading published by a device
// gateway. Timestamp is optional; receive time is used when absent.
type Sample struct {
	Raw       uint64    `json:"raw"`
	Timestamp time.Time `json:"ts,omitzero"`
}

// Pulse is the wire form of one detector pulse.
type Pulse struct {
	Timestamp time.Time `json:"ts,omitzero"`
}

// MsgSubscriber is the part of *nats.Conn the gateway sources use.
type MsgSubscriber interface {
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
	IsConnected() bool
}

// natsSub holds the subscription bookkeeping shared by counter and detector.
type natsSub struct {
	conn    MsgSubscriber
	subject string
	now     func() time.Time
	logger  *slog.Logger

	mu  sync.Mutex
	sub *nats.Subscription
	gen uint64
	on  bool
}

func (s *natsSub) available() bool {
	return s.conn != nil && s.subject != "" && s.conn.IsConnected()
}

func (s *natsSub) subscribe(handle func(data []byte, received time.Time)) error {
	if !s.available() {
		return ErrUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.on {
		return ErrAlreadySubscribed
	}
	s.gen++
	gen := s.gen
	sub, err := s.conn.Subscribe(s.subject, func(m *nats.Msg) {
		s.mu.Lock()
		live := s.on && s.gen == gen
		s.mu.Unlock()
		if live {
			handle(m.Data, s.now())
		}
	})
	if err != nil {
		return ErrUnavailable.WithCause(err)
	}
	s.sub, s.on = sub, true
	s.logger.Info("Subscribed to gateway subject", slog.String("subject", s.subject))
	return nil
}

func (s *natsSub) unsubscribe() {
	s.mu.Lock()
	sub := s.sub
	wasOn := s.on
	s.sub, s.on = nil, false
	s.gen++
	s.mu.Unlock()

	if sub != nil {
		_ = sub.Unsubscribe()
	}
	if wasOn {
		s.logger.Info("Unsubscribed from gateway subject", slog.String("subject", s.subject))
	}
}

// NATSCounter receives counter readings from a device gateway.
type NATSCounter struct {
	natsSub
}

// NewNATSCounter subscribes to subject on conn when Subscribe is called.
func NewNATSCounter(conn MsgSubscriber, subject string) *NATSCounter {
	return &NATSCounter{natsSub{
		conn:    conn,
		subject: subject,
		now:     time.Now,
		logger:  slog.Default().With(logfields.Source("nats")),
	}}
}

func (c *NATSCounter) Name() string    { return "nats" }
func (c *NATSCounter) Available() bool { return c.available() }
func (c *NATSCounter) Unsubscribe()    { c.unsubscribe() }

func (c *NATSCounter) Subscribe(fn SampleFunc) error {
	return c.subscribe(func(data []byte, received time.Time) {
		var s Sample
		if err := json.Unmarshal(data, &s); err != nil {
			c.logger.Warn("Dropping malformed counter sample", logfields.Error(err))
			return
		}
		at := s.Timestamp
		if at.IsZero() {
			at = received
		}
		fn(s.Raw, at)
	})
}

// NATSDetector receives detector pulses from a device gateway.
type NATSDetector struct {
	natsSub
}

func NewNATSDetector(conn MsgSubscriber, subject string) *NATSDetector {
	return &NATSDetector{natsSub{
		conn:    conn,
		subject: subject,
		now:     time.Now,
		logger:  slog.Default().With(logfields.Source("nats")),
	}}
}

func (d *NATSDetector) Name() string    { return "nats" }
func (d *NATSDetector) Available() bool { return d.available() }
func (d *NATSDetector) Unsubscribe()    { d.unsubscribe() }

func (d *NATSDetector) Subscribe(fn PulseFunc) error {
	return d.subscribe(func(data []byte, received time.Time) {
		at := received
		var p Pulse
		if len(data) > 0 && json.Unmarshal(data, &p) == nil && !p.Timestamp.IsZero() {
			at = p.Timestamp
		}
		fn(at)
	})
}
