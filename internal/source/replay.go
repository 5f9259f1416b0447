package source

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"git.home.luguber.info/inful/stepd/internal/logfields"
)

// ReplayCounter plays back recorded samples, one per interval. The file
// holds one JSON Sample per line; blank lines and lines starting with '#'
// are skipped. Recorded timestamps are replaced by the replay clock so a
// recording can be reused on any day.
type ReplayCounter struct {
	path     string
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger

	mu      sync.Mutex
	samples []uint64
	next    int
	poll    *poller
	fn      SampleFunc
	gen     uint64
}

func NewReplayCounter(path string, interval time.Duration) *ReplayCounter {
	return &ReplayCounter{
		path:     path,
		interval: interval,
		now:      time.Now,
		logger:   slog.Default().With(logfields.Source("replay")),
	}
}

func (r *ReplayCounter) Name() string { return "replay" }

func (r *ReplayCounter) Available() bool {
	_, err := os.Stat(r.path)
	return err == nil
}

// LoadSamples parses a replay file.
func LoadSamples(path string) ([]uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []uint64
	sc := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for sc.Scan() {
		line++
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 || text[0] == '#' {
			continue
		}
		var s Sample
		if err := json.Unmarshal(text, &s); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		out = append(out, s.Raw)
	}
	return out, sc.Err()
}

func (r *ReplayCounter) Subscribe(fn SampleFunc) error {
	if !r.Available() {
		return ErrUnavailable
	}
	samples, err := LoadSamples(r.path)
	if err != nil {
		return ErrUnavailable.WithCause(err)
	}

	r.mu.Lock()
	if r.fn != nil {
		r.mu.Unlock()
		return ErrAlreadySubscribed
	}
	r.fn, r.samples, r.next = fn, samples, 0
	r.gen++
	gen := r.gen
	r.mu.Unlock()

	p, err := startPoller("replay-step-counter", r.interval, func() { r.tick(gen) })
	if err != nil {
		r.mu.Lock()
		r.fn = nil
		r.mu.Unlock()
		return err
	}
	r.mu.Lock()
	r.poll = p
	r.mu.Unlock()
	r.logger.Info("Replaying step samples", slog.String("path", r.path), slog.Int("samples", len(samples)))
	return nil
}

func (r *ReplayCounter) tick(gen uint64) {
	r.mu.Lock()
	if r.gen != gen || r.fn == nil || r.next >= len(r.samples) {
		r.mu.Unlock()
		return
	}
	raw := r.samples[r.next]
	r.next++
	fn := r.fn
	r.mu.Unlock()
	fn(raw, r.now())
}

func (r *ReplayCounter) Unsubscribe() {
	r.mu.Lock()
	p := r.poll
	r.poll, r.fn = nil, nil
	r.gen++
	r.mu.Unlock()
	p.stop()
}
