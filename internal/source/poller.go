package source

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// poller runs task on a fixed interval in its own gocron scheduler. A
// slow task is rescheduled rather than run concurrently with itself.
type poller struct {
	scheduler gocron.Scheduler
}

func startPoller(name string, interval time.Duration, task func()) (*poller, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("failed to create %s job: %w", name, err)
	}
	s.Start()
	return &poller{scheduler: s}, nil
}

// stop blocks until a running task has returned.
func (p *poller) stop() {
	if p == nil {
		return
	}
	_ = p.scheduler.Shutdown()
}
