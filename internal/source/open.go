package source

import (
	"fmt"

	"git.home.luguber.info/inful/stepd/internal/broker"
	"git.home.luguber.info/inful/stepd/internal/config"
	ferrors "git.home.luguber.info/inful/stepd/internal/foundation/errors"
)

// Open builds the counter and detector selected by cfg. nc is required for
// the NATS gateway source only.
func Open(cfg config.SourceConfig, nc *broker.Client) (Counter, Detector, error) {
	switch cfg.Type {
	case config.SourceIIO:
		return NewIIOCounter(cfg.IIO.CounterPath, cfg.IIO.PollInterval, WithEnablePath(cfg.IIO.EnablePath)), NoDetector{}, nil
	case config.SourceNATS:
		if nc == nil {
			return nil, nil, ferrors.ConfigError("NATS source requires a broker connection").Build()
		}
		return NewNATSCounter(nc.Conn(), cfg.NATS.CounterSubject), NewNATSDetector(nc.Conn(), cfg.NATS.DetectorSubject), nil
	case config.SourceReplay:
		return NewReplayCounter(cfg.Replay.File, cfg.Replay.Interval), NoDetector{}, nil
	default:
		return nil, nil, ferrors.ConfigError(fmt.Sprintf("unknown source type %q", cfg.Type)).Build()
	}
}
