package commands

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/stepd/internal/broker"
	"git.home.luguber.info/inful/stepd/internal/config"
	"git.home.luguber.info/inful/stepd/internal/observability"
	"git.home.luguber.info/inful/stepd/internal/record"
)

// Global is shared state handed to every subcommand.
type Global struct {
	Logger *slog.Logger
	Level  *slog.LevelVar
	Out    io.Writer
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"stepd.yaml" type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Daemon      DaemonCmd      `cmd:"" help:"Run the step counting daemon"`
	Status      StatusCmd      `cmd:"" help:"Show today's steps from the running daemon or the stored record"`
	Reset       ResetCmd       `cmd:"" help:"Reset today's step count"`
	Init        InitCmd        `cmd:"" help:"Initialize a new configuration file"`
	InstallUnit InstallUnitCmd `cmd:"" name:"install-unit" help:"Install a systemd user unit that starts the daemon on login"`
}

// NewGlobal builds the process logger. Verbose forces debug until a
// command applies the configured level.
func NewGlobal(cli *CLI, out io.Writer) *Global {
	level := new(slog.LevelVar)
	if cli.Verbose {
		level.Set(slog.LevelDebug)
	}
	logger := observability.NewLogger(os.Stderr, "text", level)
	slog.SetDefault(logger)
	return &Global{Logger: logger, Level: level, Out: out}
}

// applyLogging switches the process logger to the configured format and
// level. Verbose still wins.
func (g *Global) applyLogging(cfg *config.Config, verbose bool) {
	if verbose {
		g.Level.Set(slog.LevelDebug)
	} else {
		g.Level.Set(cfg.Logging.Level.Slog())
	}
	g.Logger = observability.NewLogger(os.Stderr, string(cfg.Logging.Format), g.Level)
	slog.SetDefault(g.Logger)
}

// openStore opens the configured record store, connecting to NATS when
// the backend needs it. The returned closer releases both.
func openStore(ctx context.Context, cfg *config.Config) (record.Store, func(), error) {
	var nc *broker.Client
	if cfg.Storage.Backend == config.StorageNATS {
		var err error
		if nc, err = broker.Connect(cfg.NATS); err != nil {
			return nil, nil, err
		}
	}
	store, err := record.Open(ctx, cfg.Storage, nc)
	if err != nil {
		if nc != nil {
			_ = nc.Close()
		}
		return nil, nil, err
	}
	return store, func() {
		_ = store.Close()
		if nc != nil {
			_ = nc.Close()
		}
	}, nil
}
