package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/stepd/internal/config"
	"git.home.luguber.info/inful/stepd/internal/daemon"
	"git.home.luguber.info/inful/stepd/internal/logfields"
	"git.home.luguber.info/inful/stepd/internal/observability"
	"git.home.luguber.info/inful/stepd/internal/version"
)

// DaemonCmd implements the 'daemon' command.
type DaemonCmd struct {
	ShutdownTimeout time.Duration `help:"Grace period for flushing state on shutdown" default:"30s"`
	NoWatch         bool          `help:"Do not reload the configuration file on change"`
}

func (d *DaemonCmd) Run(g *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	g.applyLogging(cfg, root.Verbose)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := observability.Setup(ctx, observability.TracingOptions{
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return err
	}
	defer func() {
		if serr := shutdownTracing(context.WithoutCancel(ctx)); serr != nil {
			g.Logger.Warn("Failed to flush traces", logfields.Error(serr))
		}
	}()

	opts := []daemon.Option{daemon.WithLogger(g.Logger), daemon.WithLevelVar(g.Level)}
	if !d.NoWatch {
		opts = append(opts, daemon.WithConfigPath(root.Config))
	}
	dmn, err := daemon.New(ctx, cfg, opts...)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	g.Logger.Info("Starting stepd", "version", version.Version, "config", root.Config)
	if err := dmn.Run(ctx, d.ShutdownTimeout); err != nil {
		return fmt.Errorf("daemon error: %w", err)
	}
	g.Logger.Info("Daemon stopped successfully")
	return nil
}
