package commands

import (
	"context"
	"errors"
	"time"

	"git.home.luguber.info/inful/stepd/internal/config"
	"git.home.luguber.info/inful/stepd/internal/record"
	"git.home.luguber.info/inful/stepd/internal/steps"
)

// ResetCmd implements the 'reset' command. It asks a running daemon first;
// with no daemon it rewrites the stored record directly.
type ResetCmd struct {
	Offline bool `help:"Rewrite the stored record without asking the daemon"`
	JSON    bool `name:"json" help:"Print the resulting snapshot as JSON"`

	now func() time.Time
}

func (r *ResetCmd) Run(g *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if !r.Offline {
		resp, err := newDaemonClient(cfg.HTTP.Addr).Reset(ctx)
		switch {
		case err == nil:
			return printSnapshot(g.Out, cfg, resp.Snapshot, "daemon", r.JSON)
		case !errors.Is(err, errDaemonUnreachable):
			return err
		}
		g.Logger.Debug("No daemon answered, resetting the stored record")
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	snap, err := resetRecord(ctx, store, r.clock())
	if err != nil {
		return err
	}
	return printSnapshot(g.Out, cfg, snap, "record:"+store.Backend(), r.JSON)
}

func (r *ResetCmd) clock() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}

// resetRecord applies a manual reset to the stored record the same way the
// daemon would: a record from an earlier day rolls over first, a corrupt or
// missing record starts fresh.
func resetRecord(ctx context.Context, store record.Store, now time.Time) (steps.Snapshot, error) {
	st, err := store.Load(ctx)
	if err != nil && !errors.Is(err, record.ErrCorruptRecord) {
		return steps.Snapshot{}, err
	}
	if errors.Is(err, record.ErrCorruptRecord) {
		st = nil
	}

	engine := steps.NewEngine()
	engine.Start(now, st)
	out := engine.ResetDaily(now)
	engine.Stop()
	if err := store.Save(ctx, out.State); err != nil {
		return steps.Snapshot{}, err
	}
	return engine.Snapshot(), nil
}
