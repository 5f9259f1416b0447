package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"git.home.luguber.info/inful/stepd/internal/config"
	"git.home.luguber.info/inful/stepd/internal/notify"
	"git.home.luguber.info/inful/stepd/internal/record"
	"git.home.luguber.info/inful/stepd/internal/steps"
)

// StatusCmd implements the 'status' command.
type StatusCmd struct {
	Offline bool `help:"Read the stored record instead of asking the daemon"`
	JSON    bool `name:"json" help:"Print the snapshot as JSON"`

	now func() time.Time
}

func (s *StatusCmd) Run(g *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	snap, origin, err := s.snapshot(ctx, cfg)
	if err != nil {
		return err
	}
	return printSnapshot(g.Out, cfg, snap, origin, s.JSON)
}

func (s *StatusCmd) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func (s *StatusCmd) snapshot(ctx context.Context, cfg *config.Config) (steps.Snapshot, string, error) {
	if !s.Offline {
		resp, err := newDaemonClient(cfg.HTTP.Addr).Snapshot(ctx)
		switch {
		case err == nil:
			return resp.Snapshot.At(s.clock()), "daemon", nil
		case !errors.Is(err, errDaemonUnreachable):
			return steps.Snapshot{}, "", err
		}
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return steps.Snapshot{}, "", err
	}
	defer closeStore()

	st, err := store.Load(ctx)
	if err != nil && !errors.Is(err, record.ErrCorruptRecord) {
		return steps.Snapshot{}, "", err
	}
	if st == nil {
		return steps.Snapshot{}, "record:" + store.Backend(), nil
	}
	snap := steps.Snapshot{
		DailySteps:       st.DailySteps,
		TotalSteps:       st.TotalSteps,
		InitialStepCount: st.InitialStepCount,
		LastRecordedDate: st.LastRecordedDate,
	}
	return snap.At(s.clock()), "record:" + store.Backend(), nil
}

func printSnapshot(w io.Writer, cfg *config.Config, snap steps.Snapshot, origin string, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			steps.Snapshot
			Origin string `json:"origin"`
		}{snap, origin})
	}
	n := notify.NewRenderer(cfg.Notify.Language).Render(snap)
	_, err := fmt.Fprintf(w, "%s\n  total:     %d\n  anchor:    %d\n  date:      %s\n  listening: %t\n  from:      %s\n",
		n.Text, snap.TotalSteps, snap.InitialStepCount, orDash(snap.LastRecordedDate.String()), snap.Listening, origin)
	return err
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
