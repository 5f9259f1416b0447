package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	ferrors "git.home.luguber.info/inful/stepd/internal/foundation/errors"
)

// InstallUnitCmd implements the 'install-unit' command.
type InstallUnitCmd struct {
	Output string `short:"o" help:"Unit directory (defaults to the systemd user unit directory)" type:"path"`
	Binary string `help:"Path of the stepd binary (defaults to the running executable)" type:"path"`
	Force  bool   `help:"Overwrite an existing unit file"`
}

const unitName = "stepd.service"

// Run writes the unit file.
//
//nolint:forbidigo // fmt is used for user-facing messages
func (cmd *InstallUnitCmd) Run(g *Global, root *CLI) error {
	dir, err := cmd.unitDir()
	if err != nil {
		return err
	}
	binary := cmd.Binary
	if binary == "" {
		if binary, err = os.Executable(); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryInternal, "locate stepd executable").Build()
		}
	}
	configPath, err := filepath.Abs(root.Config)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryValidation, "resolve configuration path").Build()
	}

	unitPath := filepath.Join(dir, unitName)
	if _, err := os.Stat(unitPath); err == nil && !cmd.Force {
		return ferrors.ValidationError("unit file already exists (use --force to overwrite)").
			WithContext("path", unitPath).
			Build()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "create unit directory").Build()
	}
	if err := os.WriteFile(unitPath, []byte(renderUnit(binary, configPath)), 0o644); err != nil { //nolint:gosec // unit files are world readable
		return ferrors.WrapError(err, ferrors.CategoryConfig, "write unit file").
			WithContext("path", unitPath).
			Build()
	}

	_, _ = fmt.Fprintf(g.Out, "Installed %s\n\n", unitPath)
	_, _ = fmt.Fprintln(g.Out, "Enable it with:")
	_, _ = fmt.Fprintln(g.Out, "  systemctl --user daemon-reload")
	_, _ = fmt.Fprintf(g.Out, "  systemctl --user enable --now %s\n", unitName)
	return nil
}

func (cmd *InstallUnitCmd) unitDir() (string, error) {
	if cmd.Output != "" {
		return cmd.Output, nil
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "systemd", "user"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryConfig, "locate home directory").Build()
	}
	return filepath.Join(home, ".config", "systemd", "user"), nil
}

// renderUnit returns a user unit that restarts the daemon after crashes and
// starts it with the user session.
func renderUnit(binary, configPath string) string {
	return fmt.Sprintf(`[Unit]
Description=stepd step counter daemon
After=default.target

[Service]
Type=simple
ExecStart=%s daemon --config %s
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target
`, quoteArg(binary), quoteArg(configPath))
}

// quoteArg quotes a systemd command line argument when it contains spaces.
func quoteArg(s string) string {
	if !strings.ContainsAny(s, " \t\"") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
