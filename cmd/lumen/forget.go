package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"

	"github.com/five82/lumen/internal/config"
	"github.com/five82/lumen/internal/model"
	"github.com/five82/lumen/internal/persist"
	"github.com/five82/lumen/internal/prefs"
)

func newForgetCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "forget",
		Short: "Discard the stored model and session of a workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}
			name := forgetTarget(flags.workspace, flags.prefsPath)
			logger := pslog.Ctx(cmd.Context())

			db, err := persist.Open(persist.Config{Dir: cfg.StateDir(), Logger: logger})
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			ws := db.Workspace(name)
			if _, _, err := ws.LoadModel(false, model.UnitsMeters); err != nil {
				return fmt.Errorf("drop model: %w", err)
			}
			if err := ws.ClearCredentials(); err != nil {
				return fmt.Errorf("drop credentials: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "workspace %q cleared\n", name)
			return err
		},
	}
}

func forgetTarget(workspace, prefsPath string) string {
	if name := strings.TrimSpace(workspace); name != "" {
		return name
	}
	p, _ := prefs.Load(prefsPath)
	return p.Workspace
}
