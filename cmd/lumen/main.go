package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"pkt.systems/psi"
	"pkt.systems/pslog"

	"github.com/five82/lumen/internal/app"
	"github.com/five82/lumen/internal/config"
)

func main() {
	psi.Run(submain)
}

func submain(ctx context.Context) int {
	logger := pslog.LoggerFromEnv(
		pslog.WithEnvWriter(os.Stderr),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeConsole}),
	)
	ctx = pslog.ContextWithLogger(ctx, logger)

	root := newRootCmd()
	root.SetArgs(os.Args[1:])
	if err := root.ExecuteContext(ctx); err != nil {
		pslog.Ctx(ctx).With("err", err).Error("lumen command failed")
		return 1
	}
	return 0
}

type rootFlags struct {
	configPath string
	prefsPath  string
	workspace  string
	resume     bool
}

func newRootCmd() *cobra.Command {
	var flags rootFlags
	root := &cobra.Command{
		Use:           "lumen",
		Short:         "Terminal workbench for germicidal UV room models",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), flags)
		},
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "override config path (default ~/.config/lumen/config.toml)")
	root.PersistentFlags().StringVar(&flags.prefsPath, "prefs", "", "override preferences path (default ~/.config/lumen/prefs.toml)")
	root.PersistentFlags().StringVarP(&flags.workspace, "workspace", "w", "", "workspace to open (default from preferences)")
	root.Flags().BoolVarP(&flags.resume, "resume", "r", false, "restore the stored model and session")

	root.AddCommand(newForgetCmd(&flags))
	root.AddCommand(newVersionCmd())
	return root
}

// runTUI sends logs to the data dir while the TUI owns the terminal.
func runTUI(ctx context.Context, flags rootFlags) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	logFile, err := openLogFile(cfg.LogPath())
	if err != nil {
		return err
	}
	defer func() { _ = logFile.Close() }()

	logger := newFileLogger(logFile)
	log.SetOutput(pslog.LogLogger(logger).Writer())
	log.SetFlags(0)
	defer log.SetOutput(os.Stderr)

	ctx = pslog.ContextWithLogger(ctx, logger)
	logger.Info("lumen starting", "engine", cfg.EngineURL, "resume", flags.resume)
	return app.Run(ctx, app.Options{
		ConfigPath: flags.configPath,
		PrefsPath:  flags.prefsPath,
		Workspace:  flags.workspace,
		Resume:     flags.resume,
		Logger:     logger,
	})
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

func newFileLogger(w io.Writer) pslog.Logger {
	return pslog.LoggerFromEnv(
		pslog.WithEnvWriter(w),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeStructured, NoColor: true}),
	)
}
