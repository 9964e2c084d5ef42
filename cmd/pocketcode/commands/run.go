package commands

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/pocketcode/internal/app"
	"github.com/opencode-ai/pocketcode/internal/config"
	"github.com/opencode-ai/pocketcode/internal/logging"
	"github.com/opencode-ai/pocketcode/internal/tui"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Open the interactive UI",
	RunE:  runRun,
}

// setup loads config, initializes logging, and builds the app. The returned
// cleanup closes the log file, if one was opened.
func setup() (*app.App, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	level := logging.ParseLevel(cfg.LogLevel)
	if logLevel != "" {
		level = logging.ParseLevel(logLevel)
	}

	cleanup := func() {}
	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return nil, nil, err
	}
	if printLogs {
		logging.Init(logging.Config{Level: level, Output: os.Stderr, Pretty: true})
	} else {
		f, err := logging.InitFile(paths.State, level)
		if err != nil {
			return nil, nil, err
		}
		cleanup = func() { f.Close() }
	}

	return app.New(cfg, paths.StoragePath()), cleanup, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	a, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()
	defer a.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if err := a.Start(ctx); err != nil {
		return err
	}
	go a.Watch(ctx)

	return tui.Run(a)
}
