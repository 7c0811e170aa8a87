package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/corpuslens/corpuslens/internal/app"
	"github.com/corpuslens/corpuslens/internal/config"
)

func newWatchCmd() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Watch a directory in the foreground, reindexing on change",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			absPath, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runWatch(ctx, absPath, configDir)
		},
	}

	cmd.Flags().StringVar(&configDir, "config-dir", ".", "Directory to load .corpuslens.yaml from")
	return cmd
}

func runWatch(ctx context.Context, path, configDir string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing app: %w", err)
	}
	defer func() { _ = a.Close() }()

	if _, err := a.Indexer.IndexDirectory(ctx, path, cfg.Indexer.WorkerPoolSize); err != nil {
		return fmt.Errorf("initial index of %s: %w", path, err)
	}
	if err := a.Watch.Start(ctx, path); err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}

	fmt.Fprintf(os.Stdout, "watching %s, press Ctrl+C to stop\n", path)
	<-ctx.Done()
	return a.Watch.Stop(path)
}
