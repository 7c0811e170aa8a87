package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/corpuslens/corpuslens/internal/app"
	"github.com/corpuslens/corpuslens/internal/config"
)

func newIndexCmd() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Index a directory one time, without starting the server",
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

			return runIndex(ctx, cmd, absPath, configDir)
		},
	}

	cmd.Flags().StringVar(&configDir, "config-dir", ".", "Directory to load .corpuslens.yaml from")
	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, path, configDir string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing app: %w", err)
	}
	defer func() { _ = a.Close() }()

	result, err := a.Indexer.IndexDirectory(ctx, path, cfg.Indexer.WorkerPoolSize)
	if err != nil {
		return fmt.Errorf("indexing %s: %w", path, err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
