package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corpuslens/corpuslens/internal/app"
	"github.com/corpuslens/corpuslens/internal/config"
)

func newHealthCmd() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Report embedder and vector store reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			ctx := cmd.Context()
			a, err := app.New(ctx, cfg)
			if err != nil {
				return fmt.Errorf("initializing app: %w", err)
			}
			defer func() { _ = a.Close() }()

			health := a.Search.Health(ctx)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(health); err != nil {
				return err
			}
			if health.Status != "ready" {
				return fmt.Errorf("unhealthy: %s", health.Status)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configDir, "config-dir", ".", "Directory to load .corpuslens.yaml from")
	return cmd
}
