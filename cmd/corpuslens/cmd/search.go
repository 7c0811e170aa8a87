package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corpuslens/corpuslens/internal/app"
	"github.com/corpuslens/corpuslens/internal/config"
)

func newSearchCmd() *cobra.Command {
	var (
		topK      int
		configDir string
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a one-off search against the already-running index",
		Args:  cobra.ExactArgs(1),
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

			resp, err := a.Search.Search(ctx, args[0], topK)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}

	cmd.Flags().IntVar(&topK, "top-k", 10, "Number of results to return")
	cmd.Flags().StringVar(&configDir, "config-dir", ".", "Directory to load .corpuslens.yaml from")
	return cmd
}
