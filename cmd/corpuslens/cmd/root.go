package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/corpuslens/corpuslens/internal/logging"
	"github.com/corpuslens/corpuslens/pkg/version"
)

var debugMode bool

// NewRootCmd builds the corpuslens CLI: an explicit subcommand is always
// required, unlike the teacher's default-to-MCP-server behavior, since
// corpuslens exposes a plain HTTP API rather than speaking a stdio
// protocol that needs to own stdout from the first byte.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "corpuslens",
		Short:   "Local semantic search engine for a directory tree",
		Version: version.Short(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.corpuslens/logs/")
	cmd.PersistentPreRunE = startLogging

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newHealthCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

var cleanupLogging func()

func startLogging(cmd *cobra.Command, _ []string) error {
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if debugMode {
		logCfg = logging.DebugConfig()
		logCfg.WriteToStderr = true
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		// Logging is not critical to any subcommand's correctness.
		fmt.Fprintf(os.Stderr, "warning: failed to set up logging: %v\n", err)
		return nil
	}
	slog.SetDefault(logger)
	cleanupLogging = cleanup
	return nil
}

// Execute runs the root command.
func Execute() error {
	ctx := context.Background()
	err := NewRootCmd().ExecuteContext(ctx)
	if cleanupLogging != nil {
		cleanupLogging()
	}
	return err
}
