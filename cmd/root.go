// Package cmd defines the CLI commands for the harvester executable.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Harvests SkillBridge opportunities into PostgreSQL",
		Long: `harvester walks the paginated SkillBridge locations table with a headless
browser, validates every row against the opportunity schema, and reconciles
the result against the database so that only new or changed records are
written.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (YAML)")
	cmd.AddCommand(newHarvestCmd())
	return cmd
}

// Execute runs the CLI. A fatal failure anywhere in the run surfaces here
// and terminates the process with a non-zero status.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
