// Package cmd defines and implements the CLI commands for the crawler
// executable.
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
		Use:   "declaration-crawler",
		Short: "Ingests public asset declarations into PostgreSQL",
		Long: `declaration-crawler walks the public declaration registry year by
year, fetches every declaration document not yet stored, and decomposes
each one into normalized person, declaration and asset tables.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (env vars with the VERIS_ prefix also apply)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newMigrateCmd())

	return cmd
}

// Execute is the main entry point. It installs signal handling so an
// interrupt cancels in-flight work instead of killing it mid-write.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
