package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "sectiondrop: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sectiondrop",
		Short: "SectionDrop course file sharing",
		Long: `sectiondrop runs the upload service and offers maintenance commands for the
metadata store and thumbnails. Configuration comes from SECTIONDROP_* environment
variables; flags override them.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newServeCmd(),
		newFilesCmd(),
		newThumbnailsCmd(),
		newMigrateCmd(),
	)
	return cmd
}
