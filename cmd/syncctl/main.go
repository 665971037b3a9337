// Command syncctl is the operator CLI for marketplace sync: schema
// migrations, one-off processor passes, job inspection and retry, pilot
// summaries and bulk menu mapping import.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var Version = "dev"

var (
	restaurantID string
	jsonOutput   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "syncctl",
		Short:         "Operate the marketplace order sync subsystem",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&restaurantID, "restaurant", "r", "", "restaurant id to scope the command to")
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "output as JSON")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(processCmd())
	rootCmd.AddCommand(jobsCmd())
	rootCmd.AddCommand(retryCmd())
	rootCmd.AddCommand(summaryCmd())
	rootCmd.AddCommand(mappingsCmd())
	rootCmd.AddCommand(tokenCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func requireRestaurant() error {
	if restaurantID == "" {
		return fmt.Errorf("--restaurant is required")
	}
	return nil
}
