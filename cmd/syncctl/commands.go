package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cornjacket/marketplace-sync/internal/shared/auth"
	"github.com/cornjacket/marketplace-sync/internal/shared/config"
	"github.com/cornjacket/marketplace-sync/internal/shared/infra/postgres"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := postgres.RunMigrations(cfg.DatabaseURL); err != nil {
				return err
			}
			version, err := postgres.MigrationVersion(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
			return nil
		},
	}
}

func processCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run one status sync pass for a restaurant",
		Long: `Claim and deliver due status sync jobs for one restaurant, then exit.

Examples:
  syncctl process -r rest-42
  syncctl process -r rest-42 --limit 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRestaurant(); err != nil {
				return err
			}
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			res, err := e.service.Process(ctx, restaurantID, limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"processed %d: %d succeeded, %d requeued, %d failed, %d dead-lettered (%d recovered leases)\n",
				res.Processed, res.Succeeded, res.Requeued, res.Failed, res.DeadLettered, res.Recovered)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum jobs to claim (0 uses the batch size)")
	return cmd
}

func jobsCmd() *cobra.Command {
	var (
		status  string
		orderID string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List status sync jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRestaurant(); err != nil {
				return err
			}
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			jobs, err := e.service.ListJobs(ctx, restaurantID, status, orderID, limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), jobs)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tORDER\tPROVIDER\tTARGET\tSTATUS\tATTEMPTS\tNEXT ATTEMPT\tLAST ERROR")
			for _, j := range jobs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d/%d\t%s\t%s\n",
					j.ID, j.OrderID, j.Provider, j.TargetStatus, j.Status,
					j.AttemptCount, j.MaxAttempts, j.NextAttemptAt.Format(time.RFC3339), oneLine(j.LastError, 60))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&status, "status", "s", "", "filter by job status (QUEUED, IN_PROGRESS, SUCCESS, FAILED, DEAD_LETTER)")
	cmd.Flags().StringVarP(&orderID, "order", "o", "", "filter by internal order id")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum jobs to list")
	return cmd
}

func retryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry [job-id]",
		Short: "Requeue a FAILED or DEAD_LETTER job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRestaurant(); err != nil {
				return err
			}
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			job, err := e.service.RetryJob(ctx, restaurantID, args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), job)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "job %s requeued (attempt %d of %d)\n", job.ID, job.AttemptCount, job.MaxAttempts)
			return nil
		},
	}
}

func summaryCmd() *cobra.Command {
	var (
		provider string
		window   int
	)
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Report pilot rollout readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRestaurant(); err != nil {
				return err
			}
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			s, err := e.service.PilotSummary(ctx, restaurantID, provider, window)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), s)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "window:        %dh\n", s.WindowHours)
			fmt.Fprintf(out, "orders:        %d\n", s.TotalOrders)
			fmt.Fprintf(out, "jobs:          %d (%d succeeded, %d failed, %d dead-lettered, %d pending)\n",
				s.TotalJobs, s.Succeeded, s.Failed, s.DeadLettered, s.Pending)
			fmt.Fprintf(out, "success rate:  %.2f%%\n", s.SuccessRate*100)
			fmt.Fprintf(out, "avg attempts:  %.2f\n", s.AvgAttempts)
			fmt.Fprintf(out, "rollout ready: %t\n", s.RolloutReady)
			for _, r := range s.Reasons {
				fmt.Fprintf(out, "  - %s\n", r)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&provider, "provider", "p", "", "limit to one marketplace")
	cmd.Flags().IntVarP(&window, "window", "w", 0, "window in hours (0 uses the default)")
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an admin API token for a restaurant",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRestaurant(); err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return fmt.Errorf("MKT_JWT_SECRET is not set")
			}
			tok, err := auth.NewValidator(cfg.JWTSecret).Issue(restaurantID, subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "syncctl", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}

func oneLine(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}
