package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/do"
	"github.com/spf13/cobra"

	"github.com/courselab/server/internal/migrate"
	"github.com/courselab/server/internal/postgres"
)

func newMigrateCommand(i *do.Injector) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			pool, err := do.Invoke[*pgxpool.Pool](i)
			if err != nil {
				return err
			}
			defer pool.Close()

			runner, err := do.Invoke[*migrate.Runner](i)
			if err != nil {
				return err
			}

			if err := runner.Run(ctx); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}

			return nil
		},
	}

	cmd.AddCommand(newMigrateStatusCommand(i))

	return cmd
}

func newMigrateStatusCommand(i *do.Injector) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the applied migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			pool, err := do.Invoke[*pgxpool.Pool](i)
			if err != nil {
				return err
			}
			defer pool.Close()

			ledger, err := do.Invoke[*migrate.Ledger](i)
			if err != nil {
				return err
			}

			applied, err := ledger.ListApplied(ctx)
			if err != nil && !postgres.IsUndefinedTable(err) {
				return fmt.Errorf("failed to list applied migrations: %w", err)
			}
			if len(applied) == 0 {
				fmt.Println("no migrations applied")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SEQ\tNAME\tSTATUS\tAPPLIED\tDURATION\tBY")
			for _, row := range applied {
				status := "ok"
				if row.LastError != nil {
					status = "failed"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%dms\t%s\n",
					row.Sequence,
					row.Name,
					status,
					humanize.Time(row.AppliedAt),
					row.DurationMs,
					row.AppliedBy,
				)
			}

			return w.Flush()
		},
	}
}
