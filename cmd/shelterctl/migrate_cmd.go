package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vladislavdragonenkov/shelter/internal/storage/postgres"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply, roll back or inspect embedded postgres migrations",
	}
	cmd.AddCommand(newMigrateStepCmd(opts, "up", "Apply pending migrations (0 steps = all)", 0))
	cmd.AddCommand(newMigrateStepCmd(opts, "down", "Roll back applied migrations (default 1 step)", 1))
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show current schema version and pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), opts, func(ctx context.Context, store *postgres.Store) error {
				return printStatus(ctx, cmd.OutOrStdout(), store, "migration status")
			})
		},
	})
	return cmd
}

func newMigrateStepCmd(opts *rootOptions, direction, short string, defaultSteps int) *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   direction,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), opts, func(ctx context.Context, store *postgres.Store) error {
				var err error
				switch direction {
				case "up":
					err = store.MigrateUp(ctx, steps)
				default:
					if steps <= 0 {
						steps = 1
					}
					err = store.MigrateDown(ctx, steps)
				}
				if err != nil {
					return fmt.Errorf("migrate %s failed: %w", direction, err)
				}
				return printStatus(ctx, cmd.OutOrStdout(), store, "migrate "+direction+" ok")
			})
		},
	}
	cmd.Flags().IntVar(&steps, "steps", defaultSteps, "number of migrations to apply or roll back")
	return cmd
}

func withStore(parent context.Context, opts *rootOptions, fn func(ctx context.Context, store *postgres.Store) error) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, defaultTimeout)
	defer cancel()

	store, err := opts.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(ctx, store)
}

func printStatus(ctx context.Context, out io.Writer, store *postgres.Store, prefix string) error {
	report, err := store.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("migration status failed: %w", err)
	}
	_, err = fmt.Fprintln(out, formatReport(prefix, report))
	return err
}

func formatReport(prefix string, report postgres.MigrationReport) string {
	line := fmt.Sprintf("%s: version=%d applied=%d", prefix, report.Current, report.Applied)
	if len(report.Pending) > 0 {
		line += " pending=" + strings.Join(report.Pending, ",")
	}
	return line
}
