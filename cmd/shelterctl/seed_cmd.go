package main

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vladislavdragonenkov/shelter/internal/storage/memory"
	"github.com/vladislavdragonenkov/shelter/internal/storage/postgres"
)

func newSeedCmd(opts *rootOptions) *cobra.Command {
	var (
		seedOpts seedOptions
		dryRun   bool
		migrate  bool
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the admin requester, demo pets and free appointment slots",
		RunE: func(cmd *cobra.Command, _ []string) error {
			seedOpts.start = time.Now().UTC()
			out := cmd.OutOrStdout()

			if dryRun {
				report, err := seedCatalogue(catalogue{
					requesters:   memory.NewRequesterRepository(),
					pets:         memory.NewPetRepository(),
					appointments: memory.NewAppointmentRepository(),
				}, seedOpts)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, formatSeedReport("seed dry-run", report))
				return err
			}

			return withStore(cmd.Context(), opts, func(ctx context.Context, store *postgres.Store) error {
				if migrate {
					if err := store.MigrateUp(ctx, 0); err != nil {
						return fmt.Errorf("migrate up before seed: %w", err)
					}
				}
				report, err := seedCatalogue(catalogue{
					requesters:   postgres.NewRequesterRepository(store),
					pets:         postgres.NewPetRepository(store),
					appointments: postgres.NewAppointmentRepository(store),
				}, seedOpts)
				if err != nil {
					return err
				}
				log.WithFields(log.Fields{
					"admin_id":     report.AdminID,
					"pets":         report.Pets,
					"appointments": report.Appointments,
				}).Info("seed finished")
				_, err = fmt.Fprintln(out, formatSeedReport("seed ok", report))
				return err
			})
		},
	}

	cmd.Flags().StringVar(&seedOpts.adminEmail, "admin-email", defaultAdminEmail, "admin requester email")
	cmd.Flags().StringVar(&seedOpts.adminName, "admin-name", defaultAdminName, "admin requester name")
	cmd.Flags().IntVar(&seedOpts.days, "days", 7, "number of days with appointment slots")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "seed in-memory repositories and print the result")
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply pending migrations before seeding")
	return cmd
}

func formatSeedReport(prefix string, report seedReport) string {
	return fmt.Sprintf("%s: admin=%s created=%t pets=%d appointments=%d",
		prefix, report.AdminID, report.AdminCreated, report.Pets, report.Appointments)
}
