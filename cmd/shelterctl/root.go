package main

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vladislavdragonenkov/shelter/internal/app"
	"github.com/vladislavdragonenkov/shelter/internal/storage/postgres"
)

const (
	envPostgresDSN     = "SHELTER_POSTGRES_DSN"
	envKafka           = "SHELTER_KAFKA_BROKERS"
	defaultTimeout     = 30 * time.Second
	defaultIdleTimeout = 2 * time.Second
)

var errDSNRequired = errors.New(envPostgresDSN + " (or --dsn) is required")

type rootOptions struct {
	dsn string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "shelterctl",
		Short:         "Shelter adoption service maintenance tools",
		SilenceUsage:  true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			_, err := app.LoadEnvFiles(".env", ".env.local")
			return err
		},
	}
	cmd.PersistentFlags().StringVar(&opts.dsn, "dsn", "", "PostgreSQL DSN (fallback: "+envPostgresDSN+")")

	cmd.AddCommand(newMigrateCmd(opts))
	cmd.AddCommand(newSeedCmd(opts))
	cmd.AddCommand(newDLQCmd())
	return cmd
}

func (o *rootOptions) resolveDSN() (string, error) {
	dsn := strings.TrimSpace(o.dsn)
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv(envPostgresDSN))
	}
	if dsn == "" {
		return "", errDSNRequired
	}
	return dsn, nil
}

func (o *rootOptions) openStore(ctx context.Context) (*postgres.Store, error) {
	dsn, err := o.resolveDSN()
	if err != nil {
		return nil, err
	}
	return postgres.Open(ctx, dsn)
}
