package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vladislavdragonenkov/shelter/internal/app"
	"github.com/vladislavdragonenkov/shelter/internal/messaging/kafka"
)

func newDLQCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect and replay dead-lettered lifecycle events",
	}
	cmd.AddCommand(newDLQReplayCmd())
	return cmd
}

func newDLQReplayCmd() *cobra.Command {
	var (
		cfg     replayConfig
		brokers string
	)

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay dead-lettered events to the adoption events topic (dry-run by default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if brokers == "" {
				brokers = os.Getenv(envKafka)
			}
			cfg.brokers = app.Config{KafkaBrokers: brokers}.Brokers()
			if err := cfg.validate(); err != nil {
				return err
			}

			stats, err := runReplay(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("dlq replay failed: %w", err)
			}
			mode := "dry-run"
			if cfg.execute {
				mode = "execute"
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "dlq replay %s: processed=%d replayed=%d skipped=%d\n",
				mode, stats.processed, stats.replayed, stats.skipped)
			return err
		},
	}

	cmd.Flags().StringVar(&brokers, "brokers", "", "Kafka brokers as comma-separated list (fallback: "+envKafka+")")
	cmd.Flags().StringVar(&cfg.sourceTopic, "source-topic", kafka.TopicDeadLetterQueue, "DLQ source topic")
	cmd.Flags().StringVar(&cfg.targetTopic, "target-topic", kafka.TopicAdoptionEvents, "target topic for replay")
	cmd.Flags().IntVar(&cfg.limit, "limit", 100, "max number of messages to scan")
	cmd.Flags().BoolVar(&cfg.execute, "execute", false, "publish replayed events; default is dry-run")
	cmd.Flags().BoolVar(&cfg.fromNewest, "from-newest", false, "scan the latest messages first (bounded by limit)")
	cmd.Flags().DurationVar(&cfg.idleTimeout, "idle-timeout", defaultIdleTimeout, "idle timeout per partition")
	return cmd
}
