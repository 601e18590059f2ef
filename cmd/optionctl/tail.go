package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/wyfcoding/optionsdesk/pkg/config"
	"github.com/wyfcoding/optionsdesk/pkg/mq"
)

func newTailCmd() *cobra.Command {
	var (
		brokers []string
		prefix  string
		group   string
	)

	cmd := &cobra.Command{
		Use:       "tail <event>",
		Short:     "Print lifecycle events from Kafka",
		Example:   `  optionctl tail option.exercised --brokers localhost:9092`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"option.minted", "option.exercised", "listing.filled"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			consumer := mq.NewConsumer(config.KafkaConfig{Brokers: brokers}, mq.Topic(prefix, args[0]), group)
			defer consumer.Close()

			out := cmd.OutOrStdout()
			for {
				msg, err := consumer.ReadMessage(ctx)
				if err != nil {
					if errors.Is(err, context.Canceled) || ctx.Err() != nil {
						return nil
					}
					return err
				}
				fmt.Fprintf(out, "%s\t%d/%d\t%s\t%s\n",
					msg.Time.UTC().Format("2006-01-02T15:04:05Z"), msg.Partition, msg.Offset, msg.Key, msg.Value)
			}
		},
	}

	cmd.Flags().StringSliceVar(&brokers, "brokers", []string{"localhost:9092"}, "Kafka brokers")
	cmd.Flags().StringVar(&prefix, "prefix", "optionsdesk", "topic prefix")
	cmd.Flags().StringVar(&group, "group", "", "consumer group, empty reads from the latest offset")
	return cmd
}
