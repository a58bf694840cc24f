/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/hostel-tracker/apiserver/config"
	"github.com/hostel-tracker/apiserver/internal/db"
	"github.com/hostel-tracker/apiserver/internal/logging"
	"github.com/hostel-tracker/apiserver/internal/mq"
	"github.com/hostel-tracker/apiserver/internal/services"
	"github.com/hostel-tracker/apiserver/internal/store"
	"github.com/hostel-tracker/apiserver/types"
	"github.com/spf13/cobra"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consumes lifecycle events and stores user notifications",
	Long: `Subscribes to the event channel and turns issue, claim and
announcement events into per-user notifications. Usage:

	hostel worker
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := logging.New(cfg.Log)
		ctx := cmd.Context()

		bus, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if bus == nil {
			return errors.New("worker requires an event bus, MQ_BACKEND is none")
		}
		defer func() {
			_ = bus.Close()
		}()

		dbConn, err := db.Open(ctx, cfg)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer func() {
			_ = dbConn.Close()
		}()

		notifications := services.NewNotificationService(
			store.NewNotificationRepository(dbConn),
			store.NewUserRepository(dbConn),
			logger,
		)

		sub := mq.Subscription{
			Channel: cfg.MQ.Channel,
			Group:   workerGroup,
			Kinds:   notifiedKinds(),
		}
		logger.Info("worker subscribed", "channel", sub.Channel, "group", sub.Group, "backend", cfg.MQ.Backend)
		err = bus.Subscribe(ctx, sub, func(ctx context.Context, msg mq.Message) error {
			if err := notifications.Consume(ctx, msg.Data); err != nil {
				logger.ErrorContext(ctx, "handle event failed", "message_id", msg.ID, "kind", msg.Kind(), "error", err)
				return err
			}
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("subscribe %s: %w", cfg.MQ.Channel, err)
		}
		return nil
	},
}

var workerGroup string

func notifiedKinds() []string {
	kinds := make([]string, 0, len(types.NotifiedEventKinds))
	for _, kind := range types.NotifiedEventKinds {
		kinds = append(kinds, string(kind))
	}
	return kinds
}

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.Flags().StringVar(&workerGroup, "group", "notifications", "consumer group; workers in the same group share events")
}
