/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/nsmonitor/apiserver/config"
	"github.com/nsmonitor/apiserver/internal/logging"
	"github.com/nsmonitor/apiserver/internal/mq"
	"github.com/nsmonitor/apiserver/internal/services"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect published domain events",
}

var (
	eventsChannel string
	eventsType    string
)

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print events from a channel until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := logging.New(cfg.Log)

		broker, err := mq.Open(cmd.Context(), cfg.MQ)
		if err != nil {
			return err
		}
		if broker == nil {
			return errors.New("MQ_BACKEND is not configured")
		}
		defer broker.Close()

		if _, err := path.Match(eventsType, ""); err != nil {
			return fmt.Errorf("invalid --type pattern: %w", err)
		}

		logger.WithField("channel", eventsChannel).Info("following events")
		err = broker.Subscribe(cmd.Context(), eventsChannel, func(ctx context.Context, msg mq.Message) error {
			eventType := msg.Attributes[mq.TypeAttribute]
			if matched, _ := path.Match(eventsType, eventType); !matched {
				return nil
			}
			logger.WithFields(logrus.Fields{
				"id":      msg.ID,
				"type":    eventType,
				"project": msg.Attributes[mq.OrderingAttribute],
			}).Info(string(msg.Data))
			return nil
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
	eventsTailCmd.Flags().StringVar(&eventsChannel, "channel", services.ChannelProjectUpdates,
		fmt.Sprintf("channel to follow (%s or %s)", services.ChannelProjectUpdates, services.ChannelProjectAttachments))
	eventsTailCmd.Flags().StringVar(&eventsType, "type", "*", "only print events whose type matches this glob, e.g. 'update.*'")
}
