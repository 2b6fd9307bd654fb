package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RobinCoderZhao/epigram/internal/news"
)

func populateCmd(load loader) *cobra.Command {
	var topicList string

	cmd := &cobra.Command{
		Use:   "populate",
		Short: "Refresh topic buckets once and print the run report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			topics := news.AllTopics
			if strings.TrimSpace(topicList) != "" {
				topics = nil
				for _, name := range strings.Split(topicList, ",") {
					t, err := news.ParseTopic(name)
					if err != nil {
						return err
					}
					topics = append(topics, t)
				}
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			pop, err := a.populator()
			if err != nil {
				return err
			}
			report, runErr := pop.Run(ctx, topics)
			if report != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&topicList, "topics", "", "comma-separated topics (default: all)")
	return cmd
}
