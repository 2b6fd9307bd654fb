package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RobinCoderZhao/epigram/internal/news"
)

func insightCmd(load loader) *cobra.Command {
	var urls []string

	cmd := &cobra.Command{
		Use:   "insight",
		Short: "Fetch articles and stream an AI insight for them",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(urls) == 0 {
				return fmt.Errorf("at least one --url is required")
			}
			cfg, err := load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			fetcher, err := a.contentFetcher()
			if err != nil {
				return err
			}
			raws, err := fetcher.Contents(ctx, urls)
			if err != nil {
				return fmt.Errorf("fetch contents: %w", err)
			}
			sources, dropped := news.ParseMany(raws)
			if dropped > 0 {
				slog.Warn("dropped invalid articles", "dropped", dropped)
			}

			gen, err := a.insights()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			res, err := gen.Generate(ctx, sources, func(delta string) error {
				_, err := io.WriteString(out, delta)
				return err
			})
			fmt.Fprintln(out)
			if err != nil {
				return err
			}
			slog.Debug("insight complete", "cached", res.Cached, "key", res.Key)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&urls, "url", nil, "article URL (repeatable)")
	return cmd
}
