package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/RobinCoderZhao/epigram/internal/content"
)

func searchCmd(load loader) *cobra.Command {
	var (
		num   int
		since time.Duration
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search recent articles through the content provider",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			fetcher, err := content.New(cfg.Content)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			opts := content.SearchOptions{NumResults: num}
			if since > 0 {
				opts.StartPublished = time.Now().Add(-since)
			}
			results, err := fetcher.Search(ctx, strings.Join(args, " "), opts)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		},
	}

	cmd.Flags().IntVarP(&num, "num", "n", 3, "number of results")
	cmd.Flags().DurationVar(&since, "since", 48*time.Hour, "only articles published within this window")
	return cmd
}
