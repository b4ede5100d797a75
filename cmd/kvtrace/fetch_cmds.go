package main

import (
	"context"
	"fmt"

	"github.com/ZanzyTHEbar/kvtrace/kvtrace/web"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
)

type fetchResult struct {
	url      string
	size     int
	accesses int64
}

func newFetchCmd(a *app) *cobra.Command {
	var (
		repeat      int
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "fetch URL...",
		Short: "Fetch pages through the expiring page cache",
		Long: `Fetch each URL --repeat times through the page cache and report how
many times it has been accessed. Different URLs are fetched concurrently;
requests for one URL run in order so later ones can hit the cache.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if repeat < 1 || concurrency < 1 {
				return fmt.Errorf("--repeat and --concurrency must be at least 1")
			}

			fetch, err := a.factory.CreatePageFetcher(a.store)
			if err != nil {
				return err
			}

			results := make([]fetchResult, len(args))
			p := pool.New().WithMaxGoroutines(concurrency).WithContext(cmd.Context()).WithCancelOnError()
			for i, url := range args {
				p.Go(func(ctx context.Context) error {
					var body string
					for n := 0; n < repeat; n++ {
						b, err := fetch(ctx, url)
						if err != nil {
							return err
						}
						body = b
					}
					count, err := web.AccessCount(ctx, a.store, url)
					if err != nil {
						return err
					}
					results[i] = fetchResult{url: url, size: len(body), accesses: count}
					return nil
				})
			}
			if err := p.Wait(); err != nil {
				return err
			}

			for _, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d bytes, accessed %d times\n", r.url, r.size, r.accesses)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&repeat, "repeat", "n", 2, "requests per URL")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "j", 4, "URLs fetched at once")
	return cmd
}

func newCountCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "count URL",
		Short: "Print how many times URL went through the page cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := web.AccessCount(cmd.Context(), a.store, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "The URL %s was accessed %d times.\n", args[0], n)
			return nil
		},
	}
}
