package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"energy-ai-agent/internal/app"
	"energy-ai-agent/internal/common/config"
	"energy-ai-agent/internal/common/logger"

	"github.com/spf13/cobra"
)

var (
	configPath string
	limit      int

	rootCmd = &cobra.Command{
		Use:           "newsctl",
		Short:         "Operate the energy news cache: crawl, inspect the live feed, reindex and search.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	crawlCmd = &cobra.Command{
		Use:   "crawl",
		Short: "Crawl the announcements page once and rewrite the cache file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				snapshot, err := a.Syncer.Sync(ctx)
				if err != nil {
					return err
				}
				return printJSON(snapshot)
			})
		},
	}

	rssCmd = &cobra.Command{
		Use:   "rss",
		Short: "Print the latest items of the live RSS feed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				feed, err := a.NewsFeed.Latest(ctx)
				if err != nil {
					return err
				}
				return printJSON(feed)
			})
		},
	}

	reindexCmd = &cobra.Command{
		Use:   "reindex",
		Short: "Push the current cache file into the search index",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if a.NewsIndex == nil {
					return fmt.Errorf("elasticsearch is not configured")
				}
				snapshot, err := a.NewsCache.Read()
				if err != nil {
					return err
				}
				n, err := a.NewsIndex.Put(ctx, snapshot)
				if err != nil {
					return err
				}
				fmt.Printf("indexed %d items from %s\n", n, a.NewsCache.Path())
				return nil
			})
		},
	}

	searchCmd = &cobra.Command{
		Use:   "search <query>",
		Short: "Search the news index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if a.NewsIndex == nil {
					return fmt.Errorf("elasticsearch is not configured")
				}
				hits, err := a.NewsIndex.Search(ctx, args[0], limit)
				if err != nil {
					return err
				}
				return printJSON(hits)
			})
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: configs/config.yaml lookup)")
	searchCmd.Flags().IntVar(&limit, "limit", 10, "maximum hits")
	rootCmd.AddCommand(crawlCmd, rssCmd, reindexCmd, searchCmd)
}

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format, "stderr")

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
