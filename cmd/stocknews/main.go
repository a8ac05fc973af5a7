package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"StockNewsScanner/internal/app"
	"StockNewsScanner/internal/config"
	"StockNewsScanner/internal/logging"
	"StockNewsScanner/internal/usecase"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "stocknews",
		Short:         "Hong Kong stock news crawler and keyword tracker",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(newCrawlCmd(), newSearchCmd(), newTrendsCmd(), newServeCmd())
	return root
}

func buildApp() (*app.Application, config.Config, error) {
	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	application, err := app.New(cfg, logger)
	if err != nil {
		return nil, cfg, err
	}
	return application, cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newCrawlCmd() *cobra.Command {
	var (
		days       int
		maxCount   int
		workers    int
		noKeywords bool
		extended   bool
		source     string
	)

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run one crawl of a configured news source",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, _, err := buildApp()
			if err != nil {
				return err
			}
			defer application.Close()

			ctx, cancel := signalContext()
			defer cancel()

			stats, err := application.Crawl(ctx, source, usecase.RunOptions{
				Days:            days,
				MaxCount:        maxCount,
				Workers:         workers,
				Extended:        extended,
				ExtractKeywords: !noKeywords,
			})
			if err != nil {
				return err
			}

			fmt.Println("==================================================")
			fmt.Printf("新增: %d 條\n", stats.Inserted)
			fmt.Printf("更新: %d 條\n", stats.Updated)
			fmt.Printf("跳過重複: %d 條\n", stats.DuplicateSkipped)
			fmt.Printf("失敗: %d 條\n", stats.Failed)
			fmt.Printf("總處理: %d 條\n", stats.TotalProcessed)
			fmt.Println("==================================================")
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 1, "only keep news published within this many days")
	cmd.Flags().IntVar(&maxCount, "max-count", 1000, "maximum number of links to crawl")
	cmd.Flags().IntVar(&workers, "workers", 3, "number of consumer workers")
	cmd.Flags().BoolVar(&noKeywords, "no-keywords", false, "skip keyword/industry enrichment")
	cmd.Flags().BoolVar(&extended, "extended", false, "walk paged listings for deeper discovery")
	cmd.Flags().StringVar(&source, "source", "", "source name from config (default: first site)")
	return cmd
}

func newSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search stored news by title or keyword",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, _, err := buildApp()
			if err != nil {
				return err
			}
			defer application.Close()

			ctx, cancel := signalContext()
			defer cancel()

			items, err := application.Search(ctx, args[0], limit)
			if err != nil {
				return err
			}

			if len(items) == 0 {
				fmt.Println("沒有符合的新聞")
				return nil
			}
			for i, item := range items {
				fmt.Printf("%d. %s (%s)\n   %s\n", i+1, item.Title, item.PublishedAt.Format("2006-01-02 15:04"), item.URL)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of results")
	return cmd
}

func newTrendsCmd() *cobra.Command {
	var since string

	cmd := &cobra.Command{
		Use:   "trends <keyword>",
		Short: "Show a keyword's daily mention counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, _, err := buildApp()
			if err != nil {
				return err
			}
			defer application.Close()

			ctx, cancel := signalContext()
			defer cancel()

			points, err := application.Trends(ctx, args[0], since)
			if err != nil {
				return err
			}

			if len(points) == 0 {
				fmt.Println("沒有趨勢資料")
				return nil
			}
			for _, point := range points {
				fmt.Printf("%s  %d\n", point.Date, point.Count)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&since, "since", "", "only show counts on or after this date (YYYY-MM-DD)")
	return cmd
}

func newServeCmd() *cobra.Command {
	var (
		noKeywords bool
		source     string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Crawl on a schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, cfg, err := buildApp()
			if err != nil {
				return err
			}
			defer application.Close()

			ctx, cancel := signalContext()
			defer cancel()

			return application.Serve(ctx, source, usecase.RunOptions{
				Days:            cfg.Crawler.Days,
				MaxCount:        cfg.Crawler.MaxCount,
				Workers:         cfg.Crawler.Workers,
				ExtractKeywords: !noKeywords,
			})
		},
	}

	cmd.Flags().BoolVar(&noKeywords, "no-keywords", false, "skip keyword/industry enrichment")
	cmd.Flags().StringVar(&source, "source", "", "source name from config (default: first site)")
	return cmd
}
