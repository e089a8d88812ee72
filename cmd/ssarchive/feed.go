package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"ssarchive/pkg/logger"
)

var (
	feedLimit       int
	feedOutputDir   string
	feedOnlyNew     bool
	feedOldestFirst bool
	feedFrom        string
	feedTo          string
	feedMaxRetries  int
	feedRemember    bool
)

// feedCmd represents the feed command
var feedCmd = &cobra.Command{
	Use:   "feed <profile-url>",
	Short: "Discover and export posts from a profile feed",
	Long: `Walk a profile's infinite-scroll feed, collect post IDs, and export each
matching post as a self-contained offline HTML document.

Discovery follows the feed's load-more control until the requested number
of posts is found or the feed stops growing. An inclusive date range
(--from/--to, YYYY-MM-DD) restricts which posts are exported; posts whose
date cannot be determined are always included. With --only-new (default),
posts whose content is unchanged since the last run are skipped.

Press Ctrl-C to stop: the run winds down after the current post.`,
	Example: `  # Export the 20 newest posts
  ssarchive feed https://subscribestar.adult/someprofile

  # Export 50 posts, oldest first
  ssarchive feed https://subscribestar.adult/someprofile --limit 50 --oldest-first

  # Export posts from January 2024 only
  ssarchive feed https://subscribestar.adult/someprofile --from 2024-01-01 --to 2024-01-31

  # Remember the limit and date range for future runs
  ssarchive feed https://subscribestar.adult/someprofile --limit 100 --remember`,
	Args: cobra.ExactArgs(1),
	RunE: runFeed,
}

func init() {
	rootCmd.AddCommand(feedCmd)

	feedCmd.Flags().IntVarP(&feedLimit, "limit", "n", 0, "maximum posts to export (0 = config default)")
	feedCmd.Flags().StringVarP(&feedOutputDir, "output", "o", "", "output directory (default from config)")
	feedCmd.Flags().BoolVar(&feedOnlyNew, "only-new", true, "skip posts unchanged since last export")
	feedCmd.Flags().BoolVar(&feedOldestFirst, "oldest-first", false, "export oldest posts first")
	feedCmd.Flags().StringVar(&feedFrom, "from", "", "only posts on or after this date (YYYY-MM-DD)")
	feedCmd.Flags().StringVar(&feedTo, "to", "", "only posts on or before this date (YYYY-MM-DD)")
	feedCmd.Flags().IntVar(&feedMaxRetries, "max-attempts", 0, "retry attempts per request (0 = config default)")
	feedCmd.Flags().BoolVar(&feedRemember, "remember", false, "persist limit, order, and date range to the config file")
}

func runFeed(cmd *cobra.Command, args []string) error {
	feedURL := strings.TrimSpace(args[0])

	flags := make(map[string]interface{})
	if feedLimit > 0 {
		flags["limit"] = feedLimit
	}
	if feedOutputDir != "" {
		flags["output"] = feedOutputDir
	}
	if cmd.Flags().Changed("only-new") {
		flags["only-new"] = feedOnlyNew
	}
	if feedOldestFirst {
		flags["newest-first"] = false
	}
	if feedFrom != "" {
		flags["from"] = feedFrom
	}
	if feedTo != "" {
		flags["to"] = feedTo
	}
	if feedMaxRetries > 0 {
		flags["max-attempts"] = feedMaxRetries
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	attachSession(cfg)

	if feedRemember {
		path := configFile
		if path == "" {
			path = filepath.Join(os.Getenv("HOME"), ".ssarchive.yaml")
		}
		if err := cfg.Save(path); err != nil {
			logger.GetLogger().WithError(err).Warn("failed to persist preferences")
		} else {
			fmt.Printf("Preferences saved to %s\n", path)
		}
	}

	session, store, err := newSession(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	// Ctrl-C requests a cooperative stop; the run winds down at its next
	// checkpoint instead of aborting mid-write.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		session.Stop()
	}()

	summary, err := session.RunBatch(context.Background(), feedURL, cfg.Export.Limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Run failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Discovered %d, saved %d, unchanged %d, outside range %d, failed %d\n",
		summary.Discovered, summary.Saved, summary.SkippedUnchanged, summary.SkippedDate, summary.Failed)
	if summary.Cancelled {
		fmt.Println("Run stopped by user.")
	}
	return nil
}
