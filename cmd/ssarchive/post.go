package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"ssarchive/pkg/export"
)

var postOutputDir string

// postCmd represents the post command
var postCmd = &cobra.Command{
	Use:   "post <id>",
	Short: "Export a single post by ID",
	Long: `Export one post as a self-contained offline HTML document.

The post is fetched by its numeric ID, its gallery images are downloaded
next to the document, and the result is written as post-<id>.html. The
configured date range does not apply: naming a post explicitly overrides
the filter.`,
	Example: `  # Export post 123456
  ssarchive post 123456

  # Export into a specific directory
  ssarchive post 123456 --output ./archive`,
	Args: cobra.ExactArgs(1),
	RunE: runPost,
}

func init() {
	rootCmd.AddCommand(postCmd)

	postCmd.Flags().StringVarP(&postOutputDir, "output", "o", "", "output directory (default from config)")
}

func runPost(cmd *cobra.Command, args []string) error {
	id := strings.TrimSpace(args[0])

	flags := make(map[string]interface{})
	if postOutputDir != "" {
		flags["output"] = postOutputDir
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	attachSession(cfg)

	session, store, err := newSession(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := session.RunSingle(context.Background(), id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
		os.Exit(1)
	}

	switch res.Outcome {
	case export.OutcomeSaved:
		fmt.Printf("Saved %s (%d assets)\n", res.Path, res.Assets)
	case export.OutcomeSkippedUnchanged:
		fmt.Printf("Unchanged since last export: %s\n", res.FileName)
	}
	return nil
}
