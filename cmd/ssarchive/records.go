package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ssarchive/pkg/records"
)

// recordsCmd represents the records command
var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Inspect the export-record store",
	Long: `Inspect or clear the per-post export records.

Each record remembers the content fingerprint of the last successful export
so unchanged posts can be skipped on later runs.`,
}

// recordsListCmd represents the records list command
var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List export records",
	RunE:  runRecordsList,
}

// recordsClearCmd represents the records clear command
var recordsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all export records",
	Long: `Delete all export records. The next run will re-export every post it
discovers, regardless of whether the content changed.`,
	RunE: runRecordsClear,
}

func init() {
	rootCmd.AddCommand(recordsCmd)
	recordsCmd.AddCommand(recordsListCmd)
	recordsCmd.AddCommand(recordsClearCmd)
}

func openRecords() (*records.Store, error) {
	cfg, err := loadConfig(make(map[string]interface{}))
	if err != nil {
		return nil, err
	}
	return records.Open(recordsPath(cfg))
}

func runRecordsList(cmd *cobra.Command, args []string) error {
	store, err := openRecords()
	if err != nil {
		return err
	}
	defer store.Close()

	recs, err := store.All()
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Println("No export records.")
		return nil
	}

	for _, rec := range recs {
		fmt.Printf("%-12s %s %s saved %s\n",
			rec.PostID, rec.ContentHash, rec.FileName, rec.SavedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func runRecordsClear(cmd *cobra.Command, args []string) error {
	store, err := openRecords()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Clear(); err != nil {
		return err
	}
	fmt.Println("Export records cleared.")
	return nil
}
