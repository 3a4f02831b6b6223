package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/avandermeer/metermirror/internal/publisher"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish archived daily totals over MQTT",
	Long: `Sends every archived daily total that has not been published yet to the
configured MQTT broker and marks it as published.`,
	RunE: runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	fmt.Printf("=== Publish started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	totals, err := db.ListUnpublishedTotals()
	if err != nil {
		return fmt.Errorf("listing unpublished totals: %w", err)
	}

	if len(totals) == 0 {
		fmt.Println("Nothing to publish")
		return nil
	}

	pub, err := publisher.New(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}
	defer pub.Close()

	published := 0
	for _, c := range totals {
		if err := pub.Publish(c); err != nil {
			return fmt.Errorf("publishing %s: %w", c.Date.Format("2006-01-02"), err)
		}
		if err := db.MarkPublished(c.Date); err != nil {
			return fmt.Errorf("marking %s published: %w", c.Date.Format("2006-01-02"), err)
		}
		published++
	}

	fmt.Printf("✓ Published %d daily totals\n", published)
	return nil
}
