package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/avandermeer/metermirror/internal/config"
	"github.com/avandermeer/metermirror/internal/intake"
	"github.com/avandermeer/metermirror/internal/pipeline"
	"github.com/avandermeer/metermirror/internal/scraper"
	"github.com/avandermeer/metermirror/internal/window"
)

var updateVisible bool

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Run the daily acquisition update",
	Long: `Fetches both meter exports from the portal for the outstanding date range,
relocates the downloads into the work directory, and advances the
persisted date window. Running twice on the same day is a no-op.

After a successful run the merged daily totals are archived in the
local database.`,
	RunE: runUpdate,
}

func init() {
	updateCmd.Flags().BoolVar(&updateVisible, "visible", false, "Show browser window (for debugging)")
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	fmt.Printf("=== Update started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx := context.Background()

	tracker := window.NewTracker(cfg.GetWindowStorePath(), cfg.GetStartDate())
	fetcher := &browserFetcher{cfg: cfg}
	fileIntake := intake.New(cfg.RawDownloadDir, cfg.WorkDir)
	creds := scraper.Credentials{Username: cfg.Username, Password: cfg.Password}

	pipe := pipeline.New(tracker, fetcher, fileIntake, creds, cfg.DayMeterID, cfg.NightMeterID, cfg.WorkDir)

	today := time.Now()
	ran, err := pipe.RunDailyUpdate(ctx, today)
	if err != nil {
		return err
	}
	if !ran {
		fmt.Println("Already up to date")
		return nil
	}

	fmt.Println("✓ Exports fetched and normalized")

	// Archive the freshly merged totals
	combined, err := pipe.CombinedSeries()
	if err != nil {
		return fmt.Errorf("building combined series: %w", err)
	}

	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	for _, c := range combined {
		if err := db.UpsertTotal(c); err != nil {
			return fmt.Errorf("archiving totals: %w", err)
		}
	}

	fmt.Printf("✓ Archived %d combined daily totals\n", len(combined))
	return nil
}

// browserFetcher launches the browser only when a fetch is actually
// due, so a no-op day starts no Chrome process.
type browserFetcher struct {
	cfg *config.Config
}

func (f *browserFetcher) Fetch(ctx context.Context, creds scraper.Credentials, start, end time.Time) error {
	browser := scraper.NewBrowser(f.cfg.GetHeadless() && !updateVisible, f.cfg.RawDownloadDir)
	if err := browser.Start(ctx); err != nil {
		return fmt.Errorf("starting browser: %w", err)
	}
	defer browser.Close()

	session := scraper.NewSession(browser, f.cfg.PortalURL, f.cfg.DayMeterID, f.cfg.NightMeterID)
	if err := session.Fetch(ctx, creds, start, end); err != nil {
		return err
	}

	// Give the triggered downloads time to land before intake scans
	// the raw directory
	time.Sleep(5 * time.Second)
	return nil
}
