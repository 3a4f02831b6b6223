package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avandermeer/metermirror/internal/series"
)

var seriesArchived bool

var seriesCmd = &cobra.Command{
	Use:   "series",
	Short: "Show the combined daily consumption series",
	Long: `Builds both meter series from the normalized files in the work
directory, merges them into a combined total per date and displays the
result with 7-day and 30-day rolling medians.`,
	RunE: runSeries,
}

func init() {
	seriesCmd.Flags().BoolVar(&seriesArchived, "archived", false, "Read from the archive database instead of the work directory")
	rootCmd.AddCommand(seriesCmd)
}

func runSeries(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	var combined []series.Combined
	if seriesArchived {
		db, err := openDB()
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()

		combined, err = db.ListTotals()
		if err != nil {
			return fmt.Errorf("listing archived totals: %w", err)
		}
	} else {
		day, err := series.BuildSeries(cfg.WorkDir, cfg.DayMeterID)
		if err != nil {
			return fmt.Errorf("building day series: %w", err)
		}
		night, err := series.BuildSeries(cfg.WorkDir, cfg.NightMeterID)
		if err != nil {
			return fmt.Errorf("building night series: %w", err)
		}
		combined = series.MergeTotals(day, night)
	}

	if len(combined) == 0 {
		fmt.Println("No combined data found")
		return nil
	}

	fmt.Println("\nCombined Daily Consumption:")
	fmt.Println("----------------------------------------------------------------------")
	fmt.Printf("%-12s %8s %8s %8s %8s %8s\n", "Date", "Day", "Night", "Total", "Med7", "Med30")
	fmt.Println("----------------------------------------------------------------------")

	var total float64
	for _, c := range combined {
		fmt.Printf("%-12s %8.2f %8.2f %8.0f %8s %8s\n",
			c.Date.Format("2006-01-02"), c.Day, c.Night, c.Total,
			fmtMedian(c.Median7), fmtMedian(c.Median30))
		total += c.Total
	}

	fmt.Println("----------------------------------------------------------------------")
	fmt.Printf("Total: %.0f kWh (%d days)\n", total, len(combined))
	return nil
}

func fmtMedian(m *float64) string {
	if m == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *m)
}
