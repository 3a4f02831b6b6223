package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/avandermeer/metermirror/internal/window"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the persisted date window",
	Long:  `Displays the fetch window state: range start, range end and the last successful run.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	tracker := window.NewTracker(cfg.GetWindowStorePath(), cfg.GetStartDate())
	w, err := tracker.Load()
	if errors.Is(err, window.ErrNotInitialized) {
		fmt.Println("No window persisted yet — run 'metermirror update' first")
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading window: %w", err)
	}

	lastRun := "never"
	if !w.LastRun.IsZero() {
		lastRun = w.LastRun.Format("2006-01-02")
	}

	fmt.Printf("Window start: %s\n", w.Start.Format("2006-01-02"))
	fmt.Printf("Window end:   %s\n", w.End.Format("2006-01-02"))
	fmt.Printf("Last run:     %s\n", lastRun)

	if w.IsDue(time.Now()) {
		fmt.Println("A run is due today")
	} else {
		fmt.Println("Already up to date")
	}
	return nil
}
