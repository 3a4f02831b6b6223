package intake

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrFileSystem is wrapped into every error caused by a move that
// could not complete. The raw file is left in place for the next run.
var ErrFileSystem = errors.New("export file move failed")

// Intake relocates freshly downloaded export files from the raw
// download directory into the work directory under stable names.
type Intake struct {
	rawDir  string
	workDir string
	now     func() time.Time
}

// New returns an intake between rawDir and workDir.
func New(rawDir, workDir string) *Intake {
	return &Intake{rawDir: rawDir, workDir: workDir, now: time.Now}
}

// Relocate moves every file in the raw directory that was created
// today and whose name contains meterID into the work directory as
// YYYYMMDD_<meterID>.csv. Multiple matches all target the same name,
// so the last match wins and exactly one normalized file remains per
// meter per day. Stale and non-matching files stay untouched.
func (in *Intake) Relocate(meterID string) error {
	entries, err := os.ReadDir(in.rawDir)
	if err != nil {
		return fmt.Errorf("reading raw download directory: %w", err)
	}

	if err := os.MkdirAll(in.workDir, 0755); err != nil {
		return fmt.Errorf("creating work directory: %w", err)
	}

	today := in.now()
	target := filepath.Join(in.workDir, NormalizedName(today, meterID))

	for _, entry := range entries {
		if entry.IsDir() || !strings.Contains(entry.Name(), meterID) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		if !sameDay(info.ModTime(), today) {
			continue
		}

		src := filepath.Join(in.rawDir, entry.Name())
		if err := os.Rename(src, target); err != nil {
			return fmt.Errorf("moving %s: %w: %v", entry.Name(), ErrFileSystem, err)
		}
	}

	return nil
}

// NormalizedName is the stable per-day filename for a meter's export.
func NormalizedName(day time.Time, meterID string) string {
	return fmt.Sprintf("%s_%s.csv", day.Format("20060102"), meterID)
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
