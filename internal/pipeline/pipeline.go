package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/avandermeer/metermirror/internal/scraper"
	"github.com/avandermeer/metermirror/internal/series"
	"github.com/avandermeer/metermirror/internal/window"
)

// Fetcher runs the portal export protocol for a date range.
type Fetcher interface {
	Fetch(ctx context.Context, creds scraper.Credentials, start, end time.Time) error
}

// Relocator moves today's raw exports into the work directory.
type Relocator interface {
	Relocate(meterID string) error
}

// Pipeline composes the window tracker, the fetch session and the file
// intake into the daily update. It is the only component that touches
// all the external collaborators, and the only caller of Save: the
// window advances exactly once, after both meters have exported and
// been relocated.
type Pipeline struct {
	tracker *window.Tracker
	fetcher Fetcher
	intake  Relocator

	creds        scraper.Credentials
	dayMeterID   string
	nightMeterID string
	workDir      string
}

// New wires a pipeline.
func New(tracker *window.Tracker, fetcher Fetcher, intake Relocator,
	creds scraper.Credentials, dayMeterID, nightMeterID, workDir string) *Pipeline {
	return &Pipeline{
		tracker:      tracker,
		fetcher:      fetcher,
		intake:       intake,
		creds:        creds,
		dayMeterID:   dayMeterID,
		nightMeterID: nightMeterID,
		workDir:      workDir,
	}
}

// RunDailyUpdate performs one acquisition run for today. It returns
// false with a nil error when today's run already happened; that path
// has no side effects at all. On any fetch or intake failure the
// persisted window is left byte-for-byte untouched, so the next
// invocation retries the same range.
func (p *Pipeline) RunDailyUpdate(ctx context.Context, today time.Time) (bool, error) {
	if err := p.tracker.Initialize(today); err != nil {
		return false, fmt.Errorf("initializing window store: %w", err)
	}

	w, err := p.tracker.Load()
	if err != nil {
		return false, fmt.Errorf("loading window: %w", err)
	}

	if !w.IsDue(today) {
		return false, nil
	}

	end := today.AddDate(0, 0, -1)
	if err := p.fetcher.Fetch(ctx, p.creds, w.Start, end); err != nil {
		return false, fmt.Errorf("fetching exports: %w", err)
	}

	for _, meterID := range []string{p.dayMeterID, p.nightMeterID} {
		if err := p.intake.Relocate(meterID); err != nil {
			return false, fmt.Errorf("relocating exports for meter %s: %w", meterID, err)
		}
	}

	if err := p.tracker.Save(window.Advance(w, today)); err != nil {
		return false, fmt.Errorf("saving advanced window: %w", err)
	}

	return true, nil
}

// CombinedSeries builds both meter series from the work directory and
// merges them. It is read-only and independent of the daily-update
// gate.
func (p *Pipeline) CombinedSeries() ([]series.Combined, error) {
	day, err := series.BuildSeries(p.workDir, p.dayMeterID)
	if err != nil {
		return nil, fmt.Errorf("building day series: %w", err)
	}

	night, err := series.BuildSeries(p.workDir, p.nightMeterID)
	if err != nil {
		return nil, fmt.Errorf("building night series: %w", err)
	}

	return series.MergeTotals(day, night), nil
}

// Window exposes the current persisted window for status reporting.
func (p *Pipeline) Window() (window.Window, error) {
	return p.tracker.Load()
}
