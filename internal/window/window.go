package window

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	dateLayout      = "2006-01-02"
	neverSentinel   = "never"
	storeFilePerm   = 0644
	storeTmpPattern = "window-*.yaml"
)

// ErrNotInitialized is returned by Load when no window record has ever
// been persisted.
var ErrNotInitialized = errors.New("date window store not initialized")

// Window is the persisted record of what has already been fetched.
// Start and End are inclusive calendar dates; a zero LastRun means the
// pipeline has never completed a run.
type Window struct {
	Start   time.Time
	End     time.Time
	LastRun time.Time
}

// IsDue reports whether a fetch run is still outstanding for today.
func (w Window) IsDue(today time.Time) bool {
	return !sameDay(w.LastRun, today)
}

// Advance computes the next window after a successful run on today.
// It intentionally mirrors the behavior the portal tooling has always
// had: the window collapses to a single day once a run succeeds, so
// the next fetch covers [today, nextToday-1].
func Advance(w Window, today time.Time) Window {
	next := w
	if w.LastRun.IsZero() {
		next.Start = dateOnly(today)
	} else if !sameDay(w.LastRun, today) {
		next.Start = dateOnly(w.LastRun)
	}
	next.LastRun = dateOnly(today)
	next.Start = dateOnly(today)
	return next
}

// Tracker owns the persisted window record. No other component reads
// or writes the store path.
type Tracker struct {
	path            string
	configuredStart time.Time
}

// NewTracker returns a tracker backed by the YAML store at path.
// configuredStart seeds Start on the first-ever run; when zero, the
// first window covers only yesterday.
func NewTracker(path string, configuredStart time.Time) *Tracker {
	return &Tracker{path: path, configuredStart: configuredStart}
}

// Initialize creates the window record if none exists. It is a no-op
// when a record is already persisted, and it never overwrites an
// existing store, even an unreadable one.
func (t *Tracker) Initialize(today time.Time) error {
	_, err := t.Load()
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotInitialized) {
		return err
	}

	start := t.configuredStart
	if start.IsZero() {
		start = today.AddDate(0, 0, -1)
	}

	w := Window{
		Start: dateOnly(start),
		End:   dateOnly(today.AddDate(0, 0, -1)),
	}
	return t.Save(w)
}

// Load returns the current persisted window.
func (t *Tracker) Load() (Window, error) {
	data, err := os.ReadFile(t.path)
	if os.IsNotExist(err) {
		return Window{}, ErrNotInitialized
	}
	if err != nil {
		return Window{}, fmt.Errorf("reading window store: %w", err)
	}

	var rec record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return Window{}, fmt.Errorf("parsing window store: %w", err)
	}

	return rec.toWindow()
}

// Save persists the window atomically: the new record is written to a
// temp file and renamed over the store, so readers see either the old
// record or the new one, never a partial write.
func (t *Tracker) Save(w Window) error {
	data, err := yaml.Marshal(newRecord(w))
	if err != nil {
		return fmt.Errorf("marshaling window: %w", err)
	}

	dir := filepath.Dir(t.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating window store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, storeTmpPattern)
	if err != nil {
		return fmt.Errorf("creating temp window store: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing window store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing window store: %w", err)
	}
	if err := os.Chmod(tmp.Name(), storeFilePerm); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("setting window store permissions: %w", err)
	}

	if err := os.Rename(tmp.Name(), t.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing window store: %w", err)
	}

	return nil
}

// record is the on-disk YAML shape
type record struct {
	Start   string `yaml:"start"`
	End     string `yaml:"end"`
	LastRun string `yaml:"last_run"`
}

func newRecord(w Window) record {
	rec := record{
		Start:   w.Start.Format(dateLayout),
		End:     w.End.Format(dateLayout),
		LastRun: neverSentinel,
	}
	if !w.LastRun.IsZero() {
		rec.LastRun = w.LastRun.Format(dateLayout)
	}
	return rec
}

func (r record) toWindow() (Window, error) {
	var w Window
	var err error

	if w.Start, err = time.Parse(dateLayout, r.Start); err != nil {
		return Window{}, fmt.Errorf("parsing window start %q: %w", r.Start, err)
	}
	if w.End, err = time.Parse(dateLayout, r.End); err != nil {
		return Window{}, fmt.Errorf("parsing window end %q: %w", r.End, err)
	}
	if r.LastRun != neverSentinel {
		if w.LastRun, err = time.Parse(dateLayout, r.LastRun); err != nil {
			return Window{}, fmt.Errorf("parsing window last_run %q: %w", r.LastRun, err)
		}
	}

	return w, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func sameDay(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
