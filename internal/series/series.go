package series

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrParse is wrapped into every error caused by a malformed raw
// record. A single bad row fails the whole file.
var ErrParse = errors.New("malformed export record")

// Raw export rows carry seven semicolon-separated fields; only the
// timestamp, the cumulative meter reading and the period consumption
// are used.
const (
	fieldCount       = 7
	dateField        = 1
	readingField     = 2
	consumptionField = 5
)

// Rolling median window sizes, in rows.
const (
	shortWindow = 7
	longWindow  = 30
)

// Record is one day of one meter: the cumulative counter and the
// period delta, plus trailing medians of the delta once enough rows
// precede it.
type Record struct {
	Date         time.Time
	MeterReading float64
	Consumption  float64
	Median7      *float64
	Median30     *float64
}

// Combined is one day of both meters joined, with trailing medians
// over the summed total.
type Combined struct {
	Date     time.Time
	Day      float64
	Night    float64
	Total    float64
	Median7  *float64
	Median30 *float64
}

// timestampLayouts lists the formats the portal has been observed to
// use for the row timestamp.
var timestampLayouts = []string{
	"2006-01-02T15:04:05-07:00",
	"2006-01-02 15:04:05-07:00",
}

// BuildSeries reads every normalized file in workDir whose name
// contains meterID and returns one record per calendar date, sorted
// ascending. Duplicate dates keep the value parsed last, so a more
// recent fetch supersedes older ones.
func BuildSeries(workDir, meterID string) ([]Record, error) {
	entries, err := os.ReadDir(workDir)
	if err != nil {
		return nil, fmt.Errorf("reading work directory: %w", err)
	}

	var all []Record
	for _, entry := range entries {
		if entry.IsDir() || !strings.Contains(entry.Name(), meterID) {
			continue
		}
		records, err := parseFile(filepath.Join(workDir, entry.Name()))
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
	}

	deduped := dedupKeepLatest(all)

	consumptions := make([]float64, len(deduped))
	for i, r := range deduped {
		consumptions[i] = r.Consumption
	}
	med7 := rollingMedian(consumptions, shortWindow)
	med30 := rollingMedian(consumptions, longWindow)
	for i := range deduped {
		deduped[i].Median7 = med7[i]
		deduped[i].Median30 = med30[i]
	}

	return deduped, nil
}

// MergeTotals inner-joins the two meter series on date. The total is
// the day plus night consumption rounded to the nearest whole unit,
// with trailing medians recomputed over the totals.
func MergeTotals(day, night []Record) []Combined {
	nightByDate := make(map[time.Time]Record, len(night))
	for _, r := range night {
		nightByDate[r.Date] = r
	}

	var merged []Combined
	for _, d := range day {
		n, ok := nightByDate[d.Date]
		if !ok {
			continue
		}
		merged = append(merged, Combined{
			Date:  d.Date,
			Day:   d.Consumption,
			Night: n.Consumption,
			Total: math.Round(d.Consumption + n.Consumption),
		})
	}

	totals := make([]float64, len(merged))
	for i, c := range merged {
		totals[i] = c.Total
	}
	med7 := rollingMedian(totals, shortWindow)
	med30 := rollingMedian(totals, longWindow)
	for i := range merged {
		merged[i].Median7 = med7[i]
		merged[i].Median30 = med30[i]
	}

	return merged
}

// parseFile reads one normalized export file. Any row that cannot be
// converted fails the whole file; there is no per-row recovery.
func parseFile(path string) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening export file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = ';'
	reader.FieldsPerRecord = fieldCount

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: reading rows: %w: %v", filepath.Base(path), ErrParse, err)
	}

	records := make([]Record, 0, len(rows))
	for i, row := range rows {
		rec, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("%s: row %d: %w", filepath.Base(path), i+1, err)
		}
		records = append(records, rec)
	}

	return records, nil
}

func parseRow(row []string) (Record, error) {
	ts, err := parseTimestamp(strings.TrimSpace(row[dateField]))
	if err != nil {
		return Record{}, err
	}

	reading, err := parseDecimal(row[readingField])
	if err != nil {
		return Record{}, fmt.Errorf("meter reading: %w", err)
	}

	consumption, err := parseDecimal(row[consumptionField])
	if err != nil {
		return Record{}, fmt.Errorf("consumption: %w", err)
	}

	return Record{
		Date:         time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC),
		MeterReading: reading,
		Consumption:  consumption,
	}, nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q: %w", s, ErrParse)
}

// parseDecimal converts the portal's comma-decimal notation
func parseDecimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" {
		return 0, fmt.Errorf("empty numeric field: %w", ErrParse)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("non-numeric field %q: %w", s, ErrParse)
	}
	return v, nil
}

// dedupKeepLatest sorts by date ascending and keeps, for each date,
// the record that appeared last in parse order.
func dedupKeepLatest(records []Record) []Record {
	latest := make(map[time.Time]Record, len(records))
	for _, r := range records {
		latest[r.Date] = r
	}

	out := make([]Record, 0, len(latest))
	for _, r := range latest {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// rollingMedian returns the trailing median over the last window values
// at each position, and nil for positions with fewer than window values
// before them.
func rollingMedian(values []float64, window int) []*float64 {
	out := make([]*float64, len(values))
	if window <= 0 {
		return out
	}

	scratch := make([]float64, window)
	for i := window - 1; i < len(values); i++ {
		copy(scratch, values[i-window+1:i+1])
		sort.Float64s(scratch)

		var m float64
		if window%2 == 1 {
			m = scratch[window/2]
		} else {
			m = (scratch[window/2-1] + scratch[window/2]) / 2
		}
		out[i] = &m
	}
	return out
}
