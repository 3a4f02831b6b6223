package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/avandermeer/metermirror/internal/series"
)

// DB wraps the database connection
type DB struct {
	conn *sql.DB
}

// New creates a new database connection and initializes the schema
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS daily_totals (
		date TEXT PRIMARY KEY,
		day_kwh REAL NOT NULL,
		night_kwh REAL NOT NULL,
		total_kwh REAL NOT NULL,
		created_at TEXT NOT NULL,
		published INTEGER DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_totals_published ON daily_totals(published);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// UpsertTotal inserts the archived total for one date. A re-fetch
// that changed the values supersedes the earlier row and resets its
// published flag; an unchanged row keeps its flag so it is not
// published twice.
func (db *DB) UpsertTotal(c series.Combined) error {
	query := `
	INSERT INTO daily_totals (date, day_kwh, night_kwh, total_kwh, created_at, published)
	VALUES (?, ?, ?, ?, ?, 0)
	ON CONFLICT(date) DO UPDATE SET
		day_kwh = excluded.day_kwh,
		night_kwh = excluded.night_kwh,
		total_kwh = excluded.total_kwh,
		created_at = excluded.created_at,
		published = 0
	WHERE daily_totals.day_kwh != excluded.day_kwh
		OR daily_totals.night_kwh != excluded.night_kwh
		OR daily_totals.total_kwh != excluded.total_kwh
	`

	createdAt := time.Now().UTC().Format(time.RFC3339)
	_, err := db.conn.Exec(query, c.Date.Format("2006-01-02"), c.Day, c.Night, c.Total, createdAt)
	if err != nil {
		return fmt.Errorf("inserting daily total: %w", err)
	}

	return nil
}

// ListTotals retrieves all archived totals ordered by date
func (db *DB) ListTotals() ([]series.Combined, error) {
	return db.listWhere("")
}

// ListUnpublishedTotals retrieves archived totals not yet published
func (db *DB) ListUnpublishedTotals() ([]series.Combined, error) {
	return db.listWhere("WHERE published = 0")
}

func (db *DB) listWhere(where string) ([]series.Combined, error) {
	query := fmt.Sprintf(`
	SELECT date, day_kwh, night_kwh, total_kwh
	FROM daily_totals
	%s
	ORDER BY date ASC
	`, where)

	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("querying daily totals: %w", err)
	}
	defer rows.Close()

	var results []series.Combined
	for rows.Next() {
		var c series.Combined
		var dateStr string

		if err := rows.Scan(&dateStr, &c.Day, &c.Night, &c.Total); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		c.Date, err = time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, fmt.Errorf("parsing date: %w", err)
		}

		results = append(results, c)
	}

	return results, rows.Err()
}

// MarkPublished marks one date's total as published
func (db *DB) MarkPublished(date time.Time) error {
	query := `UPDATE daily_totals SET published = 1 WHERE date = ?`
	_, err := db.conn.Exec(query, date.Format("2006-01-02"))
	if err != nil {
		return fmt.Errorf("marking total as published: %w", err)
	}
	return nil
}
