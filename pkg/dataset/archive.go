package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Archive persists merged observations in a SQLite database so that
// later retrains can fold in history beyond what the CSV exports cover.
// Rows are keyed by (road, timestamp); re-saving the same observation
// overwrites it.
type Archive struct {
	db *sql.DB
}

const archiveSchema = `
CREATE TABLE IF NOT EXISTS observations (
	road       TEXT    NOT NULL,
	ts         TEXT    NOT NULL,
	speed_kmh  REAL    NOT NULL,
	rain_mm    REAL    NOT NULL,
	temp_c     REAL    NOT NULL,
	humidity   INTEGER NOT NULL,
	event_type TEXT    NOT NULL,
	PRIMARY KEY (road, ts)
)`

// OpenArchive opens (creating if necessary) a SQLite observation archive
// at path.
func OpenArchive(path string) (*Archive, error) {
	if path == "" {
		return nil, fmt.Errorf("archive path cannot be empty")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}

	// WAL keeps readers unblocked while a retrain writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(archiveSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Archive{db: db}, nil
}

// Save upserts observations into the archive in a single transaction.
func (a *Archive) Save(ctx context.Context, obs []Observation) error {
	if len(obs) == 0 {
		return nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO observations
		(road, ts, speed_kmh, rain_mm, temp_c, humidity, event_type)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare archive insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range obs {
		_, err := stmt.ExecContext(ctx,
			o.Road,
			o.Timestamp.Format(TimestampLayout),
			o.SpeedKmh,
			o.RainMm,
			o.TempC,
			o.Humidity,
			o.EventType,
		)
		if err != nil {
			return fmt.Errorf("insert observation %s/%s: %w", o.Road, o.Timestamp.Format(TimestampLayout), err)
		}
	}

	return tx.Commit()
}

// LoadAll returns every archived observation ordered by road and timestamp.
func (a *Archive) LoadAll(ctx context.Context) ([]Observation, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT road, ts, speed_kmh, rain_mm, temp_c, humidity, event_type
		FROM observations ORDER BY road, ts`)
	if err != nil {
		return nil, fmt.Errorf("query archive: %w", err)
	}
	defer rows.Close()

	var obs []Observation
	for rows.Next() {
		var o Observation
		var ts string
		if err := rows.Scan(&o.Road, &ts, &o.SpeedKmh, &o.RainMm, &o.TempC, &o.Humidity, &o.EventType); err != nil {
			return nil, fmt.Errorf("scan archive row: %w", err)
		}
		o.Timestamp, err = time.Parse(TimestampLayout, ts)
		if err != nil {
			return nil, fmt.Errorf("archive row has invalid timestamp %q: %w", ts, err)
		}
		obs = append(obs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archive rows: %w", err)
	}
	return obs, nil
}

// Count returns the number of archived observations.
func (a *Archive) Count(ctx context.Context) (int, error) {
	var n int
	if err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM observations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count archive rows: %w", err)
	}
	return n, nil
}

// Close closes the underlying database handle.
func (a *Archive) Close() error {
	return a.db.Close()
}
