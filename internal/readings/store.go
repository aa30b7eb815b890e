// Package readings provides storage for hive sensor observations.
package readings

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Measurement is the categorical type of a sensor observation.
type Measurement string

const (
	MeasurementTemperature Measurement = "temperature"
	MeasurementHumidity    Measurement = "humidity"
	MeasurementWeight      Measurement = "weight"
	MeasurementAcoustics   Measurement = "acoustics"
	MeasurementCO2         Measurement = "co2"
)

// timeFormat is the timestamp column encoding. The fractional-second
// field is fixed width so encoded values compare lexicographically in
// timestamp order, which MAX(insert_timestamp) relies on. RFC3339Nano
// trims trailing zeros, so under it "…00Z" would sort after "…00.5Z"
// and Latest would pick the older row. Timestamps are normalized to
// UTC before encoding for the same reason.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SensorReading is one observation from one sensor. Readings are never
// mutated after insert; the pair (SensorID, Timestamp) uniquely
// identifies a row.
type SensorReading struct {
	SensorID   string      `json:"sensor_id"`
	Timestamp  time.Time   `json:"insert_timestamp"`
	Type       Measurement `json:"type"`
	Value      float64     `json:"value"`
	Unit       string      `json:"unit"`
	UploadFreq string      `json:"upload_freq"` // informational metadata only
}

// String formats a reading the way it is presented to the model.
func (r SensorReading) String() string {
	return fmt.Sprintf("Sensor %s (%s): %v%s (Timestamp: %s)",
		r.SensorID, r.Type, r.Value, r.Unit, r.Timestamp.Format(time.RFC3339Nano))
}

// Store manages sensor reading persistence.
type Store struct {
	db *sql.DB
}

// NewStore creates a reading store at the given database path.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// NewStoreWithDB creates a reading store using an existing database
// connection. Used by tests and by callers that share one database.
func NewStoreWithDB(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sensors (
			sensor_id TEXT NOT NULL,
			insert_timestamp TEXT NOT NULL,
			type TEXT NOT NULL,
			value REAL NOT NULL,
			unit TEXT NOT NULL,
			upload_freq TEXT,
			PRIMARY KEY (sensor_id, insert_timestamp)
		);

		CREATE INDEX IF NOT EXISTS idx_sensors_type ON sensors(type);
	`)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert stores one reading. Inserting the same (sensor, timestamp)
// pair twice replaces the earlier row, which keeps seeding and feed
// replays idempotent.
func (s *Store) Insert(ctx context.Context, r SensorReading) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sensors (sensor_id, insert_timestamp, type, value, unit, upload_freq)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.SensorID, r.Timestamp.UTC().Format(timeFormat), string(r.Type), r.Value, r.Unit, r.UploadFreq)
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	return nil
}

// InsertBatch stores readings in one transaction.
func (s *Store) InsertBatch(ctx context.Context, rs []SensorReading) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO sensors (sensor_id, insert_timestamp, type, value, unit, upload_freq)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range rs {
		if _, err := stmt.ExecContext(ctx,
			r.SensorID, r.Timestamp.UTC().Format(timeFormat), string(r.Type), r.Value, r.Unit, r.UploadFreq,
		); err != nil {
			return fmt.Errorf("insert reading %s@%s: %w", r.SensorID, r.Timestamp, err)
		}
	}

	return tx.Commit()
}

// Count returns the number of stored readings.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sensors`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count readings: %w", err)
	}
	return n, nil
}

// Latest returns the most recent reading per sensor, optionally
// restricted to one measurement type (empty means all types). The
// result is ordered by ascending sensor_id so output is deterministic.
// Exactly one row per sensor is possible because (sensor_id,
// insert_timestamp) is the primary key: two readings for one sensor
// cannot share the maximum timestamp.
func (s *Store) Latest(ctx context.Context, measurement Measurement) ([]SensorReading, error) {
	query := `
		SELECT sensor_id, insert_timestamp, type, value, unit, upload_freq
		FROM sensors s1
		WHERE insert_timestamp = (
			SELECT MAX(insert_timestamp)
			FROM sensors s2
			WHERE s2.sensor_id = s1.sensor_id
		)
	`
	var args []any
	if measurement != "" {
		query += ` AND type = ?`
		args = append(args, string(measurement))
	}
	query += ` ORDER BY sensor_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query latest readings: %w", err)
	}
	defer rows.Close()

	var result []SensorReading
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func scanReading(rows *sql.Rows) (SensorReading, error) {
	var r SensorReading
	var tsStr, typeStr string
	var uploadFreq sql.NullString

	if err := rows.Scan(&r.SensorID, &tsStr, &typeStr, &r.Value, &r.Unit, &uploadFreq); err != nil {
		return SensorReading{}, fmt.Errorf("scan reading: %w", err)
	}

	ts, err := time.Parse(timeFormat, tsStr)
	if err != nil {
		return SensorReading{}, fmt.Errorf("parse timestamp %q: %w", tsStr, err)
	}
	r.Timestamp = ts
	r.Type = Measurement(typeStr)
	if uploadFreq.Valid {
		r.UploadFreq = uploadFreq.String
	}

	return r, nil
}
