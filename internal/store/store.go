// Package store provides SQLite persistence for PlantPulse.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/mvasconcelos/plantpulse/internal/model"
	_ "modernc.org/sqlite"
)

// DefaultQueryLimit caps query results when no explicit limit is given.
const DefaultQueryLimit = 100

// Store wraps a SQLite database holding machines, parameters, readings and
// anomalies. Writes are serialized through a single writer mutex; each batch
// is one transaction, so readers always observe a consistent snapshot and
// never see a reading without its matching anomaly row.
type Store struct {
	db *sql.DB

	writeMu sync.Mutex
}

// New opens or creates a SQLite database at the given path and applies the
// schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)")
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", dbPath, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// StoreBatch persists a batch of enriched readings in a single transaction.
// Per row it upserts the machine and parameter, appends a reading, and — when
// the row is anomalous — appends an anomaly and marks the reading. A row that
// fails is logged and skipped; the batch continues. Returns the number of
// rows stored.
func (s *Store) StoreBatch(rows []model.EnrichedReading) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning batch transaction: %w", err)
	}
	defer tx.Rollback()

	stored := 0
	for _, row := range rows {
		if err := s.storeRow(tx, row); err != nil {
			slog.Warn("skipping reading",
				"machine_id", row.MachineID,
				"parameter", row.Parameter,
				"error", err,
			)
			continue
		}
		stored++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing batch: %w", err)
	}
	return stored, nil
}

func (s *Store) storeRow(tx *sql.Tx, row model.EnrichedReading) error {
	if err := upsertMachine(tx, row); err != nil {
		return err
	}

	paramID, err := upsertParameter(tx, row)
	if err != nil {
		return err
	}

	isAnomaly := 0
	if row.IsAnomalous() {
		isAnomaly = 1
	}

	var readingID int64
	err = tx.QueryRow(`
		INSERT INTO readings (machine_id, parameter_id, timestamp, value, is_anomaly)
		VALUES (?, ?, ?, ?, ?)
		RETURNING reading_id`,
		row.MachineID, paramID, row.Timestamp, row.Value, isAnomaly,
	).Scan(&readingID)
	if err != nil {
		return fmt.Errorf("inserting reading: %w", err)
	}

	if isAnomaly == 1 {
		severity := model.SeverityMedium
		if math.Abs(row.Deviation) > 3 {
			severity = model.SeverityHigh
		}
		description := fmt.Sprintf("Value out of limits: %g", row.Value)
		if !row.OutOfLimits {
			description = fmt.Sprintf("Anomalous reading: %g", row.Value)
		}
		_, err = tx.Exec(`
			INSERT INTO anomalies (reading_id, machine_id, parameter_id, timestamp, value, severity, description)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			readingID, row.MachineID, paramID, row.Timestamp, row.Value, severity, description,
		)
		if err != nil {
			return fmt.Errorf("inserting anomaly: %w", err)
		}
	}

	return nil
}

// upsertMachine inserts the machine or refreshes its mutable fields. Empty
// location/status on the incoming row leave the stored values untouched; the
// installation date is set by the first row that carries one and never
// overwritten.
func upsertMachine(tx *sql.Tx, row model.EnrichedReading) error {
	status := row.Status
	if status == "" {
		status = "Operational"
	}
	_, err := tx.Exec(`
		INSERT INTO machines (machine_id, machine_type, location, installation_date, status)
		VALUES (?, ?, NULLIF(?, ''), NULLIF(?, ''), ?)
		ON CONFLICT(machine_id) DO UPDATE SET
			machine_type = excluded.machine_type,
			location = COALESCE(excluded.location, machines.location),
			installation_date = COALESCE(machines.installation_date, excluded.installation_date),
			status = excluded.status`,
		row.MachineID, row.MachineType, row.Location, row.InstallationDate, status,
	)
	if err != nil {
		return fmt.Errorf("upserting machine %d: %w", row.MachineID, err)
	}
	return nil
}

// upsertParameter inserts the parameter if absent and refreshes unit/limits
// when the row carries enrichment. Returns the parameter ID.
func upsertParameter(tx *sql.Tx, row model.EnrichedReading) (int64, error) {
	var (
		paramID int64
		err     error
	)
	if row.Enriched {
		err = tx.QueryRow(`
			INSERT INTO parameters (machine_id, parameter_name, unit, min_limit, max_limit)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(machine_id, parameter_name) DO UPDATE SET
				unit = excluded.unit,
				min_limit = excluded.min_limit,
				max_limit = excluded.max_limit
			RETURNING parameter_id`,
			row.MachineID, row.Parameter, row.Unit, row.MinLimit, row.MaxLimit,
		).Scan(&paramID)
	} else {
		// No profile: register the name only, keep any existing limits.
		err = tx.QueryRow(`
			INSERT INTO parameters (machine_id, parameter_name)
			VALUES (?, ?)
			ON CONFLICT(machine_id, parameter_name) DO UPDATE SET
				parameter_name = excluded.parameter_name
			RETURNING parameter_id`,
			row.MachineID, row.Parameter,
		).Scan(&paramID)
	}
	if err != nil {
		return 0, fmt.Errorf("upserting parameter %s: %w", row.Parameter, err)
	}
	return paramID, nil
}

// QueryFilter narrows reading and anomaly queries. Zero values mean "no
// filter"; a Limit of 0 applies DefaultQueryLimit.
type QueryFilter struct {
	MachineID *int
	Parameter string
	StartTime string
	EndTime   string
	Limit     int
}

func (f QueryFilter) limit() int {
	if f.Limit <= 0 {
		return DefaultQueryLimit
	}
	return f.Limit
}

// QueryReadings returns readings matching the filter, newest first, truncated
// to the filter's limit.
func (s *Store) QueryReadings(f QueryFilter) ([]model.Reading, error) {
	query := `
		SELECT r.reading_id, r.machine_id, m.machine_type, p.parameter_name,
		       r.timestamp, r.value, r.is_anomaly, p.min_limit, p.max_limit
		FROM readings r
		JOIN machines m ON r.machine_id = m.machine_id
		JOIN parameters p ON r.parameter_id = p.parameter_id
		WHERE 1=1`
	var args []any

	if f.MachineID != nil {
		query += " AND r.machine_id = ?"
		args = append(args, *f.MachineID)
	}
	if f.Parameter != "" {
		query += " AND p.parameter_name = ?"
		args = append(args, f.Parameter)
	}
	if f.StartTime != "" {
		query += " AND r.timestamp >= ?"
		args = append(args, f.StartTime)
	}
	if f.EndTime != "" {
		query += " AND r.timestamp <= ?"
		args = append(args, f.EndTime)
	}
	query += " ORDER BY r.timestamp DESC LIMIT ?"
	args = append(args, f.limit())

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}
	defer rows.Close()

	var out []model.Reading
	for rows.Next() {
		var (
			r         model.Reading
			isAnomaly int
		)
		if err := rows.Scan(&r.ReadingID, &r.MachineID, &r.MachineType, &r.ParameterName,
			&r.Timestamp, &r.Value, &isAnomaly, &r.MinLimit, &r.MaxLimit); err != nil {
			return nil, fmt.Errorf("scanning reading: %w", err)
		}
		r.IsAnomaly = isAnomaly != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// QueryAnomalies returns anomalies matching the filter, newest first,
// truncated to the filter's limit.
func (s *Store) QueryAnomalies(f QueryFilter) ([]model.Anomaly, error) {
	query := `
		SELECT a.anomaly_id, a.reading_id, a.machine_id, m.machine_type,
		       p.parameter_name, a.timestamp, a.value, a.severity, a.description
		FROM anomalies a
		JOIN machines m ON a.machine_id = m.machine_id
		JOIN parameters p ON a.parameter_id = p.parameter_id
		WHERE 1=1`
	var args []any

	if f.MachineID != nil {
		query += " AND a.machine_id = ?"
		args = append(args, *f.MachineID)
	}
	if f.Parameter != "" {
		query += " AND p.parameter_name = ?"
		args = append(args, f.Parameter)
	}
	if f.StartTime != "" {
		query += " AND a.timestamp >= ?"
		args = append(args, f.StartTime)
	}
	if f.EndTime != "" {
		query += " AND a.timestamp <= ?"
		args = append(args, f.EndTime)
	}
	query += " ORDER BY a.timestamp DESC LIMIT ?"
	args = append(args, f.limit())

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying anomalies: %w", err)
	}
	defer rows.Close()

	var out []model.Anomaly
	for rows.Next() {
		var a model.Anomaly
		if err := rows.Scan(&a.AnomalyID, &a.ReadingID, &a.MachineID, &a.MachineType,
			&a.ParameterName, &a.Timestamp, &a.Value, &a.Severity, &a.Description); err != nil {
			return nil, fmt.Errorf("scanning anomaly: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// MachineStats returns live per-machine aggregates: parameter, reading and
// anomaly counts plus first/last reading timestamps. Computed on demand, not
// cached.
func (s *Store) MachineStats() ([]model.MachineStats, error) {
	rows, err := s.db.Query(`
		SELECT m.machine_id, m.machine_type,
		       COALESCE(m.location, ''), COALESCE(m.status, ''),
		       (SELECT COUNT(*) FROM parameters p WHERE p.machine_id = m.machine_id),
		       (SELECT COUNT(*) FROM readings r WHERE r.machine_id = m.machine_id),
		       (SELECT COUNT(*) FROM anomalies a WHERE a.machine_id = m.machine_id),
		       COALESCE((SELECT MIN(r.timestamp) FROM readings r WHERE r.machine_id = m.machine_id), ''),
		       COALESCE((SELECT MAX(r.timestamp) FROM readings r WHERE r.machine_id = m.machine_id), '')
		FROM machines m
		ORDER BY m.machine_id`)
	if err != nil {
		return nil, fmt.Errorf("querying machine stats: %w", err)
	}
	defer rows.Close()

	var out []model.MachineStats
	for rows.Next() {
		var st model.MachineStats
		if err := rows.Scan(&st.MachineID, &st.MachineType, &st.Location, &st.Status,
			&st.Parameters, &st.Readings, &st.Anomalies, &st.FirstReading, &st.LastReading); err != nil {
			return nil, fmt.Errorf("scanning machine stats: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
