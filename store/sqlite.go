package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"fleettemp/pipeline"
)

type SQLiteConfig struct {
	Logger *slog.Logger
	// Path is a file path or ":memory:".
	Path string
}

func (cfg *SQLiteConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Path == "" {
		return errors.New("path is required")
	}
	return nil
}

// SQLite is the embedded Writer used for local runs and tests. All access
// goes through one connection, which also makes ":memory:" usable.
type SQLite struct {
	log *slog.Logger
	db  *sql.DB
	mu  sync.Mutex
}

func OpenSQLite(cfg SQLiteConfig) (*SQLite, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sqlite config: %w", err)
	}
	dsn := cfg.Path
	if dsn != ":memory:" {
		dsn = "file:" + dsn + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return &SQLite{log: cfg.Logger, db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *SQLite) MergeVehicles(ctx context.Context, plates []string, fn MergeFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	in, args := placeholders(plates)
	existing, err := sqliteRecords(ctx, tx,
		"SELECT "+columnList+" FROM "+TableName+" WHERE vehicle_plate IN ("+in+") ORDER BY vehicle_plate, ts",
		args...)
	if err != nil {
		return err
	}

	merged, err := fn(existing)
	if err != nil {
		return err
	}
	if err := checkPlates(plates, merged); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+TableName+" WHERE vehicle_plate IN ("+in+")", args...); err != nil {
		return fmt.Errorf("clear vehicles: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO "+TableName+" ("+columnList+") VALUES ("+strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")+")")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for i := range merged {
		if _, err := stmt.ExecContext(ctx, fields(&merged[i], merged[i].Timestamp.Unix())...); err != nil {
			return fmt.Errorf("insert %s at %s: %w", merged[i].VehiclePlate, merged[i].Timestamp, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.log.Debug("merged vehicles", "plates", len(plates), "before", len(existing), "after", len(merged))
	return nil
}

func (s *SQLite) Unmeasured(ctx context.Context, plate string) ([]pipeline.Record, error) {
	return sqliteRecords(ctx, s.db,
		"SELECT "+columnList+" FROM "+TableName+" WHERE vehicle_plate = ? AND temp1 IS NULL ORDER BY ts",
		plate)
}

func (s *SQLite) ApplyPredictions(ctx context.Context, rows []pipeline.Record) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var updated int64
	for _, r := range rows {
		res, err := tx.ExecContext(ctx, `
			UPDATE canonical_telemetry
			SET predicted_temp = COALESCE(?, predicted_temp),
			    predicted_temp2 = COALESCE(?, predicted_temp2)
			WHERE vehicle_plate = ? AND ts = ? AND temp1 IS NULL
		`, r.PredictedTemp, r.PredictedTemp2, r.VehiclePlate, r.Timestamp.Unix())
		if err != nil {
			return 0, fmt.Errorf("apply prediction: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		updated += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return updated, nil
}

func (s *SQLite) Vehicles(ctx context.Context) ([]Vehicle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT vehicle_plate, MIN(ts), MAX(ts), COUNT(*)
		FROM canonical_telemetry
		GROUP BY vehicle_plate
		ORDER BY vehicle_plate
	`)
	if err != nil {
		return nil, fmt.Errorf("query vehicles: %w", err)
	}
	defer rows.Close()

	var out []Vehicle
	for rows.Next() {
		var (
			v           Vehicle
			first, last int64
		)
		if err := rows.Scan(&v.VehiclePlate, &first, &last, &v.Rows); err != nil {
			return nil, fmt.Errorf("scan vehicle: %w", err)
		}
		v.First, v.Last = time.Unix(first, 0).UTC(), time.Unix(last, 0).UTC()
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SQLite) Range(ctx context.Context, sel Selection) ([]pipeline.Record, error) {
	var b strings.Builder
	b.WriteString("SELECT " + columnList + " FROM " + TableName + " WHERE vehicle_plate = ?")
	args := []any{sel.VehiclePlate}
	if !sel.Start.IsZero() {
		b.WriteString(" AND ts >= ?")
		args = append(args, sel.Start.Unix())
	}
	if !sel.End.IsZero() {
		b.WriteString(" AND ts <= ?")
		args = append(args, sel.End.Unix())
	}
	b.WriteString(" ORDER BY ts")
	if sel.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, sel.Limit)
	}
	return sqliteRecords(ctx, s.db, b.String(), args...)
}

type sqlQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func sqliteRecords(ctx context.Context, q sqlQuerier, query string, args ...any) ([]pipeline.Record, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []pipeline.Record
	for rows.Next() {
		var (
			r  pipeline.Record
			ts int64
		)
		if err := rows.Scan(scanTargets(&r, &ts)...); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		r.Timestamp = time.Unix(ts, 0).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func placeholders(values []string) (string, []any) {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", "), args
}
