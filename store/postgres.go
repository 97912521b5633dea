package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fleettemp/pipeline"
)

// datasetLock is the advisory lock key serializing writers across processes.
const datasetLock int64 = 0x666c6565 // "flee"

type PostgresConfig struct {
	Logger *slog.Logger
	Pool   *pgxpool.Pool
}

func (cfg *PostgresConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Pool == nil {
		return errors.New("pool is required")
	}
	return nil
}

// Postgres is the production Writer backed by a pgx pool.
type Postgres struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewPostgres(cfg PostgresConfig) (*Postgres, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid postgres config: %w", err)
	}
	return &Postgres{log: cfg.Logger, pool: cfg.Pool}, nil
}

// OpenPostgres dials dsn and verifies the connection.
func OpenPostgres(ctx context.Context, log *slog.Logger, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("db pool init: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return NewPostgres(PostgresConfig{Logger: log, Pool: pool})
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (p *Postgres) MergeVehicles(ctx context.Context, plates []string, fn MergeFunc) error {
	return pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", datasetLock); err != nil {
			return fmt.Errorf("acquire dataset lock: %w", err)
		}

		existing, err := queryRecords(ctx, tx,
			"SELECT "+columnList+" FROM "+TableName+" WHERE vehicle_plate = ANY($1) ORDER BY vehicle_plate, ts",
			plates)
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

		if _, err := tx.Exec(ctx, "DELETE FROM "+TableName+" WHERE vehicle_plate = ANY($1)", plates); err != nil {
			return fmt.Errorf("clear vehicles: %w", err)
		}
		n, err := tx.CopyFrom(ctx, pgx.Identifier{TableName}, columns,
			pgx.CopyFromSlice(len(merged), func(i int) ([]any, error) {
				return fields(&merged[i], merged[i].Timestamp), nil
			}))
		if err != nil {
			return fmt.Errorf("copy rows: %w", err)
		}

		p.log.Debug("merged vehicles", "plates", len(plates), "before", len(existing), "after", n)
		return nil
	})
}

func (p *Postgres) Unmeasured(ctx context.Context, plate string) ([]pipeline.Record, error) {
	return queryRecords(ctx, p.pool,
		"SELECT "+columnList+" FROM "+TableName+" WHERE vehicle_plate = $1 AND temp1 IS NULL ORDER BY ts",
		plate)
}

func (p *Postgres) ApplyPredictions(ctx context.Context, rows []pipeline.Record) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	var updated int64
	err := pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", datasetLock); err != nil {
			return fmt.Errorf("acquire dataset lock: %w", err)
		}

		batch := &pgx.Batch{}
		for _, r := range rows {
			batch.Queue(`
				UPDATE canonical_telemetry
				SET predicted_temp = COALESCE($3, predicted_temp),
				    predicted_temp2 = COALESCE($4, predicted_temp2)
				WHERE vehicle_plate = $1 AND ts = $2 AND temp1 IS NULL
			`, r.VehiclePlate, r.Timestamp, r.PredictedTemp, r.PredictedTemp2)
		}
		br := tx.SendBatch(ctx, batch)
		for range rows {
			tag, err := br.Exec()
			if err != nil {
				br.Close()
				return fmt.Errorf("apply prediction: %w", err)
			}
			updated += tag.RowsAffected()
		}
		return br.Close()
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

func (p *Postgres) Vehicles(ctx context.Context) ([]Vehicle, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT vehicle_plate, MIN(ts), MAX(ts), COUNT(*)
		FROM canonical_telemetry
		GROUP BY vehicle_plate
		ORDER BY vehicle_plate
	`)
	if err != nil {
		return nil, fmt.Errorf("query vehicles: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Vehicle, error) {
		var v Vehicle
		err := row.Scan(&v.VehiclePlate, &v.First, &v.Last, &v.Rows)
		v.First, v.Last = v.First.UTC(), v.Last.UTC()
		return v, err
	})
}

func (p *Postgres) Range(ctx context.Context, sel Selection) ([]pipeline.Record, error) {
	var b strings.Builder
	b.WriteString("SELECT " + columnList + " FROM " + TableName + " WHERE vehicle_plate = $1")
	args := []any{sel.VehiclePlate}
	if !sel.Start.IsZero() {
		args = append(args, sel.Start.UTC())
		fmt.Fprintf(&b, " AND ts >= $%d", len(args))
	}
	if !sel.End.IsZero() {
		args = append(args, sel.End.UTC())
		fmt.Fprintf(&b, " AND ts <= $%d", len(args))
	}
	b.WriteString(" ORDER BY ts")
	if sel.Limit > 0 {
		args = append(args, sel.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	return queryRecords(ctx, p.pool, b.String(), args...)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryRecords(ctx context.Context, q querier, sql string, args ...any) ([]pipeline.Record, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (pipeline.Record, error) {
		var (
			r  pipeline.Record
			ts time.Time
		)
		err := row.Scan(scanTargets(&r, &ts)...)
		r.Timestamp = ts.UTC()
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}
	return out, nil
}
