// Package postgres stores validated series and forecast results as points in
// a PostgreSQL time-series table.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marweda/water-level-forecast/internal/domain"
)

// Schema creates the points table. Rows are write-once: a forecast run is
// never updated, a later run adds new rows.
const Schema = `
CREATE SCHEMA IF NOT EXISTS hydro;
CREATE TABLE IF NOT EXISTS hydro.points (
    measurement TEXT        NOT NULL,
    entity_id   TEXT        NOT NULL,
    run_id      TEXT        NOT NULL DEFAULT '',
    ts          TIMESTAMPTZ NOT NULL,
    tags        JSONB       NOT NULL,
    fields      JSONB       NOT NULL,
    PRIMARY KEY (measurement, entity_id, run_id, ts)
);`

const insertPointSQL = `
INSERT INTO hydro.points (measurement, entity_id, run_id, ts, tags, fields)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (measurement, entity_id, run_id, ts) DO NOTHING`

const latestRunSQL = `
SELECT measurement, tags, fields, ts
FROM hydro.points
WHERE entity_id = $1 AND run_id = (
    SELECT run_id FROM hydro.points
    WHERE measurement = $2 AND entity_id = $1
    ORDER BY ts DESC
    LIMIT 1
)
ORDER BY ts`

// conn is the subset of pgxpool.Pool the writer uses.
type conn interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Writer loads series and forecasts into PostgreSQL.
type Writer struct {
	conn   conn
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewWriter connects a pgx pool to the time-series store and ensures the
// schema exists.
func NewWriter(ctx context.Context, databaseURL string, logger *slog.Logger) (*Writer, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect time-series store: %w", err)
	}
	if _, err := pool.Exec(ctx, Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Writer{conn: pool, pool: pool, logger: logger}, nil
}

// Name identifies the sink in metrics and logs.
func (w *Writer) Name() string { return "postgres" }

// LoadSeries writes one point per record of ts.
func (w *Writer) LoadSeries(ctx context.Context, ts domain.TimeSeries) error {
	return w.writePoints(ctx, domain.SeriesPoints(ts))
}

// LoadForecast writes the model point and step points of res.
func (w *Writer) LoadForecast(ctx context.Context, res domain.ForecastResult) error {
	if err := w.writePoints(ctx, domain.ForecastPoints(res)); err != nil {
		return fmt.Errorf("forecast %s: %w", res.RunID, err)
	}
	w.logger.Debug("forecast stored", "entity_id", res.EntityID, "run_id", res.RunID, "steps", len(res.Steps))
	return nil
}

func (w *Writer) writePoints(ctx context.Context, points []domain.Point) error {
	if len(points) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range points {
		batch.Queue(insertPointSQL, p.Measurement, p.Tags["entity_id"], p.Tags["run_id"], p.Time, p.Tags, p.Fields)
	}

	res := w.conn.SendBatch(ctx, batch)
	defer res.Close()

	for range points {
		if _, err := res.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LatestForecast reads back the most recent forecast run of a gauge.
func (w *Writer) LatestForecast(ctx context.Context, entityID string) (domain.ForecastResult, error) {
	rows, err := w.conn.Query(ctx, latestRunSQL, entityID, domain.MeasurementForecastModel)
	if err != nil {
		return domain.ForecastResult{}, err
	}
	defer rows.Close()

	var points []domain.Point
	for rows.Next() {
		var (
			p  domain.Point
			ts time.Time
		)
		if err := rows.Scan(&p.Measurement, &p.Tags, &p.Fields, &ts); err != nil {
			return domain.ForecastResult{}, err
		}
		p.Time = ts.UTC()
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return domain.ForecastResult{}, err
	}
	if len(points) == 0 {
		return domain.ForecastResult{}, domain.ErrForecastNotFound
	}
	return domain.ForecastFromPoints(points)
}

// Close releases the pool.
func (w *Writer) Close() {
	if w.pool != nil {
		w.pool.Close()
	}
}
