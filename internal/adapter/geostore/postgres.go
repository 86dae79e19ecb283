package geostore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marweda/water-level-forecast/internal/domain"
)

const stationSQL = `
SELECT name, ST_Y(geom), ST_X(geom), catchment, water, upstream
FROM hydro.stations
WHERE entity_id = $1`

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres looks stations up in a PostGIS table.
type Postgres struct {
	db   rowQuerier
	pool *pgxpool.Pool
}

// NewPostgres connects a pgx pool to the geospatial store.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect geo store: %w", err)
	}
	return &Postgres{db: pool, pool: pool}, nil
}

// Station implements domain.StationLookup.
func (p *Postgres) Station(ctx context.Context, entityID string) (domain.StationMeta, error) {
	meta := domain.StationMeta{EntityID: entityID}
	err := p.db.QueryRow(ctx, stationSQL, entityID).Scan(
		&meta.Name,
		&meta.Lat,
		&meta.Lon,
		&meta.Catchment,
		&meta.Water,
		&meta.Upstream,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.StationMeta{}, domain.ErrStationNotFound
	}
	if err != nil {
		return domain.StationMeta{}, fmt.Errorf("station %s: %w", entityID, err)
	}
	return meta, nil
}

// Close releases the pool.
func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}
