package geostore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/marweda/water-level-forecast/internal/domain"
	"github.com/marweda/water-level-forecast/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cologne = domain.StationMeta{
	EntityID:  "a6ee8177-107b-47dd-bcfd-30960ccc6e9c",
	Name:      "KÖLN",
	Lat:       50.937,
	Lon:       6.963,
	Catchment: "rhein",
	Water:     "RHEIN",
	Upstream:  []string{"593647aa-9fea-43ec-a7d6-6476a76ae868"},
}

func TestStatic_Station(t *testing.T) {
	s := NewStatic([]domain.StationMeta{cologne})

	got, err := s.Station(context.Background(), cologne.EntityID)
	require.NoError(t, err)
	assert.Equal(t, cologne, got)

	_, err = s.Station(context.Background(), "unknown")
	assert.ErrorIs(t, err, domain.ErrStationNotFound)
}

type countingLookup struct {
	calls int
	meta  map[string]domain.StationMeta
	err   error
}

func (c *countingLookup) Station(_ context.Context, id string) (domain.StationMeta, error) {
	c.calls++
	if c.err != nil {
		return domain.StationMeta{}, c.err
	}
	m, ok := c.meta[id]
	if !ok {
		return domain.StationMeta{}, domain.ErrStationNotFound
	}
	return m, nil
}

func TestCached_HitAfterMiss(t *testing.T) {
	inner := &countingLookup{meta: map[string]domain.StationMeta{cologne.EntityID: cologne}}
	metrics := observability.NewMetricsForTesting()
	c := NewCached(inner, 10, metrics)

	for i := 0; i < 3; i++ {
		got, err := c.Station(context.Background(), cologne.EntityID)
		require.NoError(t, err)
		assert.Equal(t, cologne.Name, got.Name)
	}
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.StationCache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StationCache.WithLabelValues("miss")))
}

func TestCached_NotFoundIsNotCached(t *testing.T) {
	inner := &countingLookup{meta: map[string]domain.StationMeta{}}
	metrics := observability.NewMetricsForTesting()
	c := NewCached(inner, 10, metrics)

	_, err := c.Station(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrStationNotFound)
	_, err = c.Station(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrStationNotFound)

	assert.Equal(t, 2, inner.calls)
	assert.Zero(t, testutil.ToFloat64(metrics.StationLookupErrors))
}

func TestCached_ErrorCounts(t *testing.T) {
	inner := &countingLookup{err: errors.New("connection refused")}
	metrics := observability.NewMetricsForTesting()
	c := NewCached(inner, 10, metrics)

	_, err := c.Station(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StationLookupErrors))
}

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache(2)
	c.put("a", domain.StationMeta{EntityID: "a"})
	c.put("b", domain.StationMeta{EntityID: "b"})
	_, _ = c.get("a") // a becomes most recent
	c.put("c", domain.StationMeta{EntityID: "c"})

	_, okA := c.get("a")
	_, okB := c.get("b")
	_, okC := c.get("c")
	assert.True(t, okA)
	assert.False(t, okB)
	assert.True(t, okC)
	assert.Equal(t, 2, c.len())
}

func TestLRUCache_Update(t *testing.T) {
	c := newLRUCache(2)
	c.put("a", domain.StationMeta{Name: "old"})
	c.put("a", domain.StationMeta{Name: "new"})

	got, ok := c.get("a")
	require.True(t, ok)
	assert.Equal(t, "new", got.Name)
	assert.Equal(t, 1, c.len())
}

type fakeRow struct {
	meta domain.StationMeta
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != 6 {
		return fmt.Errorf("expected 6 columns, got %d", len(dest))
	}
	*dest[0].(*string) = r.meta.Name
	*dest[1].(*float64) = r.meta.Lat
	*dest[2].(*float64) = r.meta.Lon
	*dest[3].(*string) = r.meta.Catchment
	*dest[4].(*string) = r.meta.Water
	*dest[5].(*[]string) = r.meta.Upstream
	return nil
}

type fakeQuerier struct {
	row  fakeRow
	args []any
}

func (q *fakeQuerier) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	q.args = args
	return q.row
}

func TestPostgres_Station(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{meta: cologne}}
	p := &Postgres{db: q}

	got, err := p.Station(context.Background(), cologne.EntityID)
	require.NoError(t, err)
	assert.Equal(t, cologne, got)
	assert.Equal(t, []any{cologne.EntityID}, q.args)
}

func TestPostgres_NoRows(t *testing.T) {
	p := &Postgres{db: &fakeQuerier{row: fakeRow{err: pgx.ErrNoRows}}}

	_, err := p.Station(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrStationNotFound)
}

func TestPostgres_QueryError(t *testing.T) {
	p := &Postgres{db: &fakeQuerier{row: fakeRow{err: errors.New("relation does not exist")}}}

	_, err := p.Station(context.Background(), "g")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrStationNotFound)
	assert.Contains(t, err.Error(), "relation does not exist")
}
