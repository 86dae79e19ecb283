// Package geostore resolves station metadata for regressor selection: from
// the catalog, from a PostGIS table, and through an LRU cache in front of
// either.
package geostore

import (
	"context"

	"github.com/marweda/water-level-forecast/internal/domain"
)

// Static serves station metadata declared in the catalog.
type Static struct {
	stations map[string]domain.StationMeta
}

// NewStatic indexes stations by entity ID. Later duplicates win.
func NewStatic(stations []domain.StationMeta) *Static {
	m := make(map[string]domain.StationMeta, len(stations))
	for _, s := range stations {
		m[s.EntityID] = s
	}
	return &Static{stations: m}
}

// Station implements domain.StationLookup.
func (s *Static) Station(_ context.Context, entityID string) (domain.StationMeta, error) {
	meta, ok := s.stations[entityID]
	if !ok {
		return domain.StationMeta{}, domain.ErrStationNotFound
	}
	return meta, nil
}
