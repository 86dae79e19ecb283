package domain

import (
	"context"
	"errors"
)

// ErrStationNotFound is returned by a StationLookup for an unknown entity.
var ErrStationNotFound = errors.New("station not found")

// StationMeta is the geospatial metadata of a gauge or weather station.
type StationMeta struct {
	EntityID  string   `json:"entity_id" koanf:"entity_id"`
	Name      string   `json:"name" koanf:"name"`
	Lat       float64  `json:"lat" koanf:"lat"`
	Lon       float64  `json:"lon" koanf:"lon"`
	Catchment string   `json:"catchment" koanf:"catchment"`
	Water     string   `json:"water" koanf:"water"`
	Upstream  []string `json:"upstream" koanf:"upstream"`
}

// HasUpstream reports whether s lists other as an upstream station.
func (s StationMeta) HasUpstream(other string) bool {
	for _, u := range s.Upstream {
		if u == other {
			return true
		}
	}
	return false
}

// StationLookup resolves station metadata. Implementations are read-only.
type StationLookup interface {
	Station(ctx context.Context, entityID string) (StationMeta, error)
}
