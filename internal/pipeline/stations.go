package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/marweda/water-level-forecast/internal/config"
	"github.com/marweda/water-level-forecast/internal/domain"
	"github.com/marweda/water-level-forecast/internal/parser"
)

// LoadStations fetches the catalog's station listings and merges them with
// the stations it declares. A declared station replaces a fetched one with
// the same entity ID; fields it leaves empty keep the fetched values. A failed
// listing is logged and skipped. Only cancellation of ctx is returned.
func LoadStations(ctx context.Context, cat *config.Catalog, fetcher Fetcher, parsers *parser.Registry, timeout time.Duration, logger *slog.Logger) ([]domain.StationMeta, error) {
	var order []string
	byID := make(map[string]domain.StationMeta)
	put := func(s domain.StationMeta) {
		if _, ok := byID[s.EntityID]; !ok {
			order = append(order, s.EntityID)
		}
		byID[s.EntityID] = s
	}

	for _, src := range cat.StationSources {
		stations, err := fetchStations(ctx, src, fetcher, parsers, timeout)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			logger.Warn("station listing failed, skipping",
				"source", src.Name,
				"kind", domain.ErrorKind(err),
				"error", err,
			)
			continue
		}
		logger.Info("station listing loaded", "source", src.Name, "stations", len(stations))
		for _, s := range stations {
			put(s)
		}
	}

	for _, s := range cat.Stations {
		if fetched, ok := byID[s.EntityID]; ok {
			s = mergeStation(s, fetched)
		}
		put(s)
	}

	out := make([]domain.StationMeta, len(order))
	for i, id := range order {
		out[i] = byID[id]
	}
	return out, nil
}

func fetchStations(ctx context.Context, src config.Source, fetcher Fetcher, parsers *parser.Registry, timeout time.Duration) ([]domain.StationMeta, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	payload, err := fetcher.Fetch(ctx, src)
	if err != nil {
		return nil, err
	}
	return parsers.ParseStations(payload)
}

func mergeStation(declared, fetched domain.StationMeta) domain.StationMeta {
	if declared.Name == "" {
		declared.Name = fetched.Name
	}
	if declared.Lat == 0 && declared.Lon == 0 {
		declared.Lat, declared.Lon = fetched.Lat, fetched.Lon
	}
	if declared.Catchment == "" {
		declared.Catchment = fetched.Catchment
	}
	if declared.Water == "" {
		declared.Water = fetched.Water
	}
	if len(declared.Upstream) == 0 {
		declared.Upstream = fetched.Upstream
	}
	return declared
}
