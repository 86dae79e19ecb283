package domain

import (
	"context"
	"errors"
	"log/slog"
)

// RegressorCandidate is a configured series that may serve as a regressor.
type RegressorCandidate struct {
	Name     string
	EntityID string
}

// SelectRegressors keeps the candidates that are hydrologically related to
// the target: upstream of it or in the same catchment. If lookup is nil or
// the target's metadata cannot be resolved, all candidates are kept.
// Candidates with unknown stations are dropped; other lookup failures keep
// the candidate.
func SelectRegressors(ctx context.Context, targetID string, candidates []RegressorCandidate, lookup StationLookup, logger *slog.Logger) []RegressorCandidate {
	if lookup == nil || len(candidates) == 0 {
		return candidates
	}

	target, err := lookup.Station(ctx, targetID)
	if err != nil {
		logger.Warn("target station lookup failed, keeping all regressors",
			"entity_id", targetID,
			"error", err,
		)
		return candidates
	}
	if len(target.Upstream) == 0 && target.Catchment == "" {
		return candidates
	}

	selected := make([]RegressorCandidate, 0, len(candidates))
	for _, c := range candidates {
		if target.HasUpstream(c.EntityID) {
			selected = append(selected, c)
			continue
		}
		meta, err := lookup.Station(ctx, c.EntityID)
		if errors.Is(err, ErrStationNotFound) {
			logger.Warn("regressor station unknown, dropping",
				"entity_id", targetID,
				"regressor", c.Name,
				"regressor_entity", c.EntityID,
			)
			continue
		}
		if err != nil {
			logger.Warn("regressor station lookup failed, keeping",
				"entity_id", targetID,
				"regressor", c.Name,
				"error", err,
			)
			selected = append(selected, c)
			continue
		}
		if meta.Catchment != "" && meta.Catchment == target.Catchment {
			selected = append(selected, c)
		}
	}
	return selected
}
