package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/marweda/water-level-forecast/internal/domain"
	"github.com/marweda/water-level-forecast/internal/parser"
)

// EnvPrefix selects environment variables that override catalog keys.
// A double underscore separates key levels: HYDRO_DEFAULTS__HORIZON sets
// defaults.horizon.
const EnvPrefix = "HYDRO_"

// Options are the per-gauge forecasting options. Zero values in a gauge
// inherit from the catalog defaults.
type Options struct {
	AlignmentTolerance time.Duration `koanf:"alignment_tolerance"`
	Horizon            time.Duration `koanf:"horizon"`
	ConfidenceLevel    float64       `koanf:"confidence_level"`
	MinTrainingPoints  int           `koanf:"min_training_points"`
	MaxTrainingPoints  int           `koanf:"max_training_points"`
	MaxIterations      int           `koanf:"max_iterations"`
}

// Source is one upstream series: where to fetch it, how to parse it and how
// to normalize it.
type Source struct {
	Name     string            `koanf:"name"`
	Type     domain.SourceType `koanf:"type"`
	EntityID string            `koanf:"entity_id"`
	URL      string            `koanf:"url"`
	// Unit is the normalized unit. Empty keeps the source unit.
	Unit domain.Unit `koanf:"unit"`
	// Cadence is the normalized sampling interval. Zero keeps native timestamps.
	Cadence time.Duration `koanf:"cadence"`
	// Element picks the MOSMIX forecast element.
	Element string `koanf:"element"`
	// Waters keeps only stations on these waters in a PEGELONLINE station
	// listing. Empty keeps every station.
	Waters []string `koanf:"waters"`
}

// Regressor references a source series used as a model input.
type Regressor struct {
	Series string          `koanf:"series"`
	Lags   []time.Duration `koanf:"lags"`
}

// Gauge is one forecast target.
type Gauge struct {
	EntityID   string      `koanf:"entity_id"`
	Target     string      `koanf:"target"`
	Regressors []Regressor `koanf:"regressors"`
	Options    `koanf:",squash"`
}

// Catalog lists the sources, gauges and static station metadata of a
// deployment.
type Catalog struct {
	Defaults Options              `koanf:"defaults"`
	Sources  []Source             `koanf:"sources"`
	Gauges   []Gauge              `koanf:"gauges"`
	Stations []domain.StationMeta `koanf:"stations"`
	// StationSources are station listings fetched at startup. Stations
	// declared above take precedence over fetched entries.
	StationSources []Source `koanf:"station_sources"`
}

// Source returns the source with the given name.
func (c *Catalog) Source(name string) (Source, bool) {
	for _, s := range c.Sources {
		if s.Name == name {
			return s, true
		}
	}
	return Source{}, false
}

// LoadCatalog reads the YAML catalog at path, applies HYDRO_ environment
// overrides, fills gauge options from the defaults and validates the result.
func LoadCatalog(path string) (*Catalog, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load catalog overrides: %w", err)
	}

	var cat Catalog
	if err := k.UnmarshalWithConf("", &cat, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	for i := range cat.Gauges {
		cat.Gauges[i].Options = cat.Gauges[i].Options.inherit(cat.Defaults)
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (o Options) inherit(d Options) Options {
	if o.AlignmentTolerance == 0 {
		o.AlignmentTolerance = d.AlignmentTolerance
	}
	if o.Horizon == 0 {
		o.Horizon = d.Horizon
	}
	if o.ConfidenceLevel == 0 {
		o.ConfidenceLevel = d.ConfidenceLevel
	}
	if o.MinTrainingPoints == 0 {
		o.MinTrainingPoints = d.MinTrainingPoints
	}
	if o.MaxTrainingPoints == 0 {
		o.MaxTrainingPoints = d.MaxTrainingPoints
	}
	if o.MaxIterations == 0 {
		o.MaxIterations = d.MaxIterations
	}
	return o
}

func (o Options) validate() error {
	switch {
	case o.AlignmentTolerance <= 0:
		return fmt.Errorf("alignment_tolerance must be positive, got %s", o.AlignmentTolerance)
	case o.Horizon <= 0:
		return fmt.Errorf("horizon must be positive, got %s", o.Horizon)
	case !(o.ConfidenceLevel > 0 && o.ConfidenceLevel < 1):
		return fmt.Errorf("confidence_level must be in (0, 1), got %g", o.ConfidenceLevel)
	case o.MinTrainingPoints < 2:
		return fmt.Errorf("min_training_points must be at least 2, got %d", o.MinTrainingPoints)
	case o.MaxTrainingPoints != 0 && o.MaxTrainingPoints < o.MinTrainingPoints:
		return fmt.Errorf("max_training_points %d is below min_training_points %d", o.MaxTrainingPoints, o.MinTrainingPoints)
	case o.MaxIterations < 0:
		return fmt.Errorf("max_iterations must not be negative, got %d", o.MaxIterations)
	}
	return nil
}

// Validate checks references and option ranges.
func (c *Catalog) Validate() error {
	names := make(map[string]bool, len(c.Sources))
	for i, s := range c.Sources {
		switch {
		case s.Name == "":
			return fmt.Errorf("sources[%d]: name is required", i)
		case names[s.Name]:
			return fmt.Errorf("sources[%d]: duplicate name %q", i, s.Name)
		case !s.Type.Valid():
			return fmt.Errorf("source %q: unknown type %q", s.Name, s.Type)
		case s.EntityID == "":
			return fmt.Errorf("source %q: entity_id is required", s.Name)
		case s.URL == "":
			return fmt.Errorf("source %q: url is required", s.Name)
		case s.Cadence < 0:
			return fmt.Errorf("source %q: negative cadence %s", s.Name, s.Cadence)
		}
		if s.Type == domain.SourceDWDMosmix && !parser.MosmixElementSupported(s.Element) {
			return fmt.Errorf("source %q: element %q is not a MOSMIX precipitation total", s.Name, s.Element)
		}
		if s.Unit != "" {
			if _, err := domain.ParseUnit(string(s.Unit)); err != nil {
				return fmt.Errorf("source %q: %w", s.Name, err)
			}
		}
		names[s.Name] = true
	}

	if len(c.Gauges) == 0 {
		return errors.New("catalog declares no gauges")
	}
	gauges := make(map[string]bool, len(c.Gauges))
	for i, g := range c.Gauges {
		if g.EntityID == "" {
			return fmt.Errorf("gauges[%d]: entity_id is required", i)
		}
		if strings.Contains(g.EntityID, "/") {
			return fmt.Errorf("gauges[%d]: entity_id %q must not contain '/'", i, g.EntityID)
		}
		if gauges[g.EntityID] {
			return fmt.Errorf("gauges[%d]: duplicate entity_id %q", i, g.EntityID)
		}
		gauges[g.EntityID] = true
		if !names[g.Target] {
			return fmt.Errorf("gauge %q: unknown target series %q", g.EntityID, g.Target)
		}
		seen := map[string]bool{}
		for _, r := range g.Regressors {
			switch {
			case !names[r.Series]:
				return fmt.Errorf("gauge %q: unknown regressor series %q", g.EntityID, r.Series)
			case r.Series == g.Target:
				return fmt.Errorf("gauge %q: target %q cannot be its own regressor", g.EntityID, r.Series)
			case seen[r.Series]:
				return fmt.Errorf("gauge %q: duplicate regressor %q", g.EntityID, r.Series)
			}
			seen[r.Series] = true
			for _, lag := range r.Lags {
				if lag <= 0 {
					return fmt.Errorf("gauge %q: regressor %q has non-positive lag %s", g.EntityID, r.Series, lag)
				}
			}
		}
		if err := g.Options.validate(); err != nil {
			return fmt.Errorf("gauge %q: %w", g.EntityID, err)
		}
	}

	for i, s := range c.Stations {
		if s.EntityID == "" {
			return fmt.Errorf("stations[%d]: entity_id is required", i)
		}
	}

	listings := make(map[string]bool, len(c.StationSources))
	for i, s := range c.StationSources {
		switch {
		case s.Name == "":
			return fmt.Errorf("station_sources[%d]: name is required", i)
		case listings[s.Name]:
			return fmt.Errorf("station_sources[%d]: duplicate name %q", i, s.Name)
		case !s.Type.StationCatalog():
			return fmt.Errorf("station source %q: %q is not a station listing type", s.Name, s.Type)
		case s.URL == "":
			return fmt.Errorf("station source %q: url is required", s.Name)
		}
		listings[s.Name] = true
	}
	return nil
}
