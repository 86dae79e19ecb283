// Package parser turns upstream payload bytes into candidate records. Parsers
// map upstream field names and identifiers onto the canonical record fields
// but never judge values; that is the validator's job.
package parser

import (
	"fmt"
	"sort"

	"github.com/marweda/water-level-forecast/internal/domain"
)

// Parser decodes one upstream format.
type Parser interface {
	Parse(p domain.RawPayload) ([]domain.RawRecord, error)
}

// ParserFunc adapts a function to the Parser interface.
type ParserFunc func(p domain.RawPayload) ([]domain.RawRecord, error)

func (f ParserFunc) Parse(p domain.RawPayload) ([]domain.RawRecord, error) { return f(p) }

// Registry selects a parser by the payload's source tag.
type Registry struct {
	parsers  map[domain.SourceType]Parser
	stations map[domain.SourceType]StationParser
}

// NewRegistry returns a registry with a parser for every known source tag.
func NewRegistry() *Registry {
	r := &Registry{
		parsers:  make(map[domain.SourceType]Parser),
		stations: make(map[domain.SourceType]StationParser),
	}
	r.Register(domain.SourcePegelonlineMeasurements, ParserFunc(parsePegelonlineSeries))
	r.Register(domain.SourcePegelonlineForecast, ParserFunc(parsePegelonlineSeries))
	r.Register(domain.SourcePegelonlineCurrent, ParserFunc(parsePegelonlineCurrent))
	r.Register(domain.SourcePegelonlineStations, ParserFunc(parsePegelonlineStations))
	r.Register(domain.SourceDWDPrecipitation, NewDelimitedParser(DWDTenMinuteLayout))
	r.Register(domain.SourceDWDPrecipitationHourly, NewDelimitedParser(DWDHourlyLayout))
	r.Register(domain.SourceDWDMosmix, ParserFunc(parseMosmixKMZ))

	r.RegisterStations(domain.SourcePegelonlineStationCatalog, StationParserFunc(parsePegelonlineStationCatalog))
	r.RegisterStations(domain.SourceDWDMosmixStations, StationParserFunc(parseMosmixStations))
	r.RegisterStations(domain.SourceDWDStationDescription, StationParserFunc(parseDWDStationDescription))
	return r
}

// Register installs or replaces the parser for a source tag.
func (r *Registry) Register(source domain.SourceType, p Parser) {
	r.parsers[source] = p
}

// RegisterStations installs or replaces the station listing parser for a
// source tag.
func (r *Registry) RegisterStations(source domain.SourceType, p StationParser) {
	r.stations[source] = p
}

// Sources lists the registered observation source tags in lexical order.
func (r *Registry) Sources() []domain.SourceType {
	return sortedKeys(r.parsers)
}

// StationSources lists the registered station listing tags in lexical order.
func (r *Registry) StationSources() []domain.SourceType {
	return sortedKeys(r.stations)
}

func sortedKeys[V any](m map[domain.SourceType]V) []domain.SourceType {
	out := make([]domain.SourceType, 0, len(m))
	for s := range m {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Parse decodes p with the parser registered for p.Source.
func (r *Registry) Parse(p domain.RawPayload) ([]domain.RawRecord, error) {
	parser, ok := r.parsers[p.Source]
	if !ok {
		return nil, &domain.ParseError{Source: p.Source, Msg: fmt.Sprintf("no parser for source type %q", p.Source)}
	}
	return parser.Parse(p)
}

// ParseStations decodes a station listing with the parser registered for
// p.Source.
func (r *Registry) ParseStations(p domain.RawPayload) ([]domain.StationMeta, error) {
	parser, ok := r.stations[p.Source]
	if !ok {
		return nil, &domain.ParseError{Source: p.Source, Msg: fmt.Sprintf("no station parser for source type %q", p.Source)}
	}
	return parser.ParseStations(p)
}

func parseErr(p domain.RawPayload, msg string, err error) error {
	return &domain.ParseError{Source: p.Source, Msg: msg, Err: err}
}

func newRecord(source domain.SourceType, fields map[string]any) domain.RawRecord {
	return domain.RawRecord{Source: source, Fields: fields}
}
