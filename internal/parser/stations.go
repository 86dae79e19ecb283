package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/marweda/water-level-forecast/internal/domain"
	"golang.org/x/text/encoding/charmap"
)

// StationParser decodes a station listing into station metadata.
type StationParser interface {
	ParseStations(p domain.RawPayload) ([]domain.StationMeta, error)
}

// StationParserFunc adapts a function to the StationParser interface.
type StationParserFunc func(p domain.RawPayload) ([]domain.StationMeta, error)

func (f StationParserFunc) ParseStations(p domain.RawPayload) ([]domain.StationMeta, error) {
	return f(p)
}

type pegelonlineStationMeta struct {
	UUID      string  `json:"uuid"`
	Longname  string  `json:"longname"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Water     struct {
		Shortname string `json:"shortname"`
		Longname  string `json:"longname"`
	} `json:"water"`
}

// parsePegelonlineStationCatalog reads stations.json. When the payload names
// waters, stations on any other water are dropped.
func parsePegelonlineStationCatalog(p domain.RawPayload) ([]domain.StationMeta, error) {
	var stations []pegelonlineStationMeta
	if err := decodeJSON(p.Body, &stations); err != nil {
		return nil, parseErr(p, "decode stations", err)
	}

	var out []domain.StationMeta
	for i, st := range stations {
		if st.UUID == "" {
			return nil, parseErr(p, fmt.Sprintf("station %d has no uuid", i), nil)
		}
		if !onWaters(p.Waters, st.Water.Shortname, st.Water.Longname) {
			continue
		}
		out = append(out, domain.StationMeta{
			EntityID:  strings.ToLower(st.UUID),
			Name:      st.Longname,
			Lat:       st.Latitude,
			Lon:       st.Longitude,
			Catchment: strings.ToLower(st.Water.Longname),
			Water:     st.Water.Longname,
		})
	}
	return out, nil
}

func onWaters(waters []string, shortname, longname string) bool {
	if len(waters) == 0 {
		return true
	}
	for _, w := range waters {
		w = strings.TrimSpace(w)
		if strings.EqualFold(w, longname) || strings.EqualFold(w, shortname) {
			return true
		}
	}
	return false
}

// parseMosmixStations reads the MOSMIX station catalog: a header line of
// column names, a line of dashes marking each column's width, then one fixed
// width row per station.
func parseMosmixStations(p domain.RawPayload) ([]domain.StationMeta, error) {
	lines, err := latin1Lines(p.Body)
	if err != nil {
		return nil, parseErr(p, "decode", err)
	}
	if len(lines) < 2 {
		return nil, parseErr(p, "missing header or separator line", nil)
	}

	header := strings.Fields(lines[0])
	spans := columnSpans(lines[1])
	if len(header) == 0 || len(spans) != len(header) {
		return nil, &domain.ParseError{Source: p.Source, Line: 2,
			Msg: fmt.Sprintf("separator marks %d columns for %d header names", len(spans), len(header))}
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, name := range []string{"ID", "NAME", "LAT", "LON"} {
		if _, ok := col[name]; !ok {
			return nil, parseErr(p, fmt.Sprintf("missing required column %q", name), nil)
		}
	}

	var out []domain.StationMeta
	for i, line := range lines[2:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lineNo := i + 3
		cells := cutColumns(line, spans)
		id := cells[col["ID"]]
		if !strings.ContainsAny(id, "0123456789") {
			return nil, &domain.ParseError{Source: p.Source, Line: lineNo, Msg: fmt.Sprintf("invalid station id %q", id)}
		}
		lat, lon, err := coordinates(cells[col["LAT"]], cells[col["LON"]])
		if err != nil {
			return nil, &domain.ParseError{Source: p.Source, Line: lineNo, Msg: "coordinates", Err: err}
		}
		out = append(out, domain.StationMeta{
			EntityID: "mosmix:" + id,
			Name:     cells[col["NAME"]],
			Lat:      lat,
			Lon:      lon,
		})
	}
	return out, nil
}

// abgabeFree is the trailing availability column some DWD station
// descriptions carry.
const abgabeFree = "Frei"

// parseDWDStationDescription reads a DWD station description
// (*_Beschreibung_Stationen.txt): Stations_id, von_datum, bis_datum,
// Stationshoehe, geoBreite, geoLaenge, a name that may contain spaces, the
// federal state and an optional Abgabe column.
func parseDWDStationDescription(p domain.RawPayload) ([]domain.StationMeta, error) {
	lines, err := latin1Lines(p.Body)
	if err != nil {
		return nil, parseErr(p, "decode", err)
	}

	var out []domain.StationMeta
	header := false
	for i, line := range lines {
		lineNo := i + 1
		line = strings.TrimSpace(line)
		switch {
		case line == "" || isSeparator(line):
			continue
		case !header:
			if !strings.HasPrefix(line, "Stations_id") {
				return nil, &domain.ParseError{Source: p.Source, Line: lineNo, Msg: "missing Stations_id header"}
			}
			header = true
			continue
		}

		fields := strings.Fields(line)
		last := len(fields) - 1
		if last >= 0 && fields[last] == abgabeFree {
			last--
		}
		// six leading columns, at least one name word, the federal state
		if last < 7 {
			return nil, &domain.ParseError{Source: p.Source, Line: lineNo,
				Msg: fmt.Sprintf("expected at least 8 columns, got %d", len(fields))}
		}
		id, err := dwdStationID(fields[0])
		if err != nil {
			return nil, &domain.ParseError{Source: p.Source, Line: lineNo, Msg: "station id", Err: err}
		}
		lat, lon, err := coordinates(fields[4], fields[5])
		if err != nil {
			return nil, &domain.ParseError{Source: p.Source, Line: lineNo, Msg: "coordinates", Err: err}
		}
		out = append(out, domain.StationMeta{
			EntityID: id,
			Name:     strings.Join(fields[6:last], " "),
			Lat:      lat,
			Lon:      lon,
		})
	}
	if !header {
		return nil, parseErr(p, "missing Stations_id header", nil)
	}
	return out, nil
}

// latin1Lines unwraps a compressed body, decodes it from ISO-8859-1 and
// splits it into lines without their terminators.
func latin1Lines(body []byte) ([]string, error) {
	raw, err := decompress(body, ".txt", ".cfg")
	if err != nil {
		return nil, err
	}
	text, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(string(text), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, "\r")
	}
	return lines, nil
}

// columnSpans returns the rune offsets of every run of dashes in sep.
func columnSpans(sep string) [][2]int {
	var spans [][2]int
	start := -1
	i := 0
	for _, r := range sep {
		switch {
		case r == '-' && start < 0:
			start = i
		case r != '-' && start >= 0:
			spans = append(spans, [2]int{start, i})
			start = -1
		}
		i++
	}
	if start >= 0 {
		spans = append(spans, [2]int{start, i})
	}
	return spans
}

// cutColumns slices line at the given rune spans. Short lines yield empty
// trailing cells.
func cutColumns(line string, spans [][2]int) []string {
	runes := []rune(line)
	cells := make([]string, len(spans))
	for i, s := range spans {
		if s[0] >= len(runes) {
			continue
		}
		end := min(s[1], len(runes))
		cells[i] = strings.TrimSpace(string(runes[s[0]:end]))
	}
	return cells
}

func isSeparator(line string) bool {
	return strings.Trim(line, "- ") == "" && strings.Contains(line, "-")
}

func coordinates(lat, lon string) (float64, float64, error) {
	la, err := strconv.ParseFloat(normalizeDecimal(lat), 64)
	if err != nil || la < -90 || la > 90 {
		return 0, 0, fmt.Errorf("invalid latitude %q", lat)
	}
	lo, err := strconv.ParseFloat(normalizeDecimal(lon), 64)
	if err != nil || lo < -180 || lo > 180 {
		return 0, 0, fmt.Errorf("invalid longitude %q", lon)
	}
	return la, lo, nil
}
