package parser

import (
	"fmt"
	"strings"
	"testing"

	"github.com/marweda/water-level-forecast/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_StationSources(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []domain.SourceType{
		domain.SourceDWDMosmixStations,
		domain.SourceDWDStationDescription,
		domain.SourcePegelonlineStationCatalog,
	}, r.StationSources())
	assert.Len(t, r.Sources(), 7)

	_, err := r.ParseStations(domain.RawPayload{Source: domain.SourceDWDMosmix})
	requireParseError(t, err)
}

// --- PEGELONLINE station catalog ---

const stationCatalogJSON = `[
  {"uuid":"593647AA-9FEA-43EC-A7D6-6476A76AE868","number":2710080,"shortname":"BONN","longname":"BONN",
   "km":654.8,"agency":"RHEIN","longitude":7.107,"latitude":50.737,"water":{"shortname":"RHEIN","longname":"RHEIN"}},
  {"uuid":"a6ee8177-107b-47dd-bcfd-30960ccc6e9c","number":2730010,"shortname":"KÖLN","longname":"KÖLN",
   "km":688.0,"agency":"RHEIN","longitude":6.963,"latitude":50.937,"water":{"shortname":"RHEIN","longname":"RHEIN"}},
  {"uuid":"f6a0b6f0-6f6c-4d5e-9c5a-5f5e0a1b2c3d","number":2640010,"shortname":"TRIER UP","longname":"TRIER UP",
   "km":196.0,"agency":"MOSEL","longitude":6.631,"latitude":49.753,"water":{"shortname":"MOSEL","longname":"MOSEL"}}
]`

func TestPegelonlineStationCatalog_WatersFilter(t *testing.T) {
	p := domain.RawPayload{
		Source: domain.SourcePegelonlineStationCatalog,
		Waters: []string{"rhein"},
		Body:   []byte(stationCatalogJSON),
	}
	stations, err := NewRegistry().ParseStations(p)
	require.NoError(t, err)
	require.Len(t, stations, 2)

	bonn := stations[0]
	assert.Equal(t, "593647aa-9fea-43ec-a7d6-6476a76ae868", bonn.EntityID)
	assert.Equal(t, "BONN", bonn.Name)
	assert.InDelta(t, 50.737, bonn.Lat, 1e-9)
	assert.InDelta(t, 7.107, bonn.Lon, 1e-9)
	assert.Equal(t, "rhein", bonn.Catchment)
	assert.Equal(t, "RHEIN", bonn.Water)
	assert.Equal(t, "KÖLN", stations[1].Name)

	p.Waters = nil
	all, err := NewRegistry().ParseStations(p)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	p.Waters = []string{"DONAU"}
	none, err := NewRegistry().ParseStations(p)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPegelonlineStationCatalog_Errors(t *testing.T) {
	for _, body := range []string{`{"uuid":"x"}`, `[{"longname":"NO UUID"}]`} {
		_, err := NewRegistry().ParseStations(domain.RawPayload{
			Source: domain.SourcePegelonlineStationCatalog,
			Body:   []byte(body),
		})
		requireParseError(t, err)
	}
}

// --- MOSMIX station catalog ---

func mosmixCatalogLine(id, icao, name, lat, lon, elev string) string {
	return fmt.Sprintf("%-5s %-4s %-20s %6s %7s %5s", id, icao, name, lat, lon, elev)
}

func mosmixCatalog(rows ...string) string {
	lines := []string{
		mosmixCatalogLine("ID", "ICAO", "NAME", "LAT", "LON", "ELEV"),
		strings.Join([]string{"-----", "----", strings.Repeat("-", 20), "------", "-------", "-----"}, " "),
	}
	return strings.Join(append(lines, rows...), "\r\n") + "\r\n"
}

func TestMosmixStations(t *testing.T) {
	body := latin1(t, mosmixCatalog(
		mosmixCatalogLine("10513", "EDDK", "KOELN/BONN", "50.52", "7.09", "92"),
		"",
		mosmixCatalogLine("K4063", "----", "MÜNSTER/OSNABRÜCK", "52.08", "7.42", "48"),
	))

	stations, err := NewRegistry().ParseStations(domain.RawPayload{Source: domain.SourceDWDMosmixStations, Body: body})
	require.NoError(t, err)
	require.Len(t, stations, 2)

	assert.Equal(t, "mosmix:10513", stations[0].EntityID)
	assert.Equal(t, "KOELN/BONN", stations[0].Name)
	assert.InDelta(t, 50.52, stations[0].Lat, 1e-9)
	assert.InDelta(t, 7.09, stations[0].Lon, 1e-9)
	assert.Equal(t, "mosmix:K4063", stations[1].EntityID)
	assert.Equal(t, "MÜNSTER/OSNABRÜCK", stations[1].Name)
}

func TestMosmixStations_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		line int
	}{
		{"header only", "ID ICAO NAME LAT LON ELEV", 0},
		{"separator mismatch", "ID ICAO NAME LAT LON ELEV\n----- ----\n", 2},
		{"bad latitude", mosmixCatalog(mosmixCatalogLine("10513", "EDDK", "KOELN/BONN", "north", "7.09", "92")), 3},
		{"id without digits", mosmixCatalog(mosmixCatalogLine("ABCDE", "EDDK", "NOWHERE", "50.00", "7.00", "1")), 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry().ParseStations(domain.RawPayload{
				Source: domain.SourceDWDMosmixStations,
				Body:   latin1(t, tt.body),
			})
			pe := requireParseError(t, err)
			assert.Equal(t, tt.line, pe.Line)
		})
	}
}

// --- DWD station description ---

const stationDescription = `Stations_id von_datum bis_datum Stationshoehe geoBreite geoLaenge Stationsname Bundesland Abgabe
----------- --------- --------- ------------- --------- --------- ----------------------------------------- ---------- ------
00020 20040812 20240501            432     48.9219    9.3433 Abtsgmünd-Untergröningen                 Baden-Württemberg                        Frei
02667 19570101 20240501             92     50.8646    7.1575 Köln/Bonn                                Nordrhein-Westfalen
00044 20070209 20240501             44     52.9336    8.2370 Groß Berßen                              Niedersachsen                            Frei
`

func TestDWDStationDescription(t *testing.T) {
	for name, body := range map[string][]byte{
		"plain":   latin1(t, stationDescription),
		"gzipped": gzipBytes(t, latin1(t, stationDescription)),
	} {
		t.Run(name, func(t *testing.T) {
			stations, err := NewRegistry().ParseStations(domain.RawPayload{
				Source: domain.SourceDWDStationDescription,
				Body:   body,
			})
			require.NoError(t, err)
			require.Len(t, stations, 3)

			assert.Equal(t, "dwd:00020", stations[0].EntityID)
			assert.Equal(t, "Abtsgmünd-Untergröningen", stations[0].Name)
			assert.InDelta(t, 48.9219, stations[0].Lat, 1e-9)
			assert.InDelta(t, 9.3433, stations[0].Lon, 1e-9)
			assert.Equal(t, "dwd:02667", stations[1].EntityID)
			assert.Equal(t, "Köln/Bonn", stations[1].Name)
			assert.Equal(t, "Groß Berßen", stations[2].Name)
		})
	}
}

func TestDWDStationDescription_Errors(t *testing.T) {
	header := strings.SplitN(stationDescription, "\n", 3)
	tests := []struct {
		name string
		body string
		line int
	}{
		{"no header", "00020 20040812 20240501 432 48.9 9.3 Name Bayern\n", 1},
		{"empty", "", 0},
		{"short row", header[0] + "\n" + header[1] + "\n00020 20040812 20240501 432 48.9 9.3\n", 3},
		{"bad id", header[0] + "\n" + header[1] + "\nabc 20040812 20240501 432 48.9 9.3 Name Bayern\n", 3},
		{"bad latitude", header[0] + "\n" + header[1] + "\n00020 20040812 20240501 432 148.9 9.3 Name Bayern\n", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry().ParseStations(domain.RawPayload{
				Source: domain.SourceDWDStationDescription,
				Body:   latin1(t, tt.body),
			})
			pe := requireParseError(t, err)
			assert.Equal(t, tt.line, pe.Line)
		})
	}
}
