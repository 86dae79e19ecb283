// Command genmock writes deterministic upstream payload fixtures, one per
// source type, in the formats the parsers accept: PEGELONLINE JSON, DWD
// delimited text (zipped and gzipped), MOSMIX KMZ and the three station
// listings. File names follow
// <entity>.<source-type>.<ext>, the layout cmd/validate reads.
//
// Usage:
//
//	go run ./cmd/genmock -out testdata/payloads
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/marweda/water-level-forecast/internal/domain"
	"golang.org/x/text/encoding/charmap"
)

const (
	gaugeBonn    = "593647aa-9fea-43ec-a7d6-6476a76ae868"
	gaugeCologne = "a6ee8177-107b-47dd-bcfd-30960ccc6e9c"
	dwdStation   = 1048
	dwdHourly    = 3987
	mosmixPoint  = "10513"
)

// baseDate anchors every generated series so output is reproducible.
var baseDate = time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)

// berlin is the offset PEGELONLINE reports in during summer time.
var berlin = time.FixedZone("CEST", 2*60*60)

type fixture struct {
	entity string
	source domain.SourceType
	ext    string
	body   []byte
}

func (f fixture) name() string {
	return fmt.Sprintf("%s.%s.%s", f.entity, f.source, f.ext)
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output directory for payload fixtures")
	days := flag.Int("days", 3, "days of history per series")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if *days < 1 {
		return fmt.Errorf("-days must be at least 1, got %d", *days)
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}

	fixtures, err := generate(*days)
	if err != nil {
		return err
	}
	for _, f := range fixtures {
		path := filepath.Join(*out, f.name())
		if err := os.WriteFile(path, f.body, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		log.Printf("%s: %d bytes", f.name(), len(f.body))
	}
	log.Printf("total: %d fixtures", len(fixtures))
	return nil
}

func generate(days int) ([]fixture, error) {
	measurements, err := pegelonlineMeasurements(days)
	if err != nil {
		return nil, err
	}
	forecast, err := pegelonlineForecast()
	if err != nil {
		return nil, err
	}
	current, err := pegelonlineCurrent(days)
	if err != nil {
		return nil, err
	}
	stations, err := pegelonlineStations(days)
	if err != nil {
		return nil, err
	}
	tenMinute, err := dwdTenMinuteZip(days)
	if err != nil {
		return nil, err
	}
	hourly, err := dwdHourlyGzip(days)
	if err != nil {
		return nil, err
	}
	kmz, err := mosmixKMZ()
	if err != nil {
		return nil, err
	}
	catalog, err := pegelonlineStationCatalog()
	if err != nil {
		return nil, err
	}
	mosmixStations, err := latin1(mosmixStationCatalog())
	if err != nil {
		return nil, err
	}
	description, err := latin1(dwdStationDescription())
	if err != nil {
		return nil, err
	}

	return []fixture{
		{entity: gaugeBonn, source: domain.SourcePegelonlineMeasurements, ext: "json", body: measurements},
		{entity: gaugeBonn, source: domain.SourcePegelonlineForecast, ext: "json", body: forecast},
		{entity: gaugeBonn, source: domain.SourcePegelonlineCurrent, ext: "json", body: current},
		{entity: "stations", source: domain.SourcePegelonlineStations, ext: "json", body: stations},
		{entity: fmt.Sprintf("%05d", dwdStation), source: domain.SourceDWDPrecipitation, ext: "zip", body: tenMinute},
		{entity: fmt.Sprintf("%05d", dwdHourly), source: domain.SourceDWDPrecipitationHourly, ext: "txt.gz", body: hourly},
		{entity: mosmixPoint, source: domain.SourceDWDMosmix, ext: "kmz", body: kmz},
		{entity: "stations", source: domain.SourcePegelonlineStationCatalog, ext: "json", body: catalog},
		{entity: "mosmix", source: domain.SourceDWDMosmixStations, ext: "cfg", body: mosmixStations},
		{entity: "zehn_now_rr", source: domain.SourceDWDStationDescription, ext: "txt", body: description},
	}, nil
}

// level is a smooth diurnal water level in centimeters.
func level(t time.Time) float64 {
	h := t.Sub(baseDate).Hours()
	v := 280 + 18*math.Sin(2*math.Pi*h/24) + 0.4*h
	return math.Round(v*10) / 10
}

// rain is a deterministic shower pattern in millimeters per hour.
func rain(t time.Time) float64 {
	h := int(t.Sub(baseDate).Hours())
	if h%24 < 14 || h%24 > 18 {
		return 0
	}
	return float64(h%5) * 0.4
}

type measurement struct {
	Timestamp string  `json:"timestamp"`
	Value     float64 `json:"value"`
}

func pegelonlineMeasurements(days int) ([]byte, error) {
	n := days * 24 * 4
	items := make([]measurement, n)
	for i := range items {
		t := baseDate.Add(time.Duration(i) * 15 * time.Minute)
		items[i] = measurement{Timestamp: t.In(berlin).Format(time.RFC3339), Value: level(t)}
	}
	return json.MarshalIndent(items, "", "  ")
}

func pegelonlineForecast() ([]byte, error) {
	type item struct {
		Initialized string  `json:"initialized"`
		Timestamp   string  `json:"timestamp"`
		Value       float64 `json:"value"`
		Type        string  `json:"type"`
	}
	issued := baseDate.Add(6 * time.Hour)
	items := make([]item, 0, 4*24)
	for i := 1; i <= 4*24; i++ {
		t := issued.Add(time.Duration(i) * time.Hour)
		kind := "forecast"
		if i > 48 {
			kind = "estimate"
		}
		items = append(items, item{
			Initialized: issued.In(berlin).Format(time.RFC3339),
			Timestamp:   t.In(berlin).Format(time.RFC3339),
			Value:       level(t),
			Type:        kind,
		})
	}
	return json.MarshalIndent(items, "", "  ")
}

func pegelonlineCurrent(days int) ([]byte, error) {
	t := baseDate.Add(time.Duration(days) * 24 * time.Hour)
	return json.Marshal(map[string]any{
		"timestamp":   t.In(berlin).Format(time.RFC3339),
		"value":       level(t),
		"stateMnwMhw": "normal",
		"stateNswHsw": "normal",
	})
}

func pegelonlineStations(days int) ([]byte, error) {
	t := baseDate.Add(time.Duration(days) * 24 * time.Hour)
	current := func(offset float64) map[string]any {
		return map[string]any{"timestamp": t.In(berlin).Format(time.RFC3339), "value": level(t) + offset}
	}
	stations := []map[string]any{
		{
			"uuid": strings.ToUpper(gaugeBonn), "shortname": "BONN", "water": map[string]string{"shortname": "RHEIN"},
			"timeseries": []map[string]any{
				{"shortname": "W", "unit": "cm", "currentMeasurement": current(0)},
				{"shortname": "Q", "unit": "m3/s", "currentMeasurement": map[string]any{"timestamp": t.In(berlin).Format(time.RFC3339), "value": 1850}},
			},
		},
		{
			"uuid": gaugeCologne, "shortname": "KÖLN", "water": map[string]string{"shortname": "RHEIN"},
			"timeseries": []map[string]any{
				{"shortname": "W", "unit": "cm", "currentMeasurement": current(35)},
			},
		},
	}
	return json.MarshalIndent(stations, "", "  ")
}

func dwdTenMinuteZip(days int) ([]byte, error) {
	var b strings.Builder
	b.WriteString("STATIONS_ID;MESS_DATUM;  QN;RWS_DAU_10;RWS_10;RWS_IND_10;eor\n")
	n := days * 24 * 6
	for i := 0; i < n; i++ {
		t := baseDate.Add(time.Duration(i) * 10 * time.Minute)
		if i%97 == 96 {
			fmt.Fprintf(&b, "%11d;%s;    3;-999;-999;-999;eor\n", dwdStation, t.Format("200601021504"))
			continue
		}
		v := rain(t) / 6
		fmt.Fprintf(&b, "%11d;%s;    3;  %2d;%7.2f;   %d;eor\n", dwdStation, t.Format("200601021504"), durationMinutes(v), v, indicator(v))
	}
	text, err := latin1(b.String())
	if err != nil {
		return nil, err
	}
	return zipped(fmt.Sprintf("produkt_zehn_now_rr_20240501_20240503_%05d.txt", dwdStation), text)
}

func durationMinutes(v float64) int {
	if v == 0 {
		return 0
	}
	return 10
}

func indicator(v float64) int {
	if v == 0 {
		return 0
	}
	return 1
}

func dwdHourlyGzip(days int) ([]byte, error) {
	var b strings.Builder
	b.WriteString("STATIONS_ID;MESS_DATUM;QN_8;  R1;RS_IND;WRTR;eor\n")
	for i := 0; i < days*24; i++ {
		t := baseDate.Add(time.Duration(i) * time.Hour)
		// DWD hourly products write decimal commas in some exports.
		v := strings.Replace(fmt.Sprintf("%.1f", rain(t)), ".", ",", 1)
		fmt.Fprintf(&b, "%d;%s;    3;%6s;   %d;   6;eor\n", dwdHourly, t.Format("2006010215"), v, indicator(rain(t)))
	}
	text, err := latin1(b.String())
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(text); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func mosmixKMZ() ([]byte, error) {
	issued := baseDate.Add(3 * time.Hour)
	const steps = 24

	var timeSteps, rr1c, rr3c, ttt strings.Builder
	for i := 1; i <= steps; i++ {
		t := issued.Add(time.Duration(i) * time.Hour)
		fmt.Fprintf(&timeSteps, "          <dwd:TimeStep>%s</dwd:TimeStep>\n", t.Format("2006-01-02T15:04:05.000Z"))
		fmt.Fprintf(&rr1c, " %8.2f", rain(t))
		if i%3 == 0 {
			fmt.Fprintf(&rr3c, " %8.2f", rain(t)*3)
		} else {
			rr3c.WriteString("        -")
		}
		fmt.Fprintf(&ttt, " %8.2f", 285.15+3*math.Sin(2*math.Pi*float64(i)/24))
	}

	kml := `<?xml version="1.0" encoding="ISO-8859-1" standalone="no"?>
<kml:kml xmlns:dwd="https://opendata.dwd.de/weather/lib/pointforecast_dwd_extension_V1_0.xsd" xmlns:kml="http://www.opengis.net/kml/2.2">
  <kml:Document>
    <kml:ExtendedData>
      <dwd:ProductDefinition>
        <dwd:Issuer>Deutscher Wetterdienst</dwd:Issuer>
        <dwd:IssueTime>` + issued.Format("2006-01-02T15:04:05.000Z") + `</dwd:IssueTime>
        <dwd:ForecastTimeSteps>
` + timeSteps.String() + `        </dwd:ForecastTimeSteps>
      </dwd:ProductDefinition>
    </kml:ExtendedData>
    <kml:Placemark>
      <kml:name>` + mosmixPoint + `</kml:name>
      <kml:description>KÖLN/BONN</kml:description>
      <kml:ExtendedData>
        <dwd:Forecast dwd:elementName="TTT"><dwd:value>` + ttt.String() + `</dwd:value></dwd:Forecast>
        <dwd:Forecast dwd:elementName="RR1c"><dwd:value>` + rr1c.String() + `</dwd:value></dwd:Forecast>
        <dwd:Forecast dwd:elementName="RR3c"><dwd:value>` + rr3c.String() + `</dwd:value></dwd:Forecast>
      </kml:ExtendedData>
    </kml:Placemark>
  </kml:Document>
</kml:kml>
`
	text, err := latin1(kml)
	if err != nil {
		return nil, err
	}
	return zipped(fmt.Sprintf("MOSMIX_L_%s_%s.kml", issued.Format("2006010215"), mosmixPoint), text)
}

func pegelonlineStationCatalog() ([]byte, error) {
	station := func(uuid, name string, lat, lon float64, water string) map[string]any {
		return map[string]any{
			"uuid": uuid, "shortname": name, "longname": name, "agency": water,
			"latitude": lat, "longitude": lon,
			"water": map[string]string{"shortname": water, "longname": water},
		}
	}
	return json.MarshalIndent([]map[string]any{
		station(gaugeBonn, "BONN", 50.737, 7.107, "RHEIN"),
		station(gaugeCologne, "KÖLN", 50.937, 6.963, "RHEIN"),
		station("0e1b3a6c-5f1d-4c55-8d9e-2b3c4d5e6f70", "TRIER UP", 49.753, 6.631, "MOSEL"),
	}, "", "  ")
}

// mosmixStationCatalog is fixed width: the dash line sets each column's span.
func mosmixStationCatalog() string {
	row := func(id, icao, name string, lat, lon float64, elev int) string {
		return fmt.Sprintf("%-5s %-4s %-20s %6.2f %7.2f %5d\n", id, icao, name, lat, lon, elev)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-5s %-4s %-20s %6s %7s %5s\n", "ID", "ICAO", "NAME", "LAT", "LON", "ELEV")
	fmt.Fprintf(&b, "%s %s %s %s %s %s\n", "-----", "----", strings.Repeat("-", 20), "------", "-------", "-----")
	b.WriteString(row(mosmixPoint, "EDDK", "KÖLN/BONN", 50.52, 7.09, 92))
	b.WriteString(row("10400", "EDDL", "DÜSSELDORF", 51.18, 6.46, 37))
	return b.String()
}

func dwdStationDescription() string {
	var b strings.Builder
	b.WriteString("Stations_id von_datum bis_datum Stationshoehe geoBreite geoLaenge Stationsname Bundesland Abgabe\n")
	b.WriteString("----------- --------- --------- ------------- --------- --------- ----------------------------------------- ---------- ------\n")
	fmt.Fprintf(&b, "%05d 20040812 20240501 %14d %11.4f %9.4f %-40s %-40s Frei\n", dwdStation, 96, 51.1278, 13.7543, "Dresden-Klotzsche", "Sachsen")
	fmt.Fprintf(&b, "%05d 19570101 20240501 %14d %11.4f %9.4f %-40s %-40s\n", dwdHourly, 92, 50.8646, 7.1575, "Köln/Bonn", "Nordrhein-Westfalen")
	return b.String()
}

func latin1(s string) ([]byte, error) {
	return charmap.ISO8859_1.NewEncoder().Bytes([]byte(s))
}

func zipped(name string, content []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(name)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(content); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
