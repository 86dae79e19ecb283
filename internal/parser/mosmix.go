package parser

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/marweda/water-level-forecast/internal/domain"
	"golang.org/x/text/encoding/charmap"
)

// DefaultMosmixElement is the hourly precipitation total of MOSMIX-L.
const DefaultMosmixElement = "RR1c"

// MOSMIX precipitation elements are given in kg/m2 (equal to mm).
const mosmixUnit = "kg/m2"

// mosmixElements are the precipitation totals the parser reads.
var mosmixElements = map[string]bool{"RR1c": true, "RR3c": true}

// MosmixElementSupported reports whether element is a MOSMIX precipitation
// total the parser accepts. Empty selects DefaultMosmixElement.
func MosmixElementSupported(element string) bool {
	return element == "" || mosmixElements[element]
}

const mosmixMissing = "-"

// MOSMIX KML, matched by local name so both the kml and dwd namespaces resolve.
type kmlRoot struct {
	Document struct {
		ProductDefinition struct {
			IssueTime string   `xml:"IssueTime"`
			TimeSteps []string `xml:"ForecastTimeSteps>TimeStep"`
		} `xml:"ExtendedData>ProductDefinition"`
		Placemarks []kmlPlacemark `xml:"Placemark"`
	} `xml:"Document"`
}

type kmlPlacemark struct {
	Name        string        `xml:"name"`
	Description string        `xml:"description"`
	Forecasts   []kmlForecast `xml:"ExtendedData>Forecast"`
}

type kmlForecast struct {
	Element string `xml:"elementName,attr"`
	Value   string `xml:"value"`
}

// parseMosmixKMZ reads a MOSMIX single-station KMZ: a ZIP holding one KML
// document with the issue time, the forecast time steps and one
// whitespace-separated value list per element.
func parseMosmixKMZ(p domain.RawPayload) ([]domain.RawRecord, error) {
	element := p.Element
	if element == "" {
		element = DefaultMosmixElement
	}
	if !mosmixElements[element] {
		return nil, parseErr(p, fmt.Sprintf("element %s is not a precipitation total", element), nil)
	}

	kml, _, err := openZipMember(p.Body, ".kml")
	if err != nil {
		return nil, parseErr(p, "extract kml", err)
	}

	var root kmlRoot
	dec := xml.NewDecoder(bytes.NewReader(kml))
	dec.CharsetReader = charsetReader
	if err := dec.Decode(&root); err != nil {
		return nil, parseErr(p, "decode kml", err)
	}

	def := root.Document.ProductDefinition
	issue := strings.TrimSpace(def.IssueTime)
	if issue == "" {
		return nil, parseErr(p, "missing IssueTime", nil)
	}
	if len(def.TimeSteps) == 0 {
		return nil, parseErr(p, "missing ForecastTimeSteps", nil)
	}
	if len(root.Document.Placemarks) == 0 {
		return nil, parseErr(p, "missing Placemark", nil)
	}

	var records []domain.RawRecord
	for _, pm := range root.Document.Placemarks {
		name := strings.TrimSpace(pm.Name)
		if name == "" {
			return nil, parseErr(p, "placemark without name", nil)
		}
		values, ok := pm.values(element)
		if !ok {
			return nil, parseErr(p, fmt.Sprintf("placemark %s has no %s forecast", name, element), nil)
		}
		if len(values) != len(def.TimeSteps) {
			return nil, parseErr(p, fmt.Sprintf("placemark %s: %d %s values for %d time steps",
				name, len(values), element, len(def.TimeSteps)), nil)
		}
		for i, step := range def.TimeSteps {
			var value any
			if values[i] != mosmixMissing {
				value = values[i]
			}
			records = append(records, newRecord(p.Source, map[string]any{
				domain.FieldEntityID:  "mosmix:" + name,
				domain.FieldTimestamp: strings.TrimSpace(step),
				domain.FieldValue:     value,
				domain.FieldUnit:      mosmixUnit,
				domain.FieldQuality:   string(domain.QualityForecast),
				"issue_time":          issue,
			}))
		}
	}
	return records, nil
}

func (pm kmlPlacemark) values(element string) ([]string, bool) {
	for _, f := range pm.Forecasts {
		if f.Element == element {
			return strings.Fields(f.Value), true
		}
	}
	return nil, false
}

// charsetReader decodes the Latin-1 declarations DWD uses.
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(charset) {
	case "iso-8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(input), nil
	default:
		return nil, fmt.Errorf("unsupported charset %q", charset)
	}
}
