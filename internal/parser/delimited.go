package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/marweda/water-level-forecast/internal/domain"
	"golang.org/x/text/encoding/charmap"
)

// DelimitedLayout describes a delimited text format: which columns carry the
// station, timestamp and value, and how missing values are spelled.
type DelimitedLayout struct {
	Comma         rune
	StationColumn string
	TimeColumn    string
	ValueColumn   string
	Unit          string
	// EndOfRow is a trailing marker column that carries no data.
	EndOfRow string
	// Missing is the sentinel for an absent value.
	Missing string
	// Latin1 decodes the body from ISO-8859-1.
	Latin1 bool
}

// DWDTenMinuteLayout is the DWD 10-minute precipitation product
// (produkt_zehn_now_rr_*.txt).
var DWDTenMinuteLayout = DelimitedLayout{
	Comma:         ';',
	StationColumn: "STATIONS_ID",
	TimeColumn:    "MESS_DATUM",
	ValueColumn:   "RWS_10",
	Unit:          "mm",
	EndOfRow:      "eor",
	Missing:       "-999",
	Latin1:        true,
}

// DWDHourlyLayout is the DWD hourly precipitation product (produkt_rr_stunde_*.txt).
var DWDHourlyLayout = DelimitedLayout{
	Comma:         ';',
	StationColumn: "STATIONS_ID",
	TimeColumn:    "MESS_DATUM",
	ValueColumn:   "R1",
	Unit:          "mm",
	EndOfRow:      "eor",
	Missing:       "-999",
	Latin1:        true,
}

// DelimitedParser reads delimited station observations, optionally wrapped
// in a ZIP archive or gzip stream.
type DelimitedParser struct {
	layout DelimitedLayout
}

// NewDelimitedParser creates a parser for the given layout.
func NewDelimitedParser(layout DelimitedLayout) *DelimitedParser {
	return &DelimitedParser{layout: layout}
}

// Parse implements Parser.
func (d *DelimitedParser) Parse(p domain.RawPayload) ([]domain.RawRecord, error) {
	body, err := decompress(p.Body, ".txt", ".csv")
	if err != nil {
		return nil, parseErr(p, "decompress", err)
	}

	var src io.Reader = bytes.NewReader(body)
	if d.layout.Latin1 {
		src = charmap.ISO8859_1.NewDecoder().Reader(src)
	}

	r := csv.NewReader(src)
	r.Comma = d.layout.Comma
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	header, err := d.readHeader(r)
	if err != nil {
		return nil, parseErr(p, "header", err)
	}
	cols, err := d.columnIndex(header)
	if err != nil {
		return nil, parseErr(p, "header", err)
	}

	var records []domain.RawRecord
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, parseErr(p, "read row", err)
		}
		line, _ := r.FieldPos(0)
		if isBlankRow(row) {
			continue
		}
		if len(row) != len(header) {
			return nil, &domain.ParseError{
				Source: p.Source,
				Line:   line,
				Msg:    fmt.Sprintf("expected %d fields, got %d", len(header), len(row)),
			}
		}
		if cols.eor >= 0 && strings.TrimSpace(row[cols.eor]) != d.layout.EndOfRow {
			return nil, &domain.ParseError{Source: p.Source, Line: line, Msg: "row is missing its end-of-row marker"}
		}
		rec, err := d.mapRow(p.Source, row, cols)
		if err != nil {
			return nil, &domain.ParseError{Source: p.Source, Line: line, Msg: "map row", Err: err}
		}
		records = append(records, rec)
	}
	return records, nil
}

type columns struct {
	station, time, value int
	// eor is -1 when the layout or header has no end-of-row column.
	eor int
}

// readHeader skips leading blank lines and returns the trimmed header row.
func (d *DelimitedParser) readHeader(r *csv.Reader) ([]string, error) {
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil, errors.New("no header row")
		}
		if err != nil {
			return nil, err
		}
		if isBlankRow(row) {
			continue
		}
		header := make([]string, len(row))
		for i, c := range row {
			header[i] = strings.TrimSpace(c)
		}
		return header, nil
	}
}

func (d *DelimitedParser) columnIndex(header []string) (columns, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[name] = i
	}
	find := func(name string) (int, error) {
		i, ok := idx[name]
		if !ok {
			return 0, fmt.Errorf("missing required column %q", name)
		}
		return i, nil
	}
	var (
		c   = columns{eor: -1}
		err error
	)
	if i, ok := idx[d.layout.EndOfRow]; ok && d.layout.EndOfRow != "" {
		c.eor = i
	}
	if c.station, err = find(d.layout.StationColumn); err != nil {
		return c, err
	}
	if c.time, err = find(d.layout.TimeColumn); err != nil {
		return c, err
	}
	if c.value, err = find(d.layout.ValueColumn); err != nil {
		return c, err
	}
	return c, nil
}

func (d *DelimitedParser) mapRow(source domain.SourceType, row []string, c columns) (domain.RawRecord, error) {
	station, err := dwdStationID(row[c.station])
	if err != nil {
		return domain.RawRecord{}, err
	}
	var value any
	if v := normalizeDecimal(row[c.value]); !d.isMissing(v) {
		value = v
	}
	return newRecord(source, map[string]any{
		domain.FieldEntityID:  station,
		domain.FieldTimestamp: strings.TrimSpace(row[c.time]),
		domain.FieldValue:     value,
		domain.FieldUnit:      d.layout.Unit,
	}), nil
}

// isMissing matches the sentinel numerically so "-999" and "-999.0" agree.
func (d *DelimitedParser) isMissing(v string) bool {
	if v == d.layout.Missing {
		return true
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return false
	}
	m, err := strconv.ParseFloat(d.layout.Missing, 64)
	return err == nil && f == m
}

// dwdStationID canonicalises a numeric DWD station id as "dwd:" plus five digits.
func dwdStationID(raw string) (string, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return "", fmt.Errorf("invalid station id %q", raw)
	}
	return fmt.Sprintf("dwd:%05d", n), nil
}

// normalizeDecimal trims a numeric cell and accepts a decimal comma.
func normalizeDecimal(s string) string {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	return s
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
