// Command validate runs payload fixtures through the parse, validate and
// normalize stages and reports per file whether each stage passes. File
// names follow <entity>.<source-type>.<ext>, as written by cmd/genmock.
//
// Usage:
//
//	go run ./cmd/validate -dir testdata/payloads -cadence 1h
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/marweda/water-level-forecast/internal/domain"
	"github.com/marweda/water-level-forecast/internal/normalize"
	"github.com/marweda/water-level-forecast/internal/parser"
	"github.com/marweda/water-level-forecast/internal/validate"
)

// phase tracks pass/fail for one payload file.
type phase struct {
	name   string
	errors []string
	notes  []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) notef(format string, args ...any) {
	p.notes = append(p.notes, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dir := flag.String("dir", "", "directory containing payload fixtures")
	cadence := flag.Duration("cadence", time.Hour, "normalization cadence, 0 keeps native timestamps")
	flag.Parse()

	if *dir == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*dir, *cadence); code != 0 {
		os.Exit(code)
	}
}

func run(dir string, cadence time.Duration) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", dir, err)
		return 1
	}

	registry := parser.NewRegistry()
	var phases []*phase
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		phases = append(phases, checkFile(registry, filepath.Join(dir, e.Name()), cadence))
	}
	if len(phases) == 0 {
		fmt.Fprintf(os.Stderr, "no payload files in %s\n", dir)
		return 1
	}

	failed := 0
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = "FAIL"
			failed++
		}
		fmt.Printf("[%s] %s\n", status, p.name)
		for _, n := range p.notes {
			fmt.Printf("       %s\n", n)
		}
		for _, e := range p.errors {
			fmt.Printf("  - %s\n", e)
		}
	}

	fmt.Printf("\n%d/%d files passed\n", len(phases)-failed, len(phases))
	if failed > 0 {
		return 1
	}
	return 0
}

// sourceFromName splits <entity>.<source-type>.<ext> into its parts.
func sourceFromName(name string) (entity string, source domain.SourceType, err error) {
	parts := strings.SplitN(name, ".", 3)
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("file name %q is not <entity>.<source-type>.<ext>", name)
	}
	return parts[0], domain.SourceType(parts[1]), nil
}

func checkFile(registry *parser.Registry, path string, cadence time.Duration) *phase {
	name := filepath.Base(path)
	p := &phase{name: name}

	entity, source, err := sourceFromName(name)
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	if source.StationCatalog() {
		checkStations(p, registry, path, source)
		return p
	}
	schema, ok := validate.SchemaFor(source)
	if !ok {
		p.errorf("unknown source type %q", source)
		return p
	}

	body, err := os.ReadFile(path)
	if err != nil {
		p.errorf("read: %v", err)
		return p
	}

	raw, err := registry.Parse(domain.RawPayload{
		Source:      source,
		EntityID:    entity,
		Body:        body,
		RetrievedAt: domain.Now(),
	})
	if err != nil {
		p.errorf("parse: %v", err)
		return p
	}
	if len(raw) == 0 {
		p.errorf("parse: no records")
		return p
	}

	records, err := validate.Batch(raw, schema)
	if err != nil {
		p.errorf("validate: %v", err)
		return p
	}

	byEntity := make(map[string][]domain.ValidatedRecord)
	for _, r := range records {
		byEntity[r.EntityID] = append(byEntity[r.EntityID], r)
	}
	ids := make([]string, 0, len(byEntity))
	for id := range byEntity {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		ts, err := normalize.Normalize(byEntity[id], normalize.Options{Cadence: cadence})
		if err != nil {
			p.errorf("normalize %s: %v", id, err)
			continue
		}
		p.notef("%s: %d records, %d points %s..%s, %d gaps, unit %s",
			id, len(byEntity[id]), ts.Len(),
			ts.Start().Format(time.RFC3339), ts.End().Format(time.RFC3339),
			len(ts.Gaps()), ts.Unit)
	}
	return p
}

// checkStations parses a station listing and notes how many stations it
// describes.
func checkStations(p *phase, registry *parser.Registry, path string, source domain.SourceType) {
	body, err := os.ReadFile(path)
	if err != nil {
		p.errorf("read: %v", err)
		return
	}
	stations, err := registry.ParseStations(domain.RawPayload{Source: source, Body: body, RetrievedAt: domain.Now()})
	if err != nil {
		p.errorf("parse: %v", err)
		return
	}
	if len(stations) == 0 {
		p.errorf("parse: no stations")
		return
	}
	p.notef("%d stations, first %s (%s)", len(stations), stations[0].EntityID, stations[0].Name)
}
