// Package entities resolves country and subdivision codes to time zones,
// display names, and per-source data-availability windows. The registry
// is loaded once from per-source YAML files and is read-only afterwards.
package entities

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// codePattern matches an ISO Alpha-2 code with an optional subdivision
// suffix, e.g. "FR" or "US_CAL".
var codePattern = regexp.MustCompile(`^[A-Z]{2}(_[A-Z0-9]{2,5})?$`)

const dateLayout = "2006-01-02"

// Entity is one country or subdivision as known to a data source.
type Entity struct {
	Code      string
	Name      string
	TimeZone  string
	StartDate time.Time
	EndDate   time.Time

	loc *time.Location
}

// Location returns the entity's local time zone.
func (e Entity) Location() *time.Location {
	return e.loc
}

// DisplayName returns the human-readable name, falling back to the code.
func (e Entity) DisplayName() string {
	if e.Name == "" {
		return e.Code
	}
	caser := cases.Title(language.English)
	return caser.String(strings.ToLower(e.Name))
}

type entityFile struct {
	Entities []struct {
		Code      string `yaml:"code"`
		Name      string `yaml:"name"`
		TimeZone  string `yaml:"timezone"`
		StartDate string `yaml:"start_date"`
		EndDate   string `yaml:"end_date"`
	} `yaml:"entities"`
}

// Registry holds the entities of every configured data source.
type Registry struct {
	bySource map[string][]Entity
}

// Load reads all per-source YAML files (one file per source, named
// `<source>.yaml`) from dir and validates codes, time zones and date
// ranges. Any invalid entry fails the whole load: the registry is
// reference data and must not be partially usable.
func Load(dir string) (*Registry, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list source files in %s: %w", dir, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no source files found in %s", dir)
	}
	sort.Strings(paths)

	registry := &Registry{bySource: make(map[string][]Entity)}
	for _, path := range paths {
		source := strings.TrimSuffix(filepath.Base(path), ".yaml")
		entities, err := loadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load source %s: %w", source, err)
		}
		registry.bySource[strings.ToUpper(source)] = entities
	}
	return registry, nil
}

func loadFile(path string) ([]Entity, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file entityFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	if len(file.Entities) == 0 {
		return nil, fmt.Errorf("no entities declared")
	}

	entities := make([]Entity, 0, len(file.Entities))
	for _, e := range file.Entities {
		if !codePattern.MatchString(e.Code) {
			return nil, fmt.Errorf("invalid entity code %q", e.Code)
		}
		loc, err := time.LoadLocation(e.TimeZone)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %q for %s: %w", e.TimeZone, e.Code, err)
		}
		start, err := time.ParseInLocation(dateLayout, e.StartDate, loc)
		if err != nil {
			return nil, fmt.Errorf("invalid start_date for %s: %w", e.Code, err)
		}
		end, err := time.ParseInLocation(dateLayout, e.EndDate, loc)
		if err != nil {
			return nil, fmt.Errorf("invalid end_date for %s: %w", e.Code, err)
		}
		if !start.Before(end) {
			return nil, fmt.Errorf("start_date must precede end_date for %s", e.Code)
		}
		entities = append(entities, Entity{
			Code:      e.Code,
			Name:      e.Name,
			TimeZone:  e.TimeZone,
			StartDate: start,
			EndDate:   end,
			loc:       loc,
		})
	}
	return entities, nil
}

// Sources returns the configured source names, sorted.
func (r *Registry) Sources() []string {
	sources := make([]string, 0, len(r.bySource))
	for source := range r.bySource {
		sources = append(sources, source)
	}
	sort.Strings(sources)
	return sources
}

// Entities returns the entities of a source.
func (r *Registry) Entities(source string) ([]Entity, error) {
	entities, ok := r.bySource[strings.ToUpper(source)]
	if !ok {
		return nil, fmt.Errorf("unknown data source %q, available: %s", source, strings.Join(r.Sources(), ", "))
	}
	return entities, nil
}

// Entity looks up one code within a source.
func (r *Registry) Entity(source, code string) (Entity, error) {
	entities, err := r.Entities(source)
	if err != nil {
		return Entity{}, err
	}
	for _, e := range entities {
		if e.Code == code {
			return e, nil
		}
	}
	return Entity{}, fmt.Errorf("code %q is not available on the %s platform", code, strings.ToUpper(source))
}

// Lookup finds an entity by code across all sources, returning the first
// source that carries it.
func (r *Registry) Lookup(code string) (Entity, string, error) {
	for _, source := range r.Sources() {
		for _, e := range r.bySource[source] {
			if e.Code == code {
				return e, source, nil
			}
		}
	}
	return Entity{}, "", fmt.Errorf("code %q is not available on any configured source", code)
}
