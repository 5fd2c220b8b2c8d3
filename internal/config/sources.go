package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultBaseURL = "https://www.vmgd.gov.vu/vmgd/index.php"

// Source describes one page to scrape: where it lives and which extraction
// rule applies to it.
type Source struct {
	ID      string        `yaml:"id"`
	Kind    string        `yaml:"kind"`
	Path    string        `yaml:"path"`
	Timeout time.Duration `yaml:"timeout"` // optional per-source override

	baseURL string
}

// URL resolves the source's absolute URL.
func (s Source) URL() string { return s.baseURL + s.Path }

// UnmarshalYAML accepts Go duration strings ("45s") for the timeout field,
// which the yaml package does not decode into time.Duration on its own.
func (s *Source) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		ID      string `yaml:"id"`
		Kind    string `yaml:"kind"`
		Path    string `yaml:"path"`
		Timeout string `yaml:"timeout"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	s.ID, s.Kind, s.Path = raw.ID, raw.Kind, raw.Path
	if raw.Timeout != "" {
		d, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return fmt.Errorf("source %q: invalid timeout: %w", raw.ID, err)
		}
		s.Timeout = d
	}
	return nil
}

// NewSource builds a source outside of a sources file, for ad hoc tooling
// and tests.
func NewSource(id, kind, baseURL, path string) Source {
	return Source{ID: id, Kind: kind, Path: path, baseURL: baseURL}
}

type sourcesFile struct {
	BaseURL   string   `yaml:"base_url"`
	Locations []string `yaml:"locations"`
	Sources   []Source `yaml:"sources"`
}

// loadSources reads the YAML source list, falling back to the built-in VMGD
// page set when no file is configured.
func loadSources(path, baseURL string) ([]Source, []string, error) {
	if path == "" {
		return defaultSources(baseURL), defaultLocations, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read sources file: %w", err)
	}
	var sf sourcesFile
	if err := yaml.Unmarshal(raw, &sf); err != nil {
		return nil, nil, fmt.Errorf("parse sources file: %w", err)
	}

	if sf.BaseURL != "" {
		baseURL = sf.BaseURL
	}
	for i := range sf.Sources {
		s := &sf.Sources[i]
		if s.ID == "" || s.Kind == "" || s.Path == "" {
			return nil, nil, fmt.Errorf("sources file: entry %d is missing id, kind, or path", i)
		}
		s.baseURL = baseURL
	}
	return sf.Sources, sf.Locations, nil
}

// defaultLocations are the VMGD forecast stations, one per province.
var defaultLocations = []string{
	"Sola", "Luganville", "Saratamata", "Lakatoro", "Port Vila", "Isangel",
}

// defaultSources mirrors the upstream forecast-division page set.
func defaultSources(baseURL string) []Source {
	mk := func(id, kind, path string) Source {
		return Source{ID: id, Kind: kind, Path: path, baseURL: baseURL}
	}
	return []Source{
		mk("forecast-map", "forecast-map", "/forecast-division"),
		mk("forecast-week", "forecast-week", "/forecast-division/public-forecast/7-day"),
		mk("forecast-media", "forecast-media", "/forecast-division/public-forecast/media"),
		mk("warning-severe-weather", "warnings", "/forecast-division/warnings/severe-weather-warning"),
		mk("warning-marine", "warnings", "/forecast-division/warnings/marine-warning"),
		mk("warning-high-seas", "warnings", "/forecast-division/warnings/hight-seas-warning"),
	}
}
