package ingest

import (
	"embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed config/sources.yaml
var sourcesYAML embed.FS

// Registry holds the configuration for the upstream notice sources.
type Registry struct {
	Sources []SourceConfig `yaml:"sources"`
}

// FetchConfig defines HTTP behaviour for a source.
type FetchConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty"` // Default: 30
	PageDelayMS    int `yaml:"page_delay_ms,omitempty"`   // Pause between pages, default: 300
	PageSize       int `yaml:"page_size,omitempty"`       // Default: 100
	MaxPages       int `yaml:"max_pages,omitempty"`       // Default: 50
}

// FetchOptions is a FetchConfig resolved with defaults, ready for the
// importer's pagination loop.
type FetchOptions struct {
	PageSize  int
	MaxPages  int
	PageDelay time.Duration
}

// Options applies the documented defaults to any unset knob.
func (f FetchConfig) Options() FetchOptions {
	opts := FetchOptions{
		PageSize:  100,
		MaxPages:  50,
		PageDelay: 300 * time.Millisecond,
	}
	if f.PageSize > 0 {
		opts.PageSize = f.PageSize
	}
	if f.MaxPages > 0 {
		opts.MaxPages = f.MaxPages
	}
	if f.PageDelayMS > 0 {
		opts.PageDelay = time.Duration(f.PageDelayMS) * time.Millisecond
	}
	return opts
}

// SourceConfig defines a single upstream notice API.
type SourceConfig struct {
	ID          string   `yaml:"id"` // "national" or "eu"
	Name        string   `yaml:"name"`
	BaseURL     string   `yaml:"base_url"`
	DetailURL   string   `yaml:"detail_url,omitempty"`
	APIToken    string   `yaml:"api_token,omitempty"`
	Languages   []string `yaml:"languages,omitempty"`
	SearchTerms []string `yaml:"search_terms,omitempty"`
	Fields      []string `yaml:"fields,omitempty"` // TED field projection
	Description string   `yaml:"description,omitempty"`

	Fetch FetchConfig `yaml:"fetch,omitempty"`
}

// LoadRegistry reads the embedded sources.yaml. A non-empty path overrides
// the embedded copy, which keeps local experiments out of the binary.
func LoadRegistry(path string) (*Registry, error) {
	data, err := sourcesYAML.ReadFile("config/sources.yaml")
	if err != nil || path != "" {
		if path == "" {
			return nil, fmt.Errorf("embedded source registry missing: %w", err)
		}
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, err
		}
	}

	// Expand environment variables within the YAML content (e.g. ${EPROC_API_TOKEN})
	expanded := os.ExpandEnv(string(data))

	var reg Registry
	if err := yaml.Unmarshal([]byte(expanded), &reg); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Lookup returns the config for one source id, or nil.
func (r *Registry) Lookup(id string) *SourceConfig {
	for i := range r.Sources {
		if r.Sources[i].ID == id {
			return &r.Sources[i]
		}
	}
	return nil
}
