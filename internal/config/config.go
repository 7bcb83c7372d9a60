package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SourceCalendar describes one remote ICS feed inside a group.
type SourceCalendar struct {
	// Name is a human-friendly label; combined events are tagged with it.
	Name string `yaml:"name" json:"name"`
	// Description is shown in the /listing output.
	Description string `yaml:"description" json:"description"`
	// URL is the ICS endpoint.
	URL string `yaml:"url" json:"url"`
}

// CalendarGroup is a named ordered set of source calendars served as one
// combined calendar.
type CalendarGroup struct {
	Name      string           `yaml:"name" json:"name"`
	Calendars []SourceCalendar `yaml:"calendars" json:"calendars"`
}

// Config is the top-level application configuration.
type Config struct {
	// Key is the shared secret required on every combine request.
	// The WEBCAL_KEY environment variable overrides it at startup.
	Key string `yaml:"key" json:"key"`

	// URL is the externally visible base URL, used only to build the
	// combine URLs shown by /listing.
	URL string `yaml:"url" json:"url"`

	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// RequestTimeoutSeconds bounds each outbound feed fetch.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds" json:"request_timeout_seconds"`

	// Calendars is the ordered list of served calendar groups.
	Calendars []CalendarGroup `yaml:"calendars" json:"calendars"`
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:5000"
	}
	if c.RequestTimeoutSeconds <= 0 {
		c.RequestTimeoutSeconds = 30
	}
	if c.Calendars == nil {
		c.Calendars = []CalendarGroup{}
	}
}

// Validate rejects configurations the server cannot safely start with.
func (c *Config) Validate() error {
	if c.Key == "" {
		return errors.New("config: key is empty")
	}
	if c.URL == "" {
		return errors.New("config: url is empty")
	}

	seen := make(map[string]struct{}, len(c.Calendars))
	for _, group := range c.Calendars {
		if group.Name == "" {
			return errors.New("config: calendar group with empty name")
		}
		if _, dup := seen[group.Name]; dup {
			return fmt.Errorf("config: duplicate calendar group %q", group.Name)
		}
		seen[group.Name] = struct{}{}

		for _, cal := range group.Calendars {
			if cal.URL == "" {
				return fmt.Errorf("config: group %q: source %q has no url", group.Name, cal.Name)
			}
		}
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// A missing or unreadable file is an error: the server serves a static
// catalog and must not start without one. YAML being a superset of JSON,
// a JSON config file loads unchanged.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	if key := os.Getenv("WEBCAL_KEY"); key != "" {
		cfg.Key = key
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
