package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	models "trading-journal/database/models_pkg"
)

//go:embed defaults.yaml
var embeddedDefaults []byte

// Defaults are the per-user settings applied until a user saves their own
type Defaults struct {
	Configuration models.AlertConfiguration      `yaml:"configuration"`
	Preferences   models.NotificationPreferences `yaml:"preferences"`
}

// LoadDefaults reads the defaults document at path, or the embedded one when
// path is empty
func LoadDefaults(path string) (*Defaults, error) {
	data := embeddedDefaults
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("LoadDefaults: %w", err)
		}
		data = b
	}
	return ParseDefaults(data)
}

// ParseDefaults decodes a defaults document
func ParseDefaults(data []byte) (*Defaults, error) {
	var d Defaults
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("ParseDefaults: %w", err)
	}
	if d.Preferences.Channels == nil {
		d.Preferences.Channels = make(map[models.AlertType][]models.Channel)
	}
	if d.Preferences.SeverityFilters == nil {
		d.Preferences.SeverityFilters = make(map[models.Channel][]models.Severity)
	}
	return &d, nil
}
