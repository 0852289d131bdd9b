// Package validate runs the fixed rule classes over a canonical table.
package validate

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Profile assigns rule classes to column positions for one document
// template. Positions are configuration, not code: templates with different
// column layouts ship different profiles.
type Profile struct {
	// MandatoryColumns must not be empty or whitespace-only.
	MandatoryColumns []int `yaml:"mandatory_columns"`
	// NumericColumns must parse as numbers once thousands separators are
	// stripped.
	NumericColumns []int `yaml:"numeric_columns"`
	// DateColumn must hold an ISO calendar date (YYYY-MM-DD). Nil disables
	// the rule.
	DateColumn *int `yaml:"date_column"`
}

// Default returns the stock voucher template: date, party, amount.
func Default() Profile {
	date := 0
	return Profile{
		MandatoryColumns: []int{0, 1},
		NumericColumns:   []int{2},
		DateColumn:       &date,
	}
}

// LoadProfiles reads a YAML file mapping document-type names to profiles.
func LoadProfiles(path string) (map[string]Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "validate: read profiles %s", path)
	}
	profiles := make(map[string]Profile)
	if err := yaml.Unmarshal(data, &profiles); err != nil {
		return nil, eris.Wrapf(err, "validate: parse profiles %s", path)
	}
	return profiles, nil
}
