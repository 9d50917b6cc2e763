package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/docharvester/docharvester-go/internal/models"
)

// LensDefault is one lens's default coverage requirement.
type LensDefault struct {
	Required     bool `yaml:"required"`
	MinDocuments int  `yaml:"min_documents"`
}

// coverageFile is the on-disk layout of the coverage config file.
type coverageFile struct {
	DefaultRequirements map[string]LensDefault `yaml:"default_requirements"`
}

// BuiltinCoverageDefaults are used when no config file is present.
func BuiltinCoverageDefaults() map[models.LensType]LensDefault {
	return map[models.LensType]LensDefault{
		models.LensLogic: {Required: true, MinDocuments: 10},
		models.LensSOP:   {Required: true, MinDocuments: 5},
		models.LensGTM:   {Required: true, MinDocuments: 3},
		models.LensCL:    {Required: false, MinDocuments: 1},
	}
}

// LoadCoverageDefaults reads per-lens requirement defaults from a YAML
// file. A missing file is not an error; the built-in defaults apply.
// Unknown lens names in the file are rejected.
func LoadCoverageDefaults(path string) (map[models.LensType]LensDefault, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return BuiltinCoverageDefaults(), nil
		}
		return nil, fmt.Errorf("reading coverage config: %w", err)
	}

	var file coverageFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing coverage config: %w", err)
	}
	if len(file.DefaultRequirements) == 0 {
		return BuiltinCoverageDefaults(), nil
	}

	defaults := make(map[models.LensType]LensDefault, len(file.DefaultRequirements))
	for name, d := range file.DefaultRequirements {
		lens := models.LensType(name)
		if !models.ValidLensType(lens) {
			return nil, fmt.Errorf("coverage config: unknown lens type %q", name)
		}
		if d.MinDocuments < 0 {
			return nil, fmt.Errorf("coverage config: %s: min_documents must be >= 0", name)
		}
		defaults[lens] = d
	}
	return defaults, nil
}
