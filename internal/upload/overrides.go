package upload

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/willregister/admin-cli/internal/model"
)

// MappingOverride corrects one auto-detected mapping from a YAML file, so
// mis-detections can be fixed without an interactive review step.
type MappingOverride struct {
	Column      string   `yaml:"column,omitempty"`
	CombineWith []string `yaml:"combine_with,omitempty"`
	Separator   string   `yaml:"separator,omitempty"`
	FixedValue  string   `yaml:"fixed_value,omitempty"`
}

// LoadOverrides reads a mapping-override file keyed by catalog field name.
func LoadOverrides(path string) (map[string]MappingOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "upload: read mapping file %s", path)
	}
	overrides := map[string]MappingOverride{}
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, eris.Wrap(err, "upload: parse mapping file")
	}
	for field := range overrides {
		if !knownField(field) {
			return nil, eris.Errorf("upload: mapping file references unknown field %q", field)
		}
	}
	return overrides, nil
}

// ApplyOverrides replaces auto-detected bindings with operator-supplied ones.
// An override with an empty column and no fixed value unmaps the field.
func ApplyOverrides(mappings []model.ColumnMapping, overrides map[string]MappingOverride) []model.ColumnMapping {
	out := make([]model.ColumnMapping, len(mappings))
	copy(out, mappings)
	for i, m := range out {
		o, ok := overrides[m.WillField]
		if !ok {
			continue
		}
		m.CSVColumn = nil
		if o.Column != "" {
			col := o.Column
			m.CSVColumn = &col
		}
		m.CombineWith = o.CombineWith
		m.Separator = o.Separator
		m.FixedValue = o.FixedValue
		out[i] = m
	}
	return out
}

func knownField(name string) bool {
	for _, f := range catalog {
		if f.Field == name {
			return true
		}
	}
	return false
}
