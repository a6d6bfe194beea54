package upload

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeOverrideFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mapping.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadOverrides(t *testing.T) {
	path := writeOverrideFile(t, `
testatorName:
  column: "Deceased"
address:
  column: "Addr 1"
  combine_with: ["Addr 2", "Town"]
  separator: " / "
willLocation:
  fixed_value: "Branch strongroom"
`)

	overrides, err := LoadOverrides(path)
	require.NoError(t, err)
	require.Len(t, overrides, 3)
	assert.Equal(t, "Deceased", overrides["testatorName"].Column)
	assert.Equal(t, []string{"Addr 2", "Town"}, overrides["address"].CombineWith)
	assert.Equal(t, "Branch strongroom", overrides["willLocation"].FixedValue)
}

func TestLoadOverrides_UnknownFieldRejected(t *testing.T) {
	path := writeOverrideFile(t, "favouriteColour:\n  column: \"Colour\"\n")

	_, err := LoadOverrides(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown field")
}

func TestApplyOverrides(t *testing.T) {
	mappings := DetectColumnMapping([]string{"Name", "DOB"})

	out := ApplyOverrides(mappings, map[string]MappingOverride{
		"testatorName": {Column: "Deceased"},
		"willLocation": {FixedValue: "Strongroom"},
	})

	byField := mappingsByField(out)
	require.NotNil(t, byField["testatorName"].CSVColumn)
	assert.Equal(t, "Deceased", *byField["testatorName"].CSVColumn)
	assert.Equal(t, "Strongroom", byField["willLocation"].FixedValue)
	assert.Nil(t, byField["willLocation"].CSVColumn)

	// Original slice untouched.
	orig := mappingsByField(mappings)
	require.NotNil(t, orig["testatorName"].CSVColumn)
	assert.Equal(t, "Name", *orig["testatorName"].CSVColumn)
}
