package upload

import (
	"strings"

	"github.com/willregister/admin-cli/internal/model"
)

// headerSynonyms maps each catalog field to the lower-cased header variants
// seen in firm exports. A column matches when its trimmed lower-cased header
// equals a synonym or contains one as a substring.
var headerSynonyms = map[string][]string{
	"testatorName":  {"testator name", "name", "client name", "full name", "testator", "client"},
	"dob":           {"dob", "date of birth", "birth date", "birthdate", "born"},
	"address":       {"address", "home address", "residence", "address line"},
	"postcode":      {"postcode", "post code", "postal code", "zip"},
	"willLocation":  {"will location", "location", "storage", "stored at", "location of will"},
	"solicitorName": {"solicitor name", "solicitor", "lawyer", "attorney", "fee earner"},
	"willDate":      {"will date", "date of will", "signed", "execution date", "date signed"},
	"executorName":  {"executor name", "executor", "executors"},
}

// DetectColumnMapping heuristically binds each catalog field to a source
// column. For each field the CSV columns are scanned in declaration order and
// the first header matching any synonym wins; unmatched fields get a nil
// column. Ambiguous headers can bind incorrectly, so every mapping stays
// operator-overridable before validation proceeds.
func DetectColumnMapping(columns []string) []model.ColumnMapping {
	mappings := make([]model.ColumnMapping, 0, len(catalog))
	for _, field := range catalog {
		m := model.ColumnMapping{
			WillField: field.Field,
			Required:  field.Required,
		}
		if col, ok := matchColumn(columns, headerSynonyms[field.Field]); ok {
			m.CSVColumn = &col
		}
		mappings = append(mappings, m)
	}
	return mappings
}

func matchColumn(columns, synonyms []string) (string, bool) {
	for _, col := range columns {
		header := strings.ToLower(strings.TrimSpace(col))
		for _, syn := range synonyms {
			if header == syn || strings.Contains(header, syn) {
				return col, true
			}
		}
	}
	return "", false
}

// MappingProblem describes a required field that cannot produce a value.
type MappingProblem struct {
	Field   string `json:"field"`
	Label   string `json:"label"`
	Message string `json:"message"`
}

// CheckMappings reports every required field with no source column and no
// fixed value. A non-empty result blocks progression to validation.
func CheckMappings(mappings []model.ColumnMapping) []MappingProblem {
	labels := FieldLabels()
	var problems []MappingProblem
	for _, m := range mappings {
		if m.Required && m.CSVColumn == nil && m.FixedValue == "" {
			problems = append(problems, MappingProblem{
				Field:   m.WillField,
				Label:   labels[m.WillField],
				Message: "required field has no mapped column or fixed value",
			})
		}
	}
	return problems
}
