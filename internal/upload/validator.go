package upload

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/willregister/admin-cli/internal/model"
)

var (
	// Accepted date layouts: DD/MM/YYYY, YYYY-MM-DD, DD-MM-YYYY. Segments
	// are range-checked by the regex; calendar validity (month lengths,
	// leap years) is not.
	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^(0[1-9]|[12]\d|3[01])/(0[1-9]|1[0-2])/\d{4}$`),
		regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])-(0[1-9]|[12]\d|3[01])$`),
		regexp.MustCompile(`^(0[1-9]|[12]\d|3[01])-(0[1-9]|1[0-2])-\d{4}$`),
	}

	postcodePattern = regexp.MustCompile(`(?i)^[A-Z]{1,2}\d{1,2}[A-Z]?\s?\d[A-Z]{2}$`)
)

const dateSuggestion = "Use DD/MM/YYYY, YYYY-MM-DD or DD-MM-YYYY"

// ValidDate reports whether the value matches one of the accepted layouts.
func ValidDate(value string) bool {
	for _, p := range datePatterns {
		if p.MatchString(value) {
			return true
		}
	}
	return false
}

// ValidPostcode reports whether the value matches the UK postcode pattern.
func ValidPostcode(value string) bool {
	return postcodePattern.MatchString(value)
}

// NormalizePostcode uppercases, strips all whitespace, and re-inserts the
// single space before the inward code (last 3 characters) when long enough.
func NormalizePostcode(value string) string {
	compact := strings.ToUpper(strings.Join(strings.Fields(value), ""))
	if len(compact) >= 5 {
		return compact[:len(compact)-3] + " " + compact[len(compact)-3:]
	}
	return compact
}

// ValidateRow extracts and validates one raw row against the mappings,
// producing a fresh ValidatedRow. Resolved values are stored in Data even
// when invalid so they remain displayable and editable.
func ValidateRow(raw map[string]string, rowIndex int, mappings []model.ColumnMapping) model.ValidatedRow {
	labels := FieldLabels()
	data := make(map[string]string, len(mappings))
	var issues []model.ValidationIssue

	for _, m := range mappings {
		if m.CSVColumn == nil && len(m.CombineWith) == 0 && m.FixedValue == "" {
			if m.Required {
				issues = append(issues, model.ValidationIssue{
					Type:    model.IssueError,
					Field:   m.WillField,
					Message: fmt.Sprintf("%s has no mapped column", labels[m.WillField]),
				})
			}
			continue
		}

		value := resolveValue(raw, m)
		data[m.WillField] = value

		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			if m.Required {
				issues = append(issues, model.ValidationIssue{
					Type:    model.IssueError,
					Field:   m.WillField,
					Message: fmt.Sprintf("%s is required", labels[m.WillField]),
				})
			}
			continue
		}

		issues = append(issues, checkFieldRules(m.WillField, trimmed, labels)...)
	}

	return model.ValidatedRow{
		RowIndex: rowIndex,
		Status:   model.DeriveStatus(issues),
		Data:     data,
		Issues:   issues,
	}
}

// resolveValue applies the mapping's precedence: fixed value, then
// multi-column merge, then the single source cell.
func resolveValue(raw map[string]string, m model.ColumnMapping) string {
	if m.FixedValue != "" {
		return m.FixedValue
	}

	if len(m.CombineWith) > 0 {
		sep := m.Separator
		if sep == "" {
			sep = ", "
		}
		cols := m.CombineWith
		if m.CSVColumn != nil {
			cols = append([]string{*m.CSVColumn}, cols...)
		}
		var parts []string
		for _, col := range cols {
			if v := strings.TrimSpace(raw[col]); v != "" {
				parts = append(parts, v)
			}
		}
		return strings.Join(parts, sep)
	}

	if m.CSVColumn != nil {
		return raw[*m.CSVColumn]
	}
	return ""
}

func checkFieldRules(field, value string, labels map[string]string) []model.ValidationIssue {
	switch field {
	case "dob", "willDate":
		if !ValidDate(value) {
			return []model.ValidationIssue{{
				Type:       model.IssueError,
				Field:      field,
				Message:    fmt.Sprintf("%s %q is not a recognised date", labels[field], value),
				Suggestion: dateSuggestion,
			}}
		}
	case "postcode":
		if !ValidPostcode(value) {
			normalized := NormalizePostcode(value)
			if ValidPostcode(normalized) {
				return []model.ValidationIssue{{
					Type:       model.IssueWarning,
					Field:      field,
					Message:    fmt.Sprintf("Postcode %q is incorrectly formatted", value),
					Suggestion: normalized,
				}}
			}
			return []model.ValidationIssue{{
				Type:    model.IssueError,
				Field:   field,
				Message: fmt.Sprintf("Postcode %q is not a valid UK postcode", value),
			}}
		}
	case "testatorName":
		if len(strings.Fields(value)) < 2 {
			return []model.ValidationIssue{{
				Type:    model.IssueWarning,
				Field:   field,
				Message: fmt.Sprintf("Name %q looks incomplete (single word)", value),
			}}
		}
	}
	return nil
}

// Summary aggregates validation outcomes for a parsed row set.
type Summary struct {
	Total    int `json:"total"`
	Valid    int `json:"valid"`
	Warnings int `json:"warnings"`
	Errors   int `json:"errors"`
}

// ValidateRows validates every parsed row in order and returns the rows with
// their aggregate summary.
func ValidateRows(rows []map[string]string, mappings []model.ColumnMapping) ([]model.ValidatedRow, Summary) {
	validated := make([]model.ValidatedRow, 0, len(rows))
	var sum Summary
	for i, raw := range rows {
		vr := ValidateRow(raw, i, mappings)
		validated = append(validated, vr)
		sum.Total++
		switch vr.Status {
		case model.RowValid:
			sum.Valid++
		case model.RowWarning:
			sum.Warnings++
		case model.RowError:
			sum.Errors++
		}
	}
	return validated, sum
}

// ImportableRecords returns the data of rows eligible for import: every row
// whose status is not error, in original order.
func ImportableRecords(rows []model.ValidatedRow) []map[string]string {
	var records []map[string]string
	for _, r := range rows {
		if r.Status != model.RowError {
			records = append(records, r.Data)
		}
	}
	return records
}
