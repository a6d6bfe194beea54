package upload

import (
	"strings"

	"github.com/willregister/admin-cli/internal/model"
)

// FixPreview is one proposed correction. Previews never mutate the row set;
// the caller must pass them back to ApplyFixes after explicit confirmation.
type FixPreview struct {
	RowIndex int    `json:"row_index"`
	Field    string `json:"field"`
	Before   string `json:"before"`
	After    string `json:"after"`
}

// PreviewPostcodeFix proposes a normalized postcode for every row whose
// issue list contains a postcode problem.
func PreviewPostcodeFix(rows []model.ValidatedRow) []FixPreview {
	var previews []FixPreview
	for _, row := range rows {
		if !hasIssueFor(row, "postcode") {
			continue
		}
		before := row.Data["postcode"]
		previews = append(previews, FixPreview{
			RowIndex: row.RowIndex,
			Field:    "postcode",
			Before:   before,
			After:    NormalizePostcode(before),
		})
	}
	return previews
}

// PreviewDateFix proposes a DD/MM correction for rows with a date issue,
// looking at dob first then willDate. The US-format heuristic: if the first
// slash segment exceeds 12 the value is already day-first and is left alone;
// if the second segment exceeds 12 the first two segments are swapped;
// otherwise the value is ambiguous and the fix is a no-op for that row.
func PreviewDateFix(rows []model.ValidatedRow) []FixPreview {
	var previews []FixPreview
	for _, row := range rows {
		field := ""
		for _, f := range []string{"dob", "willDate"} {
			if hasIssueFor(row, f) {
				field = f
				break
			}
		}
		if field == "" {
			continue
		}
		before := row.Data[field]
		previews = append(previews, FixPreview{
			RowIndex: row.RowIndex,
			Field:    field,
			Before:   before,
			After:    swapAmbiguousDate(before),
		})
	}
	return previews
}

// swapAmbiguousDate converts MM/DD/YYYY to DD/MM/YYYY when the segments make
// the US ordering unambiguous, and returns the input unchanged otherwise.
func swapAmbiguousDate(value string) string {
	parts := strings.Split(value, "/")
	if len(parts) != 3 {
		return value
	}
	first := atoiLoose(parts[0])
	second := atoiLoose(parts[1])
	if first > 12 {
		return value // already DD/MM
	}
	if second > 12 {
		return parts[1] + "/" + parts[0] + "/" + parts[2]
	}
	return value
}

func atoiLoose(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return -1
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// ApplyFixes overwrites each previewed field value and fully re-validates the
// touched rows against the current mappings. Issues are never patched in
// place. Rows not named by a preview are returned untouched.
func ApplyFixes(rows []model.ValidatedRow, previews []FixPreview, mappings []model.ColumnMapping) []model.ValidatedRow {
	byIndex := make(map[int][]FixPreview, len(previews))
	for _, p := range previews {
		byIndex[p.RowIndex] = append(byIndex[p.RowIndex], p)
	}

	out := make([]model.ValidatedRow, len(rows))
	for i, row := range rows {
		fixes, ok := byIndex[row.RowIndex]
		if !ok {
			out[i] = row
			continue
		}
		data := make(map[string]string, len(row.Data))
		for k, v := range row.Data {
			data[k] = v
		}
		for _, f := range fixes {
			data[f.Field] = f.After
		}
		out[i] = revalidateData(data, row.RowIndex, mappings)
	}
	return out
}

// revalidateData re-runs the row validator treating the (possibly fixed)
// field data as the source cells, using identity mappings so fixed values
// and merges already resolved in the first pass are preserved.
func revalidateData(data map[string]string, rowIndex int, mappings []model.ColumnMapping) model.ValidatedRow {
	identity := make([]model.ColumnMapping, 0, len(mappings))
	for _, m := range mappings {
		im := model.ColumnMapping{WillField: m.WillField, Required: m.Required}
		if _, present := data[m.WillField]; present {
			field := m.WillField
			im.CSVColumn = &field
		}
		identity = append(identity, im)
	}
	return ValidateRow(data, rowIndex, identity)
}

func hasIssueFor(row model.ValidatedRow, field string) bool {
	for _, is := range row.Issues {
		if is.Field == field {
			return true
		}
	}
	return false
}
