package upload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willregister/admin-cli/internal/model"
)

// fullMappings binds every catalog field to a same-named source column.
func fullMappings() []model.ColumnMapping {
	var mappings []model.ColumnMapping
	for _, f := range Catalog() {
		col := f.Field
		mappings = append(mappings, model.ColumnMapping{
			CSVColumn: &col,
			WillField: f.Field,
			Required:  f.Required,
		})
	}
	return mappings
}

func validRow() map[string]string {
	return map[string]string{
		"testatorName":  "John Smith",
		"dob":           "15/03/1952",
		"address":       "12 Harbour Lane, Bristol",
		"postcode":      "BS1 4DJ",
		"willLocation":  "Office safe",
		"solicitorName": "Sarah Jones",
		"willDate":      "02/11/2019",
		"executorName":  "Mary Smith",
	}
}

func TestValidateRow_AllValid(t *testing.T) {
	mappings := fullMappings()
	for i := 0; i < 3; i++ {
		vr := ValidateRow(validRow(), i, mappings)
		assert.Equal(t, model.RowValid, vr.Status)
		assert.Empty(t, vr.Issues)
		assert.Equal(t, i, vr.RowIndex)
		assert.Equal(t, "John Smith", vr.Data["testatorName"])
	}
}

func TestValidateRow_RequiredFieldEmpty(t *testing.T) {
	row := validRow()
	row["postcode"] = "  "

	vr := ValidateRow(row, 0, fullMappings())
	require.Equal(t, model.RowError, vr.Status)
	require.Len(t, vr.Issues, 1)
	assert.Equal(t, model.IssueError, vr.Issues[0].Type)
	assert.Equal(t, "postcode", vr.Issues[0].Field)
}

func TestValidateRow_UnmappedRequiredField(t *testing.T) {
	mappings := fullMappings()
	for i := range mappings {
		if mappings[i].WillField == "address" {
			mappings[i].CSVColumn = nil
		}
	}

	vr := ValidateRow(validRow(), 0, mappings)
	require.Equal(t, model.RowError, vr.Status)
	_, present := vr.Data["address"]
	assert.False(t, present, "no value stored for an unmapped field")
}

func TestValidateRow_DateFormats(t *testing.T) {
	mappings := fullMappings()

	// Day > 12 in DD/MM position is fine.
	row := validRow()
	row["dob"] = "13/05/1990"
	vr := ValidateRow(row, 0, mappings)
	assert.Equal(t, model.RowValid, vr.Status)

	// ISO and dashed forms accepted.
	for _, d := range []string{"1990-05-13", "13-05-1990"} {
		row["dob"] = d
		vr = ValidateRow(row, 0, mappings)
		assert.Equal(t, model.RowValid, vr.Status, "dob %s", d)
	}

	// US ordering has a month segment of 13 and fails with the format
	// suggestion.
	row["dob"] = "05/13/1990"
	vr = ValidateRow(row, 0, mappings)
	require.Equal(t, model.RowError, vr.Status)
	require.Len(t, vr.Issues, 1)
	assert.Equal(t, dateSuggestion, vr.Issues[0].Suggestion)

	row["dob"] = "13 May 1990"
	vr = ValidateRow(row, 0, mappings)
	assert.Equal(t, model.RowError, vr.Status)
}

func TestValidateRow_PostcodeFixableIsWarning(t *testing.T) {
	row := validRow()
	row["postcode"] = "SW1A1AA"

	vr := ValidateRow(row, 0, fullMappings())
	require.Equal(t, model.RowWarning, vr.Status)
	require.Len(t, vr.Issues, 1)
	assert.Equal(t, model.IssueWarning, vr.Issues[0].Type)
	assert.Equal(t, "SW1A 1AA", vr.Issues[0].Suggestion)
}

func TestValidateRow_PostcodeInvalidIsError(t *testing.T) {
	row := validRow()
	row["postcode"] = "NOT A CODE"

	vr := ValidateRow(row, 0, fullMappings())
	require.Equal(t, model.RowError, vr.Status)
	require.Len(t, vr.Issues, 1)
	assert.Equal(t, model.IssueError, vr.Issues[0].Type)
	assert.Empty(t, vr.Issues[0].Suggestion)
}

func TestValidateRow_ShortNameIsWarning(t *testing.T) {
	row := validRow()
	row["testatorName"] = "Smith"

	vr := ValidateRow(row, 0, fullMappings())
	assert.Equal(t, model.RowWarning, vr.Status)
}

func TestValidateRow_FixedValueTakesPrecedence(t *testing.T) {
	mappings := fullMappings()
	for i := range mappings {
		if mappings[i].WillField == "willLocation" {
			mappings[i].FixedValue = "Strongroom"
		}
	}
	row := validRow()
	row["willLocation"] = "shelf"

	vr := ValidateRow(row, 0, mappings)
	assert.Equal(t, "Strongroom", vr.Data["willLocation"])
}

func TestValidateRow_CombineColumns(t *testing.T) {
	mappings := fullMappings()
	for i := range mappings {
		if mappings[i].WillField == "address" {
			col := "addr1"
			mappings[i].CSVColumn = &col
			mappings[i].CombineWith = []string{"addr2", "city"}
		}
	}
	row := validRow()
	row["addr1"] = "12 Harbour Lane"
	row["addr2"] = ""
	row["city"] = "Bristol"

	vr := ValidateRow(row, 0, mappings)
	assert.Equal(t, "12 Harbour Lane, Bristol", vr.Data["address"], "empty parts skipped, default separator")
}

func TestValidateRow_Idempotent(t *testing.T) {
	row := validRow()
	row["postcode"] = "SW1A1AA"
	mappings := fullMappings()

	first := ValidateRow(row, 4, mappings)
	second := ValidateRow(row, 4, mappings)
	assert.Equal(t, first, second)
}

func TestValidateRows_Summary(t *testing.T) {
	warn := validRow()
	warn["postcode"] = "SW1A1AA"
	bad := validRow()
	bad["dob"] = "someday"

	rows, summary := ValidateRows([]map[string]string{validRow(), warn, bad}, fullMappings())
	require.Len(t, rows, 3)
	assert.Equal(t, Summary{Total: 3, Valid: 1, Warnings: 1, Errors: 1}, summary)
}

func TestImportableRecords_ExcludesErrors(t *testing.T) {
	warn := validRow()
	warn["postcode"] = "SW1A1AA"
	bad := validRow()
	bad["dob"] = "someday"

	rows, _ := ValidateRows([]map[string]string{validRow(), warn, bad}, fullMappings())
	records := ImportableRecords(rows)
	assert.Len(t, records, 2, "warnings import, errors do not")
}

func TestNormalizePostcode(t *testing.T) {
	assert.Equal(t, "SW1A 1AA", NormalizePostcode("sw1a1aa"))
	assert.Equal(t, "BS1 4DJ", NormalizePostcode(" bs1  4dj "))
	assert.Equal(t, "M1", NormalizePostcode("m1"), "short values get no space")
}

func TestDeriveStatus(t *testing.T) {
	assert.Equal(t, model.RowValid, model.DeriveStatus(nil))
	assert.Equal(t, model.RowWarning, model.DeriveStatus([]model.ValidationIssue{{Type: model.IssueWarning}}))
	assert.Equal(t, model.RowError, model.DeriveStatus([]model.ValidationIssue{
		{Type: model.IssueWarning}, {Type: model.IssueError},
	}))
}
