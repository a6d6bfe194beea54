package model

// FieldType describes how a target field's value is interpreted.
type FieldType string

const (
	FieldTypeText   FieldType = "text"
	FieldTypeDate   FieldType = "date"
	FieldTypeSelect FieldType = "select"
)

// TargetField is one field a bulk-upload row must ultimately populate.
// The field catalog is static and defined once.
type TargetField struct {
	Field    string    `json:"field"`
	Label    string    `json:"label"`
	Required bool      `json:"required"`
	Type     FieldType `json:"type"`
	Options  []string  `json:"options,omitempty"` // select fields only
}

// ColumnMapping binds one target field to its source in the uploaded file.
// A nil CSVColumn with no FixedValue means the field is unmapped.
type ColumnMapping struct {
	CSVColumn   *string  `json:"csv_column"`
	CombineWith []string `json:"combine_with,omitempty"`
	Separator   string   `json:"separator,omitempty"`
	FixedValue  string   `json:"fixed_value,omitempty"`
	WillField   string   `json:"will_field"`
	Required    bool     `json:"required"`
}

// IssueType classifies a validation issue.
type IssueType string

const (
	IssueError   IssueType = "error"
	IssueWarning IssueType = "warning"
)

// ValidationIssue is one problem found while validating a row's field.
type ValidationIssue struct {
	Type       IssueType `json:"type"`
	Field      string    `json:"field"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
}

// RowStatus is the overall classification of a validated row.
type RowStatus string

const (
	RowValid   RowStatus = "valid"
	RowWarning RowStatus = "warning"
	RowError   RowStatus = "error"
)

// ValidatedRow is the outcome of validating one parsed row against the
// current mappings. RowIndex is the row's original position and is stable
// across re-validation; everything else is recomputed from scratch.
type ValidatedRow struct {
	RowIndex int               `json:"row_index"`
	Status   RowStatus         `json:"status"`
	Data     map[string]string `json:"data"`
	Issues   []ValidationIssue `json:"issues"`
}

// DeriveStatus computes the row status from its issues: any error-type issue
// makes the row an error, otherwise any warning makes it a warning.
func DeriveStatus(issues []ValidationIssue) RowStatus {
	status := RowValid
	for _, is := range issues {
		if is.Type == IssueError {
			return RowError
		}
		status = RowWarning
	}
	return status
}
