// Package upload implements the bulk-upload pipeline: file parsing, column
// mapping detection, row validation, and batch fixes for recognised error
// classes. Everything here is pure with respect to its inputs; persistence
// happens downstream in the job runner.
package upload

import "github.com/willregister/admin-cli/internal/model"

// catalog is the static list of target fields a row must populate, in the
// order they appear in review screens and exports.
var catalog = []model.TargetField{
	{Field: "testatorName", Label: "Testator Name", Required: true, Type: model.FieldTypeText},
	{Field: "dob", Label: "Date of Birth", Required: true, Type: model.FieldTypeDate},
	{Field: "address", Label: "Address", Required: true, Type: model.FieldTypeText},
	{Field: "postcode", Label: "Postcode", Required: true, Type: model.FieldTypeText},
	{Field: "willLocation", Label: "Will Location", Required: true, Type: model.FieldTypeText},
	{Field: "solicitorName", Label: "Solicitor Name", Required: false, Type: model.FieldTypeText},
	{Field: "willDate", Label: "Will Date", Required: false, Type: model.FieldTypeDate},
	{Field: "executorName", Label: "Executor Name", Required: false, Type: model.FieldTypeText},
}

// Catalog returns the target field catalog in display order.
func Catalog() []model.TargetField {
	out := make([]model.TargetField, len(catalog))
	copy(out, catalog)
	return out
}

// FieldLabels returns the catalog labels keyed by field name.
func FieldLabels() map[string]string {
	labels := make(map[string]string, len(catalog))
	for _, f := range catalog {
		labels[f.Field] = f.Label
	}
	return labels
}
