package upload

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/willregister/admin-cli/internal/model"
)

// templateSamples are the fixed example rows shipped in the downloadable
// upload template.
var templateSamples = [][]string{
	{"John Smith", "15/03/1952", "12 Harbour Lane, Bristol", "BS1 4DJ", "Office safe, branch 2", "Sarah Jones", "02/11/2019", "Mary Smith"},
	{"Patricia Williams", "30/07/1948", "4 Elm Court, Leeds", "LS2 8JT", "Deeds room", "David Brown", "14-05-2021", "Peter Williams"},
	{"Ahmed Khan", "1960-01-22", "88 Victoria Road, Manchester", "M14 5TQ", "Strongroom box 114", "Sarah Jones", "09/09/2023", "Yusuf Khan"},
}

// WriteTemplateCSV writes the upload template: catalog labels as headers plus
// the fixed sample rows.
func WriteTemplateCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	headers := make([]string, 0, len(catalog))
	for _, f := range catalog {
		headers = append(headers, f.Label)
	}
	if err := cw.Write(headers); err != nil {
		return eris.Wrap(err, "upload: write template header")
	}
	for _, row := range templateSamples {
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "upload: write template row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "upload: flush template")
}

// errorExportHeader is the column set of the rejected-rows export.
var errorExportHeader = []string{
	"testatorName", "dob", "address", "postcode", "willLocation",
	"solicitorName", "willDate", "executorName", "Error_Reason", "Row_Number_Original",
}

// WriteErrorExportCSV writes one row per error-classified validated row, with
// every catalog value, the joined error reasons, and the original row number.
func WriteErrorExportCSV(w io.Writer, rows []model.ValidatedRow) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(errorExportHeader); err != nil {
		return 0, eris.Wrap(err, "upload: write error export header")
	}

	written := 0
	for _, row := range rows {
		if row.Status != model.RowError {
			continue
		}
		var reasons []string
		for _, is := range row.Issues {
			if is.Type == model.IssueError {
				reasons = append(reasons, is.Message)
			}
		}
		record := []string{
			row.Data["testatorName"], row.Data["dob"], row.Data["address"], row.Data["postcode"],
			row.Data["willLocation"], row.Data["solicitorName"], row.Data["willDate"], row.Data["executorName"],
			strings.Join(reasons, "; "),
			strconv.Itoa(row.RowIndex + 1),
		}
		if err := cw.Write(record); err != nil {
			return written, eris.Wrap(err, "upload: write error export row")
		}
		written++
	}
	cw.Flush()
	return written, eris.Wrap(cw.Error(), "upload: flush error export")
}

// WriteFailedRecordsCSV writes a job's per-record persistence failures.
func WriteFailedRecordsCSV(w io.Writer, errs []model.RecordError) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Row", "Reason", "Testator Name", "DOB", "Address", "Postcode"}); err != nil {
		return eris.Wrap(err, "upload: write failed records header")
	}
	for _, e := range errs {
		record := []string{
			strconv.Itoa(e.Row),
			e.Reason,
			e.Data["testatorName"], e.Data["dob"], e.Data["address"], e.Data["postcode"],
		}
		if err := cw.Write(record); err != nil {
			return eris.Wrap(err, "upload: write failed records row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "upload: flush failed records")
}
