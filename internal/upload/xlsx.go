package upload

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ParseXLSX reads the first sheet of an XLSX workbook into the same
// header-keyed shape as ParseCSV. The first row is the header; blank rows
// are skipped.
func ParseXLSX(path string) (*ParseResult, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "upload: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("upload: xlsx has no sheets")
	}

	sheet := f.Sheets[0]
	var headers []string
	result := &ParseResult{}

	for i, row := range sheet.Rows {
		cells := make([]string, 0, len(row.Cells))
		for _, c := range row.Cells {
			cells = append(cells, c.String())
		}
		if i == 0 {
			for _, h := range cells {
				headers = append(headers, strings.TrimSpace(h))
			}
			result.Columns = headers
			continue
		}
		if isBlank(cells) {
			continue
		}
		result.Rows = append(result.Rows, keyRow(headers, cells))
	}

	if headers == nil {
		return nil, eris.New("upload: empty sheet, no header row")
	}
	return result, nil
}
