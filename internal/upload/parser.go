package upload

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/charmap"
)

var bomUTF8 = []byte{0xEF, 0xBB, 0xBF}

// ParseResult holds the parsed header row and the header-keyed records.
type ParseResult struct {
	Columns []string            `json:"columns"`
	Rows    []map[string]string `json:"rows"`
}

// ParseCSV parses CSV bytes into header-keyed row maps. A header row is
// required. Blank lines are skipped, ragged rows are padded or truncated to
// the header width, and a UTF-8 BOM is stripped. Input that is not valid
// UTF-8 is decoded as Windows-1252 before parsing.
func ParseCSV(data []byte) (*ParseResult, error) {
	data = bytes.TrimPrefix(data, bomUTF8)
	if !utf8.Valid(data) {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return nil, eris.Wrap(err, "upload: decode windows-1252")
		}
		data = decoded
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, eris.New("upload: empty file, no header row")
		}
		return nil, eris.Wrap(err, "upload: read header row")
	}
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	result := &ParseResult{Columns: headers}
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "upload: read row")
		}
		if isBlank(row) {
			continue
		}
		result.Rows = append(result.Rows, keyRow(headers, row))
	}
	return result, nil
}

// keyRow pairs each header with the corresponding cell. Short rows yield
// empty strings for the missing columns; extra cells are dropped.
func keyRow(headers, row []string) map[string]string {
	record := make(map[string]string, len(headers))
	for i, h := range headers {
		if i < len(row) {
			record[h] = row[i]
		} else {
			record[h] = ""
		}
	}
	return record
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
