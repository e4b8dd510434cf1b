// Package tabular decodes spreadsheet and delimited-text files into raw
// rows keyed by column header, independent of the origin format.
package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// RawRow is one physical data row. Index is the 0-based position in the
// data region (the rows after the header), so the user-facing spreadsheet
// line is Index + 2. Cells maps the original header text to the raw cell
// value; headers missing a value map to "".
type RawRow struct {
	Index int
	Cells map[string]any
}

// Result is the outcome of decoding one file. RowErrors are non-fatal
// parser-level problems (malformed CSV records) already formatted for the
// final report; they never abort the run.
type Result struct {
	Headers   []string
	Rows      []RawRow
	RowErrors []string
}

// Parse decodes a file into raw rows, dispatching on the file extension.
// A returned error is file-level and fatal: nothing was decoded.
func Parse(fileName string, data []byte) (*Result, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		return parseCSV(data)
	case ".xlsx":
		return parseXLSX(data)
	case ".xls":
		return parseXLS(data)
	default:
		return nil, fmt.Errorf("formato de archivo no soportado: %s (use .csv, .xlsx o .xls)", filepath.Ext(fileName))
	}
}

// parseCSV decodes delimited text with a header row. Malformed records are
// collected as row errors with their approximate line number; decoding
// continues with the next record.
func parseCSV(data []byte) (*Result, error) {
	data = sanitizeUTF8(data)

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, errors.New("el archivo está vacío")
	}
	if err != nil {
		return nil, fmt.Errorf("no se pudo leer el encabezado: %v", err)
	}

	headers := make([]string, len(header))
	for i, h := range header {
		headers[i] = CleanHeader(h)
	}

	res := &Result{Headers: headers}
	for i := 0; ; i++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			line := i + 2
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				line = perr.Line
			}
			res.RowErrors = append(res.RowErrors, fmt.Sprintf("Fila %d: registro CSV malformado: %v", line, err))
			continue
		}

		cells := make(map[string]any, len(headers))
		for j, h := range headers {
			if h == "" {
				continue
			}
			if j < len(record) {
				cells[h] = record[j]
			} else {
				cells[h] = ""
			}
		}
		res.Rows = append(res.Rows, RawRow{Index: i, Cells: cells})
	}

	return res, nil
}

// CleanHeader strips artifacts spreadsheet tools leave in header cells:
// byte-order marks, surrounding whitespace, and Excel's ="..." formula
// wrapper.
func CleanHeader(s string) string {
	s = strings.TrimPrefix(s, "\uFEFF")
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}
	return strings.TrimSpace(s)
}

// sanitizeUTF8 replaces invalid byte sequences with the Unicode
// replacement character so the CSV reader never chokes on encoding noise.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('�')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}
