package tabular

import (
	"bytes"
	"fmt"

	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"
)

// parseXLSX decodes the first worksheet of an OOXML workbook. Cells are
// read raw, so date cells arrive as Excel serial numbers rather than
// formatted strings; the importer's date coercion understands both.
func parseXLSX(data []byte) (*Result, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("no se pudo leer el archivo: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("el archivo no contiene hojas")
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("no se pudo leer la hoja %q: %v", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("el archivo está vacío")
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = CleanHeader(h)
	}

	res := &Result{Headers: headers}
	for i, record := range rows[1:] {
		cells := make(map[string]any, len(headers))
		for j, h := range headers {
			if h == "" {
				continue
			}
			// GetRows trims trailing empty cells per row
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

// parseXLS decodes the first worksheet of a legacy BIFF workbook, which
// excelize does not read. Same contract as parseXLSX: cells keyed by
// cleaned header text, values as raw strings.
func parseXLS(data []byte) (*Result, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("no se pudo leer el archivo: %v", err)
	}

	sh, err := wb.GetSheet(0)
	if err != nil {
		return nil, fmt.Errorf("el archivo no contiene hojas")
	}
	if sh.GetNumberRows() == 0 {
		return nil, fmt.Errorf("el archivo está vacío")
	}

	headerRow, err := sh.GetRow(0)
	if err != nil {
		return nil, fmt.Errorf("no se pudo leer el encabezado: %v", err)
	}
	var headers []string
	for _, cell := range headerRow.GetCols() {
		headers = append(headers, CleanHeader(cell.GetString()))
	}

	res := &Result{Headers: headers}
	for i := 1; i < sh.GetNumberRows(); i++ {
		r, err := sh.GetRow(i)
		if err != nil {
			continue
		}
		cells := make(map[string]any, len(headers))
		for j, h := range headers {
			if h == "" {
				continue
			}
			// BIFF rows store cells sparsely; a missing column is blank
			if cell, cerr := r.GetCol(j); cerr == nil {
				cells[h] = cell.GetString()
			} else {
				cells[h] = ""
			}
		}
		res.Rows = append(res.Rows, RawRow{Index: i - 1, Cells: cells})
	}

	return res, nil
}
