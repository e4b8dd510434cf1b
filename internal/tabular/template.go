package tabular

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Template holds a generated import template ready to be served.
type Template struct {
	Data        []byte
	ContentType string
	FileName    string
}

// BuildTemplate produces a downloadable template file with the given
// column headers. Format "xlsx" yields a styled workbook; anything that
// fails during workbook generation (and format "csv") falls back to plain
// CSV so a template is always available.
func BuildTemplate(name string, columns []string, format string) (*Template, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("no columns defined for template %q", name)
	}

	if strings.EqualFold(format, "xlsx") {
		if t, err := buildExcelTemplate(name, columns); err == nil {
			return t, nil
		}
	}
	return buildCSVTemplate(name, columns)
}

func buildExcelTemplate(name string, columns []string) (*Template, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Plantilla"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		return nil, err
	}

	for i, col := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return nil, err
		}
		colName, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(sheet, colName, colName, 18); err != nil {
			return nil, err
		}
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}

	return &Template{
		Data:        buf.Bytes(),
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		FileName:    name + ".xlsx",
	}, nil
}

func buildCSVTemplate(name string, columns []string) (*Template, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(columns); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	return &Template{
		Data:        buf.Bytes(),
		ContentType: "text/csv",
		FileName:    name + ".csv",
	}, nil
}
