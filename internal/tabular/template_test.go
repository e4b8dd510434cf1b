package tabular

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestBuildTemplate_CSV(t *testing.T) {
	tmpl, err := BuildTemplate("plantilla_inventory", []string{"sku", "quantity", "warehouse"}, "csv")
	if err != nil {
		t.Fatalf("BuildTemplate failed: %v", err)
	}

	if tmpl.ContentType != "text/csv" {
		t.Errorf("unexpected content type: %s", tmpl.ContentType)
	}
	if tmpl.FileName != "plantilla_inventory.csv" {
		t.Errorf("unexpected file name: %s", tmpl.FileName)
	}
	if got := string(tmpl.Data); got != "sku,quantity,warehouse\n" {
		t.Errorf("unexpected template content: %q", got)
	}
}

func TestBuildTemplate_XLSX(t *testing.T) {
	columns := []string{"sku", "quantity", "warehouse"}

	tmpl, err := BuildTemplate("plantilla_inventory", columns, "xlsx")
	if err != nil {
		t.Fatalf("BuildTemplate failed: %v", err)
	}
	if tmpl.FileName != "plantilla_inventory.xlsx" {
		t.Errorf("unexpected file name: %s", tmpl.FileName)
	}

	f, err := excelize.OpenReader(bytes.NewReader(tmpl.Data))
	if err != nil {
		t.Fatalf("generated workbook does not open: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Plantilla")
	if err != nil {
		t.Fatalf("reading template sheet: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 header row, got %d", len(rows))
	}
	for i, col := range columns {
		if rows[0][i] != col {
			t.Errorf("header %d: expected %q, got %q", i, col, rows[0][i])
		}
	}
}

func TestBuildTemplate_NoColumns(t *testing.T) {
	if _, err := BuildTemplate("x", nil, "csv"); err == nil {
		t.Fatal("expected error for empty column set")
	}
}

func TestParseExcel_RoundTrip(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Sheet1"
	f.SetCellValue(sheet, "A1", "sku")
	f.SetCellValue(sheet, "B1", "quantity")
	f.SetCellValue(sheet, "A2", "ABC123")
	f.SetCellValue(sheet, "B2", 5)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("writing workbook: %v", err)
	}

	res, err := Parse("stock.xlsx", buf.Bytes())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(res.Rows))
	}
	if res.Rows[0].Cells["sku"] != "ABC123" {
		t.Errorf("expected ABC123, got %v", res.Rows[0].Cells["sku"])
	}
}
