package modes_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bodegahq/importer/internal/importer"
	_ "github.com/bodegahq/importer/internal/importer/modes"
)

const (
	whMainID   = "7b0e1f7c-9a9e-4e0a-bb1a-111111111111"
	locAID     = "7b0e1f7c-9a9e-4e0a-bb1a-333333333333"
	catToolsID = "7b0e1f7c-9a9e-4e0a-bb1a-444444444444"
)

type memSink struct {
	rows    map[string][]map[string]any
	updates int
}

func newMemSink() *memSink {
	return &memSink{rows: make(map[string][]map[string]any)}
}

func (m *memSink) Insert(ctx context.Context, table string, rows []map[string]any) error {
	m.rows[table] = append(m.rows[table], rows...)
	return nil
}

func (m *memSink) Update(ctx context.Context, table string, id string, patch map[string]any) error {
	m.updates++
	return nil
}

type staticLoader struct {
	snap *importer.Snapshot
}

func (s staticLoader) Load(ctx context.Context) (*importer.Snapshot, error) {
	return s.snap, nil
}

func catalogSnapshot() *importer.Snapshot {
	return &importer.Snapshot{
		Products: []importer.ProductRef{
			{ID: "p1", SKU: "ABC123", Name: "Tornillo", PurchasePrice: 2.5},
			{ID: "p2", SKU: "DEF456", Name: "Tuerca", PurchasePrice: 1.0},
		},
		Warehouses:  []importer.NamedRef{{ID: whMainID, Name: "Principal"}},
		Locations:   []importer.NamedRef{{ID: locAID, Name: "Pasillo A"}},
		Categories:  []importer.NamedRef{{ID: catToolsID, Name: "Herramientas"}},
		SerialCodes: []string{"SN-EXISTS"},
	}
}

func runImport(t *testing.T, sink importer.Sink, modeKey, fileName, data string, params map[string]string) importer.Result {
	t.Helper()
	svc := importer.NewService(sink, staticLoader{snap: catalogSnapshot()}, importer.Options{})
	res, err := svc.RunImport(context.Background(), modeKey, fileName, []byte(data), params, nil)
	if err != nil {
		t.Fatalf("RunImport failed: %v", err)
	}
	return res
}

func wantMessages(t *testing.T, res importer.Result, want ...string) {
	t.Helper()
	if len(res.ErrorMessages) != len(want) {
		t.Fatalf("got %d errors %v, want %d", len(res.ErrorMessages), res.ErrorMessages, len(want))
	}
	for i, w := range want {
		if res.ErrorMessages[i] != w {
			t.Errorf("error %d = %q, want %q", i, res.ErrorMessages[i], w)
		}
	}
}

func TestModeCatalogRegistered(t *testing.T) {
	for _, key := range []string{"products", "locations", "inventory", "inventory_serial", "purchase_order_items"} {
		if _, ok := importer.Get(key); !ok {
			t.Errorf("mode %s not registered", key)
		}
	}
}

// --- products ---

func TestProducts_Import(t *testing.T) {
	sink := newMemSink()
	res := runImport(t, sink, "products", "productos.csv",
		"name,sku,category,min_stock,max_stock,purchase_price,status\n"+
			"Martillo,MAR001,Herramientas,5,50,12.50,activo\n"+
			"Destornillador,DES001,Herramientas,2,20,3,\n",
		nil)

	if res.Success != 2 || res.Errors != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}

	rows := sink.rows["products"]
	if len(rows) != 2 {
		t.Fatalf("expected 2 product rows, got %d", len(rows))
	}
	if rows[0]["category_id"] != catToolsID {
		t.Errorf("category not resolved: %v", rows[0]["category_id"])
	}
	// Absent status defaults to activo
	if rows[1]["status"] != "activo" {
		t.Errorf("status = %v, want activo", rows[1]["status"])
	}
}

func TestProducts_RowErrors(t *testing.T) {
	tests := []struct {
		name string
		csv  string
		want string
	}{
		{
			"missing name",
			"name,sku\n,SIN001\n",
			"Fila 2: Nombre requerido",
		},
		{
			"existing sku",
			"name,sku\nOtro tornillo,abc123\n",
			"Fila 2: SKU ya existe: ABC123",
		},
		{
			"duplicate sku in file",
			"name,sku\nUno,NEW001\nDos,new001\n",
			"Fila 3: SKU duplicado en el archivo: NEW001",
		},
		{
			"max below min",
			"name,min_stock,max_stock\nCosa,10,5\n",
			"Fila 2: El stock máximo no puede ser menor que el stock mínimo",
		},
		{
			"negative price",
			"name,purchase_price\nCosa,-1\n",
			"Fila 2: Precio de compra inválido: -1",
		},
		{
			"tax rate over 100",
			"name,tax_rate\nCosa,150\n",
			"Fila 2: Tasa de impuesto inválida: 150",
		},
		{
			"bad status",
			"name,status\nCosa,pausado\n",
			"Fila 2: Estado inválido: pausado",
		},
		{
			"unknown category",
			"name,category\nCosa,Juguetes\n",
			"Fila 2: Categoría no encontrada: Juguetes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runImport(t, newMemSink(), "products", "productos.csv", tt.csv, nil)
			wantMessages(t, res, tt.want)
		})
	}
}

func TestProducts_UnknownColumnFatal(t *testing.T) {
	sink := newMemSink()
	res := runImport(t, sink, "products", "productos.csv",
		"name,color\nCosa,rojo\n", nil)

	if res.Success != 0 {
		t.Errorf("success = %d, want 0", res.Success)
	}
	wantMessages(t, res, "Columna no reconocida: color")
	if len(sink.rows["products"]) != 0 {
		t.Error("no rows may be written when the schema gate trips")
	}
}

// --- locations ---

func TestLocations_Import(t *testing.T) {
	sink := newMemSink()
	res := runImport(t, sink, "locations", "ubicaciones.csv",
		"name,warehouse,description\nPasillo B,Principal,Estantería alta\n", nil)

	if res.Success != 1 || res.Errors != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	row := sink.rows["locations"][0]
	if row["warehouse_id"] != whMainID {
		t.Errorf("warehouse not resolved: %v", row["warehouse_id"])
	}
}

func TestLocations_RowErrors(t *testing.T) {
	tests := []struct {
		name string
		csv  string
		want string
	}{
		{
			"already exists",
			"name\npasillo a\n",
			"Fila 2: La ubicación ya existe: pasillo a",
		},
		{
			"duplicate in file",
			"name\nPasillo C\nPASILLO C\n",
			"Fila 3: Ubicación duplicada en el archivo: PASILLO C",
		},
		{
			"unknown warehouse",
			"name,warehouse\nPasillo C,Sur\n",
			"Fila 2: Almacén no encontrado: Sur",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runImport(t, newMemSink(), "locations", "ubicaciones.csv", tt.csv, nil)
			wantMessages(t, res, tt.want)
		})
	}
}

// --- inventory ---

func TestInventory_MixedOutcome(t *testing.T) {
	// Good row, unknown SKU on line 3, blank row silently dropped.
	sink := newMemSink()
	res := runImport(t, sink, "inventory", "stock.csv",
		"sku,quantity,warehouse\nABC123,5,Principal\nXXXX,3,Principal\n,,\n", nil)

	if res.Success != 1 {
		t.Errorf("success = %d, want 1", res.Success)
	}
	wantMessages(t, res, "Fila 3: SKU no encontrado: XXXX")

	row := sink.rows["inventory_movements"][0]
	if row["product_id"] != "p1" {
		t.Errorf("product_id = %v, want p1", row["product_id"])
	}
	if row["reference"] != "Stock inicial" {
		t.Errorf("reference = %v, want default", row["reference"])
	}
	// Absent unit cost falls back to the catalog purchase price
	if row["unit_cost"] != 2.5 {
		t.Errorf("unit_cost = %v, want 2.5", row["unit_cost"])
	}
	// Absent date is stamped at write time
	if _, ok := row["date"]; !ok {
		t.Error("expected a date on the written movement")
	}
}

func TestInventory_WarehouseGate(t *testing.T) {
	// Column absent entirely: fatal at the file level
	res := runImport(t, newMemSink(), "inventory", "stock.csv",
		"sku,quantity\nABC123,5\n", nil)
	wantMessages(t, res, "Debe incluir una de las columnas: warehouse, warehouse_id")

	// Column present but cell blank: row-level error
	res = runImport(t, newMemSink(), "inventory", "stock.csv",
		"sku,quantity,warehouse\nABC123,5,\n", nil)
	wantMessages(t, res, "Fila 2: Almacén requerido")
}

func TestInventory_RowErrors(t *testing.T) {
	tests := []struct {
		name string
		csv  string
		want string
	}{
		{
			"zero quantity",
			"sku,quantity,warehouse\nABC123,0,Principal\n",
			"Fila 2: Cantidad inválida: 0",
		},
		{
			"negative quantity",
			"sku,quantity,warehouse\nABC123,-2,Principal\n",
			"Fila 2: Cantidad inválida: -2",
		},
		{
			"bad date",
			"sku,quantity,warehouse,date\nABC123,5,Principal,ayer\n",
			"Fila 2: Fecha inválida: ayer",
		},
		{
			"bad warehouse id",
			"sku,quantity,warehouse_id\nABC123,5,not-a-uuid\n",
			"Fila 2: Identificador de almacén inválido: not-a-uuid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runImport(t, newMemSink(), "inventory", "stock.csv", tt.csv, nil)
			wantMessages(t, res, tt.want)
		})
	}
}

func TestInventory_ExcelSerialDate(t *testing.T) {
	sink := newMemSink()
	res := runImport(t, sink, "inventory", "stock.csv",
		"sku,quantity,warehouse,date\nABC123,5,Principal,45520\n", nil)
	if res.Errors != 0 {
		t.Fatalf("unexpected errors: %v", res.ErrorMessages)
	}

	row := sink.rows["inventory_movements"][0]
	date, ok := row["date"].(time.Time)
	if !ok {
		t.Fatalf("date has unexpected type %T", row["date"])
	}
	if got := date.Format("2006-01-02"); got != "2024-08-16" {
		t.Errorf("date = %s, want 2024-08-16", got)
	}
}

// --- inventory_serial ---

func TestInventorySerial_Import(t *testing.T) {
	sink := newMemSink()
	res := runImport(t, sink, "inventory_serial", "series.csv",
		"sku,serial_code,warehouse,location\nABC123,SN-100,Principal,Pasillo A\n", nil)

	if res.Success != 1 || res.Errors != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	row := sink.rows["inventory_serials"][0]
	if row["serial_code"] != "SN-100" {
		t.Errorf("serial_code = %v", row["serial_code"])
	}
	if row["location_id"] != locAID {
		t.Errorf("location not resolved: %v", row["location_id"])
	}
	if row["status"] != "disponible" {
		t.Errorf("status = %v, want disponible", row["status"])
	}
}

func TestInventorySerial_Duplicates(t *testing.T) {
	tests := []struct {
		name string
		csv  string
		want string
	}{
		{
			"existing code",
			"sku,serial_code,warehouse\nABC123,sn-exists,Principal\n",
			"Fila 2: El código de serie ya existe: SN-EXISTS",
		},
		{
			"duplicate in file",
			"sku,serial_code,warehouse\nABC123,SN-200,Principal\nDEF456,sn-200,Principal\n",
			"Fila 3: Código de serie duplicado en el archivo: SN-200",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runImport(t, newMemSink(), "inventory_serial", "series.csv", tt.csv, nil)
			wantMessages(t, res, tt.want)
		})
	}
}

// --- purchase_order_items ---

func TestPurchaseOrderItems_RequiresOrderID(t *testing.T) {
	res := runImport(t, newMemSink(), "purchase_order_items", "lineas.csv",
		"sku,quantity\nABC123,5\n", nil)
	wantMessages(t, res, "Falta el parámetro: order_id")
}

func TestPurchaseOrderItems_AggregatesBySKU(t *testing.T) {
	sink := newMemSink()
	params := map[string]string{"order_id": "po-77"}

	res := runImport(t, sink, "purchase_order_items", "lineas.csv",
		"sku,quantity,unit_price\nABC123,3,10\nDEF456,1,\nabc123,2,11\n", params)

	if res.Success != 2 || res.Errors != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}

	rows := sink.rows["purchase_order_items"]
	if len(rows) != 2 {
		t.Fatalf("expected 2 merged lines, got %d", len(rows))
	}

	var abc, def map[string]any
	for _, r := range rows {
		switch r["product_id"] {
		case "p1":
			abc = r
		case "p2":
			def = r
		}
	}
	if abc == nil || def == nil {
		t.Fatalf("missing expected lines: %v", rows)
	}

	// Repeated SKU lines merge: quantities sum, later unit price wins
	if abc["quantity"] != 5.0 {
		t.Errorf("quantity = %v, want 5", abc["quantity"])
	}
	if abc["unit_price"] != 11.0 {
		t.Errorf("unit_price = %v, want 11", abc["unit_price"])
	}
	if abc["order_id"] != "po-77" {
		t.Errorf("order_id = %v", abc["order_id"])
	}

	// Absent unit price defaults to the catalog purchase price
	if def["unit_price"] != 1.0 {
		t.Errorf("default unit_price = %v, want 1", def["unit_price"])
	}
}

func TestTemplateColumns(t *testing.T) {
	def, ok := importer.Get("inventory")
	if !ok {
		t.Fatal("inventory mode missing")
	}
	joined := strings.Join(def.Info.Columns, ",")
	if joined != "sku,quantity,warehouse,warehouse_id,location,location_id,reference,date,unit_cost" {
		t.Errorf("unexpected template columns: %s", joined)
	}
}
