package modes

import (
	"github.com/google/uuid"

	"github.com/bodegahq/importer/internal/importer"
)

func init() {
	importer.Register(inventoryMode())
	importer.Register(inventorySerialMode())
}

// inventoryMode loads initial stock as entry movements, one per row.
func inventoryMode() importer.ModeDefinition {
	return importer.ModeDefinition{
		Info: importer.ModeInfo{
			Key:   "inventory",
			Label: "Inventario",
			Table: "inventory_movements",
		},
		Schema: importer.ColumnSchema{
			Required: []string{"sku", "quantity"},
			AnyOf:    [][]string{{"warehouse", "warehouse_id"}},
			Optional: []string{"location", "location_id", "reference", "date", "unit_cost"},
		},
		BuildEntry: buildMovement,
		Finalize:   stampMissingDate,
	}
}

// inventorySerialMode loads serialized stock: every row is one physical
// unit identified by its serial code.
func inventorySerialMode() importer.ModeDefinition {
	return importer.ModeDefinition{
		Info: importer.ModeInfo{
			Key:   "inventory_serial",
			Label: "Inventario serializado",
			Table: "inventory_serials",
		},
		Schema: importer.ColumnSchema{
			Required: []string{"sku", "serial_code"},
			AnyOf:    [][]string{{"warehouse", "warehouse_id"}},
			Optional: []string{"location", "location_id"},
		},
		BuildEntry: buildSerial,
	}
}

func buildMovement(rc *importer.RunContext, row importer.Row) (*importer.Entry, *importer.RowError) {
	sku := importer.NormalizeKey(row.Str("sku"))
	if sku == "" {
		return nil, errf(row, "SKU requerido")
	}
	product, ok := rc.Index.ProductBySKU[sku]
	if !ok {
		return nil, errf(row, "SKU no encontrado: %s", sku)
	}

	quantity, rowErr := requiredQuantity(row, "quantity")
	if rowErr != nil {
		return nil, rowErr
	}

	warehouseID, rowErr := resolveRef(row, rc.Index.Warehouses, "warehouse_id", "warehouse", "almacén", "Almacén no encontrado")
	if rowErr != nil {
		return nil, rowErr
	}
	if warehouseID == "" {
		return nil, errf(row, "Almacén requerido")
	}

	locationID, rowErr := resolveRef(row, rc.Index.Locations, "location_id", "location", "ubicación", "Ubicación no encontrada")
	if rowErr != nil {
		return nil, rowErr
	}

	unitCost, rowErr := optionalDecimal(row, "unit_cost", "Costo unitario", 0)
	if rowErr != nil {
		return nil, rowErr
	}

	reference := row.Str("reference")
	if reference == "" {
		reference = "Stock inicial"
	}

	values := map[string]any{
		"id":            uuid.New().String(),
		"product_id":    product.ID,
		"movement_type": "entrada",
		"quantity":      quantity,
		"warehouse_id":  warehouseID,
		"reference":     reference,
	}
	if locationID != "" {
		values["location_id"] = locationID
	}
	if unitCost != nil {
		values["unit_cost"] = *unitCost
	} else if product.PurchasePrice > 0 {
		values["unit_cost"] = product.PurchasePrice
	}

	switch date, status := importer.CoerceDate(row.Raw("date")); status {
	case importer.DateValid:
		values["date"] = date
	case importer.DateInvalid:
		return nil, errf(row, "Fecha inválida: %s", row.Str("date"))
	}

	return &importer.Entry{RowNumber: row.Number, Key: sku, Values: values}, nil
}

func buildSerial(rc *importer.RunContext, row importer.Row) (*importer.Entry, *importer.RowError) {
	sku := importer.NormalizeKey(row.Str("sku"))
	if sku == "" {
		return nil, errf(row, "SKU requerido")
	}
	product, ok := rc.Index.ProductBySKU[sku]
	if !ok {
		return nil, errf(row, "SKU no encontrado: %s", sku)
	}

	serial := importer.NormalizeKey(row.Str("serial_code"))
	if serial == "" {
		return nil, errf(row, "Código de serie requerido")
	}
	if rc.SeenKeys[serial] {
		return nil, errf(row, "Código de serie duplicado en el archivo: %s", serial)
	}
	if rc.Index.SerialCodes[serial] {
		return nil, errf(row, "El código de serie ya existe: %s", serial)
	}

	warehouseID, rowErr := resolveRef(row, rc.Index.Warehouses, "warehouse_id", "warehouse", "almacén", "Almacén no encontrado")
	if rowErr != nil {
		return nil, rowErr
	}
	if warehouseID == "" {
		return nil, errf(row, "Almacén requerido")
	}

	locationID, rowErr := resolveRef(row, rc.Index.Locations, "location_id", "location", "ubicación", "Ubicación no encontrada")
	if rowErr != nil {
		return nil, rowErr
	}

	values := map[string]any{
		"id":           uuid.New().String(),
		"product_id":   product.ID,
		"serial_code":  serial,
		"warehouse_id": warehouseID,
		"status":       "disponible",
	}
	if locationID != "" {
		values["location_id"] = locationID
	}

	rc.SeenKeys[serial] = true

	return &importer.Entry{RowNumber: row.Number, Key: serial, Values: values}, nil
}

// stampMissingDate fills the movement date at write time so a long
// validation phase cannot backdate entries created near midnight.
func stampMissingDate(e *importer.Entry) {
	if _, ok := e.Values["date"]; !ok {
		e.Values["date"] = importer.LocalToday()
	}
}
