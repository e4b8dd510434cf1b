package modes

import (
	"strings"

	"github.com/google/uuid"

	"github.com/bodegahq/importer/internal/importer"
)

func init() {
	importer.Register(productMode())
}

// productMode loads catalog products. It is the only mode that rejects
// unrecognized columns at the file level: a typoed header on a catalog
// load silently dropping a whole attribute is worse than a hard stop.
func productMode() importer.ModeDefinition {
	return importer.ModeDefinition{
		Info: importer.ModeInfo{
			Key:   "products",
			Label: "Productos",
			Table: "products",
		},
		Schema: importer.ColumnSchema{
			Required: []string{"name"},
			Optional: []string{
				"sku", "category", "category_id", "location", "location_id",
				"min_stock", "max_stock", "purchase_price", "sale_price",
				"tax_rate", "status",
			},
			RejectUnknown: true,
		},
		BuildEntry: buildProduct,
	}
}

func buildProduct(rc *importer.RunContext, row importer.Row) (*importer.Entry, *importer.RowError) {
	name := row.Str("name")
	if name == "" {
		return nil, errf(row, "Nombre requerido")
	}

	sku := importer.NormalizeKey(row.Str("sku"))
	if sku != "" {
		if rc.SeenKeys[sku] {
			return nil, errf(row, "SKU duplicado en el archivo: %s", sku)
		}
		if _, exists := rc.Index.ProductBySKU[sku]; exists {
			return nil, errf(row, "SKU ya existe: %s", sku)
		}
	}

	categoryID, rowErr := resolveRef(row, rc.Index.Categories, "category_id", "category", "categoría", "Categoría no encontrada")
	if rowErr != nil {
		return nil, rowErr
	}
	locationID, rowErr := resolveRef(row, rc.Index.Locations, "location_id", "location", "ubicación", "Ubicación no encontrada")
	if rowErr != nil {
		return nil, rowErr
	}

	minStock, rowErr := optionalDecimal(row, "min_stock", "Stock mínimo", 0)
	if rowErr != nil {
		return nil, rowErr
	}
	maxStock, rowErr := optionalDecimal(row, "max_stock", "Stock máximo", 0)
	if rowErr != nil {
		return nil, rowErr
	}
	if minStock != nil && maxStock != nil && *maxStock < *minStock {
		return nil, errf(row, "El stock máximo no puede ser menor que el stock mínimo")
	}

	purchasePrice, rowErr := optionalDecimal(row, "purchase_price", "Precio de compra", 0)
	if rowErr != nil {
		return nil, rowErr
	}
	salePrice, rowErr := optionalDecimal(row, "sale_price", "Precio de venta", 0)
	if rowErr != nil {
		return nil, rowErr
	}
	taxRate, rowErr := optionalDecimal(row, "tax_rate", "Tasa de impuesto", 0)
	if rowErr != nil {
		return nil, rowErr
	}
	if taxRate != nil && *taxRate > 100 {
		return nil, errf(row, "Tasa de impuesto inválida: %s", row.Str("tax_rate"))
	}

	status := strings.ToLower(row.Str("status"))
	switch status {
	case "":
		status = "activo"
	case "activo", "inactivo":
	default:
		return nil, errf(row, "Estado inválido: %s", row.Str("status"))
	}

	values := map[string]any{
		"id":     uuid.New().String(),
		"name":   name,
		"status": status,
	}
	if sku != "" {
		values["sku"] = sku
	}
	if categoryID != "" {
		values["category_id"] = categoryID
	}
	if locationID != "" {
		values["location_id"] = locationID
	}
	if minStock != nil {
		values["min_stock"] = *minStock
	}
	if maxStock != nil {
		values["max_stock"] = *maxStock
	}
	if purchasePrice != nil {
		values["purchase_price"] = *purchasePrice
	}
	if salePrice != nil {
		values["sale_price"] = *salePrice
	}
	if taxRate != nil {
		values["tax_rate"] = *taxRate
	}

	key := sku
	if key == "" {
		key = name
	}
	if sku != "" {
		rc.SeenKeys[sku] = true
	}

	return &importer.Entry{RowNumber: row.Number, Key: key, Values: values}, nil
}
