package modes

import (
	"github.com/google/uuid"

	"github.com/bodegahq/importer/internal/importer"
)

func init() {
	importer.Register(purchaseOrderItemsMode())
}

// purchaseOrderItemsMode loads lines into an existing purchase order,
// identified by the order_id run parameter. Rows for the same product are
// merged into one line with their quantities summed, because the order
// schema allows one line per product.
func purchaseOrderItemsMode() importer.ModeDefinition {
	return importer.ModeDefinition{
		Info: importer.ModeInfo{
			Key:   "purchase_order_items",
			Label: "Líneas de orden de compra",
			Table: "purchase_order_items",
		},
		Schema: importer.ColumnSchema{
			Required: []string{"sku", "quantity"},
			Optional: []string{"unit_price"},
		},
		RequiredParams: []string{"order_id"},
		BuildEntry:     buildOrderItem,
		Aggregate:      true,
		SumColumns:     []string{"quantity"},
	}
}

func buildOrderItem(rc *importer.RunContext, row importer.Row) (*importer.Entry, *importer.RowError) {
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

	unitPrice, rowErr := optionalDecimal(row, "unit_price", "Precio unitario", 0)
	if rowErr != nil {
		return nil, rowErr
	}
	price := product.PurchasePrice
	if unitPrice != nil {
		price = *unitPrice
	}

	values := map[string]any{
		"id":         uuid.New().String(),
		"order_id":   rc.Params["order_id"],
		"product_id": product.ID,
		"quantity":   quantity,
		"unit_price": price,
	}

	// Aggregation key is the resolved product, not the raw SKU text, so
	// "abc123" and "ABC123 " merge into the same line.
	return &importer.Entry{RowNumber: row.Number, Key: product.ID, Values: values}, nil
}
