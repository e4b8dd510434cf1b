package modes

import (
	"strings"

	"github.com/google/uuid"

	"github.com/bodegahq/importer/internal/importer"
)

func init() {
	importer.Register(locationMode())
}

func locationMode() importer.ModeDefinition {
	return importer.ModeDefinition{
		Info: importer.ModeInfo{
			Key:   "locations",
			Label: "Ubicaciones",
			Table: "locations",
		},
		Schema: importer.ColumnSchema{
			Required: []string{"name"},
			Optional: []string{"warehouse", "warehouse_id", "description"},
		},
		BuildEntry: buildLocation,
	}
}

func buildLocation(rc *importer.RunContext, row importer.Row) (*importer.Entry, *importer.RowError) {
	name := row.Str("name")
	if name == "" {
		return nil, errf(row, "Nombre requerido")
	}

	// Location names are compared case-insensitively, same as resolution.
	key := strings.ToLower(name)
	if rc.SeenKeys[key] {
		return nil, errf(row, "Ubicación duplicada en el archivo: %s", name)
	}
	if _, exists := rc.Index.Locations.ResolveName(name); exists {
		return nil, errf(row, "La ubicación ya existe: %s", name)
	}

	warehouseID, rowErr := resolveRef(row, rc.Index.Warehouses, "warehouse_id", "warehouse", "almacén", "Almacén no encontrado")
	if rowErr != nil {
		return nil, rowErr
	}

	values := map[string]any{
		"id":   uuid.New().String(),
		"name": name,
	}
	if warehouseID != "" {
		values["warehouse_id"] = warehouseID
	}
	if desc := row.Str("description"); desc != "" {
		values["description"] = desc
	}

	rc.SeenKeys[key] = true

	return &importer.Entry{RowNumber: row.Number, Key: name, Values: values}, nil
}
