// Package modes defines the import mode catalog: per-mode column
// schemas, row validators, and aggregation policy. Register the catalog
// with a blank import; the pipeline itself stays mode-agnostic.
package modes

import (
	"errors"
	"fmt"

	"github.com/bodegahq/importer/internal/importer"
)

func errf(row importer.Row, format string, args ...any) *importer.RowError {
	return &importer.RowError{Row: row.Number, Message: fmt.Sprintf(format, args...)}
}

// optionalDecimal parses an optional numeric cell. Absent cells return
// (nil, nil); present cells must parse and be >= min.
func optionalDecimal(row importer.Row, col, label string, min float64) (*float64, *importer.RowError) {
	if row.Str(col) == "" {
		return nil, nil
	}
	n, err := importer.ParseDecimal(row.Raw(col))
	if err != nil {
		return nil, errf(row, "%s inválido: %s", label, row.Str(col))
	}
	if n < min {
		return nil, errf(row, "%s inválido: %s", label, row.Str(col))
	}
	return &n, nil
}

// requiredQuantity parses a strictly positive quantity cell.
func requiredQuantity(row importer.Row, col string) (float64, *importer.RowError) {
	if row.Str(col) == "" {
		return 0, errf(row, "Cantidad requerida")
	}
	n, err := importer.ParseDecimal(row.Raw(col))
	if err != nil || n <= 0 {
		return 0, errf(row, "Cantidad inválida: %s", row.Str(col))
	}
	return n, nil
}

// resolveRef resolves an id-or-name reference pair against one reference
// table. The id column wins when present; see RefTable.Resolve. label
// names the entity for the bad-id message; notFound is the full unknown-
// reference prefix, gendered by the caller ("Categoría no encontrada").
// Returns ("", nil) when both columns are blank and the reference is
// optional for the mode.
func resolveRef(row importer.Row, table importer.RefTable, idCol, nameCol, label, notFound string) (string, *importer.RowError) {
	idVal, nameVal := row.Str(idCol), row.Str(nameCol)
	if idVal == "" && nameVal == "" {
		return "", nil
	}

	id, err := table.Resolve(idVal, nameVal)
	switch {
	case err == nil:
		return id, nil
	case errors.Is(err, importer.ErrBadRefID):
		return "", errf(row, "Identificador de %s inválido: %s", label, idVal)
	default:
		shown := nameVal
		if idVal != "" {
			shown = idVal
		}
		return "", errf(row, "%s: %s", notFound, shown)
	}
}
