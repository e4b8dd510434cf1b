package importer

import (
	"fmt"
	"sort"
	"strings"
)

// Validate checks the union of observed column keys against the declared
// schema. It runs once per file, before any row is validated; any
// returned message is fatal for the whole run.
func (s ColumnSchema) Validate(observed map[string]bool) []string {
	var errs []string

	for _, col := range s.Required {
		if !observed[col] {
			errs = append(errs, fmt.Sprintf("Falta la columna requerida: %s", col))
		}
	}

	for _, group := range s.AnyOf {
		found := false
		for _, col := range group {
			if observed[col] {
				found = true
				break
			}
		}
		if !found {
			errs = append(errs, fmt.Sprintf("Debe incluir una de las columnas: %s", strings.Join(group, ", ")))
		}
	}

	if s.RejectUnknown {
		known := s.knownColumns()
		var unknown []string
		for col := range observed {
			if !known[col] {
				unknown = append(unknown, col)
			}
		}
		sort.Strings(unknown)
		for _, col := range unknown {
			errs = append(errs, fmt.Sprintf("Columna no reconocida: %s", col))
		}
	}

	return errs
}

func (s ColumnSchema) knownColumns() map[string]bool {
	known := make(map[string]bool)
	for _, col := range s.Required {
		known[col] = true
	}
	for _, group := range s.AnyOf {
		for _, col := range group {
			known[col] = true
		}
	}
	for _, col := range s.Optional {
		known[col] = true
	}
	return known
}

// Columns returns the declared column set in declaration order:
// required, any-of groups, then optional. Used for template downloads.
func (s ColumnSchema) Columns() []string {
	var cols []string
	seen := make(map[string]bool)
	add := func(c string) {
		if !seen[c] {
			seen[c] = true
			cols = append(cols, c)
		}
	}
	for _, c := range s.Required {
		add(c)
	}
	for _, group := range s.AnyOf {
		for _, c := range group {
			add(c)
		}
	}
	for _, c := range s.Optional {
		add(c)
	}
	return cols
}
