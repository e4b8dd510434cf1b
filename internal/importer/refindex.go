package importer

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Resolution failures. ErrRefNotFound covers both an unknown name and a
// syntactically valid id that is not in the snapshot: an id the system
// has never seen must not be accepted just because it parses.
var (
	ErrRefNotFound = errors.New("referencia no encontrada")
	ErrBadRefID    = errors.New("identificador inválido")
)

// ProductRef is one catalog product as seen at the start of the run.
type ProductRef struct {
	ID            string
	SKU           string
	Name          string
	PurchasePrice float64
}

// NamedRef is an entity resolvable by name or id (warehouse, location,
// category).
type NamedRef struct {
	ID   string
	Name string
}

// Snapshot is the reference data captured once at the start of a run.
type Snapshot struct {
	Products    []ProductRef
	Warehouses  []NamedRef
	Locations   []NamedRef
	Categories  []NamedRef
	SerialCodes []string
}

// RefTable indexes one entity kind for resolution by name or id.
type RefTable struct {
	byName map[string]string
	ids    map[string]bool
}

// RefIndex is the read-only lookup structure a run resolves against. It
// is built once per run and never mutated afterwards; anything created
// mid-run goes into RunContext, not here.
type RefIndex struct {
	ProductBySKU map[string]ProductRef
	Warehouses   RefTable
	Locations    RefTable
	Categories   RefTable
	SerialCodes  map[string]bool
}

// BuildIndex constructs the run-scoped index from a snapshot. Entities
// sharing a name collapse last-write-wins, mirroring the system's own
// lack of name-collision detection; no ambiguity error is raised.
func BuildIndex(s *Snapshot) *RefIndex {
	idx := &RefIndex{
		ProductBySKU: make(map[string]ProductRef, len(s.Products)),
		Warehouses:   newRefTable(s.Warehouses),
		Locations:    newRefTable(s.Locations),
		Categories:   newRefTable(s.Categories),
		SerialCodes:  make(map[string]bool, len(s.SerialCodes)),
	}

	for _, p := range s.Products {
		if sku := NormalizeKey(p.SKU); sku != "" {
			idx.ProductBySKU[sku] = p
		}
	}
	for _, code := range s.SerialCodes {
		if c := NormalizeKey(code); c != "" {
			idx.SerialCodes[c] = true
		}
	}

	return idx
}

func newRefTable(refs []NamedRef) RefTable {
	t := RefTable{
		byName: make(map[string]string, len(refs)),
		ids:    make(map[string]bool, len(refs)),
	}
	for _, r := range refs {
		if name := strings.ToLower(strings.TrimSpace(r.Name)); name != "" {
			t.byName[name] = r.ID
		}
		t.ids[r.ID] = true
	}
	return t
}

// Resolve maps an (id column, name column) pair to an entity id. The id
// column takes precedence; the name column is consulted only when the id
// value is blank. Name lookup is case-insensitive and trimmed.
//
// Returns ErrBadRefID for a non-UUID value in the id position and
// ErrRefNotFound for an unknown id or name.
func (t RefTable) Resolve(idVal, nameVal string) (string, error) {
	idVal = strings.TrimSpace(idVal)
	if idVal != "" {
		if _, err := uuid.Parse(idVal); err != nil {
			return "", ErrBadRefID
		}
		if !t.ids[idVal] {
			return "", ErrRefNotFound
		}
		return idVal, nil
	}

	name := strings.ToLower(strings.TrimSpace(nameVal))
	if name == "" {
		return "", ErrRefNotFound
	}
	id, ok := t.byName[name]
	if !ok {
		return "", ErrRefNotFound
	}
	return id, nil
}

// ResolveName looks up by name only, for callers without an id column.
func (t RefTable) ResolveName(nameVal string) (string, bool) {
	id, ok := t.byName[strings.ToLower(strings.TrimSpace(nameVal))]
	return id, ok
}

// NormalizeKey canonicalizes identity keys (SKUs, serial codes) for
// lookup and duplicate tracking: trimmed, upper-cased.
func NormalizeKey(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
