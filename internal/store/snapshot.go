package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bodegahq/importer/internal/importer"
)

// SnapshotSource loads the reference data a run resolves against. One
// Load per run; the importer never queries mid-run.
type SnapshotSource struct {
	pool *pgxpool.Pool
}

func NewSnapshotSource(pool *pgxpool.Pool) *SnapshotSource {
	return &SnapshotSource{pool: pool}
}

func (s *SnapshotSource) Load(ctx context.Context) (*importer.Snapshot, error) {
	snap := &importer.Snapshot{}

	rows, err := s.pool.Query(ctx,
		`SELECT id, COALESCE(sku, ''), name, COALESCE(purchase_price, 0) FROM products`)
	if err != nil {
		return nil, fmt.Errorf("loading products: %w", err)
	}
	for rows.Next() {
		var p importer.ProductRef
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.PurchasePrice); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		snap.Products = append(snap.Products, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading products: %w", err)
	}

	for _, t := range []struct {
		table string
		dst   *[]importer.NamedRef
	}{
		{"warehouses", &snap.Warehouses},
		{"locations", &snap.Locations},
		{"categories", &snap.Categories},
	} {
		refs, err := s.loadNamed(ctx, t.table)
		if err != nil {
			return nil, err
		}
		*t.dst = refs
	}

	rows, err = s.pool.Query(ctx, `SELECT serial_code FROM inventory_serials`)
	if err != nil {
		return nil, fmt.Errorf("loading serial codes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scanning serial code: %w", err)
		}
		snap.SerialCodes = append(snap.SerialCodes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading serial codes: %w", err)
	}

	return snap, nil
}

func (s *SnapshotSource) loadNamed(ctx context.Context, table string) ([]importer.NamedRef, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT id, name FROM %s`, table))
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", table, err)
	}
	defer rows.Close()

	var refs []importer.NamedRef
	for rows.Next() {
		var r importer.NamedRef
		if err := rows.Scan(&r.ID, &r.Name); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", table, err)
		}
		refs = append(refs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading %s: %w", table, err)
	}
	return refs, nil
}
