package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// fakeSink records inserts and fails according to per-test hooks.
type fakeSink struct {
	inserted []map[string]any
	updates  int

	// failInsert, when set, decides the outcome of each Insert call.
	failInsert func(table string, rows []map[string]any) error
}

func (f *fakeSink) Insert(ctx context.Context, table string, rows []map[string]any) error {
	if f.failInsert != nil {
		if err := f.failInsert(table, rows); err != nil {
			return err
		}
	}
	f.inserted = append(f.inserted, rows...)
	return nil
}

func (f *fakeSink) Update(ctx context.Context, table string, id string, patch map[string]any) error {
	f.updates++
	return nil
}

func makeEntries(n int) []*Entry {
	entries := make([]*Entry, n)
	for i := range entries {
		entries[i] = &Entry{
			RowNumber: i + 2,
			Key:       fmt.Sprintf("SKU%03d", i),
			Values:    map[string]any{"sku": fmt.Sprintf("SKU%03d", i)},
		}
	}
	return entries
}

func TestWriteEntries_AllSucceed(t *testing.T) {
	sink := &fakeSink{}

	inserted, errs := writeEntries(context.Background(), sink, "products", makeEntries(7), 3, nil)
	if inserted != 7 {
		t.Errorf("inserted = %d, want 7", inserted)
	}
	if len(errs) != 0 {
		t.Errorf("unexpected errors: %v", errs)
	}
	if len(sink.inserted) != 7 {
		t.Errorf("sink received %d rows, want 7", len(sink.inserted))
	}
}

func TestWriteEntries_Empty(t *testing.T) {
	sink := &fakeSink{}
	var calls [][2]int

	inserted, errs := writeEntries(context.Background(), sink, "products", nil, 3, func(p, tot int) {
		calls = append(calls, [2]int{p, tot})
	})
	if inserted != 0 || len(errs) != 0 {
		t.Errorf("expected clean empty result, got %d inserted, %v", inserted, errs)
	}
	if len(calls) != 1 || calls[0] != [2]int{0, 0} {
		t.Errorf("expected single (0,0) progress call, got %v", calls)
	}
}

func TestWriteEntries_DuplicateFallback(t *testing.T) {
	// The chunk insert trips a unique violation; the row-by-row retry
	// isolates the one duplicate and saves the rest.
	sink := &fakeSink{}
	sink.failInsert = func(table string, rows []map[string]any) error {
		for _, r := range rows {
			if r["sku"] == "SKU002" {
				return fmt.Errorf("%w (products_sku_key)", ErrDuplicateKey)
			}
		}
		return nil
	}

	inserted, errs := writeEntries(context.Background(), sink, "products", makeEntries(5), 10, nil)

	if inserted != 4 {
		t.Errorf("inserted = %d, want 4", inserted)
	}
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %v", errs)
	}
	if errs[0].Row != 4 {
		t.Errorf("error row = %d, want 4", errs[0].Row)
	}
	if !strings.Contains(errs[0].Message, "registro duplicado: SKU002") {
		t.Errorf("unexpected message: %s", errs[0].Message)
	}
}

func TestWriteEntries_NonDuplicateChunkFailure(t *testing.T) {
	// A non-duplicate failure blames the chunk, not individual rows.
	sink := &fakeSink{}
	sink.failInsert = func(table string, rows []map[string]any) error {
		return errors.New("connection reset")
	}

	entries := makeEntries(5)
	inserted, errs := writeEntries(context.Background(), sink, "products", entries, 10, nil)

	if inserted != 0 {
		t.Errorf("inserted = %d, want 0", inserted)
	}
	if len(errs) != 1 {
		t.Fatalf("expected 1 aggregated error, got %v", errs)
	}
	if errs[0].Row != 0 {
		t.Errorf("aggregated error should not carry a row number, got %d", errs[0].Row)
	}
	if !strings.Contains(errs[0].Message, "filas 2-6") {
		t.Errorf("unexpected message: %s", errs[0].Message)
	}
}

func TestWriteEntries_ProgressMonotonic(t *testing.T) {
	sink := &fakeSink{}
	var calls [][2]int

	writeEntries(context.Background(), sink, "products", makeEntries(10), 3, func(p, tot int) {
		calls = append(calls, [2]int{p, tot})
	})

	if len(calls) == 0 {
		t.Fatal("expected progress calls")
	}
	prev := -1
	for _, c := range calls {
		if c[0] < prev {
			t.Fatalf("progress went backwards: %v", calls)
		}
		if c[1] != 10 {
			t.Fatalf("total changed mid-run: %v", calls)
		}
		prev = c[0]
	}
	if last := calls[len(calls)-1]; last != [2]int{10, 10} {
		t.Errorf("expected final call (10,10), got %v", last)
	}
}

func TestWriteEntries_CancelledBetweenChunks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	sink := &fakeSink{}
	sink.failInsert = func(table string, rows []map[string]any) error {
		// Cancel after the first chunk lands
		cancel()
		return nil
	}

	inserted, errs := writeEntries(ctx, sink, "products", makeEntries(6), 3, nil)

	if inserted != 3 {
		t.Errorf("inserted = %d, want 3 (first chunk only)", inserted)
	}
	if len(errs) != 1 || errs[0].Message != "importación cancelada" {
		t.Errorf("expected cancellation error, got %v", errs)
	}
}
