package importer

import "testing"

func TestAggregateEntries_SumsDeclaredColumns(t *testing.T) {
	entries := []*Entry{
		{RowNumber: 2, Key: "p1", Values: map[string]any{"quantity": 3.0, "unit_price": 10.0}},
		{RowNumber: 3, Key: "p2", Values: map[string]any{"quantity": 1.0, "unit_price": 4.0}},
		{RowNumber: 4, Key: "p1", Values: map[string]any{"quantity": 2.0, "unit_price": 12.0}},
	}

	out := AggregateEntries(entries, []string{"quantity"})

	if len(out) != 2 {
		t.Fatalf("expected 2 merged entries, got %d", len(out))
	}

	// First-seen order is preserved
	if out[0].Key != "p1" || out[1].Key != "p2" {
		t.Errorf("unexpected order: %s, %s", out[0].Key, out[1].Key)
	}

	// quantity sums, unit_price takes the later row's value
	if got := out[0].Values["quantity"]; got != 5.0 {
		t.Errorf("quantity = %v, want 5", got)
	}
	if got := out[0].Values["unit_price"]; got != 12.0 {
		t.Errorf("unit_price = %v, want 12 (last wins)", got)
	}

	// Merged entry keeps the first occurrence's row number
	if out[0].RowNumber != 2 {
		t.Errorf("row number = %d, want 2", out[0].RowNumber)
	}
}

func TestAggregateEntries_NoDuplicates(t *testing.T) {
	entries := []*Entry{
		{RowNumber: 2, Key: "a", Values: map[string]any{"quantity": 1.0}},
		{RowNumber: 3, Key: "b", Values: map[string]any{"quantity": 2.0}},
	}

	out := AggregateEntries(entries, []string{"quantity"})
	if len(out) != 2 {
		t.Fatalf("expected entries untouched, got %d", len(out))
	}
}

func TestAggregateEntries_Empty(t *testing.T) {
	if out := AggregateEntries(nil, []string{"quantity"}); len(out) != 0 {
		t.Errorf("expected empty result, got %v", out)
	}
}
