package importer

// AggregateEntries merges entries sharing the same Key, for modes where
// several input rows may target one logical entity (repeated SKU lines in
// a purchase order).
//
// Merge policy, deliberate and easy to misread: the columns named in
// sumCols are summed numerically; every other column is overwritten by
// the later row, last one wins. The merged entry keeps the first
// occurrence's row number and position, so write-phase errors still point
// at the line where the entity first appeared.
func AggregateEntries(entries []*Entry, sumCols []string) []*Entry {
	if len(entries) == 0 {
		return entries
	}

	sum := make(map[string]bool, len(sumCols))
	for _, c := range sumCols {
		sum[c] = true
	}

	byKey := make(map[string]*Entry, len(entries))
	out := make([]*Entry, 0, len(entries))

	for _, e := range entries {
		prev, ok := byKey[e.Key]
		if !ok {
			byKey[e.Key] = e
			out = append(out, e)
			continue
		}

		for col, val := range e.Values {
			if sum[col] {
				a, aok := toFloat(prev.Values[col])
				b, bok := toFloat(val)
				if aok && bok {
					prev.Values[col] = a + b
					continue
				}
			}
			prev.Values[col] = val
		}
	}

	return out
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	default:
		return 0, false
	}
}
