package importer

import (
	"context"
	"errors"
	"fmt"
)

// ErrDuplicateKey marks a write rejected by a uniqueness constraint.
// Sinks must wrap their driver's unique-violation error with this
// sentinel so the executor can tell duplicates from transient failures.
var ErrDuplicateKey = errors.New("registro duplicado")

// ErrCancelled is reported when a run is cancelled between chunks.
var ErrCancelled = errors.New("importación cancelada")

// writeEntries submits entries to the sink in fixed-size chunks.
//
// A chunk that fails with a uniqueness violation is retried row by row so
// a single duplicate does not sacrifice the rest of the chunk. A chunk
// that fails for any other reason is recorded as one aggregated error:
// the cause is unknown, so blaming individual rows would be a lie.
//
// onProgress fires after every chunk (and every row in fallback mode)
// with non-decreasing processed counts, reaching (total, total) on
// completion. Cancellation is honored at chunk boundaries only, so a
// chunk is never left half-submitted. There is no rollback: entries
// written before a later failure stay written.
func writeEntries(ctx context.Context, sink Sink, table string, entries []*Entry, chunkSize int, onProgress ProgressFunc) (int, []RowError) {
	if chunkSize <= 0 {
		chunkSize = 100
	}
	if onProgress == nil {
		onProgress = func(int, int) {}
	}

	total := len(entries)
	inserted := 0
	processed := 0
	var errs []RowError

	if total == 0 {
		onProgress(0, 0)
		return 0, nil
	}

	for start := 0; start < total; start += chunkSize {
		if ctx.Err() != nil {
			errs = append(errs, RowError{Message: ErrCancelled.Error()})
			return inserted, errs
		}

		end := start + chunkSize
		if end > total {
			end = total
		}
		chunk := entries[start:end]

		rows := make([]map[string]any, len(chunk))
		for i, e := range chunk {
			rows[i] = e.Values
		}

		err := sink.Insert(ctx, table, rows)
		switch {
		case err == nil:
			inserted += len(chunk)
			processed += len(chunk)
			onProgress(processed, total)

		case errors.Is(err, ErrDuplicateKey):
			// Isolate the offenders row by row.
			for _, e := range chunk {
				rowErr := sink.Insert(ctx, table, []map[string]any{e.Values})
				switch {
				case rowErr == nil:
					inserted++
				case errors.Is(rowErr, ErrDuplicateKey):
					errs = append(errs, RowError{Row: e.RowNumber, Message: fmt.Sprintf("registro duplicado: %s", e.Key)})
				default:
					errs = append(errs, RowError{Row: e.RowNumber, Message: fmt.Sprintf("error al guardar: %v", rowErr)})
				}
				processed++
				onProgress(processed, total)
			}

		default:
			errs = append(errs, RowError{Message: fmt.Sprintf(
				"Error al insertar el lote de filas %d-%d: %v",
				chunk[0].RowNumber, chunk[len(chunk)-1].RowNumber, err)})
			processed += len(chunk)
			onProgress(processed, total)
		}
	}

	return inserted, errs
}
