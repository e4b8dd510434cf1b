package importer

import (
	"context"
	"fmt"
	"strings"

	"github.com/bodegahq/importer/internal/tabular"
)

// runPipeline executes one import end to end and always returns a
// well-formed Result: file-level failures, row-level failures, write
// failures, and unexpected panics all surface as error messages, never as
// a thrown error. Callers inspect the result; they do not need recover.
func runPipeline(ctx context.Context, sink Sink, snapshots SnapshotLoader, def ModeDefinition, fileName string, data []byte, params map[string]string, chunkSize int, onProgress ProgressFunc, onPhase PhaseFunc) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res.appendErr(RowError{Message: fmt.Sprintf("error inesperado: %v", r)})
		}
	}()

	phase := func(p Phase) {
		if onPhase != nil {
			onPhase(p)
		}
	}

	for _, p := range def.RequiredParams {
		if strings.TrimSpace(params[p]) == "" {
			res.appendErr(RowError{Message: fmt.Sprintf("Falta el parámetro: %s", p)})
		}
	}
	if res.Errors > 0 {
		return res
	}

	parsed, err := tabular.Parse(fileName, data)
	if err != nil {
		res.appendErr(RowError{Message: err.Error()})
		return res
	}

	// Normalize and collect the union of observed columns. Fully blank
	// rows are dropped here, silently: they are not input, not errors.
	var rows []Row
	observed := make(map[string]bool)
	for _, raw := range parsed.Rows {
		row, ok := Normalize(raw)
		if !ok {
			continue
		}
		rows = append(rows, row)
		for k := range row.Values {
			observed[k] = true
		}
	}

	if len(rows) == 0 {
		res.appendErr(RowError{Message: "el archivo no contiene filas de datos"})
		return res
	}

	// File-level schema gate. If it trips, the run stops with exactly
	// these errors and no row is processed.
	if msgs := def.Schema.Validate(observed); len(msgs) > 0 {
		for _, m := range msgs {
			res.appendErr(RowError{Message: m})
		}
		return res
	}

	// Parser-level row errors (malformed CSV records) join the report
	// only once the file itself is structurally acceptable.
	for _, m := range parsed.RowErrors {
		res.Errors++
		res.ErrorMessages = append(res.ErrorMessages, m)
	}

	snap, err := snapshots.Load(ctx)
	if err != nil {
		res.appendErr(RowError{Message: fmt.Sprintf("no se pudieron cargar los datos de referencia: %v", err)})
		return res
	}

	rc := &RunContext{
		Index:    BuildIndex(snap),
		Params:   params,
		SeenKeys: make(map[string]bool),
	}

	phase(PhaseValidating)

	// Per-row validation: exactly one of entry or row error per row,
	// first failing rule wins, and a failure never stops the run.
	var entries []*Entry
	for _, row := range rows {
		if ctx.Err() != nil {
			res.appendErr(RowError{Message: ErrCancelled.Error()})
			return res
		}

		entry, rowErr := def.BuildEntry(rc, row)
		if rowErr != nil {
			res.appendErr(*rowErr)
			continue
		}
		entries = append(entries, entry)
	}

	if def.Aggregate {
		entries = AggregateEntries(entries, def.SumColumns)
	}

	// Write-time defaults (e.g. a missing date becoming "today") are
	// applied here, not during validation.
	if def.Finalize != nil {
		for _, e := range entries {
			def.Finalize(e)
		}
	}

	phase(PhaseWriting)

	inserted, writeErrs := writeEntries(ctx, sink, def.Info.Table, entries, chunkSize, onProgress)
	res.Success = inserted
	for _, e := range writeErrs {
		res.appendErr(e)
	}

	return res
}
