// Package importer implements the bulk tabular import pipeline: row
// normalization, a file-level schema gate, reference resolution against a
// run-scoped index, per-mode row validation, optional aggregation, and
// chunked writes with per-row error capture.
//
// The pipeline never aborts a run because of a single bad row and never
// lets a failure escape the run boundary: every outcome is reported in a
// Result.
package importer

import (
	"context"
	"fmt"
	"time"
)

// Sink is the write boundary. Insert submits rows to one table; a
// uniqueness conflict must be reported as an error wrapping
// ErrDuplicateKey so the executor can isolate duplicates row by row.
// Update patches a single row by id.
type Sink interface {
	Insert(ctx context.Context, table string, rows []map[string]any) error
	Update(ctx context.Context, table string, id string, patch map[string]any) error
}

// SnapshotLoader provides the reference data a run resolves against.
// It is called once at the start of every run.
type SnapshotLoader interface {
	Load(ctx context.Context) (*Snapshot, error)
}

// Row is a normalized input row: lower-cased, trimmed column keys mapped
// to raw cell values, plus the user-facing spreadsheet line number.
type Row struct {
	// Number is the spreadsheet line the row came from (header = line 1).
	Number int
	Values map[string]any
}

// Str returns the trimmed string form of a cell, or "" when absent.
func (r Row) Str(key string) string {
	return cellString(r.Values[key])
}

// Raw returns the raw cell value, which may be a string, number, or time.
func (r Row) Raw(key string) any {
	return r.Values[key]
}

// RowError records one failed row. Row is the spreadsheet line number; a
// Row of 0 marks an error not attributable to a single line (for example
// a failed chunk).
type RowError struct {
	Row     int
	Message string
}

func (e RowError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("Fila %d: %s", e.Row, e.Message)
	}
	return e.Message
}

// Entry is a write-ready payload for one row: foreign keys resolved,
// numbers coerced, defaults applied. Key is the mode's identity for
// duplicate tracking and aggregation (SKU, serial code, resolved id).
type Entry struct {
	RowNumber int
	Key       string
	Values    map[string]any
}

// Result is the caller-visible outcome of a run. Success plus the rows
// dropped by validation need not equal the input row count: fully blank
// rows are excluded silently by design.
type Result struct {
	Success       int      `json:"success"`
	Errors        int      `json:"errors"`
	ErrorMessages []string `json:"errorMessages"`
}

// appendErr records a row error on the result.
func (r *Result) appendErr(e RowError) {
	r.Errors++
	r.ErrorMessages = append(r.ErrorMessages, e.Error())
}

// ColumnSchema declares the columns an import mode accepts. Required
// columns must all be present; each AnyOf group needs at least one of its
// members. When RejectUnknown is set, observed columns outside the
// declared set are fatal at the file level; otherwise they are ignored.
type ColumnSchema struct {
	Required      []string
	AnyOf         [][]string
	Optional      []string
	RejectUnknown bool
}

// RowFunc validates one normalized row and returns exactly one of a
// write-ready entry or a row error.
type RowFunc func(rc *RunContext, row Row) (*Entry, *RowError)

// FinalizeFunc is applied to accepted entries immediately before the
// write phase, for defaults that must reflect write time (for example a
// missing date becoming "today").
type FinalizeFunc func(e *Entry)

// ModeInfo describes an import mode for listings and template downloads.
type ModeInfo struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Table string `json:"-"`
	// Columns is the template header set, declared order preserved.
	Columns []string `json:"columns"`
}

// ModeDefinition contains everything the pipeline needs to run one import
// variant. The pipeline shell is mode-agnostic; all per-mode behavior
// lives here.
type ModeDefinition struct {
	Info   ModeInfo
	Schema ColumnSchema

	// RequiredParams are run parameters that must be supplied by the
	// caller (for example the purchase order the lines belong to).
	RequiredParams []string

	BuildEntry RowFunc
	Finalize   FinalizeFunc

	// Aggregate merges entries sharing a Key before the write phase,
	// summing SumColumns and taking the last row's value for the rest.
	Aggregate  bool
	SumColumns []string
}

// RunContext carries the per-run state row validators read and update.
// Index is immutable for the duration of the run; keys discovered while
// processing live in SeenKeys, so the snapshot stays read-only.
type RunContext struct {
	Index  *RefIndex
	Params map[string]string

	// SeenKeys tracks identity keys accepted earlier in the same file.
	SeenKeys map[string]bool
}

// Phase names the stage a run is in.
type Phase string

const (
	PhaseStarting   Phase = "starting"
	PhaseReading    Phase = "reading"
	PhaseValidating Phase = "validating"
	PhaseWriting    Phase = "writing"
	PhaseComplete   Phase = "complete"
	PhaseFailed     Phase = "failed"
	PhaseCancelled  Phase = "cancelled"
)

// Progress is a point-in-time view of a run. Processed counts entries
// handed to the write phase and is monotonically non-decreasing.
type Progress struct {
	RunID     string `json:"runId"`
	ModeKey   string `json:"mode"`
	FileName  string `json:"fileName"`
	Phase     Phase  `json:"phase"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Error     string `json:"error,omitempty"`
}

// Percent returns write-phase progress as 0-100.
func (p Progress) Percent() int {
	if p.Total <= 0 {
		return 0
	}
	return (p.Processed * 100) / p.Total
}

// ProgressFunc receives (processed, total) after every written chunk.
type ProgressFunc func(processed, total int)

// PhaseFunc receives phase transitions as the pipeline moves from row
// validation into the write phase.
type PhaseFunc func(p Phase)

// LocalToday returns today's date in the local zone with the time part
// zeroed. Local, not UTC, so late-evening imports don't land on the next
// calendar day.
func LocalToday() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
}
