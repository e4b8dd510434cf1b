package importer

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/bodegahq/importer/internal/tabular"
)

// excelEpoch is day zero of Excel's serial date system. 1899-12-30 rather
// than 1899-12-31 compensates for Excel treating 1900 as a leap year.
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// excelSerialMax bounds what a bare number may be interpreted as: serial
// 219146 is the year 2500, far beyond any plausible sheet date.
const excelSerialMax = 219146

// DateStatus distinguishes an absent date field from a present but
// unparseable one; the latter is a row-level validation error.
type DateStatus int

const (
	DateAbsent DateStatus = iota
	DateValid
	DateInvalid
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2/1/2006",
	"2-1-2006",
}

// Normalize converts a raw row into a validated-key row: column keys are
// trimmed and lower-cased, empty keys dropped. The second return is false
// when every cell is blank; such rows are excluded from the run entirely,
// which is not an error.
func Normalize(raw tabular.RawRow) (Row, bool) {
	values := make(map[string]any, len(raw.Cells))
	blank := true

	for key, val := range raw.Cells {
		k := strings.ToLower(strings.TrimSpace(key))
		if k == "" {
			continue
		}
		if _, dup := values[k]; dup {
			continue
		}
		values[k] = val
		if cellString(val) != "" {
			blank = false
		}
	}

	if blank {
		return Row{}, false
	}

	return Row{Number: raw.Index + 2, Values: values}, true
}

// cellString coerces any raw cell value to its trimmed string form.
func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case time.Time:
		return t.Format("2006-01-02")
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// CoerceDate interprets a raw cell as a calendar date. It accepts native
// time values, Excel serial numbers (fractional part dropped), ISO
// strings, and day-first D/M/YYYY or D-M-YYYY strings.
func CoerceDate(v any) (time.Time, DateStatus) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, DateAbsent
	case time.Time:
		if t.IsZero() {
			return time.Time{}, DateAbsent
		}
		return t, DateValid
	case float64:
		return dateFromSerial(t)
	case int:
		return dateFromSerial(float64(t))
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, DateAbsent
		}
		// Raw spreadsheet cells deliver date cells as serial numbers.
		if serial, err := strconv.ParseFloat(s, 64); err == nil {
			return dateFromSerial(serial)
		}
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed, DateValid
			}
		}
		return time.Time{}, DateInvalid
	default:
		return time.Time{}, DateInvalid
	}
}

func dateFromSerial(serial float64) (time.Time, DateStatus) {
	if serial <= 0 || serial > excelSerialMax || math.IsNaN(serial) || math.IsInf(serial, 0) {
		return time.Time{}, DateInvalid
	}
	return excelEpoch.AddDate(0, 0, int(serial)), DateValid
}

// ParseDecimal parses a numeric cell, accepting "," as the decimal
// separator (normalized to ".") and tolerating thousands separators when
// a "." decimal point is already present. Non-finite results are
// rejected.
func ParseDecimal(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, fmt.Errorf("valor no finito")
		}
		return t, nil
	case int:
		return float64(t), nil
	}

	s := cellString(v)
	if s == "" {
		return 0, fmt.Errorf("valor vacío")
	}

	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") {
			// "1,234.56": the comma is a thousands separator
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ",", ".")
		}
	}

	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("número inválido")
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("valor no finito")
	}
	return n, nil
}
