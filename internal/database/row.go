package database

import (
	"errors"

	"github.com/koustreak/dbroute/internal/errs"
)

// ScanRows reads all rows from the result set and returns them as a slice
// of maps keyed by column name.
//
// The returned slice is always non-nil (empty slice on zero rows).
// ScanRows always closes the Rows.
func ScanRows(rows Rows) ([]map[string]any, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, scanErr("failed to read column names", err)
	}

	result := make([]map[string]any, 0)
	for rows.Next() {
		row, err := scanInto(rows, columns)
		if err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, scanErr("row iteration failed", err)
	}
	return result, nil
}

// ScanRow reads a single row into a map keyed by columns.
// A missing row surfaces as a not_found error from the backend.
func ScanRow(row Row, columns []string) (map[string]any, error) {
	return scanInto(row, columns)
}

func scanInto(row Row, columns []string) (map[string]any, error) {
	dest := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range dest {
		ptrs[i] = &dest[i]
	}

	if err := row.Scan(ptrs...); err != nil {
		return nil, scanErr("failed to scan row", err)
	}

	out := make(map[string]any, len(columns))
	for i, col := range columns {
		out[col] = dest[i]
	}
	return out, nil
}

// scanErr keeps an already classified backend error as-is.
func scanErr(msg string, err error) error {
	var e *errs.Error
	if errors.As(err, &e) {
		return err
	}
	return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
}
