package diag

import (
	"context"
	"database/sql"
	"fmt"
)

// queryRowSet runs a statement over database/sql and decodes every returned
// row into a Row, preserving server order. Column values are kept as the
// driver returned them; Row's accessors perform the per-type coercion.
func queryRowSet(ctx context.Context, db *sql.DB, stmt Statement) (RowSet, error) {
	if db == nil {
		return RowSet{}, ErrExecutorClosed
	}

	rows, err := db.QueryContext(ctx, stmt.Text)
	if err != nil {
		return RowSet{}, fmt.Errorf("query diagnostic table: %w", err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return RowSet{}, fmt.Errorf("read diagnostic columns: %w", err)
	}

	var decoded []Row
	for rows.Next() {
		values := make([]any, len(names))
		pointers := make([]any, len(names))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return RowSet{}, fmt.Errorf("scan diagnostic row: %w", err)
		}

		columns := make(map[string]any, len(names))
		for i, name := range names {
			if raw, ok := values[i].([]byte); ok {
				// Copy driver-owned buffers before the next Scan reuses them.
				columns[name] = string(raw)
				continue
			}
			columns[name] = values[i]
		}
		decoded = append(decoded, NewRow(columns))
	}
	if err := rows.Err(); err != nil {
		return RowSet{}, fmt.Errorf("iterate diagnostic rows: %w", err)
	}

	return NewRowSet(decoded...), nil
}
