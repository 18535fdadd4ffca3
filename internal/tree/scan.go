package tree

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

var numericColumnTypes = map[string]bool{
	"TINYINT": true, "SMALLINT": true, "MEDIUMINT": true, "INT": true, "INTEGER": true, "BIGINT": true,
	"DECIMAL": true, "NUMERIC": true, "FLOAT": true, "DOUBLE": true, "REAL": true,
}

// ScanRecords reads every row into a Record whose fields follow the column
// order of the result set. Byte slices become strings, except in numeric
// columns where the text protocol delivers numbers as bytes.
func ScanRecords(rows *sqlx.Rows) ([]*Record, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	numeric := make([]bool, len(types))
	for i, ct := range types {
		name := strings.TrimPrefix(strings.ToUpper(ct.DatabaseTypeName()), "UNSIGNED ")
		numeric[i] = numericColumnTypes[name]
	}

	var results []*Record
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, err
		}

		r := NewRecord()
		for i, col := range columns {
			var v Value
			if b, ok := values[i].([]byte); ok && numeric[i] {
				v, err = parseNumber(string(b))
			} else {
				v, err = FromAny(values[i])
			}
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", col, err)
			}
			r.Set(col, v)
		}
		results = append(results, r)
	}

	return results, rows.Err()
}
