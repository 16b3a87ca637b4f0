package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"

	"surveysync/internal/model"
	"surveysync/internal/storage"
)

// SubmissionsTable reads every stored submission into a table indexed by KEY
// and sorted by it. Columns are the sorted union of all field paths; a row
// holds nil where its submission lacks a column.
func SubmissionsTable(ctx context.Context, store storage.Storage) (*model.Table, error) {
	subs, err := store.GetSubmissions(ctx)
	if err != nil {
		return nil, err
	}

	type row struct {
		key    string
		fields model.Fields
	}
	rows := make([]row, 0, len(subs))
	columnSet := make(map[string]struct{})

	for _, sub := range subs {
		key := sub.ID
		if v, ok := sub.Fields[model.FieldKey]; ok && v != nil {
			key = fmt.Sprint(v)
		}
		rows = append(rows, row{key: key, fields: sub.Fields})

		for col := range sub.Fields {
			if col != model.FieldKey {
				columnSet[col] = struct{}{}
			}
		}
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].key < rows[j].key })

	columns := make([]string, 0, len(columnSet))
	for col := range columnSet {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	table := &model.Table{
		Index:   model.FieldKey,
		Keys:    make([]string, len(rows)),
		Columns: columns,
		Rows:    make([][]any, len(rows)),
	}
	for i, r := range rows {
		table.Keys[i] = r.key
		values := make([]any, len(columns))
		for j, col := range columns {
			values[j] = r.fields[col]
		}
		table.Rows[i] = values
	}
	return table, nil
}

// WriteCSV writes table as CSV: a header of the index followed by the
// columns, then one line per row. Nil values are written as empty cells.
func WriteCSV(w io.Writer, table *model.Table) error {
	cw := csv.NewWriter(w)

	header := append([]string{table.Index}, table.Columns...)
	if err := cw.Write(header); err != nil {
		return err
	}

	record := make([]string, len(header))
	for i, key := range table.Keys {
		record[0] = key
		for j, v := range table.Rows[i] {
			record[j+1] = cellString(v)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
