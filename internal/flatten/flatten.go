// Package flatten turns nested submission records into flat column-path maps.
package flatten

import (
	"strconv"
	"strings"

	"surveysync/internal/model"
)

const (
	// Delimiter joins path segments.
	Delimiter = "/"

	// IDFieldAPI is the primary-key field as returned by the platform; it is renamed to model.FieldKey.
	IDFieldAPI = "__id"

	// RepeatGroupSuffix marks a column that links to a repeat group already expanded inline.
	RepeatGroupSuffix = "@odata.navigationLink"
)

// Flatten flattens one record.
func Flatten(record map[string]any) model.Fields {
	return Batch([]map[string]any{record})[0]
}

// Batch flattens every record in a fetched batch. Repeat groups are detected
// across the whole batch, so a navigation column seen in any record prunes the
// matching row-ID columns from all of them.
func Batch(records []map[string]any) []model.Fields {
	out := make([]model.Fields, len(records))
	groups := make(map[string]struct{})

	for i, record := range records {
		fields := make(model.Fields)
		walk(fields, "", record)

		if v, ok := fields[IDFieldAPI]; ok {
			delete(fields, IDFieldAPI)
			fields[model.FieldKey] = v
		}

		for col := range fields {
			if strings.HasSuffix(col, RepeatGroupSuffix) {
				groups[strings.TrimSuffix(col, RepeatGroupSuffix)] = struct{}{}
				delete(fields, col)
			}
		}
		out[i] = fields
	}

	if len(groups) > 0 {
		for _, fields := range out {
			pruneRowIDs(fields, groups)
		}
	}
	return out
}

// pruneRowIDs drops <group>/.../__id columns; indexed paths already identify those rows.
func pruneRowIDs(fields model.Fields, groups map[string]struct{}) {
	suffix := Delimiter + IDFieldAPI
	for group := range groups {
		prefix := group + Delimiter
		for col := range fields {
			if strings.HasPrefix(col, prefix) && strings.HasSuffix(col, suffix) {
				delete(fields, col)
			}
		}
	}
}

func walk(out model.Fields, path string, value any) {
	switch v := value.(type) {
	case map[string]any:
		if len(v) == 0 && path != "" {
			out[path] = nil
			return
		}
		for key, child := range v {
			walk(out, join(path, key), child)
		}
	case []any:
		if len(v) == 0 && path != "" {
			out[path] = nil
			return
		}
		for i, child := range v {
			walk(out, join(path, strconv.Itoa(i)), child)
		}
	case []map[string]any:
		if len(v) == 0 && path != "" {
			out[path] = nil
			return
		}
		for i, child := range v {
			walk(out, join(path, strconv.Itoa(i)), child)
		}
	default:
		if path != "" {
			out[path] = v
		}
	}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + Delimiter + key
}
