package model

// MetadataKey names an entry in the storage metadata keyspace. Metadata is kept
// apart from submissions, so keys never collide with submission IDs.
type MetadataKey string

const (
	// MetadataCursor holds the synchronization high-water mark.
	MetadataCursor MetadataKey = "cursor"

	// MetadataDataTimezone holds the timezone the stored timestamps are expressed in.
	MetadataDataTimezone MetadataKey = "data_timezone"
)

// Table is every stored submission, indexed by KEY and sorted ascending.
// Rows[i] holds the values for Keys[i], aligned to Columns; absent fields are nil.
type Table struct {
	Index   string   `json:"index"`
	Keys    []string `json:"keys"`
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Keys)
}
