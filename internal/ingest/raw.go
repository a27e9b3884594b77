package ingest

import "sort"

// Table names, without extension, looked up in a dataset directory
const (
	TableEntities  = "taxpayers"
	TableOutward   = "gstr1_invoices"
	TableInward    = "gstr2b_invoices"
	TableSummaries = "gstr3b_summary"
	TableLabels    = "fraud_labels"
)

// TableNames lists every table in load order
var TableNames = []string{TableEntities, TableOutward, TableInward, TableSummaries, TableLabels}

// optionalTables may be absent from a dataset
var optionalTables = map[string]bool{TableLabels: true}

// RawTable is a table as read from disk: a header row and string cells
type RawTable struct {
	Name   string
	Path   string
	Header []string
	Rows   [][]string
}

// RawDataset holds the raw tables that were found, keyed by table name
type RawDataset struct {
	Tables map[string]*RawTable
}

// NewRawDataset creates an empty raw dataset
func NewRawDataset() *RawDataset {
	return &RawDataset{Tables: make(map[string]*RawTable)}
}

// Add stores a table under its name
func (d *RawDataset) Add(t *RawTable) {
	d.Tables[t.Name] = t
}

// Table returns the named table, or nil when it was not found
func (d *RawDataset) Table(name string) *RawTable {
	if d == nil {
		return nil
	}
	return d.Tables[name]
}

// Names returns the names of present tables, sorted
func (d *RawDataset) Names() []string {
	names := make([]string, 0, len(d.Tables))
	for name := range d.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
