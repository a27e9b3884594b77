package model

import "fmt"

// DataIntegrityError reports a required table or column that is entirely absent.
// It aborts the build; the previously published snapshot keeps serving.
type DataIntegrityError struct {
	Table  string
	Column string // Empty when the whole table is missing
}

func (e *DataIntegrityError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("data integrity: table %q is missing", e.Table)
	}
	return fmt.Sprintf("data integrity: table %q has no %q column", e.Table, e.Column)
}

// WarningKind classifies a recoverable condition met during a build
type WarningKind string

const (
	WarnReference   WarningKind = "REFERENCE_WARNING"   // Invoice references an unknown entity
	WarnDivision    WarningKind = "DIVISION_GUARD"      // Ratio skipped on a zero denominator
	WarnConvergence WarningKind = "CONVERGENCE_WARNING" // PageRank hit its iteration limit
	WarnSkippedRow  WarningKind = "SKIPPED_ROW"         // Rows dropped while decoding a table
)

// Warning is a non-fatal condition recorded on the snapshot
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Message string      `json:"message"`
	Ref     string      `json:"ref,omitempty"` // Entity, invoice or table the warning is about
}
