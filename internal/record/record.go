// Package record turns raw delimited rows into typed documents.
//
// The Builder is constructed once per run from a schema contract and the
// run settings; strict vs permissive header handling is decided at
// construction time, not per row. Build never fails a run for a bad row:
// every row-level problem produces an InvalidRecord destined for the
// invalid-record collection so one malformed line cannot abort an import.
package record

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/ecohealthalliance/birt-consumer/internal/schema"
)

// Record is one typed row, ready to be upserted by its natural key.
// Immutable once built.
type Record struct {
	Type schema.RecordType

	// ID is the natural key used as the document _id.
	ID string

	// Fields preserves input column order; field order in the stored
	// document follows field order in the file.
	Fields bson.D

	// Line is the 1-based source line this record came from.
	Line int
}
