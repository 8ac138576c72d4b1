package record

import (
	"fmt"
	"strings"
	"time"

	"github.com/zeebo/xxh3"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/ecohealthalliance/birt-consumer/internal/schema"
)

// InvalidRecord preserves a rejected row for operator review. It carries the
// original raw row, a human-readable reason, and a hash of the raw row so
// recurring rejects can be grouped even though the collection has no
// natural key.
type InvalidRecord struct {
	Type   schema.RecordType
	Line   int
	Raw    []string
	Reason string
	Date   time.Time
}

// NewInvalid builds an InvalidRecord stamped with the current UTC time.
func NewInvalid(t schema.RecordType, line int, raw []string, reason string) *InvalidRecord {
	return &InvalidRecord{
		Type:   t,
		Line:   line,
		Raw:    raw,
		Reason: reason,
		Date:   time.Now().UTC(),
	}
}

// RowHash returns an xxh3 hash over the raw row cells. Cells are joined on
// an unlikely separator so ["ab","c"] and ["a","bc"] hash differently.
func (r *InvalidRecord) RowHash() uint64 {
	return xxh3.HashString(strings.Join(r.Raw, "\x1f"))
}

// Document renders the invalid record as a store document. The hash is
// stored as a hex string; a raw uint64 can exceed what the store's int64
// encoding accepts.
func (r *InvalidRecord) Document() bson.D {
	return bson.D{
		{Key: "date", Value: r.Date},
		{Key: "record_type", Value: string(r.Type)},
		{Key: "row_num", Value: r.Line},
		{Key: "reason", Value: r.Reason},
		{Key: "raw", Value: r.Raw},
		{Key: "row_hash", Value: fmt.Sprintf("%016x", r.RowHash())},
	}
}
