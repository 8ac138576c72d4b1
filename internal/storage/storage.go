// Package storage contains the store-agnostic sink contract and the MongoDB
// implementation behind it.
//
// The pipeline depends only on Sink so the write path can be exercised in
// tests with the in-memory store; the Mongo store isolates all driver
// specifics (bulk upserts, index DDL, error classification).
package storage

import (
	"context"

	"github.com/ecohealthalliance/birt-consumer/internal/record"
)

// WriteSummary aggregates the outcome of upsert batches.
type WriteSummary struct {
	// Matched counts records whose key already existed.
	Matched int64
	// Modified counts matched records whose fields actually changed.
	Modified int64
	// Upserted counts records inserted because no key matched.
	Upserted int64
	// Inserted counts plain inserts (invalid-record sink).
	Inserted int64
	// Failed counts individual write failures that were recovered
	// locally.
	Failed int64
}

// Add merges another summary into s.
func (s *WriteSummary) Add(o WriteSummary) {
	s.Matched += o.Matched
	s.Modified += o.Modified
	s.Upserted += o.Upserted
	s.Inserted += o.Inserted
	s.Failed += o.Failed
}

// Sink is the write surface the ingestion pipeline needs. BulkUpsert writes
// records keyed by their natural key in input order (last write wins within
// a batch); InsertInvalid appends rejected rows to the invalid-record
// collection without any key matching.
//
// Implementations return an error only for failures that make the sink
// unusable (e.g. lost connection); individual write failures are counted in
// the summary and processing continues.
type Sink interface {
	BulkUpsert(ctx context.Context, collection string, recs []*record.Record) (WriteSummary, error)
	InsertInvalid(ctx context.Context, collection string, recs []*record.InvalidRecord) (WriteSummary, error)
}
