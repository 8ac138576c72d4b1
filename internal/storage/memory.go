package storage

import (
	"context"
	"reflect"
	"sync"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/ecohealthalliance/birt-consumer/internal/record"
)

// Memory is an in-memory Sink with the same upsert semantics as the Mongo
// store: documents are keyed by natural key, a repeated key overwrites, and
// invalid records append without deduplication. It backs the pipeline tests
// and is handy for dry runs against sample extracts.
type Memory struct {
	mu sync.Mutex

	// Docs maps collection -> _id -> fields.
	Docs map[string]map[string]bson.D
	// Invalid maps collection -> appended invalid documents.
	Invalid map[string][]bson.D
	// Indexes maps collection -> declared index names.
	Indexes map[string]map[string]bool

	// FailKeys simulates per-record write failures for the listed keys.
	FailKeys map[string]bool
	// Err, when set, is returned by every write to simulate a lost
	// connection.
	Err error
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		Docs:     map[string]map[string]bson.D{},
		Invalid:  map[string][]bson.D{},
		Indexes:  map[string]map[string]bool{},
		FailKeys: map[string]bool{},
	}
}

// BulkUpsert implements Sink.
func (m *Memory) BulkUpsert(ctx context.Context, collection string, recs []*record.Record) (WriteSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var sum WriteSummary
	if m.Err != nil {
		return sum, m.Err
	}

	coll := m.Docs[collection]
	if coll == nil {
		coll = map[string]bson.D{}
		m.Docs[collection] = coll
	}

	for _, rec := range recs {
		if m.FailKeys[rec.ID] {
			sum.Failed++
			continue
		}
		fields := make(bson.D, len(rec.Fields))
		copy(fields, rec.Fields)

		if prev, ok := coll[rec.ID]; ok {
			sum.Matched++
			if !equalDocs(prev, fields) {
				sum.Modified++
			}
		} else {
			sum.Upserted++
		}
		coll[rec.ID] = fields
	}
	return sum, nil
}

// InsertInvalid implements Sink.
func (m *Memory) InsertInvalid(ctx context.Context, collection string, recs []*record.InvalidRecord) (WriteSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var sum WriteSummary
	if m.Err != nil {
		return sum, m.Err
	}
	for _, rec := range recs {
		m.Invalid[collection] = append(m.Invalid[collection], rec.Document())
		sum.Inserted++
	}
	return sum, nil
}

// EnsureIndexes records index declarations idempotently, mirroring the
// Mongo store's index DDL for tests.
func (m *Memory) EnsureIndexes(collection string, names ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set := m.Indexes[collection]
	if set == nil {
		set = map[string]bool{}
		m.Indexes[collection] = set
	}
	for _, n := range names {
		set[n] = true
	}
}

// Get returns the stored document for a key, if present.
func (m *Memory) Get(collection, id string) (bson.D, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.Docs[collection][id]
	return doc, ok
}

// equalDocs compares documents structurally; values may be nested bson.D
// (GeoJSON points) or bson.A, so plain comparison would panic.
func equalDocs(a, b bson.D) bool {
	return reflect.DeepEqual(a, b)
}
