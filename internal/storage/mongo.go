package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"golang.org/x/sync/errgroup"

	"github.com/ecohealthalliance/birt-consumer/internal/record"
)

// Config carries the connection parameters for the document store.
type Config struct {
	Host     string
	Database string
	Username string
	Password string

	// ConnectTimeout bounds the initial connect+ping. Zero means 10s.
	ConnectTimeout time.Duration
}

// URI renders the MongoDB connection string. Credentials are included only
// when a username or password is set, mirroring the CLI defaults where both
// are empty for local development.
func (c Config) URI() string {
	if c.Username != "" || c.Password != "" {
		return fmt.Sprintf("mongodb://%s:%s@%s/%s",
			url.QueryEscape(c.Username), url.QueryEscape(c.Password), c.Host, c.Database)
	}
	return fmt.Sprintf("mongodb://%s/%s", c.Host, c.Database)
}

// Store is the MongoDB-backed Sink plus the index DDL surface. One Store is
// held for the duration of a run and released with Close.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials the store and verifies the connection with a ping.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	timeout := cfg.ConnectTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI()))
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Host, err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping %s: %w", cfg.Host, err)
	}
	return &Store{client: client, db: client.Database(cfg.Database)}, nil
}

// Close releases the connection.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// BulkUpsert writes records in input order as _id-keyed upserts, so within
// one batch a later row with the same key overwrites an earlier one. Write
// errors on individual records are counted and logged; only errors that
// leave the connection unusable are returned.
func (s *Store) BulkUpsert(ctx context.Context, collection string, recs []*record.Record) (WriteSummary, error) {
	var sum WriteSummary
	if len(recs) == 0 {
		return sum, nil
	}

	now := time.Now().UTC()
	models := make([]mongo.WriteModel, 0, len(recs))
	for _, rec := range recs {
		set := make(bson.D, 0, len(rec.Fields)+1)
		set = append(set, rec.Fields...)
		set = append(set, bson.E{Key: "last_updated", Value: now})

		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.D{{Key: "_id", Value: rec.ID}}).
			SetUpdate(bson.D{{Key: "$set", Value: set}}).
			SetUpsert(true))
	}

	res, err := s.db.Collection(collection).BulkWrite(ctx, models,
		options.BulkWrite().SetOrdered(true))
	if res != nil {
		sum.Matched = res.MatchedCount
		sum.Modified = res.ModifiedCount
		sum.Upserted = res.UpsertedCount
	}
	if err != nil {
		var bwe mongo.BulkWriteException
		if errors.As(err, &bwe) && !fatal(err) {
			sum.Failed = int64(len(bwe.WriteErrors))
			for _, we := range bwe.WriteErrors {
				log.Printf("upsert failed: collection=%s index=%d code=%d msg=%s",
					collection, we.Index, we.Code, we.Message)
			}
			return sum, nil
		}
		return sum, fmt.Errorf("bulk upsert %s: %w", collection, err)
	}
	return sum, nil
}

// InsertInvalid appends rejected rows with a plain unordered insert. Invalid
// records carry no natural key, so duplicates may accumulate across runs;
// that is accepted behavior.
func (s *Store) InsertInvalid(ctx context.Context, collection string, recs []*record.InvalidRecord) (WriteSummary, error) {
	var sum WriteSummary
	if len(recs) == 0 {
		return sum, nil
	}

	docs := make([]any, 0, len(recs))
	for _, rec := range recs {
		docs = append(docs, rec.Document())
	}

	res, err := s.db.Collection(collection).InsertMany(ctx, docs,
		options.InsertMany().SetOrdered(false))
	if res != nil {
		sum.Inserted = int64(len(res.InsertedIDs))
	}
	if err != nil {
		var bwe mongo.BulkWriteException
		if errors.As(err, &bwe) && !fatal(err) {
			sum.Failed = int64(len(bwe.WriteErrors))
			log.Printf("insert invalid: collection=%s failed=%d", collection, sum.Failed)
			return sum, nil
		}
		return sum, fmt.Errorf("insert invalid %s: %w", collection, err)
	}
	return sum, nil
}

// Count returns the number of documents in a collection. The consumer uses
// it to verify the taxonomy import ran before a checklist import.
func (s *Store) Count(ctx context.Context, collection string) (int64, error) {
	n, err := s.db.Collection(collection).CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

// typeaheadWeights orders the taxonomy text index so common-name matches
// outrank the broader classification fields.
var typeaheadWeights = bson.D{
	{Key: "taxon_order", Value: 1},
	{Key: "subfamily_name", Value: 2},
	{Key: "order_name", Value: 3},
	{Key: "family_name", Value: 4},
	{Key: "category", Value: 5},
	{Key: "genus_name", Value: 6},
	{Key: "species_name", Value: 7},
	{Key: "primary_com_name", Value: 8},
	{Key: "_id", Value: 9},
}

// EnsureIndexes idempotently declares the lookup and geospatial indexes on
// the node and path collections. Creation is fanned out per collection; the
// per-collection DDL itself is sequential.
func (s *Store) EnsureIndexes(ctx context.Context, nodes, paths string) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		coll := s.db.Collection(nodes)

		_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{{Key: "loc", Value: "2dsphere"}},
		})
		if err != nil {
			return fmt.Errorf("create 2dsphere index on %s: %w", nodes, err)
		}

		_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{
				{Key: "_id", Value: 1},
				{Key: "primary_com_name", Value: "text"},
				{Key: "species_name", Value: "text"},
				{Key: "genus_name", Value: "text"},
				{Key: "category", Value: "text"},
				{Key: "family_name", Value: "text"},
				{Key: "order_name", Value: "text"},
				{Key: "subfamily_name", Value: "text"},
				{Key: "taxon_order", Value: "text"},
			},
			Options: options.Index().
				SetName("idxTypeahead").
				SetWeights(typeaheadWeights),
		})
		if err != nil {
			return fmt.Errorf("create typeahead index on %s: %w", nodes, err)
		}
		return nil
	})

	g.Go(func() error {
		_, err := s.db.Collection(paths).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{
				{Key: "year", Value: 1},
				{Key: "month", Value: 1},
				{Key: "day", Value: 1},
			},
		})
		if err != nil {
			return fmt.Errorf("create date index on %s: %w", paths, err)
		}
		return nil
	})

	return g.Wait()
}

// DropIndexes removes all non-_id indexes from the given collections.
func (s *Store) DropIndexes(ctx context.Context, collections ...string) error {
	for _, name := range collections {
		if _, err := s.db.Collection(name).Indexes().DropAll(ctx); err != nil {
			return fmt.Errorf("drop indexes on %s: %w", name, err)
		}
	}
	return nil
}

// fatal reports whether err means the connection itself is unusable, in
// which case the run must abort rather than continue counting failures.
func fatal(err error) bool {
	return mongo.IsNetworkError(err) ||
		mongo.IsTimeout(err) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
