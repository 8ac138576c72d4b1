// Package pipeline wires the chunker, the record builder, and the storage
// sink into the synchronous ingestion run.
//
// Rows are read, validated, and written in strict batch order on a single
// goroutine. Batches are independent by natural key, and within a file a
// later row with the same key overwrites an earlier one because upserts are
// processed in input order. A terminated run leaves the store valid (if
// incomplete): every write is independently idempotent, so the recovery
// story for an aborted run is simply to run it again.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ecohealthalliance/birt-consumer/internal/config"
	"github.com/ecohealthalliance/birt-consumer/internal/metrics"
	parsecsv "github.com/ecohealthalliance/birt-consumer/internal/parser/csv"
	"github.com/ecohealthalliance/birt-consumer/internal/record"
	"github.com/ecohealthalliance/birt-consumer/internal/schema"
	"github.com/ecohealthalliance/birt-consumer/internal/storage"
)

// State is the terminal state of a run.
type State int

const (
	// Succeeded: all batches processed, no failures.
	Succeeded State = iota
	// PartiallyFailed: the run completed but some rows were rejected or
	// some writes failed.
	PartiallyFailed
	// FatallyAborted: the run stopped before completion (unsupported
	// file, header mismatch in strict mode, unusable connection).
	FatallyAborted
)

func (s State) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case PartiallyFailed:
		return "partially-failed"
	case FatallyAborted:
		return "fatally-aborted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Summary is the user-visible outcome of a run.
type Summary struct {
	State     State
	Processed int64
	Valid     int64
	Invalid   int64
	Write     storage.WriteSummary
	Elapsed   time.Duration
}

func (s Summary) String() string {
	return fmt.Sprintf(
		"state=%s processed=%d valid=%d invalid=%d matched=%d modified=%d upserted=%d failed=%d elapsed=%s",
		s.State, s.Processed, s.Valid, s.Invalid,
		s.Write.Matched, s.Write.Modified, s.Write.Upserted, s.Write.Failed,
		s.Elapsed.Truncate(time.Millisecond),
	)
}

// Pipeline runs one ingestion of one input file.
type Pipeline struct {
	Path     string
	Type     schema.RecordType
	Settings config.Settings
	Sink     storage.Sink

	// Verbose echoes every raw row, matching the original tool.
	Verbose bool

	// Job labels metrics; defaults to "birt_consume".
	Job string
}

// Run executes the ingestion. The returned Summary is meaningful even when
// err is non-nil (counts up to the abort). Fatal errors are returned; row
// and record level failures are only counted.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	job := p.Job
	if job == "" {
		job = "birt_consume"
	}

	sum, err := p.run(ctx)
	sum.Elapsed = time.Since(start)

	metrics.RecordStep(job, "ingest", err, sum.Elapsed)
	metrics.RecordRows(job, "processed", sum.Processed)
	metrics.RecordRows(job, "valid", sum.Valid)
	metrics.RecordRows(job, "invalid", sum.Invalid)
	metrics.RecordRows(job, "matched", sum.Write.Matched)
	metrics.RecordRows(job, "upserted", sum.Write.Upserted)
	metrics.RecordRows(job, "failed", sum.Write.Failed)
	if ferr := metrics.Flush(); ferr != nil {
		log.Printf("metrics: flush failed: %v", ferr)
	}

	return sum, err
}

func (p *Pipeline) run(ctx context.Context) (Summary, error) {
	var sum Summary

	s := schema.For(p.Type)
	target := p.Settings.Collections.Paths
	if s.Target == schema.TargetNodes {
		target = p.Settings.Collections.Nodes
	}

	layout, err := schema.Layout(p.Settings.DateFormat)
	if err != nil {
		sum.State = FatallyAborted
		return sum, err
	}

	chunker, err := parsecsv.Open(p.Path, p.Settings.ChunkSize, p.Settings.AllowedExtensions)
	if err != nil {
		sum.State = FatallyAborted
		return sum, err
	}
	defer chunker.Close()

	builder, err := record.NewBuilder(s, chunker.Header(), record.Options{
		Strict:     !p.Settings.DisableSchemaMatch,
		DateLayout: layout,
	})
	if err != nil {
		sum.State = FatallyAborted
		return sum, err
	}

	// Rows the csv layer itself could not parse go to the invalid sink
	// alongside rows that fail validation.
	var pending []*record.InvalidRecord
	chunker.OnError = func(line int, raw []string, err error) {
		pending = append(pending, record.NewInvalid(s.Type, line, raw, err.Error()))
	}

	batches := 0
	for {
		batch, err := chunker.Next(ctx)
		if err != nil {
			sum.State = FatallyAborted
			return sum, err
		}
		if batch == nil && len(pending) == 0 {
			break
		}

		valid := make([]*record.Record, 0, len(batch))
		invalid := pending
		pending = nil

		for _, row := range batch {
			if p.Verbose {
				log.Printf("row %d: %q", row.Line, row.Fields)
			}
			rec, inv := builder.Build(row)
			if rec != nil {
				valid = append(valid, rec)
			} else {
				if p.Verbose {
					log.Printf("row %d rejected: %s", inv.Line, inv.Reason)
				}
				invalid = append(invalid, inv)
			}
		}
		sum.Processed += int64(len(batch))
		sum.Valid += int64(len(valid))
		sum.Invalid += int64(len(invalid))

		ws, err := p.Sink.BulkUpsert(ctx, target, valid)
		sum.Write.Add(ws)
		if err != nil {
			sum.State = FatallyAborted
			return sum, fmt.Errorf("write batch: %w", err)
		}

		ws, err = p.Sink.InsertInvalid(ctx, p.Settings.Collections.Invalid, invalid)
		sum.Write.Failed += ws.Failed
		if err != nil {
			sum.State = FatallyAborted
			return sum, fmt.Errorf("write invalid records: %w", err)
		}

		batches++
		log.Printf("batch #%d: rows=%d valid=%d invalid=%d total=%d",
			batches, len(batch), len(valid), len(invalid), sum.Processed)

		if batch == nil {
			break
		}
	}

	if sum.Invalid > 0 || sum.Write.Failed > 0 {
		sum.State = PartiallyFailed
	} else {
		sum.State = Succeeded
	}
	return sum, nil
}
