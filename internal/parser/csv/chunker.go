// Package csv reads delimited bird-migration extracts in bounded-memory
// chunks.
//
// A Chunker owns a single open file. It reads and normalizes the header row
// once, then hands out batches of at most ChunkSize data rows until the file
// is exhausted. The sequence is lazy, finite, and non-restartable; memory
// stays bounded regardless of file size.
//
// Per-row parse errors are soft: they are reported via OnError(line, err)
// and the stream continues. Only open/header failures are fatal.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrUnsupportedFileType is returned when the input file extension is not on
// the configured allow-list.
var ErrUnsupportedFileType = errors.New("unsupported file type")

// Row is one raw data row with its 1-based line number in the source file.
type Row struct {
	Line   int
	Fields []string
}

// Chunker yields fixed-size batches of raw rows from a delimited file.
type Chunker struct {
	f      *os.File
	r      *csv.Reader
	header []string
	size   int
	line   int
	done   bool

	// OnError, when set, receives per-row parse failures. The failing
	// line is skipped and reading continues.
	OnError func(line int, raw []string, err error)
}

// Open validates the file extension against allowed, opens the file, and
// consumes the header row. The delimiter is chosen by extension: tab for
// .tsv, comma otherwise. Header cells are trimmed and lowercased; a UTF-8
// or UTF-16 byte order mark is decoded away before parsing.
func Open(path string, chunkSize int, allowed []string) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be > 0, got %d", chunkSize)
	}

	ext := strings.ToLower(filepath.Ext(path))
	ok := false
	for _, a := range allowed {
		if ext == strings.ToLower(a) {
			ok = true
			break
		}
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q not in %v", ErrUnsupportedFileType, ext, allowed)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}

	// BOM-aware decode so Excel-style exports parse cleanly.
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	cr := csv.NewReader(transform.NewReader(f, dec))
	if ext == ".tsv" {
		cr.Comma = '\t'
	}
	// Width is enforced downstream against the header.
	cr.FieldsPerRecord = -1

	c := &Chunker{f: f, r: cr, size: chunkSize, line: 1}

	h, err := cr.Read()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read header: %w", err)
	}
	c.header = normalizeHeader(h)
	if len(c.header) == 0 {
		f.Close()
		return nil, fmt.Errorf("header at line 1 is empty")
	}
	return c, nil
}

// Header returns the normalized header row.
func (c *Chunker) Header() []string { return c.header }

// Next returns the next batch of up to ChunkSize rows. It returns
// (nil, nil) once the file is exhausted; the final batch may be shorter
// than ChunkSize. Fully empty rows are skipped.
func (c *Chunker) Next(ctx context.Context) ([]Row, error) {
	if c.done {
		return nil, nil
	}

	batch := make([]Row, 0, c.size)
	for len(batch) < c.size {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := c.r.Read()
		if err == io.EOF {
			c.done = true
			break
		}
		c.line++
		if err != nil {
			if c.OnError != nil {
				c.OnError(c.line, rec, err)
			}
			continue
		}
		if empty(rec) {
			continue
		}

		row := Row{Line: c.line, Fields: make([]string, len(rec))}
		for i, v := range rec {
			row.Fields[i] = strings.TrimSpace(v)
		}
		batch = append(batch, row)
	}

	if len(batch) == 0 {
		return nil, nil
	}
	return batch, nil
}

// Close releases the underlying file handle.
func (c *Chunker) Close() error { return c.f.Close() }

func normalizeHeader(h []string) []string {
	out := make([]string, 0, len(h))
	nonEmpty := false
	for _, cell := range h {
		cell = strings.ToLower(strings.TrimSpace(cell))
		if cell != "" {
			nonEmpty = true
		}
		out = append(out, cell)
	}
	if !nonEmpty {
		return nil
	}
	return out
}

func empty(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
