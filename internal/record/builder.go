package record

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	parsecsv "github.com/ecohealthalliance/birt-consumer/internal/parser/csv"
	"github.com/ecohealthalliance/birt-consumer/internal/schema"
)

// ErrHeaderMismatch is returned by NewBuilder in strict mode when the input
// header does not cover the schema contract exactly.
var ErrHeaderMismatch = errors.New("header does not match schema")

// Options configures a Builder for one run.
type Options struct {
	// Strict makes any header/contract mismatch a fatal construction
	// error. Permissive (the default) null-fills missing optional
	// columns and applies the schema's extras rule to unknown ones.
	Strict bool

	// DateLayout is the Go reference-time layout used for date-typed
	// fields that do not declare their own.
	DateLayout string
}

type colRole int

const (
	roleField colRole = iota
	roleKey
	roleLat
	roleLon
	roleExtra
	roleIgnore
)

type colPlan struct {
	name  string
	role  colRole
	field *schema.Field
}

// Builder converts raw rows into typed records according to a schema
// contract. Construct one per run with NewBuilder.
type Builder struct {
	schema schema.Schema
	opts   Options

	plan []colPlan

	// Permissive-mode fallout from the header check.
	keyMissing      bool
	missingRequired []string
	nullFill        []string
}

// NewBuilder plans the column mapping for the given (already normalized)
// header. In strict mode a header that omits contract columns or carries
// unknown ones fails with ErrHeaderMismatch; in permissive mode missing
// optional columns are null-filled, missing required columns condemn every
// row to the invalid sink, and unknown columns follow the schema's extras
// rule.
func NewBuilder(s schema.Schema, header []string, opts Options) (*Builder, error) {
	b := &Builder{schema: s, opts: opts}

	seen := make(map[string]bool, len(header))
	for _, name := range header {
		seen[name] = true

		switch {
		case name == s.Key:
			b.plan = append(b.plan, colPlan{name: name, role: roleKey})
		case s.Coordinates && name == "latitude":
			b.plan = append(b.plan, colPlan{name: name, role: roleLat})
		case s.Coordinates && name == "longitude":
			b.plan = append(b.plan, colPlan{name: name, role: roleLon})
		default:
			if f := s.Field(name); f != nil {
				b.plan = append(b.plan, colPlan{name: name, role: roleField, field: f})
				continue
			}
			if opts.Strict {
				return nil, fmt.Errorf("%w: unknown column %q", ErrHeaderMismatch, name)
			}
			switch s.Extras {
			case schema.ExtrasIgnore:
				b.plan = append(b.plan, colPlan{name: name, role: roleIgnore})
			default:
				b.plan = append(b.plan, colPlan{name: sanitizeKey(name), role: roleExtra})
			}
		}
	}

	if !seen[s.Key] {
		if opts.Strict {
			return nil, fmt.Errorf("%w: missing key column %q", ErrHeaderMismatch, s.Key)
		}
		b.keyMissing = true
	}
	for i := range s.Fields {
		f := &s.Fields[i]
		if seen[f.Name] {
			continue
		}
		// A generated date needs no input column, even in strict mode.
		if s.GenerateDate && f.Name == "date" {
			b.nullFill = append(b.nullFill, f.Name)
			continue
		}
		// Coordinates fold into the loc point; they are never stored
		// (or null-filled) as plain fields.
		if s.Coordinates && (f.Name == "latitude" || f.Name == "longitude") {
			continue
		}
		if opts.Strict {
			return nil, fmt.Errorf("%w: missing column %q", ErrHeaderMismatch, f.Name)
		}
		if f.Required {
			// Missing required columns always route rows to the
			// invalid sink, independent of the strictness flag.
			b.missingRequired = append(b.missingRequired, f.Name)
		} else {
			b.nullFill = append(b.nullFill, f.Name)
		}
	}

	return b, nil
}

// Build converts one raw row. Exactly one of the return values is non-nil;
// row-level failures never surface as errors.
func (b *Builder) Build(row parsecsv.Row) (*Record, *InvalidRecord) {
	invalid := func(reason string) (*Record, *InvalidRecord) {
		return nil, NewInvalid(b.schema.Type, row.Line, row.Fields, reason)
	}

	if len(row.Fields) != len(b.plan) {
		return invalid(fmt.Sprintf("column count mismatch: header has %d, row has %d",
			len(b.plan), len(row.Fields)))
	}
	if b.keyMissing {
		return invalid(fmt.Sprintf("missing natural key column %q", b.schema.Key))
	}
	if len(b.missingRequired) > 0 {
		return invalid(fmt.Sprintf("missing required column %q", b.missingRequired[0]))
	}

	rec := &Record{
		Type:   b.schema.Type,
		Line:   row.Line,
		Fields: make(bson.D, 0, len(b.plan)+2),
	}

	var lat, lon *float64

	for i, cell := range row.Fields {
		p := b.plan[i]
		switch p.role {
		case roleIgnore:
			continue

		case roleKey:
			if cell == "" {
				return invalid(fmt.Sprintf("missing value for natural key %q", b.schema.Key))
			}
			if b.schema.FoldKey {
				cell = strings.ToLower(cell)
			}
			rec.ID = cell

		case roleLat, roleLon:
			if cell == "" {
				continue
			}
			f, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return invalid(fmt.Sprintf("field %q: %q is not a float", p.name, cell))
			}
			if p.role == roleLat {
				lat = &f
			} else {
				lon = &f
			}

		case roleExtra:
			switch b.schema.Extras {
			case schema.ExtrasFloat:
				if f, err := strconv.ParseFloat(cell, 64); err == nil {
					rec.Fields = append(rec.Fields, bson.E{Key: p.name, Value: f})
				} else {
					rec.Fields = append(rec.Fields, bson.E{Key: p.name, Value: nil})
				}
			case schema.ExtrasCount:
				// Species observation counts: keep positive
				// integers, omit everything else.
				if n, err := strconv.ParseInt(cell, 10, 64); err == nil && n > 0 {
					rec.Fields = append(rec.Fields, bson.E{Key: p.name, Value: n})
				}
			}

		case roleField:
			v, err := convert(cell, p.field, b.opts.DateLayout)
			if err != nil {
				return invalid(err.Error())
			}
			if p.field.Required && v == nil {
				return invalid(fmt.Sprintf("required field %q is empty", p.name))
			}
			rec.Fields = append(rec.Fields, bson.E{Key: p.name, Value: v})
		}
	}

	for _, name := range b.nullFill {
		rec.Fields = append(rec.Fields, bson.E{Key: name, Value: nil})
	}
	if rec.ID == "" {
		return invalid(fmt.Sprintf("missing value for natural key %q", b.schema.Key))
	}

	if b.schema.Coordinates {
		rec.Fields = append(rec.Fields, bson.E{Key: "loc", Value: geoPoint(lat, lon)})
	}
	if b.schema.GenerateDate {
		b.fillDate(rec)
	}

	return rec, nil
}

// convert coerces a raw cell into the field's declared type. Empty cells and
// the "?" placeholder become nil; unparsable numeric and date cells are
// errors the caller turns into invalid records.
func convert(cell string, f *schema.Field, dateLayout string) (any, error) {
	if cell == "" || cell == "?" {
		return nil, nil
	}

	switch f.Kind {
	case schema.KindString:
		return cell, nil

	case schema.KindInt:
		n, err := strconv.ParseInt(cell, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("field %q: %q is not an integer", f.Name, cell)
		}
		return n, nil

	case schema.KindFloat, schema.KindNumber:
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, fmt.Errorf("field %q: %q is not a number", f.Name, cell)
		}
		return v, nil

	case schema.KindBool:
		switch strings.ToLower(cell) {
		case "1", "t", "true", "y", "yes":
			return true, nil
		case "0", "f", "false", "n", "no":
			return false, nil
		}
		return nil, nil

	case schema.KindDate:
		layout := f.Layout
		if layout == "" {
			layout = dateLayout
		}
		d, err := time.ParseInLocation(layout, cell, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("field %q: cannot parse %q with format %q", f.Name, cell, layout)
		}
		return d, nil
	}

	return cell, nil
}

// geoPoint builds a GeoJSON Point from a coordinate pair, or nil when the
// pair is incomplete or out of range. The store rejects malformed GeoJSON,
// so a bad pair degrades to a document without a location.
func geoPoint(lat, lon *float64) any {
	if lat == nil || lon == nil {
		return nil
	}
	if *lat < -90 || *lat > 90 || *lon < -180 || *lon > 180 {
		return nil
	}
	// GeoJSON order: longitude first.
	return bson.D{
		{Key: "type", Value: "Point"},
		{Key: "coordinates", Value: bson.A{*lon, *lat}},
	}
}

// fillDate derives the record date from the year and day-of-year columns
// unless an explicit date column already supplied one.
func (b *Builder) fillDate(rec *Record) {
	var year, day int64
	var haveYear, haveDay bool

	for _, e := range rec.Fields {
		switch e.Key {
		case "date":
			if e.Value != nil {
				return
			}
		case "year":
			year, haveYear = asInt(e.Value)
		case "day":
			day, haveDay = asInt(e.Value)
		}
	}

	var d any
	if haveYear && haveDay && day >= 1 && day <= 366 {
		d = time.Date(int(year), 1, 1, 0, 0, 0, 0, time.UTC).
			AddDate(0, 0, int(day)-1)
	}

	for i, e := range rec.Fields {
		if e.Key == "date" {
			rec.Fields[i].Value = d
			return
		}
	}
	rec.Fields = append(rec.Fields, bson.E{Key: "date", Value: d})
}

func asInt(v any) (int64, bool) {
	n, ok := v.(int64)
	return n, ok
}

// sanitizeKey makes an unmapped header safe to use as a document key.
func sanitizeKey(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
