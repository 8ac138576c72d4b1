// Package schema defines the static field contracts for the three bird
// migration record types and the registry that maps a record type to its
// contract.
//
// A Schema is data, not behavior: the record builder consults it to decide
// how each input column is typed, which column forms the natural key used
// for upserts, and which destination collection the record lands in. The
// contracts mirror the reference data extracts (eBird taxonomy plus the
// checklist/core migration extracts) column for column.
package schema

import (
	"fmt"
	"strings"
)

// RecordType selects which contract and destination collection apply to an
// input file.
type RecordType string

const (
	Taxonomy  RecordType = "Taxonomy"
	Checklist RecordType = "Checklist"
	Core      RecordType = "Core"
)

// Types lists the valid record types in CLI presentation order.
var Types = []RecordType{Taxonomy, Checklist, Core}

// ParseRecordType maps a CLI string onto a RecordType. Matching is
// case-insensitive.
func ParseRecordType(s string) (RecordType, error) {
	for _, t := range Types {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown record type %q (valid: Taxonomy, Checklist, Core)", s)
}

// Kind is the semantic type of a column value.
type Kind string

const (
	KindString Kind = "string"
	KindInt    Kind = "int"
	// KindFloat and KindNumber both decode to float64; they are kept
	// distinct because the source contracts distinguish them.
	KindFloat  Kind = "float"
	KindNumber Kind = "number"
	KindBool   Kind = "bool"
	// KindDate parses with the configured date format.
	KindDate Kind = "date"
)

// Field describes one expected column.
type Field struct {
	Name     string
	Kind     Kind
	Required bool

	// Layout optionally overrides the run-wide date format for KindDate
	// fields. Go reference-time layout.
	Layout string
}

// ExtrasRule states how columns present in the input header but absent from
// the contract are treated in permissive mode.
type ExtrasRule int

const (
	// ExtrasIgnore drops unknown columns.
	ExtrasIgnore ExtrasRule = iota
	// ExtrasFloat stores unknown columns as nullable floats (the core
	// extract carries NLCD land-cover columns this way).
	ExtrasFloat
	// ExtrasCount stores unknown columns as positive integer counts and
	// omits them otherwise (the checklist extract carries per-species
	// observation counts this way).
	ExtrasCount
)

// Target names the destination collection symbolically; the concrete
// collection name comes from configuration.
type Target int

const (
	TargetNodes Target = iota
	TargetPaths
)

// Schema is the full contract for one record type.
type Schema struct {
	Type   RecordType
	Target Target

	// Key is the input column forming the natural key (document _id).
	Key string
	// FoldKey lowercases the key value before use.
	FoldKey bool

	Fields []Field
	Extras ExtrasRule

	// Coordinates marks contracts whose latitude/longitude columns are
	// folded into a GeoJSON Point rather than stored as plain fields.
	Coordinates bool
	// GenerateDate marks contracts that derive a date field from the
	// year and day-of-year columns.
	GenerateDate bool
}

// Field returns the contract field with the given name, or nil.
func (s Schema) Field(name string) *Field {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i]
		}
	}
	return nil
}

var taxonomySchema = Schema{
	Type:    Taxonomy,
	Target:  TargetNodes,
	Key:     "sci_name",
	FoldKey: true,
	Fields: []Field{
		{Name: "taxon_order", Kind: KindNumber},
		{Name: "primary_com_name", Kind: KindString, Required: true},
		{Name: "category", Kind: KindString},
		{Name: "order_name", Kind: KindString},
		{Name: "family_name", Kind: KindString},
		{Name: "subfamily_name", Kind: KindString},
		{Name: "genus_name", Kind: KindString},
		{Name: "species_name", Kind: KindString},
	},
	Extras: ExtrasIgnore,
}

var checklistSchema = Schema{
	Type:   Checklist,
	Target: TargetPaths,
	Key:    "sampling_event_id",
	Fields: []Field{
		{Name: "loc_id", Kind: KindString},
		{Name: "latitude", Kind: KindFloat},
		{Name: "longitude", Kind: KindFloat},
		{Name: "year", Kind: KindInt, Required: true},
		{Name: "month", Kind: KindInt, Required: true},
		{Name: "day", Kind: KindInt, Required: true},
		{Name: "time", Kind: KindNumber},
		{Name: "country", Kind: KindString},
		{Name: "state_province", Kind: KindString},
		{Name: "county", Kind: KindString},
		{Name: "count_type", Kind: KindString},
		{Name: "effort_hrs", Kind: KindNumber},
		{Name: "effort_distance_km", Kind: KindNumber},
		{Name: "effort_area_ha", Kind: KindNumber},
		{Name: "observer_id", Kind: KindString},
		{Name: "number_observers", Kind: KindInt},
		{Name: "group_id", Kind: KindString},
		{Name: "primary_checklist_flag", Kind: KindBool},
		{Name: "date", Kind: KindDate},
	},
	Extras:       ExtrasCount,
	Coordinates:  true,
	GenerateDate: true,
}

var coreSchema = Schema{
	Type:   Core,
	Target: TargetPaths,
	Key:    "sampling_event_id",
	Fields: []Field{
		{Name: "loc_id", Kind: KindString},
		{Name: "pop00_sqmi", Kind: KindNumber},
		{Name: "housing_density", Kind: KindNumber},
		{Name: "housing_percent_vacant", Kind: KindNumber},
		{Name: "elev_gt", Kind: KindInt},
		{Name: "elev_ned", Kind: KindNumber},
		{Name: "bcr", Kind: KindInt},
		{Name: "bailey_ecoregion", Kind: KindString},
		{Name: "omernik_l3_ecoregion", Kind: KindInt},
		{Name: "caus_temp_avg", Kind: KindInt},
		{Name: "caus_temp_min", Kind: KindInt},
		{Name: "caus_temp_max", Kind: KindInt},
		{Name: "caus_prec", Kind: KindInt},
		{Name: "caus_snow", Kind: KindInt},
	},
	Extras: ExtrasFloat,
}

// For returns the contract for a record type.
func For(t RecordType) Schema {
	switch t {
	case Taxonomy:
		return taxonomySchema
	case Checklist:
		return checklistSchema
	case Core:
		return coreSchema
	}
	panic(fmt.Sprintf("schema: no contract for record type %q", t))
}
