// Package schema is the single source of truth for the SkillBridge
// opportunity record layout. The field list drives both extraction (which
// table cell feeds which field) and persistence (which columns are written,
// in which order), so adding or renaming a field only ever touches this
// package.
package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// FieldType is the semantic type of a field value.
type FieldType string

// Field value types.
const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeInteger FieldType = "integer"
)

// NoColumn marks a field that is not read from a table cell.
const NoColumn = -1

// Field describes one opportunity attribute.
type Field struct {
	// Name is the canonical field name, also used as the DB column name.
	Name string
	// Type is the semantic type values must satisfy when present.
	Type FieldType
	// Description is the human label the source table uses for the column.
	Description string
	// Column is the zero-based cell index the value is read from, or
	// NoColumn for surrogate and derived fields.
	Column int
}

// CellBacked reports whether the field is read from a table cell.
func (f Field) CellBacked() bool {
	return f.Column != NoColumn
}

// Record maps field names to optional values. A valid record carries exactly
// the registry's field set as keys; a nil value means "not observed".
type Record map[string]any

// Identity fields combine into the cross-run matching key.
const (
	FieldAgency = "partner_program_agency"
	FieldCity   = "city"
	FieldState  = "state"
)

// Derived coordinate fields, parsed from markup rather than cell text.
const (
	FieldLatitude  = "latitude"
	FieldLongitude = "longitude"
)

// identitySeparator joins identity values; it does not occur in the data.
const identitySeparator = "|"

// Registry holds the ordered field definitions for opportunity records.
type Registry struct {
	fields []Field
	byName map[string]Field
}

// NewRegistry returns the registry describing the SkillBridge locations
// table. Cell indices follow the rendered column order; index 0 is the
// map-pin cell whose markup carries the coordinates.
func NewRegistry() *Registry {
	fields := []Field{
		{Name: "id", Type: TypeInteger, Description: "Database ID", Column: NoColumn},
		{Name: FieldAgency, Type: TypeString, Description: "Partner/Program/Agency", Column: 1},
		{Name: "service", Type: TypeString, Description: "Service", Column: 2},
		{Name: FieldCity, Type: TypeString, Description: "City", Column: 3},
		{Name: FieldState, Type: TypeString, Description: "State", Column: 4},
		{Name: "duration_of_training", Type: TypeString, Description: "Duration of Training", Column: 5},
		{Name: "employer_poc", Type: TypeString, Description: "Employer POC", Column: 6},
		{Name: "poc_email", Type: TypeString, Description: "POC Email", Column: 7},
		{Name: "cost", Type: TypeString, Description: "Cost", Column: 8},
		{Name: "closest_installation", Type: TypeString, Description: "Closest Installation", Column: 9},
		{Name: "opportunity_locations_by_state", Type: TypeString, Description: "Opportunity Locations by State", Column: 10},
		{Name: "delivery_method", Type: TypeString, Description: "Delivery Method", Column: 11},
		{Name: "target_mocs", Type: TypeString, Description: "Target MOCs", Column: 12},
		{Name: "other_eligibility_factors", Type: TypeString, Description: "Other Eligibility Factors", Column: 13},
		{Name: "other_prerequisite", Type: TypeString, Description: "Other/Prerequisite", Column: 14},
		{Name: "jobs_description", Type: TypeString, Description: "Jobs Description", Column: 15},
		{Name: "summary_description", Type: TypeString, Description: "Summary Description", Column: 16},
		{Name: "job_family", Type: TypeString, Description: "Job Family", Column: 17},
		{Name: "mou_organization", Type: TypeString, Description: "MOU Organization", Column: 18},
		{Name: FieldLatitude, Type: TypeNumber, Description: "Latitude", Column: NoColumn},
		{Name: FieldLongitude, Type: TypeNumber, Description: "Longitude", Column: NoColumn},
	}
	return FromFields(fields)
}

// FromFields builds a registry from an explicit field list. The list must
// not repeat names or cell indices; both would silently shadow data.
func FromFields(fields []Field) *Registry {
	byName := make(map[string]Field, len(fields))
	byColumn := make(map[int]string, len(fields))
	for _, f := range fields {
		if _, dup := byName[f.Name]; dup {
			panic(fmt.Sprintf("schema: duplicate field %q", f.Name))
		}
		byName[f.Name] = f
		if !f.CellBacked() {
			continue
		}
		if f.Column < 0 {
			panic(fmt.Sprintf("schema: field %q has negative column %d", f.Name, f.Column))
		}
		if prev, dup := byColumn[f.Column]; dup {
			panic(fmt.Sprintf("schema: column %d claimed by %q and %q", f.Column, prev, f.Name))
		}
		byColumn[f.Column] = f.Name
	}
	return &Registry{fields: append([]Field(nil), fields...), byName: byName}
}

// Fields returns the ordered field definitions.
func (r *Registry) Fields() []Field {
	return append([]Field(nil), r.fields...)
}

// Lookup returns the definition for name.
func (r *Registry) Lookup(name string) (Field, bool) {
	f, ok := r.byName[name]
	return f, ok
}

// DBColumns returns the ordered column names written to the store. The
// surrogate "id" column is storage-internal and excluded.
func (r *Registry) DBColumns() []string {
	cols := make([]string, 0, len(r.fields)-1)
	for _, f := range r.fields {
		if f.Name == "id" {
			continue
		}
		cols = append(cols, f.Name)
	}
	return cols
}

// IdentityColumns returns the columns whose values form the identifier.
func (r *Registry) IdentityColumns() []string {
	return []string{FieldAgency, FieldCity, FieldState}
}

// NonIdentityColumns returns DBColumns minus the identity columns; these are
// the columns compared for drift and rewritten on update.
func (r *Registry) NonIdentityColumns() []string {
	identity := map[string]struct{}{
		FieldAgency: {},
		FieldCity:   {},
		FieldState:  {},
	}
	cols := make([]string, 0, len(r.fields))
	for _, name := range r.DBColumns() {
		if _, ok := identity[name]; ok {
			continue
		}
		cols = append(cols, name)
	}
	return cols
}

// NewRecord returns a record carrying every schema field with a nil value.
func (r *Registry) NewRecord() Record {
	rec := make(Record, len(r.fields))
	for _, f := range r.fields {
		rec[f.Name] = nil
	}
	return rec
}

// OrderedValues returns the record's values in DBColumns order. Missing or
// unset fields yield nil, never an error.
func (r *Registry) OrderedValues(rec Record) []any {
	cols := r.DBColumns()
	values := make([]any, len(cols))
	for i, name := range cols {
		values[i] = rec[name]
	}
	return values
}

// Validate checks the record's present values against their declared types.
// String fields accept any value (they are string-coerced downstream);
// numeric fields must already be numeric or parse as such.
func (r *Registry) Validate(rec Record) error {
	for _, f := range r.fields {
		v, ok := rec[f.Name]
		if !ok || v == nil {
			continue
		}
		switch f.Type {
		case TypeNumber:
			if _, err := coerceFloat(v); err != nil {
				return fmt.Errorf("field %s: %w", f.Name, err)
			}
		case TypeInteger:
			if _, err := coerceInt(v); err != nil {
				return fmt.Errorf("field %s: %w", f.Name, err)
			}
		case TypeString:
		}
	}
	return nil
}

func coerceFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("value %q is not a number", n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("value %v (%T) is not a number", v, v)
	}
}

func coerceInt(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != float64(int64(n)) {
			return 0, fmt.Errorf("value %v is not an integer", n)
		}
		return int64(n), nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("value %q is not an integer", n)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("value %v (%T) is not an integer", v, v)
	}
}
