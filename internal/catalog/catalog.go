// Package catalog holds the fixed, ordered list of inspection report fields and
// the patterns used to recognize each of them on an OCR text line.
package catalog

import (
	"fmt"
	"regexp"

	"github.com/joseph-ayodele/inspection-extractor/constants"
)

// FieldSpec describes one catalog entry.
type FieldSpec struct {
	ID constants.Field
	// Aliases are tried case-insensitively against the whole line when the
	// literal identifier prefix does not match. Group 1 captures the value.
	Aliases []*regexp.Regexp
	// Numeric fields keep only the signed decimal token of their value.
	Numeric bool
	// SubFields names the output columns of a multi-output field.
	SubFields []string
}

// OutputsMultiple reports whether the field expands into several columns.
func (s FieldSpec) OutputsMultiple() bool { return len(s.SubFields) > 0 }

// Columns returns the output column names contributed by the field.
func (s FieldSpec) Columns() []string {
	if s.OutputsMultiple() {
		return append([]string(nil), s.SubFields...)
	}
	return []string{string(s.ID)}
}

// Catalog is an immutable ordered set of FieldSpec.
type Catalog struct {
	specs []FieldSpec
	byID  map[constants.Field]int
}

// New validates specs and builds a Catalog. Order is match priority.
func New(specs []FieldSpec) (*Catalog, error) {
	c := &Catalog{
		specs: make([]FieldSpec, 0, len(specs)),
		byID:  make(map[constants.Field]int, len(specs)),
	}
	columns := map[string]constants.Field{}
	for _, s := range specs {
		if s.ID == "" {
			return nil, fmt.Errorf("catalog: empty field id")
		}
		if _, dup := c.byID[s.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate field id %q", s.ID)
		}
		if len(s.SubFields) == 1 {
			return nil, fmt.Errorf("catalog: field %q declares a single sub-field", s.ID)
		}
		for _, re := range s.Aliases {
			if re == nil || re.NumSubexp() < 1 {
				return nil, fmt.Errorf("catalog: alias for %q must capture the value", s.ID)
			}
		}
		for _, col := range s.Columns() {
			if owner, taken := columns[col]; taken {
				return nil, fmt.Errorf("catalog: column %q used by %q and %q", col, owner, s.ID)
			}
			columns[col] = s.ID
		}
		c.byID[s.ID] = len(c.specs)
		c.specs = append(c.specs, s)
	}
	return c, nil
}

// Specs returns the entries in catalog order.
func (c *Catalog) Specs() []FieldSpec {
	out := make([]FieldSpec, len(c.specs))
	copy(out, c.specs)
	return out
}

func (c *Catalog) Len() int { return len(c.specs) }

// Lookup returns the spec for id.
func (c *Catalog) Lookup(id constants.Field) (FieldSpec, bool) {
	i, ok := c.byID[id]
	if !ok {
		return FieldSpec{}, false
	}
	return c.specs[i], true
}

// Columns returns every output column in catalog order.
func (c *Catalog) Columns() []string {
	out := make([]string, 0, len(c.specs)+1)
	for _, s := range c.specs {
		out = append(out, s.Columns()...)
	}
	return out
}

var defaultCatalog = mustDefault()

// Default returns the process-wide inspection report catalog.
func Default() *Catalog { return defaultCatalog }

func mustDefault() *Catalog {
	aliases := map[constants.Field][]*regexp.Regexp{
		constants.ShipNo: {
			regexp.MustCompile(`(?i)^Ship\s*No\.?\s*[:：\s]*(.*)$`),
		},
		constants.DryBulbTemp: {
			regexp.MustCompile(`(?i)^Dry\s+bulb\s+Temp\.?\s*[:：\s]*(.*)$`),
		},
	}

	var specs []FieldSpec
	for _, f := range constants.AllFields() {
		s := FieldSpec{
			ID:      f,
			Aliases: aliases[f],
			Numeric: constants.IsNumeric(f),
		}
		if f == constants.Weather {
			s.SubFields = []string{constants.Weather1, constants.Weather2}
		}
		specs = append(specs, s)
	}
	c, err := New(specs)
	if err != nil {
		panic(err)
	}
	return c
}
