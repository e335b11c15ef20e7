package extract

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/inspection-extractor/internal/catalog"
)

// BuildRecordJSONSchema returns a JSON-Schema for a PageRecord: string values
// keyed by the catalog's output columns, nothing else.
func BuildRecordJSONSchema(c *catalog.Catalog) map[string]any {
	if c == nil {
		c = catalog.Default()
	}
	props := map[string]any{}
	for _, col := range c.Columns() {
		props[col] = map[string]any{"type": "string"}
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
	}
}

// RecordValidator checks page records against the catalog schema.
type RecordValidator struct {
	schema *jsonschema.Schema
}

func NewRecordValidator(c *catalog.Catalog) (*RecordValidator, error) {
	b, err := json.Marshal(BuildRecordJSONSchema(c))
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("page_record.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("page_record.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &RecordValidator{schema: schema}, nil
}

// Validate reports the first schema violation of rec, if any.
func (v *RecordValidator) Validate(rec PageRecord) error {
	doc := make(map[string]any, len(rec))
	for k, val := range rec {
		doc[k] = val
	}
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("record does not match schema: %w", err)
	}
	return nil
}

// ValidateDocument validates every record and names the offending one.
func (v *RecordValidator) ValidateDocument(doc Document) error {
	for i, rec := range doc {
		if err := v.Validate(rec); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}
