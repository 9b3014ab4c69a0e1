package record

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed record.schema.json
var recordSchema []byte

const schemaURL = "https://docingest.local/record.schema.json"

// Validator checks raw lines against the record JSON schema.
type Validator struct {
	schema *jsonschema.Schema
}

var (
	defaultValidator    *Validator
	defaultValidatorErr error
	defaultValidatorOne sync.Once
)

// DefaultValidator returns the validator for the embedded record schema.
// The schema is compiled once per process.
func DefaultValidator() (*Validator, error) {
	defaultValidatorOne.Do(func() {
		defaultValidator, defaultValidatorErr = NewValidator(recordSchema)
	})
	return defaultValidator, defaultValidatorErr
}

// NewValidator compiles a JSON schema document.
func NewValidator(schemaDoc []byte) (*Validator, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaDoc))
	if err != nil {
		return nil, fmt.Errorf("parse record schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("add record schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile record schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Validate returns nil if line is a schema-conforming record.
func (v *Validator) Validate(line []byte) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(line))
	if err != nil {
		return err
	}
	return v.schema.Validate(inst)
}
