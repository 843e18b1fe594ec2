package artifact

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// ErrSchema is returned when a record does not match its schema. Nothing is
// written for a run that fails a schema check.
var ErrSchema = errors.New("schema violation")

// Record kinds with an embedded schema.
const (
	KindWork   = "work"
	KindUnit   = "unit"
	KindReport = "report"
	KindBundle = "bundle"
)

var kinds = []string{KindWork, KindUnit, KindReport, KindBundle}

var (
	compileOnce sync.Once
	compiled    map[string]*jsonschema.Schema
	compileErr  error
)

func schemas() (map[string]*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiled = make(map[string]*jsonschema.Schema, len(kinds))
		compiler := jsonschema.NewCompiler()
		for _, kind := range kinds {
			name := fmt.Sprintf("schemas/%s.json", kind)
			content, err := schemaFS.ReadFile(name)
			if err != nil {
				compileErr = fmt.Errorf("failed to read schema %s: %w", kind, err)
				return
			}
			if err := compiler.AddResource(name, bytes.NewReader(content)); err != nil {
				compileErr = fmt.Errorf("failed to load schema %s: %w", kind, err)
				return
			}
		}
		for _, kind := range kinds {
			s, err := compiler.Compile(fmt.Sprintf("schemas/%s.json", kind))
			if err != nil {
				compileErr = fmt.Errorf("failed to compile schema %s: %w", kind, err)
				return
			}
			compiled[kind] = s
		}
	})
	return compiled, compileErr
}

// Check validates one record against the schema for kind. The record is
// checked in its JSON form so that field tags are honored.
func Check(kind string, record any) error {
	all, err := schemas()
	if err != nil {
		return err
	}
	s, ok := all[kind]
	if !ok {
		return fmt.Errorf("schema not found: %s", kind)
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", kind, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("failed to decode %s for validation: %w", kind, err)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSchema, kind, err)
	}
	return nil
}
