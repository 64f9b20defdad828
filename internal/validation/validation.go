// Package validation checks inbound JSON payloads against the embedded
// schemas before they are decoded into typed ledger payloads.
package validation

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"

	"crm-pipeline/internal/models"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const baseURL = "https://crm-pipeline.local/schemas/"

var compiled = sync.OnceValues(compileAll)

func compileAll() (map[string]*jsonschema.Schema, error) {
	files, err := fs.Glob(schemaFS, "schemas/*.json")
	if err != nil {
		return nil, err
	}

	c := jsonschema.NewCompiler()
	for _, file := range files {
		data, err := schemaFS.ReadFile(file)
		if err != nil {
			return nil, err
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", file, err)
		}
		if err := c.AddResource(baseURL+path.Base(file), doc); err != nil {
			return nil, fmt.Errorf("schema %s: %w", file, err)
		}
	}

	out := make(map[string]*jsonschema.Schema, len(files))
	for _, file := range files {
		base := path.Base(file)
		sch, err := c.Compile(baseURL + base)
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", file, err)
		}
		out[strings.TrimSuffix(base, ".json")] = sch
	}
	return out, nil
}

// Has reports whether a schema with that name is embedded.
func Has(name string) bool {
	schemas, err := compiled()
	if err != nil {
		return false
	}
	_, ok := schemas[name]
	return ok
}

// Validate checks doc against the named schema. Schema violations and
// malformed JSON come back as *models.ValidationError.
func Validate(name string, doc []byte) error {
	schemas, err := compiled()
	if err != nil {
		return fmt.Errorf("failed to compile payload schemas: %w", err)
	}
	sch, ok := schemas[name]
	if !ok {
		return fmt.Errorf("unknown payload schema %q", name)
	}

	if len(bytes.TrimSpace(doc)) == 0 {
		doc = []byte("{}")
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(doc))
	if err != nil {
		return models.Invalid("", "malformed JSON: %v", err)
	}

	if err := sch.Validate(inst); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return &models.ValidationError{Message: describe(ve)}
		}
		return err
	}
	return nil
}

// describe keeps the "- at '<path>': <reason>" lines and drops the header
// that names the schema URL.
func describe(ve *jsonschema.ValidationError) string {
	var reasons []string
	for _, line := range strings.Split(ve.Error(), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "- ") {
			reasons = append(reasons, strings.TrimPrefix(line, "- "))
		}
	}
	if len(reasons) == 0 {
		return ve.Error()
	}
	return strings.Join(reasons, "; ")
}
