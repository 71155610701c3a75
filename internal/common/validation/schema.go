// internal/common/validation/schema.go
package validation

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	apperrors "render-workers/internal/common/errors"
)

// Schema validates Zeebe job variables against a JSON schema. A compiled
// Schema is safe for concurrent use.
type Schema struct {
	name   string
	schema *gojsonschema.Schema
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// Compile parses a JSON schema document.
func Compile(name, document string) (*Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(document))
	if err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", name, err)
	}
	return &Schema{name: name, schema: s}, nil
}

// MustCompile is Compile for package-level schemas.
func MustCompile(name, document string) *Schema {
	s, err := Compile(name, document)
	if err != nil {
		panic(err)
	}
	return s
}

// Check validates raw JSON and reports every violation, sorted by field.
func (s *Schema) Check(raw []byte) (*ValidationResult, error) {
	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, err
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, e := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   fieldName(e),
			Message: e.Description(),
			Code:    strings.ToUpper(e.Type()),
		})
	}
	sort.SliceStable(out.Errors, func(i, j int) bool { return out.Errors[i].Field < out.Errors[j].Field })
	return out, nil
}

// Decode validates raw job variables and unmarshals them into target. Any
// violation, including malformed JSON, is an INVALID_INPUT error.
func (s *Schema) Decode(raw string, target interface{}) error {
	if strings.TrimSpace(raw) == "" {
		raw = "{}"
	}

	result, err := s.Check([]byte(raw))
	if err != nil {
		return apperrors.NewInvalidInputError(fmt.Sprintf("%s: parse input: %v", s.name, err))
	}
	if !result.Valid {
		parts := make([]string, 0, len(result.Errors))
		for _, e := range result.Errors {
			parts = append(parts, fmt.Sprintf("%s: %s", e.Field, e.Message))
		}
		return apperrors.NewInvalidInputError(fmt.Sprintf("%s: %s", s.name, strings.Join(parts, "; ")))
	}

	if err := json.Unmarshal([]byte(raw), target); err != nil {
		return apperrors.NewInvalidInputError(fmt.Sprintf("%s: parse input: %v", s.name, err))
	}
	return nil
}

func fieldName(e gojsonschema.ResultError) string {
	if e.Type() == "required" {
		if p, ok := e.Details()["property"].(string); ok {
			return p
		}
	}
	field := e.Field()
	if field == "(root)" {
		return ""
	}
	return field
}
