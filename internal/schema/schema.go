// Package schema loads and validates annotation schema files.
//
// A schema file is a JSON document with top-level keys PERSONA (string),
// TASK (string), INSTRUCTIONS (list of strings), SCHEMAS (mapping of output
// field name to expected shape) and EXAMPLE (list of worked examples,
// required only in few-shot mode). The legacy spellings EXAMPLES, examples
// and example are accepted for the examples array.
//
// Field shapes in SCHEMAS follow a small convention:
//   - a string value declares a required string field; if the string
//     contains "|" it is an enumeration of allowed values
//     (e.g. "relevant|irrelevant")
//   - a list value (e.g. ["Material"]) declares an optional list field
//     whose empty default is []
//   - an object value declares a required nested object
//   - a field name ending in "?" marks the field optional; the "?" is
//     stripped from the output field name
//
// Malformed schemas are rejected at load time so misconfiguration surfaces
// before any provider call is made.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// FieldKind describes the expected shape of an output field.
type FieldKind int

const (
	KindString FieldKind = iota
	KindEnum
	KindList
	KindObject
)

// Field is one entry of the schema's field spec, in declared order.
type Field struct {
	Name     string
	Kind     FieldKind
	Shape    json.RawMessage // compacted shape value as written in the file
	Required bool
	Enum     []string // allowed values, KindEnum only
}

// EmptyDefault returns the declared empty default for an optional field.
func (f Field) EmptyDefault() any {
	switch f.Kind {
	case KindList:
		return []any{}
	case KindObject:
		return map[string]any{}
	default:
		return ""
	}
}

// Example is one worked (text, expected output) pair for few-shot prompts.
type Example struct {
	Text   string
	Output map[string]any
}

// Definition is a validated, immutable schema definition.
type Definition struct {
	Path         string
	Persona      string
	Task         string
	Instructions []string
	Fields       []Field // declared order
	Examples     []Example
}

// ConfigurationError is a fatal, pre-flight schema or configuration problem.
type ConfigurationError struct {
	Path    string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("configuration error: %s", e.Message)
	}
	return fmt.Sprintf("configuration error in %s: %s", e.Path, e.Message)
}

func confErr(path, format string, args ...any) error {
	return &ConfigurationError{Path: path, Message: fmt.Sprintf(format, args...)}
}

// rawSchema mirrors the file's top-level structure. SCHEMAS is kept raw so
// field order can be preserved during decoding.
type rawSchema struct {
	Persona      *string         `json:"PERSONA"`
	Task         *string         `json:"TASK"`
	Instructions []string        `json:"INSTRUCTIONS"`
	Schemas      json.RawMessage `json:"SCHEMAS"`

	Example   []map[string]any `json:"EXAMPLE"`
	Examples  []map[string]any `json:"EXAMPLES"`
	ExampleLC []map[string]any `json:"example"`
	ExamplesL []map[string]any `json:"examples"`
}

// Load reads, parses and validates a schema file.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, confErr(path, "cannot read schema file: %v", err)
	}
	return Parse(path, data)
}

// Parse validates schema file contents. The path is used for diagnostics only.
func Parse(path string, data []byte) (*Definition, error) {
	var raw rawSchema
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, confErr(path, "invalid JSON: %v", err)
	}
	if raw.Persona == nil {
		return nil, confErr(path, "missing required key PERSONA")
	}
	if raw.Task == nil {
		return nil, confErr(path, "missing required key TASK")
	}
	if raw.Instructions == nil {
		return nil, confErr(path, "missing required key INSTRUCTIONS")
	}
	if len(raw.Schemas) == 0 {
		return nil, confErr(path, "missing required key SCHEMAS")
	}

	fields, err := parseFields(path, raw.Schemas)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, confErr(path, "SCHEMAS must declare at least one output field")
	}

	def := &Definition{
		Path:         path,
		Persona:      *raw.Persona,
		Task:         *raw.Task,
		Instructions: raw.Instructions,
		Fields:       fields,
	}

	examples := firstNonEmpty(raw.Example, raw.Examples, raw.ExampleLC, raw.ExamplesL)
	def.Examples, err = parseExamples(path, examples, fields)
	if err != nil {
		return nil, err
	}

	return def, nil
}

func firstNonEmpty(candidates ...[]map[string]any) []map[string]any {
	for _, c := range candidates {
		if len(c) > 0 {
			return c
		}
	}
	return nil
}

// parseFields decodes the SCHEMAS object with a token scanner so declared
// field order survives into the prompt.
func parseFields(path string, raw json.RawMessage) ([]Field, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, confErr(path, "invalid SCHEMAS: %v", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, confErr(path, "SCHEMAS must be a JSON object")
	}

	var fields []Field
	seen := make(map[string]bool)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, confErr(path, "invalid SCHEMAS: %v", err)
		}
		name := keyTok.(string)

		var shape json.RawMessage
		if err := dec.Decode(&shape); err != nil {
			return nil, confErr(path, "invalid shape for SCHEMAS field %q: %v", name, err)
		}

		field, err := parseField(path, name, shape)
		if err != nil {
			return nil, err
		}
		if seen[field.Name] {
			return nil, confErr(path, "duplicate SCHEMAS field %q", field.Name)
		}
		seen[field.Name] = true
		fields = append(fields, field)
	}
	return fields, nil
}

func parseField(path, name string, shape json.RawMessage) (Field, error) {
	field := Field{Required: true}

	field.Name = strings.TrimSpace(name)
	if strings.HasSuffix(field.Name, "?") {
		field.Name = strings.TrimSuffix(field.Name, "?")
		field.Required = false
	}
	if field.Name == "" {
		return Field{}, confErr(path, "SCHEMAS contains an empty field name")
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, shape); err != nil {
		return Field{}, confErr(path, "invalid shape for SCHEMAS field %q: %v", name, err)
	}
	field.Shape = json.RawMessage(compact.Bytes())

	var value any
	if err := json.Unmarshal(shape, &value); err != nil {
		return Field{}, confErr(path, "invalid shape for SCHEMAS field %q: %v", name, err)
	}

	switch v := value.(type) {
	case string:
		field.Kind = KindString
		if strings.Contains(v, "|") {
			field.Kind = KindEnum
			for _, member := range strings.Split(v, "|") {
				member = strings.TrimSpace(member)
				if member == "" {
					return Field{}, confErr(path, "SCHEMAS field %q has an empty enum member", field.Name)
				}
				field.Enum = append(field.Enum, member)
			}
		}
	case []any:
		field.Kind = KindList
		field.Required = false
	case map[string]any:
		field.Kind = KindObject
	default:
		return Field{}, confErr(path, "SCHEMAS field %q has unsupported shape type %T", field.Name, value)
	}

	return field, nil
}

func parseExamples(path string, raw []map[string]any, fields []Field) ([]Example, error) {
	examples := make([]Example, 0, len(raw))
	for i, entry := range raw {
		text, ok := stringValue(entry, "text", "Text")
		if !ok || strings.TrimSpace(text) == "" {
			return nil, confErr(path, "example %d has no text", i)
		}

		var output map[string]any
		if v, ok := entry["output"]; ok {
			output, ok = v.(map[string]any)
			if !ok {
				return nil, confErr(path, "example %d: output must be a JSON object", i)
			}
		} else if v, ok := stringValue(entry, "classification"); ok {
			output = map[string]any{"classification": v}
		} else {
			return nil, confErr(path, "example %d has neither output nor classification", i)
		}

		if err := validateExampleOutput(path, i, output, fields); err != nil {
			return nil, err
		}
		examples = append(examples, Example{Text: text, Output: output})
	}
	return examples, nil
}

// validateExampleOutput rejects partial examples: every required field must
// be present, and enum fields must carry an allowed value.
func validateExampleOutput(path string, idx int, output map[string]any, fields []Field) error {
	for _, field := range fields {
		value, present := output[field.Name]
		if !present {
			if field.Required {
				return confErr(path, "example %d is missing required field %q", idx, field.Name)
			}
			continue
		}
		if field.Kind == KindEnum {
			s, ok := value.(string)
			if !ok || !field.AllowsValue(s) {
				return confErr(path, "example %d: field %q has value %v outside the allowed set %v",
					idx, field.Name, value, field.Enum)
			}
		}
	}
	return nil
}

// AllowsValue reports whether v is in the field's allowed value set.
// Always true for non-enum fields.
func (f Field) AllowsValue(v string) bool {
	if f.Kind != KindEnum {
		return true
	}
	for _, member := range f.Enum {
		if member == v {
			return true
		}
	}
	return false
}

// FieldNames returns output field names in declared order.
func (d *Definition) FieldNames() []string {
	names := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		names[i] = f.Name
	}
	return names
}

// RequireExamples returns a ConfigurationError when the definition carries
// no examples. Called before any provider work when few-shot is requested.
func (d *Definition) RequireExamples() error {
	if len(d.Examples) == 0 {
		return confErr(d.Path, "few-shot mode requires a non-empty EXAMPLE array in the schema")
	}
	return nil
}

// JSONSchema renders a JSON Schema document for the field spec, used to
// validate parsed model output.
func (d *Definition) JSONSchema() string {
	props := make(map[string]any, len(d.Fields))
	var required []string
	for _, f := range d.Fields {
		switch f.Kind {
		case KindEnum:
			props[f.Name] = map[string]any{"type": "string", "enum": f.Enum}
		case KindList:
			props[f.Name] = map[string]any{"type": "array"}
		case KindObject:
			props[f.Name] = map[string]any{"type": "object"}
		default:
			props[f.Name] = map[string]any{"type": "string"}
		}
		if f.Required {
			required = append(required, f.Name)
		}
	}
	doc := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	data, _ := json.Marshal(doc)
	return string(data)
}

func stringValue(m map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		if v, ok := m[key]; ok {
			if s, ok := v.(string); ok {
				return s, true
			}
		}
	}
	return "", false
}
