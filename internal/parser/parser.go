// Package parser recovers schema-conformant JSON records from raw model
// output. Models wrap their answers in prose or markdown fences often
// enough that the first balanced JSON object is extracted before decoding;
// the decoded object is then validated against the schema definition.
package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/siftdocs/sift/internal/schema"
)

// ParseError means model output could not be turned into a conformant
// record. Raw preserves the offending output for debug artifacts.
type ParseError struct {
	Message string
	Raw     string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %s", e.Message)
}

// Parser validates model output for one schema definition. Safe for
// concurrent use.
type Parser struct {
	def      *schema.Definition
	compiled *jsonschema.Schema
}

// New compiles the definition's validation schema.
func New(def *schema.Definition) (*Parser, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", strings.NewReader(def.JSONSchema())); err != nil {
		return nil, fmt.Errorf("failed to load validation schema for %s: %w", def.Path, err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile validation schema for %s: %w", def.Path, err)
	}
	return &Parser{def: def, compiled: compiled}, nil
}

// Parse extracts and validates one record from raw model output. Optional
// fields absent from the output are filled with their declared empty
// defaults, so every returned record carries the full field spec.
func (p *Parser) Parse(raw string) (map[string]any, error) {
	candidate := extractObject(raw)
	if candidate == "" {
		return nil, &ParseError{Message: "no JSON object in model output", Raw: raw}
	}

	var record map[string]any
	if err := json.Unmarshal([]byte(candidate), &record); err != nil {
		return nil, &ParseError{Message: fmt.Sprintf("invalid JSON: %v", err), Raw: raw}
	}

	for _, field := range p.def.Fields {
		if _, present := record[field.Name]; !present && !field.Required {
			record[field.Name] = field.EmptyDefault()
		}
	}

	if err := p.compiled.Validate(map[string]any(record)); err != nil {
		return nil, &ParseError{Message: fmt.Sprintf("output does not match schema: %v", err), Raw: raw}
	}

	return record, nil
}

// Field returns the schema field with the given name, if declared.
func (p *Parser) Field(name string) (schema.Field, bool) {
	for _, f := range p.def.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return schema.Field{}, false
}

// extractObject returns the first balanced JSON object in the text, after
// peeling markdown code fences. Brace matching skips braces inside JSON
// strings.
func extractObject(raw string) string {
	text := strings.TrimSpace(raw)
	if fenced := stripCodeFences(text); fenced != "" {
		text = fenced
	}

	start := strings.Index(text, "{")
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

func stripCodeFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return ""
	}
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return ""
	}
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
