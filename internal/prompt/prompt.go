// Package prompt renders schema definitions into provider-agnostic prompts.
//
// A Builder is constructed once per stage from a schema definition and a
// prompt mode; construction validates the few-shot contract so that
// misconfiguration surfaces before any provider call. The rendered base
// prompt is a pure function of the definition and mode: byte-identical for
// identical inputs, which makes prompts comparable across runs for caching
// and debugging.
package prompt

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/siftdocs/sift/internal/schema"
)

//go:embed system.tmpl
var systemTmplText string

//go:embed user.tmpl
var userTmplText string

var (
	systemTemplate = template.Must(template.New("system").Parse(systemTmplText))
	userTemplate   = template.Must(template.New("user").Parse(userTmplText))
)

// Mode selects zero-shot or few-shot prompt construction.
type Mode string

const (
	ModeZero Mode = "zero"
	ModeFew  Mode = "few"
)

// ParseMode validates a prompt mode string from configuration.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.TrimSpace(strings.ToLower(s))) {
	case ModeZero:
		return ModeZero, nil
	case ModeFew:
		return ModeFew, nil
	default:
		return "", &schema.ConfigurationError{
			Message: fmt.Sprintf("unknown prompt mode %q (want zero or few)", s),
		}
	}
}

// outputDirective is the explicit output-format instruction appended to
// every prompt.
const outputDirective = "Return exactly one valid JSON object that matches the schema above. " +
	"Do not add commentary, markdown fences, or any text outside the JSON object."

// correctiveDirective is prepended to the user turn on the single
// invalid-JSON retry.
const correctiveDirective = "Your previous reply was not a valid JSON object matching the schema. " +
	"Reply again with exactly one valid JSON object and nothing else."

// Prompt is a rendered prompt, split for chat-style backends.
type Prompt struct {
	System string // schema sections and the output directive
	User   string // the target text, plus the corrective note on a retry
}

// Flat joins both halves for completion-style backends.
func (p Prompt) Flat() string {
	return p.System + "\n\n" + p.User
}

// Builder renders prompts for one stage. Safe for concurrent use.
type Builder struct {
	def    *schema.Definition
	mode   Mode
	system string
}

// NewBuilder validates the definition against the requested mode and
// pre-renders the base prompt.
func NewBuilder(def *schema.Definition, mode Mode) (*Builder, error) {
	if def == nil || len(def.Fields) == 0 {
		return nil, &schema.ConfigurationError{Message: "prompt builder requires a schema with a non-empty field spec"}
	}
	if mode == ModeFew {
		if err := def.RequireExamples(); err != nil {
			return nil, err
		}
	}

	system, err := renderSystem(def, mode)
	if err != nil {
		return nil, err
	}
	return &Builder{def: def, mode: mode, system: system}, nil
}

// Mode returns the builder's prompt mode.
func (b *Builder) Mode() Mode { return b.mode }

// System returns the pre-rendered base prompt shared by every unit.
func (b *Builder) System() string { return b.system }

// Build renders the prompt for one text unit.
func (b *Builder) Build(text string) Prompt {
	return Prompt{System: b.system, User: renderUser(text, false)}
}

// BuildCorrective renders the invalid-JSON retry prompt for one text unit.
func (b *Builder) BuildCorrective(text string) Prompt {
	return Prompt{System: b.system, User: renderUser(text, true)}
}

func renderSystem(def *schema.Definition, mode Mode) (string, error) {
	data := struct {
		Persona      string
		Task         string
		Instructions string
		Schema       string
		Examples     string
		Directive    string
	}{
		Persona:      strings.TrimSpace(def.Persona),
		Task:         strings.TrimSpace(def.Task),
		Instructions: strings.Join(def.Instructions, "\n"),
		Schema:       schemaBlock(def.Fields),
		Directive:    outputDirective,
	}

	if mode == ModeFew {
		examples, err := examplesBlock(def.Examples)
		if err != nil {
			return "", err
		}
		data.Examples = examples
	}

	var buf bytes.Buffer
	if err := systemTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render system prompt: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func renderUser(text string, corrective bool) string {
	quoted, _ := json.Marshal(strings.TrimSpace(text))
	data := struct {
		Corrective string
		Text       string
	}{Text: string(quoted)}
	if corrective {
		data.Corrective = correctiveDirective
	}

	var buf bytes.Buffer
	if err := userTemplate.Execute(&buf, data); err != nil {
		return string(quoted)
	}
	return strings.TrimSpace(buf.String())
}

// schemaBlock renders the field spec as a JSON object in declared field
// order. encoding/json would sort map keys, so the object is assembled by
// hand from the compacted shape values.
func schemaBlock(fields []schema.Field) string {
	var b strings.Builder
	b.WriteString("{\n")
	for i, f := range fields {
		fmt.Fprintf(&b, "  %q: %s", f.Name, f.Shape)
		if i < len(fields)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("}")
	return b.String()
}

// examplesBlock renders examples in declared order. Keys inside each output
// object are serialized alphabetically by encoding/json, which is stable
// across runs.
func examplesBlock(examples []schema.Example) (string, error) {
	type entry struct {
		Text   string         `json:"text"`
		Output map[string]any `json:"output"`
	}
	entries := make([]entry, len(examples))
	for i, ex := range examples {
		entries[i] = entry{Text: ex.Text, Output: ex.Output}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize examples: %w", err)
	}
	return string(data), nil
}
