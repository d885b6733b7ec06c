// Package prompt loads the stage prompt templates and renders them
// with persona or profile data. Templates carry two kinds of slots:
// an output-contract slot filled once at load time from the stage's
// schema, and a single context slot filled per render.
package prompt

import (
	_ "embed"
	"encoding/json"
	"os"
	"strings"

	"github.com/personacards/backend/internal/fault"
	"github.com/personacards/backend/internal/schema"
)

const (
	contextSlot = "{CONTEXT_DATA}"
	profileSlot = "{USER_PROFILE_JSON}"
	schemaSlot  = "{OUTPUT_SCHEMA}"
)

//go:embed templates/profile.md
var profileTemplate string

//go:embed templates/cards.md
var cardsTemplate string

// Template is a loaded prompt with its schema block already applied.
type Template struct {
	text string
	slot string
}

// ProfileTemplate builds the stage-1 prompt from the embedded text,
// or from path when it is non-empty.
func ProfileTemplate(path string) (*Template, error) {
	return load(profileTemplate, path, contextSlot, schema.ProfileSpec())
}

// CardTemplate builds the stage-2 prompt from the embedded text, or
// from path when it is non-empty.
func CardTemplate(path string) (*Template, error) {
	return load(cardsTemplate, path, profileSlot, schema.DeckSpec())
}

func load(embedded, path, slot string, spec schema.Spec) (*Template, error) {
	text := embedded
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fault.New(fault.FatalConfig, "read prompt template %s: %v", path, err)
		}
		text = string(raw)
	}
	if n := strings.Count(text, slot); n != 1 {
		return nil, fault.New(fault.FatalConfig, "prompt template must contain %s exactly once, found %d", slot, n)
	}
	switch strings.Count(text, schemaSlot) {
	case 0:
		// External templates may carry their own contract text.
	case 1:
		text = strings.Replace(text, schemaSlot, spec.Instructions(), 1)
	default:
		return nil, fault.New(fault.FatalConfig, "prompt template must contain %s at most once", schemaSlot)
	}
	return &Template{text: text, slot: slot}, nil
}

// Render substitutes the template's context slot with data serialized
// as compact JSON. Map keys marshal in sorted order, so the same data
// always yields the same prompt.
func (t *Template) Render(data any) (string, error) {
	encoded, err := json.Marshal(data)
	if err != nil {
		return "", fault.New(fault.FatalConfig, "encode prompt context: %v", err)
	}
	return strings.Replace(t.text, t.slot, string(encoded), 1), nil
}
