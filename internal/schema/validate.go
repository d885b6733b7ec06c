package schema

import (
	"encoding/json"
	"fmt"

	"github.com/personacards/backend/internal/fault"
)

// Validate parses raw model output and checks it against the declared
// shape. A parse failure is fatal_parse; any structural violation is
// fatal_schema naming the rule that was broken. The returned document
// keeps extra fields the shape does not mention.
func (s Spec) Validate(raw []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fault.New(fault.FatalParse, "parse %s: %v", s.Name, err)
	}
	if s.Deck != nil {
		if err := s.Deck.check(doc); err != nil {
			return nil, err
		}
		return doc, nil
	}
	for _, sec := range s.Sections {
		if err := sec.check(doc); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func (sec Section) check(doc Document) error {
	raw, ok := doc[sec.Name]
	if !ok {
		return fault.Schema(sec.Name, "%s: missing required section", sec.Name)
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return fault.Schema(sec.Name, "%s: expected an object, got %s", sec.Name, typeName(raw))
	}
	for _, f := range sec.Fields {
		path := sec.Name + "." + f.Name
		v, ok := m[f.Name]
		if !ok {
			return fault.Schema(path, "%s: missing required field", path)
		}
		if err := f.Shape.check(path, v); err != nil {
			return err
		}
	}
	return nil
}

func (d *DeckRule) check(doc Document) error {
	raw, ok := doc[d.Key]
	if !ok {
		return fault.Schema(d.Key, "%s: missing required key", d.Key)
	}
	cards, ok := raw.([]any)
	if !ok {
		return fault.Schema(d.Key, "%s: expected an array, got %s", d.Key, typeName(raw))
	}
	if len(cards) != d.Size {
		return fault.Schema(d.Key, "%s: expected exactly %d cards, got %d", d.Key, d.Size, len(cards))
	}

	allowed := make(map[string]bool, len(d.Types))
	for _, t := range d.Types {
		allowed[t] = true
	}
	seen := make(map[string]int, d.Size)

	for i, rawCard := range cards {
		path := fmt.Sprintf("%s[%d]", d.Key, i)
		card, ok := rawCard.(map[string]any)
		if !ok {
			return fault.Schema(path, "%s: expected an object, got %s", path, typeName(rawCard))
		}
		for _, f := range d.Fields {
			fieldPath := path + "." + f.Name
			v, ok := card[f.Name]
			if !ok {
				return fault.Schema(fieldPath, "%s: missing required field", fieldPath)
			}
			if err := f.Shape.check(fieldPath, v); err != nil {
				return err
			}
		}
		typ, _ := card["type"].(string)
		if !allowed[typ] {
			return fault.Schema(path+".type", "%s.type: unknown type %q, want one of %s", path, typ, quoteJoin(d.Types))
		}
		if _, dup := seen[typ]; dup {
			return fault.Schema(path+".type", "%s.type: duplicate type %q", path, typ)
		}
		seen[typ] = i
	}
	return nil
}

func (s Shape) check(path string, v any) error {
	switch s {
	case String:
		str, ok := v.(string)
		if !ok {
			return fault.Schema(path, "%s: expected a string, got %s", path, typeName(v))
		}
		if str == "" {
			return fault.Schema(path, "%s: must be non-empty", path)
		}
	case Mapping:
		if _, ok := v.(map[string]any); !ok {
			return fault.Schema(path, "%s: expected an object, got %s", path, typeName(v))
		}
	case Sequence:
		items, ok := v.([]any)
		if !ok {
			return fault.Schema(path, "%s: expected an array, got %s", path, typeName(v))
		}
		for i, it := range items {
			if _, ok := it.(string); !ok {
				return fault.Schema(path, "%s[%d]: expected a string, got %s", path, i, typeName(it))
			}
		}
	}
	return nil
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%T", v)
	}
}
