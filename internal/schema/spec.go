// Package schema declares the expected shape of each stage's generated
// document and validates untrusted model output against it. The same
// declarative spec renders the instruction block embedded in the prompt
// templates, so the text the model sees and the rules the validator
// enforces cannot drift apart.
package schema

import (
	"fmt"
	"strings"
)

type Shape int

const (
	String Shape = iota
	Mapping
	Sequence
)

func (s Shape) String() string {
	switch s {
	case Mapping:
		return "object"
	case Sequence:
		return "array of strings"
	default:
		return "string"
	}
}

type Field struct {
	Name  string
	Shape Shape
}

// Section is a required top-level mapping in a generated document.
type Section struct {
	Name   string
	Fields []Field
}

// DeckRule is the shape of the card-deck document: a single array of
// fixed size holding one card per allowed type.
type DeckRule struct {
	Key    string
	Size   int
	Types  []string
	Fields []Field
}

// Spec describes one stage's output document. Exactly one of Sections
// or Deck is set.
type Spec struct {
	Name     string
	Sections []Section
	Deck     *DeckRule
}

// Document is a parsed, validated generation output. Extra fields the
// spec does not know about are carried through untouched.
type Document map[string]any

// CardTypes is the controlled card category set, in presentation order.
var CardTypes = []string{"money", "kids", "govt", "phone"}

// ProfileSpec is the stage-1 contract: three named sections, each with
// a fixed set of required fields.
func ProfileSpec() Spec {
	return Spec{
		Name: "user_profile_document",
		Sections: []Section{
			{
				Name: "user_profile",
				Fields: []Field{
					{Name: "identity", Shape: String},
					{Name: "daily_context", Shape: String},
					{Name: "device_and_connectivity", Shape: Mapping},
					{Name: "language", Shape: Mapping},
					{Name: "financial_snapshot", Shape: Mapping},
					{Name: "interests", Shape: Sequence},
					{Name: "pain_points", Shape: Sequence},
				},
			},
			{
				Name: "meet_state",
				Fields: []Field{
					{Name: "current_situation", Shape: String},
					{Name: "attention_window", Shape: String},
					{Name: "network_quality", Shape: String},
					{Name: "battery_state", Shape: String},
					{Name: "receptivity", Shape: String},
				},
			},
			{
				Name: "personalization_strategy",
				Fields: []Field{
					{Name: "tone", Shape: String},
					{Name: "content_priorities", Shape: Sequence},
					{Name: "timing_guidance", Shape: String},
					{Name: "avoid", Shape: Sequence},
				},
			},
		},
	}
}

// DeckSpec is the stage-2 contract: exactly four cards, one per type.
func DeckSpec() Spec {
	return Spec{
		Name: "card_deck_document",
		Deck: &DeckRule{
			Key:   "cards",
			Size:  len(CardTypes),
			Types: CardTypes,
			Fields: []Field{
				{Name: "type", Shape: String},
				{Name: "title", Shape: String},
				{Name: "body", Shape: String},
			},
		},
	}
}

// Instructions renders the human-readable output contract injected into
// the stage's prompt template. It is generated from the same data the
// validator walks, which keeps the two in lockstep.
func (s Spec) Instructions() string {
	var b strings.Builder
	b.WriteString("Return ONLY a single valid JSON object. No markdown fences, no commentary.\n")

	if s.Deck != nil {
		d := s.Deck
		fmt.Fprintf(&b, "The object has one key, %q, holding exactly %d cards.\n", d.Key, d.Size)
		fmt.Fprintf(&b, "Include one card of each type, in this order: %s.\n", quoteJoin(d.Types))
		b.WriteString("Every card has exactly these fields:\n")
		for _, f := range d.Fields {
			fmt.Fprintf(&b, "  - %q: %s\n", f.Name, f.Shape)
		}
		return b.String()
	}

	b.WriteString("The object has exactly these top-level sections, all required:\n")
	for _, sec := range s.Sections {
		fmt.Fprintf(&b, "\n%q:\n", sec.Name)
		for _, f := range sec.Fields {
			fmt.Fprintf(&b, "  - %q: %s\n", f.Name, f.Shape)
		}
	}
	b.WriteString("\nEvery listed field is required and must be non-empty.\n")
	return b.String()
}

func quoteJoin(items []string) string {
	quoted := make([]string, len(items))
	for i, it := range items {
		quoted[i] = fmt.Sprintf("%q", it)
	}
	return strings.Join(quoted, ", ")
}
