// Package fault classifies pipeline failures into the small set of
// kinds the orchestrators and the run ledger care about.
package fault

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// Transient covers network errors, upstream 5xx/408/429 and
	// timeouts. Retried inside the generation client, never by the
	// stage orchestrators.
	Transient Kind = "transient"
	// FatalConfig covers bad credentials, malformed templates and
	// invalid requests. Never retried.
	FatalConfig Kind = "fatal_config"
	// FatalParse means the generated text is not well-formed JSON.
	FatalParse Kind = "fatal_parse"
	// FatalSchema means the parsed document violates the stage schema.
	FatalSchema Kind = "fatal_schema"
	// FatalOutput means the upstream kept returning unusable output
	// (empty/truncated) after the retry budget was spent.
	FatalOutput Kind = "fatal_output"
)

// Error carries a failure kind plus the violated rule when the
// validator produced it. It wraps the underlying cause.
type Error struct {
	Kind Kind
	Rule string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "fault"
	}
	if e.Rule != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Rule, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error from a message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies an existing error. A nil cause returns nil.
func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// Schema builds a schema-violation error naming the broken rule.
func Schema(rule string, format string, args ...any) *Error {
	return &Error{Kind: FatalSchema, Rule: rule, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the classified kind, or "" for unclassified errors.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// RuleOf returns the violated validation rule, if any.
func RuleOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Rule
	}
	return ""
}
