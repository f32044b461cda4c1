// Package apperr defines the error kinds shared by the search, graph,
// validation and suggestion components.
package apperr

import (
	"errors"
	"strings"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrInvalidQuery marks bad caller input (empty query, alpha out of range,
	// non-positive limit). Never retried.
	ErrInvalidQuery   = errors.New("invalid search query")
	ErrSearchIndex    = errors.New("search index failure")
	ErrSearchEngine   = errors.New("search engine failure")
	ErrLinkGraph      = errors.New("link graph failure")
	ErrLinkValidation = errors.New("link validation failure")
	ErrLinkSuggestion = errors.New("link suggestion failure")
)

// Error carries the failing operation and entity alongside an error kind.
// Both Kind and Err are reachable through errors.Is / errors.As.
type Error struct {
	Kind   error
	Op     string
	Entity string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Entity != "" {
		b.WriteString(" [")
		b.WriteString(e.Entity)
		b.WriteString("]")
	}
	if e.Kind != nil {
		b.WriteString(": ")
		b.WriteString(e.Kind.Error())
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// E builds an *Error. err may be nil when the kind alone describes the failure.
func E(kind error, op, entity string, err error) error {
	return &Error{Kind: kind, Op: op, Entity: entity, Err: err}
}

// Op returns the operation name of the outermost *Error in err's chain, or "".
func Op(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}
