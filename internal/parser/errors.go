package parser

import (
	"errors"
	"fmt"
)

// Kind classifies why a task file was rejected.
type Kind int

const (
	KindNoMetadata Kind = iota + 1
	KindMissingField
	KindInvalidFormat
	KindOutOfRange
	KindInvalidRange
)

func (k Kind) String() string {
	switch k {
	case KindNoMetadata:
		return "no metadata block"
	case KindMissingField:
		return "missing field"
	case KindInvalidFormat:
		return "invalid format"
	case KindOutOfRange:
		return "out of range"
	case KindInvalidRange:
		return "invalid date range"
	default:
		return "unknown"
	}
}

var errStartAfterEnd = errors.New("start is after end")

// ParseError reports a task file that failed parsing or validation.
type ParseError struct {
	Path  string
	Kind  Kind
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	msg := "parser: " + e.Kind.String()
	if e.Field != "" {
		msg += fmt.Sprintf(" %q", e.Field)
	}
	if e.Path != "" {
		msg += " in " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsKind reports whether err is a *ParseError of the given kind.
func IsKind(err error, kind Kind) bool {
	var pe *ParseError
	return errors.As(err, &pe) && pe.Kind == kind
}

func fieldError(kind Kind, field string, err error) *ParseError {
	return &ParseError{Kind: kind, Field: field, Err: err}
}

func withPath(err error, path string) error {
	var pe *ParseError
	if errors.As(err, &pe) {
		pe.Path = path
	}
	return err
}
