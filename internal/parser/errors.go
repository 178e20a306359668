package parser

import "fmt"

// ErrorKind classifies parse failures.
type ErrorKind string

const (
	ErrMalformedFrontmatter ErrorKind = "malformed-frontmatter"
	ErrDuplicateID          ErrorKind = "duplicate-id"
	ErrUnknownDirective     ErrorKind = "unknown-directive"
	ErrTypeMismatch         ErrorKind = "type-mismatch-in-literal"
	// ErrMisplacedDirective covers directives that are legal names in the
	// wrong position, e.g. an option outside a choice field.
	ErrMisplacedDirective ErrorKind = "misplaced-directive"
	// ErrUnknownReference covers attributes naming a field that does not
	// exist, e.g. a dangling depends-on.
	ErrUnknownReference ErrorKind = "unknown-reference"
)

// DocumentError is the fatal parse error: it points at the offending line
// and, where one exists, the field or group the problem concerns.
type DocumentError struct {
	Kind ErrorKind
	Line int
	Ref  string
	Msg  string
	Err  error
}

func (e *DocumentError) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Ref != "" {
		return fmt.Sprintf("parser: line %d (%s): %s: %s", e.Line, e.Ref, e.Kind, msg)
	}
	return fmt.Sprintf("parser: line %d: %s: %s", e.Line, e.Kind, msg)
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}

func docErr(kind ErrorKind, line int, ref, format string, args ...any) *DocumentError {
	return &DocumentError{Kind: kind, Line: line, Ref: ref, Msg: fmt.Sprintf(format, args...)}
}
