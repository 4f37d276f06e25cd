package syntax

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"
)

// Predefined errors (sentinel values). They report misuse of the API, never
// problems with document content.
var (
	ErrInvalidEdit     = NewError("invalid edit")
	ErrUnknownNodeType = NewError("unknown node type")
	ErrUnknownField    = NewError("unknown field")
	ErrQuerySyntax     = NewError("query syntax error")
)

// Error represents an error with optional structured logging attributes.
// It implements both error and slog.LogValuer interfaces.
type Error struct {
	msg   string
	err   error
	attrs []slog.Attr
}

// NewError creates a new Error with a message.
func NewError(msg string) *Error {
	return &Error{msg: msg}
}

// Error implements the error interface.
func (e *Error) Error() string {
	part := make([]string, 0, 2)
	if e.msg != "" {
		part = append(part, e.msg)
	}
	if e.err != nil {
		part = append(part, e.err.Error())
	}
	return strings.Join(part, ": ")
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error { return e.err }

// Is matches errors derived from the same sentinel.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.err == nil && len(t.attrs) == 0 && t.msg == e.msg
}

// LogValue implements slog.LogValuer.
func (e *Error) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(e.attrs)+2)
	if e.msg != "" {
		attrs = append(attrs, slog.String("error", e.msg))
	}
	if e.err != nil {
		attrs = append(attrs, slog.String("cause", e.err.Error()))
	}
	return slog.GroupValue(append(attrs, e.attrs...)...)
}

// Wrap creates a new Error wrapping another error.
func (e *Error) Wrap(err error) *Error {
	return &Error{msg: e.msg, err: err, attrs: e.attrs}
}

// With adds attributes to the error for structured logging.
func (e *Error) With(attrs ...slog.Attr) *Error {
	newAttrs := make([]slog.Attr, len(e.attrs)+len(attrs))
	copy(newAttrs, e.attrs)
	copy(newAttrs[len(e.attrs):], attrs)
	return &Error{msg: e.msg, err: e.err, attrs: newAttrs}
}

// ErrorKind classifies a problem found in document content.
type ErrorKind uint8

const (
	// LexError is an unterminated string, tag or comment, or an invalid
	// character inside a tag.
	LexError ErrorKind = iota + 1
	// SyntaxError is a token the grammar does not allow where it occurs.
	SyntaxError
	// DelimiterMismatchError is a section closed by a tag with another name.
	DelimiterMismatchError
	// ReparseBoundaryFailure is an incremental splice that could not be
	// validated. It is recovered internally and only logged.
	ReparseBoundaryFailure
)

func (k ErrorKind) String() string {
	switch k {
	case LexError:
		return "LexError"
	case SyntaxError:
		return "SyntaxError"
	case DelimiterMismatchError:
		return "DelimiterMismatchError"
	case ReparseBoundaryFailure:
		return "ReparseBoundaryFailure"
	}
	return "ErrorKind(" + strconv.Itoa(int(k)) + ")"
}

// Annotation is an error attached to a node. Start and End are byte offsets
// relative to the start of the node.
type Annotation struct {
	Kind    ErrorKind
	Message string
	Start   uint32
	End     uint32
}

// Diagnostic is an annotation resolved to absolute positions.
type Diagnostic struct {
	Kind    ErrorKind
	Message string
	Range   Range
}

func (d Diagnostic) String() string {
	return strconv.Itoa(int(d.Range.StartPoint.Row)+1) + ":" +
		strconv.Itoa(int(d.Range.StartPoint.Column)+1) + ": " +
		d.Kind.String() + ": " + d.Message
}

// Format renders the diagnostic with the offending source line and a marker
// under the reported span.
func (d Diagnostic) Format(src []byte) string {
	var b strings.Builder
	b.WriteString(d.String())
	b.WriteByte('\n')

	lines := strings.Split(string(src), "\n")
	row := int(d.Range.StartPoint.Row)
	if row >= len(lines) {
		return b.String()
	}
	lineNo := strconv.Itoa(row + 1)
	b.WriteString("  " + lineNo + " | " + lines[row] + "\n")

	width := 1
	if d.Range.EndPoint.Row == d.Range.StartPoint.Row && d.Range.EndPoint.Column > d.Range.StartPoint.Column {
		width = int(d.Range.EndPoint.Column - d.Range.StartPoint.Column)
	}
	b.WriteString(strings.Repeat(" ", len(lineNo)+5+int(d.Range.StartPoint.Column)))
	b.WriteString(strings.Repeat("^", width))
	b.WriteByte('\n')
	return b.String()
}
