// Package diagnostics defines the compiler's fatal-error taxonomy (spec §7).
//
// Every phase in internal/compiler aborts the whole pipeline on the first
// error it produces; there is no recovery and no partial output. Errors are
// tagged with a Kind so callers (and tests) can tell a semantic-analysis bug
// (SymbolError) from an internal-compiler bug (MemoryError, OperatorError)
// without parsing message text.
package diagnostics

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Kind names one of the abstract fatal-error categories from spec §7.
type Kind int

const (
	// SourceErrorKind reports a parse or semantic error surfaced verbatim
	// from an external collaborator. In this repository internal/symtab
	// constructs it; internal/lexer and internal/parser return plain errors
	// whose text starts with file:line:col.
	SourceErrorKind Kind = iota
	// ASTErrorKind marks an AST node missing a required child — a parser bug.
	ASTErrorKind
	// SymbolErrorKind marks a name reaching the IR builder with no
	// symbol-table entry — a semantic-analysis bug.
	SymbolErrorKind
	// MemoryErrorKind marks code generation requesting an address the
	// memory mapper never allocated.
	MemoryErrorKind
	// OperatorErrorKind marks an IR constructor seeing an operator string
	// it does not recognize.
	OperatorErrorKind
	// InternalErrorKind marks a label-resolution or other late-pipeline
	// invariant violation that only a codegen bug could produce.
	InternalErrorKind
)

func (k Kind) String() string {
	switch k {
	case SourceErrorKind:
		return "SourceError"
	case ASTErrorKind:
		return "ASTError"
	case SymbolErrorKind:
		return "SymbolError"
	case MemoryErrorKind:
		return "MemoryError"
	case OperatorErrorKind:
		return "OperatorError"
	case InternalErrorKind:
		return "InternalError"
	default:
		return "UnknownError"
	}
}

// Location is a source position, carried by every AST node (spec §3.1).
type Location struct {
	File   string
	Line   int
	Column int
}

func (l Location) String() string {
	if l.Line == 0 && l.Column == 0 {
		return l.File
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Error is the concrete fatal-error type every phase returns.
type Error struct {
	Kind     Kind
	Message  string
	Location Location
}

func (e *Error) Error() string {
	if e.Location.Line == 0 && e.Location.Column == 0 && e.Location.File == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s (at %s)", e.Kind, e.Message, e.Location)
}

func new_(kind Kind, loc Location, format string, args ...interface{}) error {
	return errors.WithStack(&Error{
		Kind:     kind,
		Message:  fmt.Sprintf(format, args...),
		Location: loc,
	})
}

// NewSourceError wraps a parse/semantic error reported by an external
// collaborator. The message is surfaced verbatim, per spec §7.
func NewSourceError(loc Location, message string) error {
	return new_(SourceErrorKind, loc, "%s", message)
}

// NewASTError reports a structurally invalid AST node.
func NewASTError(loc Location, format string, args ...interface{}) error {
	return new_(ASTErrorKind, loc, format, args...)
}

// NewSymbolError reports a name with no symbol-table entry.
func NewSymbolError(loc Location, name string) error {
	return new_(SymbolErrorKind, loc, "undeclared identifier %q reached IR builder", name)
}

// NewMemoryError reports an address request the memory mapper never granted.
func NewMemoryError(variable string) error {
	return new_(MemoryErrorKind, Location{}, "no mapped address for variable %q", variable)
}

// NewOperatorError reports an operator string an IR constructor does not
// recognize.
func NewOperatorError(op string, context string) error {
	return new_(OperatorErrorKind, Location{}, "invalid operator %q in %s", op, context)
}

// NewInternalError reports a late-pipeline invariant violation (e.g. a
// label the resolver never saw defined) that only a codegen bug produces.
func NewInternalError(format string, args ...interface{}) error {
	return new_(InternalErrorKind, Location{}, format, args...)
}

// Render formats the error the way the reference toolchain's own CLI does:
// the message, then the offending source line, then a caret under the
// reported column. src is the full source text the error's Location.File
// was read from; if the location carries no line/column (an internal error
// with no source position) Render falls back to Error().
func (e *Error) Render(src string) string {
	if e.Location.Line <= 0 || e.Location.Column <= 0 {
		return e.Error()
	}
	lines := strings.Split(src, "\n")
	if e.Location.Line > len(lines) {
		return e.Error()
	}
	line := lines[e.Location.Line-1]
	pointer := strings.Repeat(" ", e.Location.Column-1) + "^"
	return fmt.Sprintf("%s\n%s\n%s", e.Error(), line, pointer)
}

// As recovers the typed *Error from a (possibly pkg/errors-wrapped) error.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
