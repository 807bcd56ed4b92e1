package main

import (
	"fmt"
	"strings"
)

// SourceLocation is a position in the program the AST was built from.
// The zero value means the position is unknown.
type SourceLocation struct {
	Line   int
	Column int
}

func (l SourceLocation) String() string {
	if l.Line == 0 {
		return "?"
	}
	if l.Column == 0 {
		return fmt.Sprintf("%d", l.Line)
	}
	return fmt.Sprintf("%d:%d", l.Line, l.Column)
}

// ErrorKind identifies a class of diagnostic. Its value is the message
// format used when the diagnostic is rendered.
type ErrorKind string

const (
	// Linking
	UndeclaredIdentifier ErrorKind = "undeclared identifier '%s'"
	UndeclaredType       ErrorKind = "undeclared type '%s'"
	UndeclaredProcedure  ErrorKind = "undeclared procedure '%s'"
	DuplicateIdentifier  ErrorKind = "'%s' already declared in this scope"
	DuplicateField       ErrorKind = "duplicate field '%s' in record"
	CyclicType           ErrorKind = "type '%s' is defined in terms of itself"

	// Type sizes
	InfiniteType ErrorKind = "type '%s' contains itself and has no finite size"

	// Type checking
	AssignmentMismatch  ErrorKind = "cannot assign %s to %s"
	CompositeValue      ErrorKind = "value of type %s must come from a variable"
	OperatorMismatch    ErrorKind = "invalid operands for '%s': %s and %s"
	UnaryMismatch       ErrorKind = "invalid operand for '%s': %s"
	NonBooleanCondition ErrorKind = "condition must be Bool, got %s"
	NotAnArray          ErrorKind = "cannot index non-array type %s"
	IndexNotInt         ErrorKind = "array index must be Int, got %s"
	NotARecord          ErrorKind = "cannot select field of non-record type %s"
	NoSuchField         ErrorKind = "type %s has no field '%s'"
	NotAPointer         ErrorKind = "cannot dereference non-pointer type %s"
	NewNonPointer       ErrorKind = "new requires a pointer variable, got %s"
	FreeNonPointer      ErrorKind = "free requires a pointer variable, got %s"
	WriteNonAtomic      ErrorKind = "cannot write value of type %s"
	ReadNonAtomic       ErrorKind = "cannot read into variable of type %s"
	StringScrutinee     ErrorKind = "cannot switch on a String"
	BadScrutinee        ErrorKind = "cannot switch on type %s"
	CaseNotConstant     ErrorKind = "case label must be a constant"
	CaseMismatch        ErrorKind = "case label of type %s does not match switch type %s"
	DuplicateCase       ErrorKind = "duplicate case label %s"
	ArgumentCount       ErrorKind = "procedure '%s' takes %d arguments, got %d"
	ArgumentNotMem      ErrorKind = "argument %d of '%s' is passed by reference and must be a variable"
	ArgumentMismatch    ErrorKind = "argument %d of '%s': cannot pass %s as %s"
	NegativeDimension   ErrorKind = "array dimension must not be negative, got %d"

	// Runtime warnings
	UninitializedRead ErrorKind = "read of uninitialized memory at address %d"
)

// Reporter is the sink every pass reports diagnostics to.
type Reporter interface {
	Error(kind ErrorKind, loc SourceLocation, args ...any)
	Warning(kind ErrorKind, loc SourceLocation, args ...any)
}

// Severity distinguishes errors, which stop the pipeline, from warnings.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic is one rendered message.
type Diagnostic struct {
	Severity Severity
	Kind     ErrorKind
	Loc      SourceLocation
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Loc, d.Severity, d.Message)
}

// Diagnostics collects everything reported during compilation and execution.
type Diagnostics struct {
	Items []Diagnostic
}

func (d *Diagnostics) Error(kind ErrorKind, loc SourceLocation, args ...any) {
	d.add(SeverityError, kind, loc, args)
}

func (d *Diagnostics) Warning(kind ErrorKind, loc SourceLocation, args ...any) {
	d.add(SeverityWarning, kind, loc, args)
}

func (d *Diagnostics) add(severity Severity, kind ErrorKind, loc SourceLocation, args []any) {
	d.Items = append(d.Items, Diagnostic{
		Severity: severity,
		Kind:     kind,
		Loc:      loc,
		Message:  fmt.Sprintf(string(kind), args...),
	})
}

// HasErrors reports whether any error (not warning) was collected.
func (d *Diagnostics) HasErrors() bool {
	return d.ErrorCount() > 0
}

func (d *Diagnostics) ErrorCount() int {
	n := 0
	for _, item := range d.Items {
		if item.Severity == SeverityError {
			n++
		}
	}
	return n
}

// Kinds returns the kinds of all collected diagnostics in report order, or
// nil if there are none.
func (d *Diagnostics) Kinds() []ErrorKind {
	var kinds []ErrorKind
	for _, item := range d.Items {
		kinds = append(kinds, item.Kind)
	}
	return kinds
}

func (d *Diagnostics) String() string {
	lines := make([]string, len(d.Items))
	for i, item := range d.Items {
		lines[i] = item.String()
	}
	return strings.Join(lines, "\n")
}
