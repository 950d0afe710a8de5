// Package diag implements the compiler's diagnostic accumulator: a single
// place every stage (lexer, parser, semantic analyzer, scheduler) reports
// warnings and errors to, instead of returning raw Go errors for recoverable
// problems.
package diag

import (
	"fmt"

	"ibci/internal/token"
)

// Severity ranks a Diagnostic. ERROR and above mark the compilation as
// failed; FATAL additionally aborts the current stage immediately.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Code is one of the stable diagnostic codes the external interface
// contract enumerates (lexer LEX_*, parser PAR_*, semantic SEM_*, runtime
// RUN_*, scheduler MOD_*).
type Code string

const (
	LexUnterminatedString   Code = "LEX_UNTERMINATED_STRING"
	LexUnterminatedBehavior Code = "LEX_UNTERMINATED_BEHAVIOR"
	LexInvalidEscape        Code = "LEX_INVALID_ESCAPE"

	ParIndentationError Code = "PAR_INDENTATION_ERROR"
	ParExpectedToken    Code = "PAR_EXPECTED_TOKEN"
	ParWarn             Code = "PAR_WARN"

	SemUndefinedSymbol Code = "SEM_UNDEFINED_SYMBOL"
	SemRedefinition    Code = "SEM_REDEFINITION"
	SemTypeMismatch    Code = "SEM_TYPE_MISMATCH"
	ProtoLimit         Code = "PROTO_LIMIT"

	RunTypeMismatch      Code = "RUN_TYPE_MISMATCH"
	RunDivisionByZero    Code = "RUN_DIVISION_BY_ZERO"
	RunAttributeError    Code = "RUN_ATTRIBUTE_ERROR"
	RunIndexError        Code = "RUN_INDEX_ERROR"
	RunCallError         Code = "RUN_CALL_ERROR"
	RunLimitExceeded     Code = "RUN_LIMIT_EXCEEDED"
	RunUndefinedVariable Code = "RUN_UNDEFINED_VARIABLE"
	RunLLMError          Code = "RUN_LLM_ERROR"
	RunGenericError      Code = "RUN_GENERIC_ERROR"

	// Scheduler codes are not in spec.md's stable list (module-system
	// concerns sit at its edge); named in the same family for consistency.
	ModCircularDependency Code = "MOD_CIRCULAR_DEPENDENCY"
	ModNotFound           Code = "MOD_NOT_FOUND"
	ModSymbolNotFound     Code = "MOD_SYMBOL_NOT_FOUND"
)

// Location pinpoints a Diagnostic in a source file.
type Location struct {
	FilePath string
	Line     int
	Column   int
	Length   int
}

func (l Location) String() string {
	if l.FilePath == "" {
		return fmt.Sprintf("%d:%d", l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d:%d", l.FilePath, l.Line, l.Column)
}

// Locatable is anything a caller can hand to Tracker.Report in place of a
// Location: a token.Token, an AST node, or a Location itself.
type Locatable interface {
	DiagLocation() Location
}

// Diagnostic is one reported issue.
type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Location Location
	Hint     string
}

func (d Diagnostic) Error() string {
	if d.Hint != "" {
		return fmt.Sprintf("%s: %s [%s] %s (hint: %s)", d.Severity, d.Location, d.Code, d.Message, d.Hint)
	}
	return fmt.Sprintf("%s: %s [%s] %s", d.Severity, d.Location, d.Code, d.Message)
}

// FatalError wraps a single FATAL Diagnostic; raising it aborts the
// enclosing compiler stage immediately.
type FatalError struct {
	Diagnostic Diagnostic
}

func (e *FatalError) Error() string { return e.Diagnostic.Error() }

// CompilationError wraps every Diagnostic a Tracker accumulated once the
// caller asks it to fail after a stage finished with one or more errors.
type CompilationError struct {
	Diagnostics []Diagnostic
}

func (e *CompilationError) Error() string {
	if len(e.Diagnostics) == 0 {
		return "compilation failed"
	}
	return fmt.Sprintf("compilation failed: %s (and %d more)", e.Diagnostics[0].Error(), len(e.Diagnostics)-1)
}

// Tracker accumulates Diagnostics for a single compilation unit.
type Tracker struct {
	FilePath    string
	Diagnostics []Diagnostic
	errorCount  int
}

// NewTracker creates a Tracker for the given source file path ("<unknown>"
// is an acceptable placeholder for in-memory sources).
func NewTracker(filePath string) *Tracker {
	if filePath == "" {
		filePath = "<unknown>"
	}
	return &Tracker{FilePath: filePath}
}

func locationFromToken(t token.Token) Location {
	return Location{Line: t.Pos.Line, Column: t.Pos.Column, Length: len(t.Lexeme)}
}

// Report records a Diagnostic. loc may be nil, a token.Token, a Locatable,
// or a Location. Reporting at Fatal panics with *FatalError so the caller's
// stage unwinds immediately; callers that want to recover should do so with
// a deferred recover() that type-asserts *FatalError.
func (t *Tracker) Report(severity Severity, code Code, message string, loc any, hint string) Diagnostic {
	d := Diagnostic{Severity: severity, Code: code, Message: message, Hint: hint}
	switch v := loc.(type) {
	case nil:
	case Location:
		d.Location = v
		if d.Location.FilePath == "" {
			d.Location.FilePath = t.FilePath
		}
	case token.Token:
		d.Location = locationFromToken(v)
		d.Location.FilePath = t.FilePath
	case Locatable:
		d.Location = v.DiagLocation()
		if d.Location.FilePath == "" {
			d.Location.FilePath = t.FilePath
		}
	}

	t.Diagnostics = append(t.Diagnostics, d)
	if severity >= Error {
		t.errorCount++
	}
	if severity == Fatal {
		panic(&FatalError{Diagnostic: d})
	}
	return d
}

// Panic reports a Fatal diagnostic; equivalent to Report(Fatal, ...) but
// named for call sites that want to read as "this is unrecoverable."
func (t *Tracker) Panic(code Code, message string, loc any, hint string) {
	t.Report(Fatal, code, message, loc, hint)
}

// HasErrors reports whether any Error-or-above Diagnostic has been recorded.
func (t *Tracker) HasErrors() bool { return t.errorCount > 0 }

// CheckErrors returns a *CompilationError if HasErrors, else nil.
func (t *Tracker) CheckErrors() error {
	if t.HasErrors() {
		return &CompilationError{Diagnostics: t.Diagnostics}
	}
	return nil
}

// Merge appends another Tracker's diagnostics into this one.
func (t *Tracker) Merge(other *Tracker) {
	t.Diagnostics = append(t.Diagnostics, other.Diagnostics...)
	t.errorCount += other.errorCount
}

// Clear discards all accumulated diagnostics.
func (t *Tracker) Clear() {
	t.Diagnostics = nil
	t.errorCount = 0
}
