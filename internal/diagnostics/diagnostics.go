// Package diagnostics collects the problems found while resolving a model.
// The resolve pass never fails fast: every component reports through a Bag
// and keeps going, so one run surfaces as many problems as possible.
package diagnostics

import (
	"fmt"

	"github.com/cdmlang/cdml/internal/location"
)

// Severity of a diagnostic. Only Error makes the overall check fail; that
// decision is the caller's, not this package's.
type Severity int

const (
	Error Severity = iota
	Warning
	Info
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Info:
		return "info"
	default:
		return "unknown"
	}
}

// Code identifies one class of diagnostic. The ID is stable and user-facing;
// Template is a fmt format string filled from the arguments passed to New.
type Code struct {
	ID       string
	Severity Severity
	Template string
}

// Diagnostic is one reported problem. Args are kept alongside the rendered
// message so tooling can match on them without parsing text.
type Diagnostic struct {
	Code     Code
	Severity Severity
	Location location.Location
	// Related points at additional locations involved in the problem,
	// e.g. the second candidate of an ambiguity.
	Related []location.Location
	Args    []interface{}
}

// New builds a diagnostic with the code's default severity.
func New(code Code, loc location.Location, args ...interface{}) *Diagnostic {
	return &Diagnostic{
		Code:     code,
		Severity: code.Severity,
		Location: loc,
		Args:     args,
	}
}

// WithRelated attaches secondary locations and returns the diagnostic for
// chaining.
func (d *Diagnostic) WithRelated(locs ...location.Location) *Diagnostic {
	d.Related = append(d.Related, locs...)
	return d
}

// Message renders the code's template with the diagnostic's arguments.
func (d *Diagnostic) Message() string {
	return fmt.Sprintf(d.Code.Template, d.Args...)
}

func (d *Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s [%s]", d.Location, d.Severity, d.Message(), d.Code.ID)
}
