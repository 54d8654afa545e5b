package model

import (
	"strings"

	"github.com/cdmlang/cdml/internal/location"
)

// RefState is the resolution state of a reference cell.
type RefState int

const (
	// RefUnresolved means resolution has not been attempted yet.
	RefUnresolved RefState = iota
	// RefNotFound means resolution failed and was reported.
	RefNotFound
	// RefAmbiguous means the name matched more than one candidate.
	RefAmbiguous
	// RefCyclic means resolution re-entered itself.
	RefCyclic
	// RefBound means the reference denotes Definition().
	RefBound
)

func (s RefState) String() string {
	switch s {
	case RefUnresolved:
		return "unresolved"
	case RefNotFound:
		return "not-found"
	case RefAmbiguous:
		return "ambiguous"
	case RefCyclic:
		return "cyclic"
	case RefBound:
		return "bound"
	default:
		return "unknown"
	}
}

// PathStep is one identifier in a qualified path, optionally with named
// arguments and a filter predicate attached (entity parameters, filtered
// association navigation).
type PathStep struct {
	ID       string
	Location location.Location
	Args     []*NamedArg
	Filter   Expr
}

// NamedArg is a "name: expr" argument on a path step.
type NamedArg struct {
	Name     string
	Value    Expr
	Location location.Location
}

// Reference is an unresolved qualified path plus its resolution result cell.
// The cell is write-once: the first Bind or Poison wins and later attempts
// are ignored, which is what makes redundant resolution idempotent.
type Reference struct {
	Path     []PathStep
	Location location.Location
	// TypeOf marks "type of X.y" references, which resolve their tail
	// against element environments instead of artifact ones.
	TypeOf bool

	state RefState
	def   *Definition
}

// NewReference builds a reference from dotted-path segments.
func NewReference(loc location.Location, steps ...string) *Reference {
	r := &Reference{Location: loc}
	for _, s := range steps {
		r.Path = append(r.Path, PathStep{ID: s, Location: loc})
	}
	return r
}

func (r *Reference) State() RefState { return r.state }

// Definition returns the bound target, or nil unless State is RefBound.
func (r *Reference) Definition() *Definition {
	if r.state != RefBound {
		return nil
	}
	return r.def
}

// Resolved reports whether resolution has been attempted, successfully or
// not. A resolved cell is never written again.
func (r *Reference) Resolved() bool { return r.state != RefUnresolved }

// Bind sets the cell to a definition. No-op if the cell is already set.
func (r *Reference) Bind(d *Definition) {
	if r.state != RefUnresolved {
		return
	}
	r.state = RefBound
	r.def = d
}

// Poison marks the cell failed with the given state (RefNotFound,
// RefAmbiguous or RefCyclic). No-op if the cell is already set.
func (r *Reference) Poison(s RefState) {
	if r.state != RefUnresolved || s == RefUnresolved || s == RefBound {
		return
	}
	r.state = s
}

// FirstID returns the first path segment, or "".
func (r *Reference) FirstID() string {
	if len(r.Path) == 0 {
		return ""
	}
	return r.Path[0].ID
}

// String renders the dotted path as written.
func (r *Reference) String() string {
	ids := make([]string, len(r.Path))
	for i, s := range r.Path {
		ids[i] = s.ID
	}
	return strings.Join(ids, ".")
}

// Clone copies the path of a reference into a fresh, unresolved cell.
// Attached argument and filter expressions are cloned as well.
func (r *Reference) Clone() *Reference {
	out := &Reference{Location: r.Location, TypeOf: r.TypeOf}
	out.Path = make([]PathStep, len(r.Path))
	for i, s := range r.Path {
		cp := PathStep{ID: s.ID, Location: s.Location}
		for _, a := range s.Args {
			cp.Args = append(cp.Args, &NamedArg{Name: a.Name, Value: CloneExpr(a.Value), Location: a.Location})
		}
		if s.Filter != nil {
			cp.Filter = CloneExpr(s.Filter)
		}
		out.Path[i] = cp
	}
	return out
}
