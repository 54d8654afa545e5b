// Package model holds the in-memory representation of a CDML program: the
// definitions produced by the parser front end, the reference cells the
// resolve pass binds, and the side tables linking derived nodes back to
// their origins.
//
// Ownership is a strict tree: every member belongs to exactly one parent.
// Everything that is not ownership (origins of cloned members, effective
// types, projection links, redirections) lives in side tables on the Model,
// keyed by arena node ID, so the ownership graph stays acyclic while the
// link tables may encode arbitrary graphs.
package model

import (
	"strings"

	"github.com/cdmlang/cdml/internal/location"
)

// NodeID addresses a definition in the model arena. IDs are stable for the
// lifetime of the model.
type NodeID int32

// Kind tags what a Definition represents.
type Kind int

const (
	KindContext Kind = iota
	KindService
	KindEntity
	KindAspect
	KindType
	KindElement
	KindEnumValue
	KindAction
	KindFunction
	KindParam
	KindMixin
	KindAnnotation
	KindBuiltin
	KindNamespace
)

var kindNames = map[Kind]string{
	KindContext:    "context",
	KindService:    "service",
	KindEntity:     "entity",
	KindAspect:     "aspect",
	KindType:       "type",
	KindElement:    "element",
	KindEnumValue:  "enum",
	KindAction:     "action",
	KindFunction:   "function",
	KindParam:      "param",
	KindMixin:      "mixin",
	KindAnnotation: "annotation",
	KindBuiltin:    "builtin",
	KindNamespace:  "namespace",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// KindFromString maps the interchange form's kind strings to Kind.
func KindFromString(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// TypeCategory classifies builtin types for the predicates redirection and
// key checks use.
type TypeCategory int

const (
	CategoryNone TypeCategory = iota
	CategoryString
	CategoryNumeric
	CategoryBoolean
	CategoryDateTime
	CategoryBinary
	CategoryRelation
)

// Definition represents an artifact or one of its members. One node type
// serves both roles; Kind and the payload fields distinguish them.
type Definition struct {
	ID       NodeID
	Kind     Kind
	Name     string // local name, e.g. "title"
	Absolute string // absolute qualified name for artifacts, "" for members
	Location location.Location

	// Parent is the owning definition for members, nil for artifacts.
	Parent *Definition
	// Block is the lexical scope of the source file that declared this
	// definition. Nil for builtins and generated artifacts.
	Block *Block

	// Type is the declared type reference, including "type of" references.
	Type *Reference
	// Target is the association/composition target reference.
	Target *Reference
	// On is the join condition of an unmanaged association.
	On Expr
	// RedirectedTo is the explicitly requested redirection target of an
	// association, if the model author wrote one.
	RedirectedTo *Reference
	// Many marks a to-many association.
	Many bool
	// ForeignKeys lists the keys of a managed association, in order.
	ForeignKeys []*ForeignKey
	// Value is an enum value's or calculated element's expression.
	Value Expr

	Elements *Members
	Enum     *Members
	Actions  *Members
	Params   *Members
	// Items is the line-item type of an arrayed definition.
	Items *Definition

	Includes []*Reference
	Query    *Query
	// DeclaredElements is the statically specified output shape of a view,
	// matched by name against the inferred elements.
	DeclaredElements *Members

	Annotations []*AnnotationAssignment

	Key         bool
	Abstract    bool
	Composition bool
	AutoExposed bool
	// Category is set on builtin definitions only.
	Category TypeCategory
}

// QualifiedName renders the full dotted path of this node, walking member
// parents up to the enclosing artifact. Used in diagnostics.
func (d *Definition) QualifiedName() string {
	if d.Parent == nil {
		if d.Absolute != "" {
			return d.Absolute
		}
		return d.Name
	}
	return d.Parent.QualifiedName() + "." + d.Name
}

// MainArtifact returns the enclosing artifact of a member, or the definition
// itself if it is an artifact.
func (d *Definition) MainArtifact() *Definition {
	n := d
	for n.Parent != nil {
		n = n.Parent
	}
	return n
}

// IsArtifact reports whether this node is a top-level (nameable by absolute
// path) definition rather than a member.
func (d *Definition) IsArtifact() bool {
	return d.Parent == nil
}

// IsStructured reports whether the node directly carries elements.
func (d *Definition) IsStructured() bool {
	return d.Elements != nil && d.Elements.Len() > 0
}

// IsAssociation reports whether the node directly carries a target.
func (d *Definition) IsAssociation() bool {
	return d.Target != nil
}

// IsEnum reports whether the node directly carries enum values.
func (d *Definition) IsEnum() bool {
	return d.Enum != nil && d.Enum.Len() > 0
}

// IsAlias reports whether the node contributes nothing of its own to the
// type chain: it has a type reference but no elements, enum, or target, and
// is not a builtin. Effective-type computation skips past aliases.
func (d *Definition) IsAlias() bool {
	return d.Type != nil && !d.IsStructured() && !d.IsEnum() &&
		!d.IsAssociation() && d.Kind != KindBuiltin
}

// InService returns the innermost service whose name prefixes this
// definition's absolute name, or nil. Service membership in the flattened
// definitions map is positional: "S.Books" belongs to service "S".
func (d *Definition) InService(m *Model) *Definition {
	abs := d.MainArtifact().Absolute
	for {
		dot := strings.LastIndex(abs, ".")
		if dot < 0 {
			return nil
		}
		abs = abs[:dot]
		if svc := m.Definition(abs); svc != nil && svc.Kind == KindService {
			return svc
		}
	}
}

// ForeignKey is one key of a managed association. Ref points into the
// target's elements; Artificial marks keys re-derived during redirection.
type ForeignKey struct {
	Name     string
	Ref      *Reference
	Location location.Location
}

// AnnotationAssignment is one "@Name: value" assignment, tagged with the
// extension layer it came from.
type AnnotationAssignment struct {
	Name     string
	Value    Expr
	Layer    string
	Location location.Location
}

// Members is an insertion-ordered name → definition mapping. Order is
// significant: query output columns are emitted in insertion order.
type Members struct {
	names  []string
	byName map[string]*Definition
}

func NewMembers() *Members {
	return &Members{byName: make(map[string]*Definition)}
}

func (m *Members) Len() int {
	if m == nil {
		return 0
	}
	return len(m.names)
}

func (m *Members) Get(name string) *Definition {
	if m == nil {
		return nil
	}
	return m.byName[name]
}

func (m *Members) Has(name string) bool {
	return m.Get(name) != nil
}

// Add appends a member. It reports false if the name is already present, in
// which case the mapping is unchanged.
func (m *Members) Add(d *Definition) bool {
	if _, dup := m.byName[d.Name]; dup {
		return false
	}
	m.byName[d.Name] = d
	m.names = append(m.names, d.Name)
	return true
}

// Names returns the member names in insertion order.
func (m *Members) Names() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// Each calls fn for every member in insertion order until fn returns false.
func (m *Members) Each(fn func(name string, d *Definition) bool) {
	if m == nil {
		return
	}
	for _, name := range m.names {
		if !fn(name, m.byName[name]) {
			return
		}
	}
}
