package model

import (
	"sort"

	"github.com/cdmlang/cdml/internal/location"
)

// Model is the whole program: every definition addressable by absolute
// qualified name, the per-file lexical blocks, and the builtin environment.
// The resolve pass mutates it in place; definitions are never removed, only
// annotated with resolution results.
type Model struct {
	definitions map[string]*Definition
	defNames    []string // insertion order
	Sources     []*Source
	// Builtins is the outermost lookup environment, consulted after every
	// lexical block.
	Builtins map[string]*Definition
	// LayerExtends maps an extension layer to the layer it declares to
	// extend. Used by annotation merging: an extending layer's value is
	// assumed to already fold in the extended one.
	LayerExtends map[string]string
	// Extensions are annotate statements waiting to be applied. They are
	// folded into their targets during the resolve pass, after query
	// elements exist.
	Extensions []*Extension

	arena []*Definition

	origins      map[NodeID]NodeID
	projections  map[NodeID][]NodeID
	redirections map[NodeID]*RedirectionRecord
	effTypes     map[NodeID]*effEntry
}

func New() *Model {
	return &Model{
		definitions:  make(map[string]*Definition),
		Builtins:     make(map[string]*Definition),
		LayerExtends: make(map[string]string),
		origins:      make(map[NodeID]NodeID),
		projections:  make(map[NodeID][]NodeID),
		redirections: make(map[NodeID]*RedirectionRecord),
		effTypes:     make(map[NodeID]*effEntry),
	}
}

// Source is one input file: its name and lexical block.
type Source struct {
	File  string
	Block *Block
}

// Block is a file's lexical scope: the namespace prefix and the using
// imports, chained to a parent scope. The builtin environment is consulted
// only after the whole chain fails.
type Block struct {
	Namespace string
	// Usings maps local alias → absolute imported name.
	Usings map[string]*Using
	Parent *Block
}

// Using is one import of the enclosing block.
type Using struct {
	Alias    string
	Target   string
	Location location.Location
}

// Extension is one annotate statement from an extension layer, targeting an
// artifact and optionally individual elements of it.
type Extension struct {
	Target             string
	Layer              string
	Assignments        []*AnnotationAssignment
	ElementAssignments map[string][]*AnnotationAssignment
	Location           location.Location
}

func NewBlock(namespace string, parent *Block) *Block {
	return &Block{Namespace: namespace, Usings: make(map[string]*Using), Parent: parent}
}

// NewDefinition allocates a definition in the arena. Every node must be
// created through this (or Clone) so side tables can address it.
func (m *Model) NewDefinition(kind Kind, name string, loc location.Location) *Definition {
	d := &Definition{ID: NodeID(len(m.arena)), Kind: kind, Name: name, Location: loc}
	m.arena = append(m.arena, d)
	return d
}

// AddDefinition registers an artifact under its absolute name. It reports
// false on a duplicate, leaving the model unchanged.
func (m *Model) AddDefinition(d *Definition) bool {
	if _, dup := m.definitions[d.Absolute]; dup {
		return false
	}
	m.definitions[d.Absolute] = d
	m.defNames = append(m.defNames, d.Absolute)
	return true
}

// Definition looks up an artifact by absolute name.
func (m *Model) Definition(absolute string) *Definition {
	return m.definitions[absolute]
}

// DefinitionNames returns all absolute names in insertion order.
func (m *Model) DefinitionNames() []string {
	out := make([]string, len(m.defNames))
	copy(out, m.defNames)
	return out
}

// SortedDefinitionNames returns all absolute names sorted, the iteration
// order of the per-definition phases. Sorted order keeps diagnostics
// deterministic regardless of input file order.
func (m *Model) SortedDefinitionNames() []string {
	out := m.DefinitionNames()
	sort.Strings(out)
	return out
}

// Node returns the arena node with the given ID, or nil.
func (m *Model) Node(id NodeID) *Definition {
	if int(id) < 0 || int(id) >= len(m.arena) {
		return nil
	}
	return m.arena[id]
}

// SetOrigin links a derived member to the member it was cloned from. The
// link is non-owning and write-once.
func (m *Model) SetOrigin(derived, origin *Definition) {
	if _, set := m.origins[derived.ID]; set {
		return
	}
	m.origins[derived.ID] = origin.ID
}

// Origin returns the node a derived member was cloned from, or nil.
func (m *Model) Origin(d *Definition) *Definition {
	id, ok := m.origins[d.ID]
	if !ok {
		return nil
	}
	return m.Node(id)
}

// AddProjection records that a query output element is a straight projection
// of a source element. One element may project several sources across a
// union.
func (m *Model) AddProjection(elem, source *Definition) {
	for _, id := range m.projections[elem.ID] {
		if id == source.ID {
			return
		}
	}
	m.projections[elem.ID] = append(m.projections[elem.ID], source.ID)
}

// Projections returns the source elements a query element projects.
func (m *Model) Projections(elem *Definition) []*Definition {
	ids := m.projections[elem.ID]
	out := make([]*Definition, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.Node(id))
	}
	return out
}

// SetRedirection attaches the redirection record of an association.
// Write-once.
func (m *Model) SetRedirection(assoc *Definition, rec *RedirectionRecord) {
	if _, set := m.redirections[assoc.ID]; set {
		return
	}
	m.redirections[assoc.ID] = rec
}

// Redirection returns an association's redirection record, or nil.
func (m *Model) Redirection(assoc *Definition) *RedirectionRecord {
	return m.redirections[assoc.ID]
}

// EffState is the memoization state of a node's effective type.
type EffState int

const (
	EffUnvisited EffState = iota
	EffInProgress
	EffDone
)

type effEntry struct {
	state EffState
	// target is the terminal of the type chain; nil when the chain is
	// cyclic or hits an unresolved reference.
	target *Definition
	cyclic bool
}

// EffectiveTypeState returns the memoized effective type of a node: its
// state, the terminal definition (nil if unreachable), and whether the
// chain was cyclic.
func (m *Model) EffectiveTypeState(d *Definition) (EffState, *Definition, bool) {
	e, ok := m.effTypes[d.ID]
	if !ok {
		return EffUnvisited, nil, false
	}
	return e.state, e.target, e.cyclic
}

// MarkEffectiveTypeInProgress sets the gray marker for cycle-safe
// memoization.
func (m *Model) MarkEffectiveTypeInProgress(d *Definition) {
	m.effTypes[d.ID] = &effEntry{state: EffInProgress}
}

// SetEffectiveType records the final effective type of a node. Overwrites
// the in-progress marker; a Done entry is never overwritten.
func (m *Model) SetEffectiveType(d *Definition, target *Definition, cyclic bool) {
	if e, ok := m.effTypes[d.ID]; ok && e.state == EffDone {
		return
	}
	m.effTypes[d.ID] = &effEntry{state: EffDone, target: target, cyclic: cyclic}
}

// Clone creates a derived copy of a member under a new parent, with an
// origin link back to src. The copy shares src's reference payloads by
// re-resolving its own cloned cells; structure (elements, enum, foreign
// keys) is cloned recursively, annotations are carried over.
func (m *Model) Clone(src *Definition, name string, parent *Definition) *Definition {
	d := m.NewDefinition(src.Kind, name, src.Location)
	d.Parent = parent
	d.Key = src.Key
	d.Abstract = src.Abstract
	d.Composition = src.Composition
	d.Category = src.Category
	d.Many = src.Many
	if src.Type != nil {
		d.Type = src.Type.Clone()
	}
	if src.Target != nil {
		d.Target = src.Target.Clone()
	}
	if src.RedirectedTo != nil {
		d.RedirectedTo = src.RedirectedTo.Clone()
	}
	if src.On != nil {
		d.On = CloneExpr(src.On)
	}
	if src.Value != nil {
		d.Value = CloneExpr(src.Value)
	}
	for _, fk := range src.ForeignKeys {
		d.ForeignKeys = append(d.ForeignKeys, &ForeignKey{Name: fk.Name, Ref: fk.Ref.Clone(), Location: fk.Location})
	}
	if src.Elements != nil {
		d.Elements = NewMembers()
		src.Elements.Each(func(n string, e *Definition) bool {
			d.Elements.Add(m.Clone(e, n, d))
			return true
		})
	}
	if src.Enum != nil {
		d.Enum = NewMembers()
		src.Enum.Each(func(n string, e *Definition) bool {
			d.Enum.Add(m.Clone(e, n, d))
			return true
		})
	}
	if src.Items != nil {
		d.Items = m.Clone(src.Items, src.Items.Name, d)
	}
	d.Annotations = append(d.Annotations, src.Annotations...)
	m.SetOrigin(d, src)
	return d
}
