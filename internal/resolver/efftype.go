package resolver

import (
	"github.com/cdmlang/cdml/internal/diagnostics"
	"github.com/cdmlang/cdml/internal/model"
)

// EffectiveType returns the first node in d's type-derivation chain that is
// not a pure alias: a node carrying elements, enum values or a target, or a
// builtin. The result is memoized per node; a cyclic chain yields (nil,
// true) and reports every node on the cycle exactly once.
func (r *Resolver) EffectiveType(d *model.Definition) (*model.Definition, bool) {
	r.effType(d)
	_, target, cyclic := r.m.EffectiveTypeState(d)
	return target, cyclic
}

// effType is the recursive worker. It returns the chain terminal plus, while
// a cycle unwinds, the node the chain re-entered; frames between the
// re-entry and that node are exactly the cycle members.
func (r *Resolver) effType(d *model.Definition) (*model.Definition, *model.Definition) {
	switch state, target, _ := r.m.EffectiveTypeState(d); state {
	case model.EffDone:
		return target, nil
	case model.EffInProgress:
		r.report(diagnostics.TypeCyclic, d.Location, d.QualifiedName())
		r.m.SetEffectiveType(d, nil, true)
		return nil, d
	}

	// Gray-mark before resolving the type reference: resolution itself may
	// walk back into this node through an element environment.
	r.m.MarkEffectiveTypeInProgress(d)
	next := r.typeChainNext(d)
	if next == nil {
		// d is the terminal of its own chain (or has no type at all).
		r.m.SetEffectiveType(d, d, false)
		return d, nil
	}

	terminal, cycleHead := r.effType(next)
	if cycleHead != nil {
		if d == cycleHead {
			// The cycle closed on this node; its memo was written at
			// re-entry. Callers above are not on the cycle.
			return nil, nil
		}
		r.report(diagnostics.TypeCyclic, d.Location, d.QualifiedName())
		r.m.SetEffectiveType(d, nil, true)
		return nil, cycleHead
	}
	if terminal == nil {
		// Unresolved somewhere down the chain; same sentinel for every
		// member so repeated calls are O(1).
		r.m.SetEffectiveType(d, nil, false)
		return nil, nil
	}

	r.m.SetEffectiveType(d, terminal, false)
	r.expandStructure(d, terminal)
	if terminal.IsAssociation() {
		r.maybeRedirect(d)
	}
	return terminal, nil
}

// typeChainNext returns the node d's type chain continues at, or nil when d
// is terminal. The chain follows the declared type of aliases and the
// origin link of inferred members that carry no declaration of their own.
func (r *Resolver) typeChainNext(d *model.Definition) *model.Definition {
	if d.IsStructured() || d.IsEnum() || d.IsAssociation() || d.Kind == model.KindBuiltin {
		return nil
	}
	if d.Query != nil {
		// A view's shape is its inferred element list.
		return nil
	}
	if d.Type != nil {
		if next := r.resolveRef(d.Type, refType, d, nil); next != nil && next != d {
			return next
		}
		return nil
	}
	if origin := r.m.Origin(d); origin != nil && origin != d {
		return origin
	}
	return nil
}

// expandStructure clones the terminal's sub-structure into an intermediate
// alias node, with origin links, unless already present. This is what lets
// "type T : Base" transparently expose Base's sub-elements on T.
func (r *Resolver) expandStructure(d, terminal *model.Definition) {
	if d == terminal {
		return
	}
	if terminal.IsStructured() && !d.IsStructured() {
		d.Elements = model.NewMembers()
		terminal.Elements.Each(func(name string, e *model.Definition) bool {
			d.Elements.Add(r.m.Clone(e, name, d))
			return true
		})
	}
	if terminal.Items != nil && d.Items == nil {
		d.Items = r.m.Clone(terminal.Items, terminal.Items.Name, d)
	}
}
