package resolver

import (
	"github.com/cdmlang/cdml/internal/diagnostics"
	"github.com/cdmlang/cdml/internal/model"
)

// propagateKeys is the phase-3 entry for one definition. A simple view over
// a keyed source inherits the source's primary key markers on its projected
// columns, unless the view declares keys of its own. Violated preconditions
// downgrade to a warning; key propagation is then skipped for the view,
// never turned into a hard error.
func (r *Resolver) propagateKeys(d *model.Definition) bool {
	if d == nil {
		return false
	}
	if d.Query == nil {
		return hasOwnKeys(d)
	}
	switch r.keysStatus[d.ID] {
	case statusDone:
		return r.keysOK[d.ID]
	case statusInProgress:
		// FROM cycle; phase 2 reported it.
		return false
	}
	r.keysStatus[d.ID] = statusInProgress
	ok := r.propagateQueryKeys(d)
	r.keysStatus[d.ID] = statusDone
	r.keysOK[d.ID] = ok
	return ok
}

func (r *Resolver) propagateQueryKeys(d *model.Definition) bool {
	q := d.Query
	if q.Op != model.OpSelect || q.From == nil || q.From.IsJoin() || q.From.Ref == nil {
		return false
	}
	if hasExplicitKeys(q) {
		// The view decided for itself; its markers are already in place.
		return hasOwnKeys(d)
	}

	src := q.From.Ref.Definition()
	if src == nil {
		return false
	}
	// Conditions must hold transitively along the FROM chain: a view over
	// a view without sound keys has none either.
	if src.Query != nil && !r.propagateKeys(src) {
		return false
	}

	if name := r.toManyNavigation(q); name != "" {
		r.report(diagnostics.KeysToManyNavigation, q.Location, name)
		return false
	}

	srcElems := r.effectiveElements(src)
	if srcElems == nil {
		return false
	}

	// Every source key must be projected, or none propagates.
	complete := true
	srcElems.Each(func(name string, se *model.Definition) bool {
		if !se.Key {
			return true
		}
		if r.projectedColumn(d, se) == nil {
			r.report(diagnostics.KeysIncompleteProjection, q.Location, name, src.QualifiedName())
			complete = false
		}
		return true
	})
	if !complete {
		return false
	}

	any := false
	srcElems.Each(func(name string, se *model.Definition) bool {
		if !se.Key {
			return true
		}
		if e := r.projectedColumn(d, se); e != nil {
			e.Key = true
			any = true
		}
		return true
	})
	return any
}

// projectedColumn finds the output element of d that straight-projects the
// source element se, via the projection links phase 2 recorded.
func (r *Resolver) projectedColumn(d *model.Definition, se *model.Definition) *model.Definition {
	var found *model.Definition
	d.Elements.Each(func(_ string, e *model.Definition) bool {
		for _, p := range r.m.Projections(e) {
			if p == se {
				found = e
				return false
			}
		}
		return true
	})
	return found
}

// toManyNavigation returns the name of the first to-many association the
// query navigates in a column or the WHERE clause, or "".
func (r *Resolver) toManyNavigation(q *model.Query) string {
	for _, c := range q.Columns {
		if ref, ok := c.Expr.(*model.RefExpr); ok {
			if name := r.toManyInPath(q, ref.Ref); name != "" {
				return name
			}
		}
	}
	var name string
	model.Walk(q.Where, func(n model.Expr) bool {
		if ref, ok := n.(*model.RefExpr); ok {
			if name == "" {
				name = r.toManyInPath(q, ref.Ref)
			}
		}
		return name == ""
	})
	return name
}

// toManyInPath checks each navigated step of a path for a to-many
// association, walking names against the query's combined environment.
func (r *Resolver) toManyInPath(q *model.Query, ref *model.Reference) string {
	if ref == nil || len(ref.Path) < 2 {
		return ""
	}
	cur := r.combinedElement(q, ref.FirstID())
	for idx := 0; cur != nil; idx++ {
		if r.isRelationNode(cur) && cur.Many {
			return cur.Name
		}
		if idx+1 >= len(ref.Path) {
			break
		}
		var owner *model.Definition
		if r.isRelationNode(cur) {
			owner = r.finalTarget(cur)
		} else {
			owner = cur
		}
		elems := r.effectiveElements(owner)
		if elems == nil {
			break
		}
		cur = elems.Get(ref.Path[idx+1].ID)
	}
	return ""
}

func (r *Resolver) combinedElement(q *model.Query, name string) *model.Definition {
	if alias, ok := q.TableAliases[name]; ok {
		return alias.Artifact
	}
	if entries := q.Combined[name]; len(entries) == 1 {
		return entries[0].Element
	}
	return nil
}

func hasExplicitKeys(q *model.Query) bool {
	for _, c := range q.Columns {
		if c.Key != nil {
			return true
		}
	}
	return false
}

func hasOwnKeys(d *model.Definition) bool {
	found := false
	d.Elements.Each(func(_ string, e *model.Definition) bool {
		found = e.Key
		return !found
	})
	return found
}
