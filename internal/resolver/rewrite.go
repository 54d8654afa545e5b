package resolver

import (
	"github.com/cdmlang/cdml/internal/diagnostics"
	"github.com/cdmlang/cdml/internal/model"
)

// rewriteDefinition is the phase-5 entry for one definition: every element
// carrying a redirection record gets its join semantics reconciled with the
// new target. The walk covers nested structures; mixins are covered through
// the query they belong to.
func (r *Resolver) rewriteDefinition(d *model.Definition) {
	if d == nil {
		return
	}
	r.rewriteMembers(d.Elements)
	if d.Items != nil {
		r.rewriteDefinition(d.Items)
	}
	if d.Query != nil {
		r.rewriteQueryMixins(d.Query)
	}
}

func (r *Resolver) rewriteMembers(members *model.Members) {
	members.Each(func(_ string, e *model.Definition) bool {
		if rec := r.m.Redirection(e); rec != nil {
			r.rewriteAssociation(e, rec)
		}
		r.rewriteMembers(e.Elements)
		return true
	})
}

func (r *Resolver) rewriteQueryMixins(q *model.Query) {
	for _, b := range q.Branches {
		r.rewriteQueryMixins(b)
	}
	if q.Mixins == nil {
		return
	}
	q.Mixins.Each(func(_ string, mx *model.Definition) bool {
		if rec := r.m.Redirection(mx); rec != nil {
			r.rewriteAssociation(mx, rec)
		}
		return true
	})
}

// rewriteAssociation dispatches on the association's join form. A managed
// association re-derives its foreign keys against the new target; an
// unmanaged one gets its ON condition cloned and repointed. Projected
// association elements carry neither themselves; the origin chain supplies
// them.
func (r *Resolver) rewriteAssociation(assoc *model.Definition, rec *model.RedirectionRecord) {
	if fks := r.assocForeignKeys(assoc); len(fks) > 0 {
		r.rewriteForeignKeys(assoc, fks, rec)
		return
	}
	if on := r.assocOnCondition(assoc); on != nil {
		r.rewriteOnCondition(assoc, on, rec)
	}
}

// assocForeignKeys returns the foreign keys of an association, walking the
// origin chain of projected elements.
func (r *Resolver) assocForeignKeys(assoc *model.Definition) []*model.ForeignKey {
	for a := assoc; a != nil; a = r.m.Origin(a) {
		if len(a.ForeignKeys) > 0 {
			return a.ForeignKeys
		}
		if a.On != nil {
			return nil
		}
	}
	return nil
}

// assocOnCondition is the ON counterpart of assocForeignKeys.
func (r *Resolver) assocOnCondition(assoc *model.Definition) model.Expr {
	for a := assoc; a != nil; a = r.m.Origin(a) {
		if a.On != nil {
			return a.On
		}
		if len(a.ForeignKeys) > 0 {
			return nil
		}
	}
	return nil
}

// rewriteForeignKeys checks coverage in both directions: every original
// foreign key must be projected by the new target under the same name, and
// the new target must not carry primary keys the association never covered.
// Covered keys are re-derived against the new target's elements; a missing
// key is reported and left pointing at the original so later phases still
// see it.
func (r *Resolver) rewriteForeignKeys(assoc *model.Definition, fks []*model.ForeignKey, rec *model.RedirectionRecord) {
	elems := r.effectiveElements(rec.NewTarget)
	covered := make(map[string]bool, len(fks))
	derived := make([]*model.ForeignKey, 0, len(fks))
	for _, fk := range fks {
		covered[fk.Name] = true
		var projected *model.Definition
		if elems != nil {
			projected = elems.Get(fk.Name)
		}
		if projected == nil {
			r.report(diagnostics.RewriteKeyNotCoveredTarget, assoc.Location,
				rec.NewTarget.QualifiedName(), fk.Name, assoc.QualifiedName())
			derived = append(derived, fk)
			continue
		}
		ref := model.NewReference(fk.Location, fk.Name)
		ref.Bind(projected)
		derived = append(derived, &model.ForeignKey{Name: fk.Name, Ref: ref, Location: fk.Location})
	}
	assoc.ForeignKeys = derived
	if elems == nil {
		return
	}
	elems.Each(func(name string, e *model.Definition) bool {
		if e.Key && !covered[name] {
			r.report(diagnostics.RewriteKeyNotCoveredSource, assoc.Location,
				rec.NewTarget.QualifiedName(), name, assoc.QualifiedName())
		}
		return true
	})
}

// rewriteOnCondition clones the ON expression and repoints every reference
// into the original target at the same-named element of the new one. The
// original condition is replaced only when the whole clone rewrites
// cleanly.
func (r *Resolver) rewriteOnCondition(assoc *model.Definition, on model.Expr, rec *model.RedirectionRecord) {
	clone := model.CloneExpr(on)
	ok := true
	model.Walk(clone, func(n model.Expr) bool {
		if ref, isRef := n.(*model.RefExpr); isRef {
			if !r.repointRef(ref.Ref, assoc, rec) {
				ok = false
			}
			return false
		}
		return true
	})
	if ok {
		assoc.On = clone
	}
}

// repointRef rebinds one cloned ON reference. Paths rooted at the
// association itself walk the new target's elements, navigating through
// further associations up to the configured hop limit; everything else
// resolves in the association's ordinary element environment. $self needs
// no repointing, it denotes whatever entity ends up owning the condition.
func (r *Resolver) repointRef(ref *model.Reference, assoc *model.Definition, rec *model.RedirectionRecord) bool {
	if len(ref.Path) == 0 || ref.FirstID() == "$self" {
		return true
	}
	if ref.FirstID() != assoc.Name {
		r.resolveRef(ref, refOnElement, assoc, nil)
		return true
	}
	elems := r.effectiveElements(rec.NewTarget)
	cur := rec.NewTarget
	hops := 0
	for idx := 1; idx < len(ref.Path); idx++ {
		step := ref.Path[idx]
		if cur != rec.NewTarget && r.isRelationNode(cur) {
			hops++
			if hops > r.cfg.SelfDepth {
				r.report(diagnostics.RewriteOnUnsupported, step.Location,
					assoc.QualifiedName(), r.cfg.SelfDepth)
				ref.Poison(model.RefNotFound)
				return false
			}
			if t := r.finalTarget(cur); t != nil {
				elems = r.effectiveElements(t)
			} else {
				elems = nil
			}
		}
		var next *model.Definition
		if elems != nil {
			next = elems.Get(step.ID)
		}
		if next == nil {
			r.report(diagnostics.RewriteUndefinedElement, step.Location,
				step.ID, rec.NewTarget.QualifiedName())
			ref.Poison(model.RefNotFound)
			return false
		}
		cur = next
		elems = r.effectiveElements(cur)
	}
	ref.Bind(cur)
	return true
}
