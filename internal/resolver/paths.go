package resolver

import (
	"strings"

	"github.com/cdmlang/cdml/internal/diagnostics"
	"github.com/cdmlang/cdml/internal/model"
)

// resolveRef resolves a reference under the policy selected by kind, on
// behalf of user. q supplies the query context for envQuery policies.
// Resolution is idempotent: a cell that has been bound or poisoned is
// returned as is, with no further diagnostics.
func (r *Resolver) resolveRef(ref *model.Reference, kind refKind, user *model.Definition, q *model.Query) *model.Definition {
	return r.resolveRefIn(ref, kind, user, q, nil)
}

// resolveRefIn additionally scopes envElements policies to the elements of
// base instead of the user's surroundings.
func (r *Resolver) resolveRefIn(ref *model.Reference, kind refKind, user *model.Definition, q *model.Query, base *model.Definition) *model.Definition {
	if ref == nil {
		return nil
	}
	if ref.Resolved() {
		return ref.Definition()
	}
	if len(ref.Path) == 0 {
		ref.Poison(model.RefNotFound)
		return nil
	}
	pol := policies[kind]
	if ref.TypeOf {
		pol = policies[refTypeOf]
	}

	cur, idx := r.resolveRoot(ref, pol, user, q, base)
	if cur == nil {
		return nil // reported and poisoned by the root lookup
	}
	// Arguments and filters on a root that is itself an association are
	// handled when the path navigates through it.
	if idx > 0 && !r.isRelationNode(cur) {
		if step := &ref.Path[idx-1]; len(step.Args) > 0 || step.Filter != nil {
			r.resolveStepArgs(step, cur)
		}
	}

	for ; idx < len(ref.Path); idx++ {
		next := r.memberStep(ref, idx, cur, pol, user, q)
		if next == nil {
			return nil
		}
		cur = next
	}

	if pol.expect != nil {
		if ok, want := pol.expect(cur); !ok {
			switch {
			case kind == refFrom:
				r.report(diagnostics.QueryFromExpectedEntity, ref.Location, cur.Kind.String(), ref.String())
			case want == "entity":
				r.report(diagnostics.RefExpectedEntity, ref.Location, ref.String(), cur.Kind.String())
			default:
				r.report(diagnostics.RefExpectedScalar, ref.Location, ref.String())
			}
			ref.Poison(model.RefNotFound)
			return nil
		}
	}

	ref.Bind(cur)
	if pol.dep == depNormal {
		r.recordDep(user, cur, ref.Location)
	}
	return cur
}

// resolveRoot resolves the first path step (or several, while they spell a
// namespace prefix) and returns the node the remaining steps start from.
// The three non-simple roots of an in-query lookup — a table alias, a
// mixin, and $self — each select their own continuation environment.
func (r *Resolver) resolveRoot(ref *model.Reference, pol policy, user *model.Definition, q *model.Query, base *model.Definition) (*model.Definition, int) {
	first := ref.Path[0]

	switch pol.env {
	case envQuery:
		if q != nil {
			if first.ID == "$self" {
				return user.MainArtifact(), 1
			}
			if alias, ok := q.TableAliases[first.ID]; ok && alias.Artifact != nil {
				return alias.Artifact, 1
			}
			if q.Mixins != nil {
				if mx := q.Mixins.Get(first.ID); mx != nil {
					return mx, 1
				}
			}
			entries := q.Combined[first.ID]
			switch len(entries) {
			case 0:
				// Fall through to the lexical scope: expressions may
				// name artifacts (enum symbols, parameter defaults).
			case 1:
				return entries[0].Element, 1
			default:
				r.report(diagnostics.RefAmbiguous, first.Location, first.ID, describeCombined(entries))
				ref.Poison(model.RefAmbiguous)
				return nil, 0
			}
		}
		return r.artifactRoot(ref, user)

	case envElements:
		if first.ID == "$self" {
			return user.MainArtifact(), 1
		}
		owner := base
		if owner == nil {
			owner = user.Parent
		}
		if owner == nil {
			owner = user.MainArtifact()
		}
		if elems := r.effectiveElements(owner); elems != nil {
			if e := elems.Get(first.ID); e != nil {
				return e, 1
			}
		}
		r.reportMostSpecificMiss(ref, 0, owner)
		return nil, 0

	default:
		return r.artifactRoot(ref, user)
	}
}

// artifactRoot resolves the leading steps as an artifact name, consuming as
// many steps as spell a namespace prefix.
func (r *Resolver) artifactRoot(ref *model.Reference, user *model.Definition) (*model.Definition, int) {
	var block *model.Block
	if user != nil {
		block = user.MainArtifact().Block
	}
	root, ambiguous := r.lookupArtifactRoot(ref.Path[0].ID, block)
	if len(ambiguous) > 0 {
		r.report(diagnostics.RefAmbiguous, ref.Path[0].Location, ref.Path[0].ID, strings.Join(ambiguous, ", "))
		ref.Poison(model.RefAmbiguous)
		return nil, 0
	}
	if root.def != nil {
		return root.def, 1
	}
	if root.nsPrefix == "" {
		r.report(diagnostics.RefUndefined, ref.Path[0].Location, ref.Path[0].ID)
		ref.Poison(model.RefNotFound)
		return nil, 0
	}
	// Extend the namespace prefix step by step until a definition matches.
	prefix := root.nsPrefix
	for idx := 1; idx < len(ref.Path); idx++ {
		prefix = prefix + "." + ref.Path[idx].ID
		if d := r.m.Definition(prefix); d != nil {
			return d, idx + 1
		}
		if !r.hasNamespacePrefix(prefix) {
			r.report(diagnostics.RefUndefined, ref.Path[idx].Location, prefix)
			ref.Poison(model.RefNotFound)
			return nil, 0
		}
	}
	r.report(diagnostics.RefUndefined, ref.Location, prefix)
	ref.Poison(model.RefNotFound)
	return nil, 0
}

// memberStep resolves path step idx as a member of cur.
func (r *Resolver) memberStep(ref *model.Reference, idx int, cur *model.Definition, pol policy, user *model.Definition, q *model.Query) *model.Definition {
	step := ref.Path[idx]

	// Contexts, services and namespaces contain sub-artifacts, addressed
	// by absolute name.
	switch cur.Kind {
	case model.KindContext, model.KindService, model.KindNamespace:
		child := r.m.Definition(cur.Absolute + "." + step.ID)
		if child == nil {
			r.report(diagnostics.RefUndefined, step.Location, cur.Absolute+"."+step.ID)
			ref.Poison(model.RefNotFound)
			return nil
		}
		return child
	}

	owner := cur
	if r.isRelationNode(cur) {
		if !pol.followAssoc {
			r.report(diagnostics.RefNoAssocNav, step.Location, cur.QualifiedName())
			ref.Poison(model.RefNotFound)
			return nil
		}
		// A managed association exposes only its foreign keys to ON
		// conditions; the path must stay within one key's element.
		if (pol.name == "on") && len(cur.ForeignKeys) > 0 {
			if fk := foreignKeyNamed(cur, step.ID); fk == nil {
				r.report(diagnostics.RefSealedFK, step.Location, ref.String(), cur.QualifiedName())
				ref.Poison(model.RefNotFound)
				return nil
			}
		}
		target := r.finalTarget(cur)
		if target == nil {
			// Target resolution already reported; poison quietly.
			ref.Poison(model.RefNotFound)
			return nil
		}
		// The step that named this association carries its arguments
		// and filter; they apply to the target being entered.
		r.resolveStepArgs(&ref.Path[idx-1], target)
		owner = target
	}

	elems := r.effectiveElements(owner)
	var next *model.Definition
	if elems != nil {
		next = elems.Get(step.ID)
	}
	if next == nil && owner.Enum != nil {
		next = owner.Enum.Get(step.ID)
	}
	if next == nil {
		r.reportMostSpecificMiss(ref, idx, owner)
		return nil
	}
	return next
}

// resolveStepArgs resolves the named arguments and filter attached to a
// path step against the entity the step navigates to. Argument names must
// exist on the entity's declared parameter list.
func (r *Resolver) resolveStepArgs(step *model.PathStep, entity *model.Definition) {
	for _, arg := range step.Args {
		if entity.Params == nil || !entity.Params.Has(arg.Name) {
			r.report(diagnostics.RefUndefinedParam, arg.Location, entity.QualifiedName(), arg.Name)
			continue
		}
		r.resolveExprIn(arg.Value, entity, nil)
	}
	if step.Filter != nil {
		r.resolveExprIn(step.Filter, entity, nil)
	}
}

func foreignKeyNamed(assoc *model.Definition, name string) *model.ForeignKey {
	for _, fk := range assoc.ForeignKeys {
		if fk.Name == name {
			return fk
		}
	}
	return nil
}

// resolveExpr resolves every reference inside an expression in a query
// context.
func (r *Resolver) resolveExpr(e model.Expr, user *model.Definition, q *model.Query) {
	r.resolveExprAs(e, refExpr, user, q)
}

// resolveOnExpr resolves the references of an ON condition. The managed
// foreign-key seal applies in every ON position, whether the condition
// hangs off an element, a mixin or a join.
func (r *Resolver) resolveOnExpr(e model.Expr, user *model.Definition, q *model.Query) {
	r.resolveExprAs(e, refOnView, user, q)
}

func (r *Resolver) resolveExprAs(e model.Expr, kind refKind, user *model.Definition, q *model.Query) {
	model.Walk(e, func(n model.Expr) bool {
		if ref, ok := n.(*model.RefExpr); ok {
			if q == nil {
				r.resolveRef(ref.Ref, refOnElement, user, nil)
			} else {
				r.resolveRef(ref.Ref, kind, user, q)
			}
		}
		return true
	})
}

// resolveExprIn resolves an expression against the elements of base — the
// nested-expression case: filters and arguments scoped to a path step's
// target entity.
func (r *Resolver) resolveExprIn(e model.Expr, base *model.Definition, q *model.Query) {
	model.Walk(e, func(n model.Expr) bool {
		if ref, ok := n.(*model.RefExpr); ok {
			r.resolveRefIn(ref.Ref, refFilter, base, q, base)
		}
		return true
	})
}
