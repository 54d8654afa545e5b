package resolver

import (
	"github.com/cdmlang/cdml/internal/model"
)

// resolveDefinition is the phase-4 entry for one definition: it binds every
// reference the earlier phases did not touch and merges the annotation
// layers. Idempotent per definition; autoexposed views arriving through the
// work queue pass through here as well.
func (r *Resolver) resolveDefinition(d *model.Definition) {
	if d == nil {
		return
	}
	if r.defStatus[d.ID] == statusDone {
		return
	}
	r.defStatus[d.ID] = statusDone

	r.mergeAnnotations(d)
	r.resolveAnnotationValues(d)
	r.resolveNode(d)

	if d.Query != nil {
		r.resolveQueryConditions(d.Query, d)
	}
}

// resolveNode binds the references a node carries directly and recurses
// over its members.
func (r *Resolver) resolveNode(d *model.Definition) {
	if d.Type != nil {
		r.resolveRef(d.Type, refType, d, nil)
	}
	// The effective type walk expands aliased structures and triggers the
	// lazy redirection check on association-typed nodes.
	r.EffectiveType(d)

	if d.Target != nil {
		r.resolveRef(d.Target, refTarget, d, nil)
		r.maybeRedirect(d)
	}
	if d.RedirectedTo != nil {
		r.maybeRedirect(d)
	}

	if target := r.redirectionAware(d); target != nil {
		for _, fk := range d.ForeignKeys {
			r.resolveRefIn(fk.Ref, refForeignKey, d, nil, target)
		}
	}
	if d.On != nil && d.Query == nil {
		r.resolveOnExpr(d.On, d, nil)
	}
	if d.Value != nil {
		r.resolveExpr(d.Value, d, nil)
	}

	r.resolveMembers(d.Elements)
	r.resolveMembers(d.Params)
	r.resolveEnum(d.Enum)
	if d.Items != nil {
		r.resolveNode(d.Items)
	}
	if d.Actions != nil {
		d.Actions.Each(func(_ string, act *model.Definition) bool {
			r.resolveMembers(act.Params)
			if act.Type != nil {
				r.resolveRef(act.Type, refType, act, nil)
			}
			return true
		})
	}
}

func (r *Resolver) resolveMembers(members *model.Members) {
	members.Each(func(_ string, e *model.Definition) bool {
		r.mergeAnnotations(e)
		r.resolveAnnotationValues(e)
		r.resolveNode(e)
		return true
	})
}

func (r *Resolver) resolveEnum(values *model.Members) {
	values.Each(func(_ string, v *model.Definition) bool {
		r.mergeAnnotations(v)
		if v.Value != nil {
			r.resolveExpr(v.Value, v, nil)
		}
		return true
	})
}

// redirectionAware returns the entity a managed association's foreign keys
// resolve against: the redirected target when a record exists, the declared
// target otherwise, nil for non-associations.
func (r *Resolver) redirectionAware(d *model.Definition) *model.Definition {
	if len(d.ForeignKeys) == 0 {
		return nil
	}
	return r.finalTarget(d)
}

// resolveQueryConditions binds the references phase 2 left alone: WHERE
// trees, join ON conditions, mixin targets and their ON conditions, and the
// same for every union branch.
func (r *Resolver) resolveQueryConditions(q *model.Query, d *model.Definition) {
	for _, b := range q.Branches {
		r.resolveQueryConditions(b, d)
	}
	if q.Op != model.OpSelect {
		return
	}

	r.resolveJoinConditions(q.From, d, q)
	if q.Where != nil {
		r.resolveExpr(q.Where, d, q)
	}
	if q.Mixins != nil {
		q.Mixins.Each(func(_ string, mx *model.Definition) bool {
			if mx.Target != nil {
				r.resolveRef(mx.Target, refTarget, d, nil)
				r.maybeRedirect(mx)
			}
			if mx.On != nil {
				r.resolveOnExpr(mx.On, d, q)
			}
			return true
		})
	}
}

func (r *Resolver) resolveJoinConditions(t *model.TableRef, d *model.Definition, q *model.Query) {
	if t == nil {
		return
	}
	if t.IsJoin() {
		r.resolveJoinConditions(t.Left, d, q)
		r.resolveJoinConditions(t.Right, d, q)
		if t.On != nil {
			r.resolveOnExpr(t.On, d, q)
		}
	}
	if t.SubQuery != nil {
		r.resolveQueryConditions(t.SubQuery, d)
	}
}
