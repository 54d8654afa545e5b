package resolver

import (
	"github.com/cdmlang/cdml/internal/diagnostics"
	"github.com/cdmlang/cdml/internal/model"
)

// populateQueryElements is the phase-2 entry for one view: it infers the
// view's output elements from its query, recursively pulling in the
// elements of every view it selects from. The status marker guards against
// views selecting from themselves.
func (r *Resolver) populateQueryElements(d *model.Definition) {
	if d == nil || d.Query == nil {
		return
	}
	switch r.queryStatus[d.ID] {
	case statusDone:
		return
	case statusInProgress:
		r.report(diagnostics.RefCyclic, d.Location, d.QualifiedName(), "its own FROM clause")
		return
	}
	r.queryStatus[d.ID] = statusInProgress
	r.inferQuery(d.Query, d)
	d.Elements = d.Query.Elements
	r.matchDeclaredElements(d)
	r.queryStatus[d.ID] = statusDone
}

// checkUnionBranches verifies that every branch of a union provides the
// same element names. The first branch's shape is the union's output; a
// name present on one side only is reported against the deviating branch.
func (r *Resolver) checkUnionBranches(q *model.Query) {
	first := q.Branches[0].Elements
	for _, branch := range q.Branches[1:] {
		if branch.Elements == nil {
			continue
		}
		first.Each(func(name string, _ *model.Definition) bool {
			if !branch.Elements.Has(name) {
				r.report(diagnostics.QueryUnionMismatch, branch.Location, name)
			}
			return true
		})
		branch.Elements.Each(func(name string, _ *model.Definition) bool {
			if !first.Has(name) {
				r.report(diagnostics.QueryUnionMismatch, branch.Location, name)
			}
			return true
		})
	}
}

// inferQuery fills q.Elements. For a union, the first branch determines the
// output; the other branches are still inferred so their sources register
// as projections.
func (r *Resolver) inferQuery(q *model.Query, d *model.Definition) {
	if q.Op == model.OpUnion {
		for _, branch := range q.Branches {
			r.inferQuery(branch, d)
		}
		if len(q.Branches) > 0 {
			q.Elements = q.Branches[0].Elements
			r.checkUnionBranches(q)
		} else {
			q.Elements = model.NewMembers()
		}
		return
	}

	q.TableAliases = make(map[string]*model.TableAlias)
	q.Combined = make(map[string][]*model.CombinedEntry)
	r.collectSources(q, q.From, d)
	if q.Mixins != nil {
		q.Mixins.Each(func(name string, mx *model.Definition) bool {
			q.Combined[name] = append(q.Combined[name], &model.CombinedEntry{Element: mx})
			return true
		})
	}

	cols := q.Columns
	if len(cols) == 0 {
		// A projection without columns selects everything.
		cols = []*model.Column{{Wildcard: true, Location: q.Location}}
	}
	// An explicitly listed column takes the position of its wildcard-
	// expanded copy, with its own properties.
	explicit := make(map[string]*model.Column)
	for _, c := range cols {
		if c.Wildcard {
			continue
		}
		if name := c.Name(); name != "" {
			if _, dup := explicit[name]; !dup {
				explicit[name] = c
			}
		}
	}

	q.Elements = model.NewMembers()
	consumed := make(map[*model.Column]bool)
	for _, c := range cols {
		if c.Wildcard {
			r.expandWildcard(q, d, explicit, consumed, q.Excluding)
			continue
		}
		if consumed[c] {
			continue
		}
		r.inferColumn(q, d, c)
	}
	r.checkExcluding(q)
}

// collectSources walks the FROM tree, resolving direct sources, recursing
// into joins and sub-queries, and building the alias table and the
// $combined multiset.
func (r *Resolver) collectSources(q *model.Query, t *model.TableRef, d *model.Definition) {
	switch {
	case t == nil:
		return
	case t.IsJoin():
		r.collectSources(q, t.Left, d)
		r.collectSources(q, t.Right, d)
		return
	case t.SubQuery != nil:
		r.inferQuery(t.SubQuery, d)
		holder := r.m.NewDefinition(model.KindEntity, t.Alias, t.Location)
		holder.Elements = t.SubQuery.Elements
		holder.Block = d.MainArtifact().Block
		r.addAlias(q, t, holder)
		return
	}

	src := r.resolveRef(t.Ref, refFrom, d, nil)
	if src == nil {
		return
	}
	if src.Query != nil {
		// On-demand: the source view's own elements must exist first.
		r.populateQueryElements(src)
	}
	r.registerProjection(d, src)
	r.addAlias(q, t, src)
}

func (r *Resolver) addAlias(q *model.Query, t *model.TableRef, artifact *model.Definition) {
	name := t.Alias
	if name == "" && t.Ref != nil {
		name = t.Ref.Path[len(t.Ref.Path)-1].ID
	}
	if _, dup := q.TableAliases[name]; dup {
		r.report(diagnostics.QueryDuplicateAlias, t.Location, name)
		return
	}
	alias := &model.TableAlias{Name: name, Ref: t, Artifact: artifact, Location: t.Location}
	q.TableAliases[name] = alias
	q.AliasOrder = append(q.AliasOrder, alias)
	if elems := r.effectiveElements(artifact); elems != nil {
		elems.Each(func(n string, e *model.Definition) bool {
			q.Combined[n] = append(q.Combined[n], &model.CombinedEntry{Alias: alias, Element: e})
			return true
		})
	}
}

// registerProjection records view as a projection of src and of every
// artifact on src's own primary-source chain. The redirection search walks
// this registry.
func (r *Resolver) registerProjection(view, src *model.Definition) {
	if view.Parent != nil || view.Query == nil {
		return
	}
	seen := make(map[model.NodeID]bool)
	for a := src; a != nil && !seen[a.ID]; a = r.primarySource(a) {
		seen[a.ID] = true
		r.descendants[a.ID] = append(r.descendants[a.ID], view)
	}
}

// primarySource returns the first direct FROM source of a view, or nil for
// plain entities.
func (r *Resolver) primarySource(d *model.Definition) *model.Definition {
	if d == nil || d.Query == nil {
		return nil
	}
	q := d.Query
	for q.Op == model.OpUnion && len(q.Branches) > 0 {
		q = q.Branches[0]
	}
	t := q.From
	for t != nil && t.IsJoin() {
		t = t.Left
	}
	if t == nil || t.Ref == nil {
		return nil
	}
	return t.Ref.Definition()
}

// expandWildcard expands "*" in place: every combined source element not
// explicitly listed and not excluded, in source declaration order. A name
// provided by more than one source is reported, not silently picked.
func (r *Resolver) expandWildcard(q *model.Query, d *model.Definition, explicit map[string]*model.Column, consumed map[*model.Column]bool, excluding []string) {
	excluded := make(map[string]bool, len(excluding))
	for _, name := range excluding {
		excluded[name] = true
	}
	reported := make(map[string]bool)
	for _, alias := range q.AliasOrder {
		elems := r.effectiveElements(alias.Artifact)
		if elems == nil {
			continue
		}
		elems.Each(func(name string, src *model.Definition) bool {
			if excluded[name] || q.Elements.Has(name) {
				return true
			}
			if ec, ok := explicit[name]; ok {
				if !consumed[ec] {
					consumed[ec] = true
					r.inferColumn(q, d, ec)
				}
				return true
			}
			if entries := q.Combined[name]; len(entries) > 1 && !allMixinsButOne(entries) {
				if !reported[name] {
					r.report(diagnostics.WildcardAmbiguous, alias.Location, name, describeCombined(entries))
					reported[name] = true
				}
				return true
			}
			q.Elements.Add(r.newProjectedElement(d, name, src))
			return true
		})
	}
}

// allMixinsButOne tolerates a name shared between one real source and
// mixin declarations: mixins never take part in wildcard expansion.
func allMixinsButOne(entries []*model.CombinedEntry) bool {
	real := 0
	for _, e := range entries {
		if e.Alias != nil {
			real++
		}
	}
	return real <= 1
}

// newProjectedElement creates a view output element derived from a source
// element: an origin link for effective typing and a projection link for
// redirection and key propagation.
func (r *Resolver) newProjectedElement(parent *model.Definition, name string, src *model.Definition) *model.Definition {
	e := r.m.NewDefinition(model.KindElement, name, src.Location)
	e.Parent = parent
	e.Block = parent.MainArtifact().Block
	e.Many = src.Many
	r.m.SetOrigin(e, src)
	r.m.AddProjection(e, src)
	return e
}

// inferColumn turns one explicit column into one output element, in listed
// order.
func (r *Resolver) inferColumn(q *model.Query, d *model.Definition, c *model.Column) {
	name := c.Name()
	if name == "" && len(c.Inline) == 0 {
		r.report(diagnostics.XSNBadShape, c.Location, "column", "expression columns need an alias")
		return
	}

	var src *model.Definition
	if ref, ok := c.Expr.(*model.RefExpr); ok {
		src = r.resolveRef(ref.Ref, refColumn, d, q)
	} else if c.Expr != nil {
		r.resolveExpr(c.Expr, d, q)
	}

	if len(c.Inline) > 0 {
		r.inferInline(q, d, c, name, src)
		return
	}

	if q.Elements.Has(name) {
		r.report(diagnostics.QueryDuplicateElement, c.Location, name)
		return
	}

	var e *model.Definition
	if src != nil {
		e = r.newProjectedElement(d, name, src)
		e.Location = c.Location
	} else {
		e = r.m.NewDefinition(model.KindElement, name, c.Location)
		e.Parent = d
		e.Block = d.MainArtifact().Block
	}
	if c.Key != nil {
		e.Key = *c.Key
	}
	if len(c.Expand) > 0 {
		r.inferExpand(d, e, c, src)
	}
	q.Elements.Add(e)
}

// inferExpand builds a structured output element from a nested column list,
// scoped to the referenced association's target or structure's elements.
func (r *Resolver) inferExpand(d, e *model.Definition, c *model.Column, src *model.Definition) {
	scope := r.nestedScope(src, c)
	if scope == nil {
		return
	}
	e.Elements = model.NewMembers()
	for _, sub := range c.Expand {
		if sub.Wildcard {
			if elems := r.effectiveElements(scope); elems != nil {
				elems.Each(func(n string, se *model.Definition) bool {
					if !e.Elements.Has(n) && !containsName(sub.ExcludingInline, n) {
						e.Elements.Add(r.newProjectedElement(e, n, se))
					}
					return true
				})
			}
			continue
		}
		name := sub.Name()
		subSrc := r.nestedColumnSource(sub, scope)
		if subSrc == nil {
			continue
		}
		if e.Elements.Has(name) {
			r.report(diagnostics.QueryDuplicateElement, sub.Location, name)
			continue
		}
		e.Elements.Add(r.newProjectedElement(e, name, subSrc))
	}
}

// inferInline splices the nested column list into the enclosing element
// list, prefixing the referenced path's name.
func (r *Resolver) inferInline(q *model.Query, d *model.Definition, c *model.Column, prefix string, src *model.Definition) {
	scope := r.nestedScope(src, c)
	if scope == nil {
		return
	}
	for _, sub := range c.Inline {
		if sub.Wildcard {
			if elems := r.effectiveElements(scope); elems != nil {
				elems.Each(func(n string, se *model.Definition) bool {
					full := prefix + "_" + n
					if !q.Elements.Has(full) && !containsName(sub.ExcludingInline, n) {
						q.Elements.Add(r.newProjectedElement(d, full, se))
					}
					return true
				})
			}
			continue
		}
		subSrc := r.nestedColumnSource(sub, scope)
		if subSrc == nil {
			continue
		}
		full := prefix + "_" + sub.Name()
		if q.Elements.Has(full) {
			r.report(diagnostics.QueryDuplicateElement, sub.Location, full)
			continue
		}
		q.Elements.Add(r.newProjectedElement(d, full, subSrc))
	}
}

// nestedScope resolves the node a nested column list is scoped to: the
// referenced association's target, or the structured element itself.
func (r *Resolver) nestedScope(src *model.Definition, c *model.Column) *model.Definition {
	if src == nil {
		return nil
	}
	if r.isRelationNode(src) {
		if t := r.finalTarget(src); t != nil {
			return t
		}
		return nil
	}
	if r.effectiveElements(src) != nil {
		return src
	}
	r.report(diagnostics.ExpandExpectedStruct, c.Location, src.QualifiedName())
	return nil
}

// nestedColumnSource resolves a nested column's reference inside its scope.
func (r *Resolver) nestedColumnSource(sub *model.Column, scope *model.Definition) *model.Definition {
	ref, ok := sub.Expr.(*model.RefExpr)
	if !ok {
		return nil
	}
	return r.resolveRefIn(ref.Ref, refFilter, scope, nil, scope)
}

// checkExcluding warns about excluded names no source provides.
func (r *Resolver) checkExcluding(q *model.Query) {
	for _, name := range q.Excluding {
		if len(q.Combined[name]) == 0 {
			r.report(diagnostics.QueryExcludingUnknown, q.Location, name)
		}
	}
}

// matchDeclaredElements checks the inferred element list against the view's
// statically declared shape, both directions.
func (r *Resolver) matchDeclaredElements(d *model.Definition) {
	if d.DeclaredElements == nil {
		return
	}
	d.DeclaredElements.Each(func(name string, decl *model.Definition) bool {
		if !d.Elements.Has(name) {
			r.report(diagnostics.QueryMissingElement, decl.Location, name)
		}
		return true
	})
	d.Elements.Each(func(name string, e *model.Definition) bool {
		if !d.DeclaredElements.Has(name) {
			r.report(diagnostics.QueryUnspecifiedElement, e.Location, name)
		}
		return true
	})
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
