package resolver

import (
	"strings"

	"github.com/cdmlang/cdml/internal/diagnostics"
	"github.com/cdmlang/cdml/internal/model"
)

// Annotation names steering the redirection search. A projection annotated
// as a redirection target is preferred over unflagged candidates; an entity
// annotated with autoexpose false never gets a generated projection.
const (
	annoRedirectionTarget = "cdml.redirection.target"
	annoAutoExpose        = "cdml.autoexpose"
)

// maybeRedirect runs the lazy redirection check for one association node,
// exactly once. It handles the explicit "redirected to" form first; the
// implicit form applies when the association is exposed inside a service
// whose scope does not contain the target.
func (r *Resolver) maybeRedirect(assoc *model.Definition) {
	if assoc == nil {
		return
	}
	if _, done := r.redirectChecked[assoc.ID]; done {
		return
	}
	r.redirectChecked[assoc.ID] = struct{}{}

	ref := r.assocTargetRef(assoc)
	if ref == nil {
		return
	}
	original := r.resolveRef(ref, refTarget, assoc, nil)
	if original == nil {
		return
	}

	if assoc.RedirectedTo != nil {
		r.explicitRedirect(assoc, original)
		return
	}

	svc := assoc.InService(r.m)
	if svc == nil {
		return
	}
	if target := original.InService(r.m); target == svc {
		return
	}
	r.implicitRedirect(assoc, original, svc)
}

// explicitRedirect validates a hand-written "redirected to" and attaches
// the record. Redirecting to the original target is legal but pointless and
// gets an informational diagnostic; ON conditions and foreign keys stay
// untouched in that case.
func (r *Resolver) explicitRedirect(assoc, original *model.Definition) {
	newTarget := r.resolveRef(assoc.RedirectedTo, refRedirect, assoc, nil)
	if newTarget == nil {
		return
	}
	if newTarget == original {
		r.report(diagnostics.RedirectedNoop, assoc.RedirectedTo.Location,
			assoc.QualifiedName(), original.QualifiedName())
		return
	}
	r.m.SetRedirection(assoc, &model.RedirectionRecord{
		Original:  original,
		NewTarget: newTarget,
		Chain:     r.projectionChain(newTarget, original),
		Explicit:  true,
	})
}

// implicitRedirect searches the registered projections of the original
// target for one exposed in svc. No candidate triggers autoexposure (when
// enabled); several candidates with no most-general one is an error.
func (r *Resolver) implicitRedirect(assoc, original, svc *model.Definition) {
	candidates := r.exposedProjections(original, svc)
	candidates = scopedCandidates(candidates, assoc)

	if len(candidates) == 0 {
		if r.cfg.AutoExpose && !annotationFalse(original, annoAutoExpose) {
			if exposed := r.autoExpose(original, svc); exposed != nil {
				r.m.SetRedirection(assoc, &model.RedirectionRecord{
					Original:  original,
					NewTarget: exposed,
					Chain:     []*model.Definition{exposed},
				})
			}
			return
		}
		r.report(diagnostics.RedirectedNoCandidate, assoc.Location,
			original.QualifiedName(), assoc.QualifiedName(), svc.QualifiedName())
		return
	}

	chosen := r.pickCandidate(candidates)
	if chosen == nil {
		r.report(diagnostics.RedirectedAmbiguous, assoc.Location,
			assoc.QualifiedName(), candidateNames(candidates))
		return
	}
	r.m.SetRedirection(assoc, &model.RedirectionRecord{
		Original:  original,
		NewTarget: chosen,
		Chain:     r.projectionChain(chosen, original),
	})
}

// exposedProjections filters the descendant registry of original down to
// the projections living in svc, in registration order.
func (r *Resolver) exposedProjections(original, svc *model.Definition) []*model.Definition {
	var out []*model.Definition
	for _, p := range r.descendants[original.ID] {
		if p.InService(r.m) == svc {
			out = append(out, p)
		}
	}
	return out
}

// scopedCandidates restricts the candidate set to projections declared in
// the same lexical sub-scope as the referencing association's artifact. An
// empty scoped set falls back to the unscoped one.
func scopedCandidates(candidates []*model.Definition, assoc *model.Definition) []*model.Definition {
	abs := assoc.MainArtifact().Absolute
	dot := strings.LastIndex(abs, ".")
	if dot < 0 {
		return candidates
	}
	prefix := abs[:dot+1]
	var scoped []*model.Definition
	for _, c := range candidates {
		if strings.HasPrefix(c.Absolute, prefix) {
			scoped = append(scoped, c)
		}
	}
	if len(scoped) > 0 {
		return scoped
	}
	return candidates
}

// pickCandidate applies the preference rules: explicitly flagged redirection
// targets first, then the most general candidate, the one every other
// candidate is a projection of. Nil means genuinely ambiguous.
func (r *Resolver) pickCandidate(candidates []*model.Definition) *model.Definition {
	var flagged []*model.Definition
	for _, c := range candidates {
		if annotationTrue(c, annoRedirectionTarget) {
			flagged = append(flagged, c)
		}
	}
	if len(flagged) > 0 {
		candidates = flagged
	}
	if len(candidates) == 1 {
		return candidates[0]
	}
	for _, c := range candidates {
		general := true
		for _, o := range candidates {
			if o != c && !r.projectsFrom(o, c) {
				general = false
				break
			}
		}
		if general {
			return c
		}
	}
	return nil
}

// projectsFrom reports whether view's primary-source lineage passes through
// ancestor.
func (r *Resolver) projectsFrom(view, ancestor *model.Definition) bool {
	seen := make(map[model.NodeID]bool)
	for a := r.primarySource(view); a != nil && !seen[a.ID]; a = r.primarySource(a) {
		seen[a.ID] = true
		if a == ancestor {
			return true
		}
	}
	return false
}

// projectionChain collects the projection lineage from the chosen target
// back to the original, outermost first. The chain ends before the original
// itself; a direct projection yields a single-entry chain.
func (r *Resolver) projectionChain(newTarget, original *model.Definition) []*model.Definition {
	var chain []*model.Definition
	seen := make(map[model.NodeID]bool)
	for a := newTarget; a != nil && a != original && !seen[a.ID]; a = r.primarySource(a) {
		seen[a.ID] = true
		chain = append(chain, a)
	}
	return chain
}

// autoExpose generates "entity svc.Name as projection on target" and queues
// it for query element inference. The generated view keeps the target's
// local name; a collision with an existing definition is an error and no
// projection is created.
func (r *Resolver) autoExpose(target, svc *model.Definition) *model.Definition {
	local := target.Absolute
	if dot := strings.LastIndex(local, "."); dot >= 0 {
		local = local[dot+1:]
	}
	abs := svc.Absolute + "." + local

	if existing := r.m.Definition(abs); existing != nil {
		r.report(diagnostics.AutoexposeCollision, target.Location,
			target.QualifiedName(), svc.QualifiedName(), abs)
		return nil
	}

	view := r.m.NewDefinition(model.KindEntity, local, target.Location)
	view.Absolute = abs
	view.Block = svc.Block
	view.AutoExposed = true
	view.Query = &model.Query{
		Op:       model.OpSelect,
		Location: target.Location,
		From: &model.TableRef{
			Ref:      model.NewReference(target.Location, strings.Split(target.Absolute, ".")...),
			Location: target.Location,
		},
	}
	r.m.AddDefinition(view)
	r.exposeQueue = append(r.exposeQueue, view)
	return view
}

func candidateNames(candidates []*model.Definition) string {
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.QualifiedName()
	}
	return strings.Join(names, ", ")
}

func annotationValue(d *model.Definition, name string) (model.Expr, bool) {
	for i := len(d.Annotations) - 1; i >= 0; i-- {
		if d.Annotations[i].Name == name {
			return d.Annotations[i].Value, true
		}
	}
	return nil, false
}

func annotationTrue(d *model.Definition, name string) bool {
	v, ok := annotationValue(d, name)
	if !ok {
		return false
	}
	lit, ok := v.(*model.Literal)
	if !ok {
		// A bare "@name" assignment counts as true.
		return v == nil
	}
	b, ok := lit.Value.(bool)
	return ok && b
}

func annotationFalse(d *model.Definition, name string) bool {
	v, ok := annotationValue(d, name)
	if !ok {
		return false
	}
	lit, ok := v.(*model.Literal)
	if !ok {
		return false
	}
	b, ok := lit.Value.(bool)
	return ok && !b
}
