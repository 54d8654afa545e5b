package resolver

import (
	"sort"

	"github.com/cdmlang/cdml/internal/diagnostics"
	"github.com/cdmlang/cdml/internal/model"
)

// applyExtensions folds every pending annotate statement into its target,
// tagging the assignments with their layer. Runs after query element
// inference so element-level extensions can hit inferred columns. The
// pending list is consumed; applied extensions live on in their targets.
func (r *Resolver) applyExtensions() {
	pending := r.m.Extensions
	r.m.Extensions = nil
	for _, ext := range pending {
		target := r.m.Definition(ext.Target)
		if target == nil {
			r.report(diagnostics.RefUndefined, ext.Location, ext.Target)
			continue
		}
		target.Annotations = append(target.Annotations, ext.Assignments...)
		for _, name := range sortedKeys(ext.ElementAssignments) {
			elems := r.effectiveElements(target)
			var elem *model.Definition
			if elems != nil {
				elem = elems.Get(name)
			}
			if elem == nil {
				r.report(diagnostics.RefUndefinedElement, ext.Location, name, target.QualifiedName())
				continue
			}
			elem.Annotations = append(elem.Annotations, ext.ElementAssignments[name]...)
		}
	}
}

// mergeAnnotations reduces a node's assignments to one per annotation name.
// Within the candidate layers, exactly one assignment may remain; layers
// that another present layer declares to extend are dropped first, since
// the extending layer's value is assumed to fold them in.
func (r *Resolver) mergeAnnotations(d *model.Definition) {
	if len(d.Annotations) == 0 {
		return
	}

	var order []string
	byName := make(map[string][]*model.AnnotationAssignment)
	for _, a := range d.Annotations {
		if _, seen := byName[a.Name]; !seen {
			order = append(order, a.Name)
		}
		byName[a.Name] = append(byName[a.Name], a)
	}

	merged := make([]*model.AnnotationAssignment, 0, len(order))
	for _, name := range order {
		if winner := r.mergeOne(d, name, byName[name]); winner != nil {
			merged = append(merged, winner)
		}
	}
	d.Annotations = merged
}

func (r *Resolver) mergeOne(d *model.Definition, name string, assigns []*model.AnnotationAssignment) *model.AnnotationAssignment {
	if len(assigns) == 1 {
		r.spliceValue(d, assigns[0], assigns)
		return assigns[0]
	}

	present := make(map[string]bool)
	for _, a := range assigns {
		present[a.Layer] = true
	}
	extended := make(map[string]bool)
	for layer := range present {
		for base := r.m.LayerExtends[layer]; base != ""; base = r.m.LayerExtends[base] {
			extended[base] = true
		}
	}

	var candidates []*model.AnnotationAssignment
	for _, a := range assigns {
		if !extended[a.Layer] {
			candidates = append(candidates, a)
		}
	}

	switch len(candidates) {
	case 0:
		// Mutual lineage; keep the last assignment written.
		candidates = assigns[len(assigns)-1:]
	case 1:
	default:
		first := candidates[0]
		for _, a := range candidates[1:] {
			if a.Layer == first.Layer {
				r.report(diagnostics.AnnoDuplicate, a.Location, name, a.Layer)
			} else {
				r.report(diagnostics.AnnoDuplicateUnrelated, a.Location, name, first.Layer, a.Layer)
			}
		}
	}

	winner := candidates[0]
	r.spliceValue(d, winner, assigns)
	return winner
}

// spliceValue substitutes the "..." marker in an array value with the array
// the winner's extended layer assigned. No lower-layer array is an error;
// the marker is then dropped.
func (r *Resolver) spliceValue(d *model.Definition, winner *model.AnnotationAssignment, assigns []*model.AnnotationAssignment) {
	list, ok := winner.Value.(*model.ListExpr)
	if !ok || !containsSplice(list) {
		return
	}

	var base *model.ListExpr
	for layer := r.m.LayerExtends[winner.Layer]; layer != ""; layer = r.m.LayerExtends[layer] {
		for _, a := range assigns {
			if a.Layer == layer {
				if bl, ok := a.Value.(*model.ListExpr); ok {
					base = bl
				}
				break
			}
		}
		if base != nil {
			break
		}
	}
	if base == nil {
		r.report(diagnostics.AnnoMissingSpliceValue, winner.Location, winner.Name)
	}

	var items []model.Expr
	for _, it := range list.Items {
		if _, splice := it.(*model.SpliceExpr); splice {
			if base != nil {
				items = append(items, base.Items...)
			}
			continue
		}
		items = append(items, it)
	}
	winner.Value = &model.ListExpr{Items: items, Location: list.Location}
}

// resolveAnnotationValues binds the element references inside a node's
// merged annotation values. Misses are ordinary diagnostics; annotation
// references never feed cycle detection.
func (r *Resolver) resolveAnnotationValues(d *model.Definition) {
	for _, a := range d.Annotations {
		model.Walk(a.Value, func(n model.Expr) bool {
			if ref, ok := n.(*model.RefExpr); ok {
				r.resolveRefIn(ref.Ref, refAnnoValue, d, nil, d.MainArtifact())
			}
			return true
		})
	}
}

func containsSplice(list *model.ListExpr) bool {
	for _, it := range list.Items {
		if _, ok := it.(*model.SpliceExpr); ok {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string][]*model.AnnotationAssignment) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
