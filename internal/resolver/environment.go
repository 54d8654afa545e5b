package resolver

import (
	"strings"

	"github.com/cdmlang/cdml/internal/builtins"
	"github.com/cdmlang/cdml/internal/diagnostics"
	"github.com/cdmlang/cdml/internal/model"
)

// rootResult is the outcome of resolving the first path step: either a
// definition, or a namespace prefix that further steps extend, or a miss.
type rootResult struct {
	def *model.Definition
	// nsPrefix is set when the step denotes a namespace with no artifact
	// of its own.
	nsPrefix string
}

// lookupArtifactRoot resolves a path's first identifier as an artifact by
// walking the lexical scope chain outward: the file block (namespace
// qualified names and using aliases form one layer; a name present in both
// is ambiguous), then parent blocks, then the builtin environment.
func (r *Resolver) lookupArtifactRoot(id string, block *model.Block) (rootResult, []string) {
	for b := block; b != nil; b = b.Parent {
		var hits []rootResult
		var hitNames []string
		if b.Namespace != "" {
			qualified := b.Namespace + "." + id
			if d := r.m.Definition(qualified); d != nil {
				hits = append(hits, rootResult{def: d})
				hitNames = append(hitNames, qualified)
			} else if r.hasNamespacePrefix(qualified) {
				hits = append(hits, rootResult{nsPrefix: qualified})
				hitNames = append(hitNames, qualified)
			}
		}
		if u, ok := b.Usings[id]; ok {
			if d := r.m.Definition(u.Target); d != nil {
				hits = append(hits, rootResult{def: d})
			} else {
				// Phase 1 reported unresolvable imports; treat the
				// target as a namespace prefix regardless so one
				// mistake is not reported once per reference.
				hits = append(hits, rootResult{nsPrefix: u.Target})
			}
			hitNames = append(hitNames, u.Target)
		}
		switch len(hits) {
		case 1:
			return hits[0], nil
		default:
			if len(hits) > 1 {
				return rootResult{}, hitNames
			}
		}
	}
	// Global names are visible from every block.
	if d := r.m.Definition(id); d != nil {
		return rootResult{def: d}, nil
	}
	if r.hasNamespacePrefix(id) {
		return rootResult{nsPrefix: id}, nil
	}
	if d, ok := r.m.Builtins[id]; ok {
		return rootResult{def: d}, nil
	}
	return rootResult{}, nil
}

// effectiveElements returns the elements visible on a node, following its
// effective type and triggering structural expansion if needed.
func (r *Resolver) effectiveElements(d *model.Definition) *model.Members {
	if d == nil {
		return nil
	}
	if d.IsStructured() {
		return d.Elements
	}
	terminal, _ := r.EffectiveType(d)
	if d.IsStructured() {
		// Expansion cloned the terminal's elements onto d.
		return d.Elements
	}
	if terminal != nil && terminal.IsStructured() {
		return terminal.Elements
	}
	return nil
}

// isRelationNode reports whether a node is an association, directly or via
// its effective type.
func (r *Resolver) isRelationNode(d *model.Definition) bool {
	if d == nil {
		return false
	}
	if d.IsAssociation() {
		return true
	}
	terminal, _ := r.EffectiveType(d)
	return terminal != nil && (terminal.IsAssociation() || builtins.IsRelation(terminal))
}

// assocTargetRef returns the reference carrying an association's declared
// target, looking through the effective type for elements typed with a
// named association type.
func (r *Resolver) assocTargetRef(d *model.Definition) *model.Reference {
	if d == nil {
		return nil
	}
	if d.Target != nil {
		return d.Target
	}
	terminal, _ := r.EffectiveType(d)
	if terminal != nil && terminal != d {
		return r.assocTargetRef(terminal)
	}
	return nil
}

// finalTarget resolves an association's target, honoring a redirection
// record when one was attached.
func (r *Resolver) finalTarget(assoc *model.Definition) *model.Definition {
	if rec := r.m.Redirection(assoc); rec != nil {
		return rec.NewTarget
	}
	ref := r.assocTargetRef(assoc)
	if ref == nil {
		return nil
	}
	return r.resolveRef(ref, refTarget, assoc, nil)
}

// describeCombined renders the sources providing an ambiguous name, for the
// wildcard/reference ambiguity diagnostics.
func describeCombined(entries []*model.CombinedEntry) string {
	var parts []string
	for _, e := range entries {
		if e.Alias != nil {
			parts = append(parts, e.Alias.Name)
		} else {
			parts = append(parts, "mixin")
		}
	}
	return strings.Join(parts, ", ")
}

// reportMostSpecificMiss reports a not-found for the deepest name that was
// still resolvable, per the layered-fallback contract: errors name the most
// specific missing step, not the whole path.
func (r *Resolver) reportMostSpecificMiss(ref *model.Reference, idx int, owner *model.Definition) {
	step := ref.Path[idx]
	if owner != nil {
		r.report(diagnostics.RefUndefinedElement, step.Location, step.ID, owner.QualifiedName())
	} else {
		r.report(diagnostics.RefUndefined, step.Location, step.ID)
	}
	ref.Poison(model.RefNotFound)
}
