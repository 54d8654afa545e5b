// Package resolver implements the semantic-analysis pass over a loaded
// model: name resolution, effective types, query element inference, key
// propagation, association redirection and annotation merging. The pass
// mutates the model in place and reports problems to a diagnostics bag; it
// never fails fast.
package resolver

import (
	"sort"

	"github.com/cdmlang/cdml/internal/config"
	"github.com/cdmlang/cdml/internal/diagnostics"
	"github.com/cdmlang/cdml/internal/location"
	"github.com/cdmlang/cdml/internal/model"
)

// status is the per-node recursion guard used by the on-demand phases.
type status int

const (
	statusUnvisited status = iota
	statusInProgress
	statusDone
)

// depEdge is one dependency recorded by the path resolver for cycle
// detection. from/to are artifacts; loc points at the most specific
// (element-level) reference that created the edge.
type depEdge struct {
	from, to *model.Definition
	loc      location.Location
}

// Resolver runs the resolve pass. Single-threaded; resolving one definition
// may mutate structures reached from another (wildcard expansion,
// autoexposure), so the pass must not be parallelized across definitions.
type Resolver struct {
	m   *model.Model
	bag *diagnostics.Bag
	cfg *config.Config

	queryStatus   map[model.NodeID]status
	includeStatus map[model.NodeID]status
	keysStatus    map[model.NodeID]status
	keysOK        map[model.NodeID]bool
	defStatus     map[model.NodeID]status

	deps   []depEdge
	depSet map[[2]model.NodeID]struct{}

	// descendants maps an entity to the projections registered over it,
	// in registration order. Feeds the redirection search.
	descendants map[model.NodeID][]*model.Definition

	// redirectChecked guards the lazy, exactly-once implicit redirection
	// trigger per association element.
	redirectChecked map[model.NodeID]struct{}

	// exposeQueue collects autoexposed projections that still need query
	// element inference.
	exposeQueue []*model.Definition
}

func New(m *model.Model, bag *diagnostics.Bag, cfg *config.Config) *Resolver {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Resolver{
		m:               m,
		bag:             bag,
		cfg:             cfg,
		queryStatus:     make(map[model.NodeID]status),
		includeStatus:   make(map[model.NodeID]status),
		keysStatus:      make(map[model.NodeID]status),
		keysOK:          make(map[model.NodeID]bool),
		defStatus:       make(map[model.NodeID]status),
		depSet:          make(map[[2]model.NodeID]struct{}),
		descendants:     make(map[model.NodeID][]*model.Definition),
		redirectChecked: make(map[model.NodeID]struct{}),
	}
}

// Resolve runs the whole pass: (1) validate using imports, (2) infer query
// elements, (3) propagate primary keys, (4) resolve remaining references,
// (5) rewrite redirected associations, (6) report reference cycles.
// Definitions are visited in sorted-name order so diagnostics are
// deterministic.
func (r *Resolver) Resolve() {
	r.validateUsings()

	// Includes must be folded in before queries can see their elements.
	for _, name := range r.m.SortedDefinitionNames() {
		r.expandIncludes(r.m.Definition(name))
	}

	for _, name := range r.m.SortedDefinitionNames() {
		d := r.m.Definition(name)
		if d.Query != nil {
			r.populateQueryElements(d)
		}
	}
	r.drainExposeQueue()

	for _, name := range r.m.SortedDefinitionNames() {
		r.propagateKeys(r.m.Definition(name))
	}

	r.applyExtensions()
	for _, name := range r.m.SortedDefinitionNames() {
		r.resolveDefinition(r.m.Definition(name))
	}
	r.drainExposeQueue()

	for _, name := range r.m.SortedDefinitionNames() {
		r.rewriteDefinition(r.m.Definition(name))
	}

	r.reportCycles()
}

// validateUsings is phase 1: every using import must denote a definition or
// a namespace prefix of one.
func (r *Resolver) validateUsings() {
	for _, src := range r.m.Sources {
		for _, alias := range sortedUsingAliases(src.Block) {
			u := src.Block.Usings[alias]
			if r.m.Definition(u.Target) != nil {
				continue
			}
			if r.hasNamespacePrefix(u.Target) {
				continue
			}
			r.bag.Report(diagnostics.UsingUndefined, u.Location, u.Target)
		}
	}
}

// hasNamespacePrefix reports whether any definition lives under the given
// dotted prefix.
func (r *Resolver) hasNamespacePrefix(prefix string) bool {
	p := prefix + "."
	for _, name := range r.m.DefinitionNames() {
		if len(name) > len(p) && name[:len(p)] == p {
			return true
		}
	}
	return false
}

// expandIncludes folds the elements of included aspects/entities into a
// definition, cloning with origin links. Members already declared locally
// win. Include cycles poison the include reference and are reported through
// the dependency cycle detector.
func (r *Resolver) expandIncludes(d *model.Definition) {
	if d == nil || len(d.Includes) == 0 {
		return
	}
	switch r.includeStatus[d.ID] {
	case statusDone:
		return
	case statusInProgress:
		return // cycle; the dependency edges report it
	}
	r.includeStatus[d.ID] = statusInProgress
	for _, inc := range d.Includes {
		target := r.resolveRef(inc, refInclude, d, nil)
		if target == nil {
			continue
		}
		r.expandIncludes(target)
		if target.Elements == nil {
			continue
		}
		if d.Elements == nil {
			d.Elements = model.NewMembers()
		}
		target.Elements.Each(func(name string, e *model.Definition) bool {
			if !d.Elements.Has(name) {
				d.Elements.Add(r.m.Clone(e, name, d))
			}
			return true
		})
		// Annotations of the include apply to the including artifact,
		// below its own. Pointer identity keeps a re-run from doubling
		// them.
		for _, a := range target.Annotations {
			if !containsAssignment(d.Annotations, a) {
				d.Annotations = append(d.Annotations, a)
			}
		}
	}
	r.includeStatus[d.ID] = statusDone
}

// recordDep registers a dependency edge for phase 6. Silent references
// (policy depSilent) never reach here.
func (r *Resolver) recordDep(from, to *model.Definition, loc location.Location) {
	if from == nil || to == nil {
		return
	}
	fa, ta := from.MainArtifact(), to.MainArtifact()
	if fa == ta || fa.Kind == model.KindBuiltin || ta.Kind == model.KindBuiltin {
		return
	}
	key := [2]model.NodeID{from.ID, ta.ID}
	if _, dup := r.depSet[key]; dup {
		return
	}
	r.depSet[key] = struct{}{}
	r.deps = append(r.deps, depEdge{from: from, to: ta, loc: loc})
}

func (r *Resolver) drainExposeQueue() {
	for len(r.exposeQueue) > 0 {
		d := r.exposeQueue[0]
		r.exposeQueue = r.exposeQueue[1:]
		if d.Query != nil {
			r.populateQueryElements(d)
			r.propagateKeys(d)
			r.resolveDefinition(d)
		}
	}
}

// report wraps bag.Report, applying configured severity overrides.
func (r *Resolver) report(code diagnostics.Code, loc location.Location, args ...interface{}) *diagnostics.Diagnostic {
	d := diagnostics.New(code, loc, args...)
	if sev, ok := r.cfg.Severities[code.ID]; ok {
		switch sev {
		case "error":
			d.Severity = diagnostics.Error
		case "warning":
			d.Severity = diagnostics.Warning
		case "info":
			d.Severity = diagnostics.Info
		}
	}
	return r.bag.Add(d)
}

func containsAssignment(list []*model.AnnotationAssignment, a *model.AnnotationAssignment) bool {
	for _, x := range list {
		if x == a {
			return true
		}
	}
	return false
}

func sortedUsingAliases(b *model.Block) []string {
	out := make([]string, 0, len(b.Usings))
	for alias := range b.Usings {
		out = append(out, alias)
	}
	sort.Strings(out)
	return out
}
