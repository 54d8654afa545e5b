package resolver

import (
	"github.com/cdmlang/cdml/internal/diagnostics"
	"github.com/cdmlang/cdml/internal/model"
)

// reportCycles is phase 6: strongly-connected-component analysis over the
// dependency edges the path resolver collected. Every edge inside a
// nontrivial component is an illegal circular reference, attributed to the
// element-level location that created the edge.
func (r *Resolver) reportCycles() {
	if len(r.deps) == 0 {
		return
	}

	succ := make(map[model.NodeID][]model.NodeID)
	var nodes []model.NodeID
	seen := make(map[model.NodeID]bool)
	addNode := func(id model.NodeID) {
		if !seen[id] {
			seen[id] = true
			nodes = append(nodes, id)
		}
	}
	for _, e := range r.deps {
		from := e.from.MainArtifact().ID
		to := e.to.ID
		addNode(from)
		addNode(to)
		succ[from] = append(succ[from], to)
	}

	comp := tarjan(nodes, succ)

	compSize := make(map[int]int)
	for _, c := range comp {
		compSize[c]++
	}
	for _, e := range r.deps {
		from := e.from.MainArtifact().ID
		c, ok := comp[from]
		if !ok || comp[e.to.ID] != c || compSize[c] < 2 {
			continue
		}
		// Type cycles were already reported node by node by the
		// effective-type engine.
		if _, _, cyclic := r.m.EffectiveTypeState(e.from); cyclic {
			continue
		}
		r.report(diagnostics.RefCyclic, e.loc,
			e.from.QualifiedName(), e.to.QualifiedName())
	}
}

// tarjan assigns a component number to every node, iteratively to stay
// independent of model depth.
func tarjan(nodes []model.NodeID, succ map[model.NodeID][]model.NodeID) map[model.NodeID]int {
	const unvisited = -1
	index := make(map[model.NodeID]int, len(nodes))
	lowlink := make(map[model.NodeID]int, len(nodes))
	onStack := make(map[model.NodeID]bool, len(nodes))
	comp := make(map[model.NodeID]int, len(nodes))
	for _, n := range nodes {
		index[n] = unvisited
	}

	var stack []model.NodeID
	next := 0
	compCount := 0

	type frame struct {
		node model.NodeID
		edge int
	}

	for _, start := range nodes {
		if index[start] != unvisited {
			continue
		}
		frames := []frame{{node: start}}
		index[start] = next
		lowlink[start] = next
		next++
		stack = append(stack, start)
		onStack[start] = true

		for len(frames) > 0 {
			f := &frames[len(frames)-1]
			if f.edge < len(succ[f.node]) {
				w := succ[f.node][f.edge]
				f.edge++
				if index[w] == unvisited {
					index[w] = next
					lowlink[w] = next
					next++
					stack = append(stack, w)
					onStack[w] = true
					frames = append(frames, frame{node: w})
				} else if onStack[w] {
					if index[w] < lowlink[f.node] {
						lowlink[f.node] = index[w]
					}
				}
				continue
			}

			if lowlink[f.node] == index[f.node] {
				for {
					w := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[w] = false
					comp[w] = compCount
					if w == f.node {
						break
					}
				}
				compCount++
			}
			frames = frames[:len(frames)-1]
			if len(frames) > 0 {
				parent := &frames[len(frames)-1]
				if lowlink[f.node] < lowlink[parent.node] {
					lowlink[parent.node] = lowlink[f.node]
				}
			}
		}
	}
	return comp
}
