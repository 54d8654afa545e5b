package resolver

import "github.com/cdmlang/cdml/internal/model"

// refKind selects the resolution policy for one reference. Policies are
// data: which environment the first step starts in, whether associations
// may be followed mid-path, what the result must be, and whether binding
// records a dependency edge.
type refKind int

const (
	refType refKind = iota
	refTypeOf
	refTarget
	refRedirect
	refInclude
	refFrom
	refColumn
	refOnView
	refOnElement
	refExpr
	refFilter
	refAnnoValue
	refForeignKey
)

// envKind is the environment the first path step resolves in.
type envKind int

const (
	// envArtifact walks the lexical scope chain for an artifact root.
	envArtifact envKind = iota
	// envQuery resolves inside a query: table aliases, mixins, $self,
	// then the combined source elements.
	envQuery
	// envElements resolves among the members of a given node.
	envElements
)

// depMode says how a successful binding participates in cycle detection.
type depMode int

const (
	// depNone records nothing.
	depNone depMode = iota
	// depNormal records an edge reported when it closes a cycle.
	depNormal
	// depSilent is for structurally required edges that are not
	// logically cyclic (an association target, an element's entity).
	depSilent
)

type policy struct {
	name        string
	env         envKind
	followAssoc bool
	dep         depMode
	// expect rejects results of the wrong shape; nil accepts anything.
	// The string names what was expected, for the diagnostic.
	expect func(*model.Definition) (ok bool, want string)
}

func expectEntity(d *model.Definition) (bool, string) {
	if d.Kind == model.KindEntity {
		return true, ""
	}
	return false, "entity"
}

func expectTypeBearer(d *model.Definition) (bool, string) {
	switch d.Kind {
	case model.KindBuiltin, model.KindType, model.KindEntity, model.KindAspect, model.KindElement:
		return true, ""
	}
	return false, "type"
}

func expectIncludable(d *model.Definition) (bool, string) {
	switch d.Kind {
	case model.KindAspect, model.KindEntity, model.KindType:
		return true, ""
	}
	return false, "aspect or entity"
}

var policies = map[refKind]policy{
	refType:       {name: "type", env: envArtifact, dep: depNormal, expect: expectTypeBearer},
	refTypeOf:     {name: "type of", env: envArtifact, dep: depNormal, expect: expectTypeBearer},
	refTarget:     {name: "target", env: envArtifact, dep: depSilent, expect: expectEntity},
	refRedirect:   {name: "redirected to", env: envArtifact, dep: depSilent, expect: expectEntity},
	refInclude:    {name: "include", env: envArtifact, dep: depNormal, expect: expectIncludable},
	refFrom:       {name: "from", env: envArtifact, dep: depNormal, expect: expectEntity},
	refColumn:     {name: "column", env: envQuery, followAssoc: true, dep: depSilent},
	refOnView:     {name: "on", env: envQuery, followAssoc: true, dep: depSilent},
	refOnElement:  {name: "on", env: envElements, followAssoc: true, dep: depSilent},
	refExpr:       {name: "expression", env: envQuery, followAssoc: true, dep: depSilent},
	refFilter:     {name: "filter", env: envElements, followAssoc: true, dep: depSilent},
	refAnnoValue:  {name: "annotation value", env: envElements, followAssoc: true, dep: depNone},
	refForeignKey: {name: "foreign key", env: envElements, dep: depSilent},
}
