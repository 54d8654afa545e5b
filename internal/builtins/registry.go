// Package builtins provides the static builtin type environment consumed by
// the resolve pass: the predefined scalar types, the relation pseudo-types,
// and the category predicates redirection and key checks rely on.
package builtins

import (
	"github.com/cdmlang/cdml/internal/location"
	"github.com/cdmlang/cdml/internal/model"
)

// builtinSpec pairs a type name with its category. Order is the order the
// names appear in the environment listing; lookup itself is by name.
var builtinSpecs = []struct {
	Name     string
	Category model.TypeCategory
}{
	{"String", model.CategoryString},
	{"LargeString", model.CategoryString},
	{"Integer", model.CategoryNumeric},
	{"Integer64", model.CategoryNumeric},
	{"Decimal", model.CategoryNumeric},
	{"Double", model.CategoryNumeric},
	{"Boolean", model.CategoryBoolean},
	{"Date", model.CategoryDateTime},
	{"Time", model.CategoryDateTime},
	{"DateTime", model.CategoryDateTime},
	{"Timestamp", model.CategoryDateTime},
	{"UUID", model.CategoryString},
	{"Binary", model.CategoryBinary},
	{"LargeBinary", model.CategoryBinary},
	{"Association", model.CategoryRelation},
	{"Composition", model.CategoryRelation},
}

// Populate installs the builtin definitions into a model's outermost
// environment. Call once, before loading any source.
func Populate(m *model.Model) {
	for _, spec := range builtinSpecs {
		d := m.NewDefinition(model.KindBuiltin, spec.Name, location.Location{})
		d.Absolute = spec.Name
		d.Category = spec.Category
		if spec.Name == "Composition" {
			d.Composition = true
		}
		m.Builtins[spec.Name] = d
	}
}

// IsRelation reports whether a definition is one of the association
// pseudo-types.
func IsRelation(d *model.Definition) bool {
	return d != nil && d.Category == model.CategoryRelation
}
