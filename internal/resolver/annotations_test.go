package resolver

import (
	"testing"

	"github.com/cdmlang/cdml/internal/model"
)

func annotation(t *testing.T, d *model.Definition, name string) *model.AnnotationAssignment {
	t.Helper()
	for _, a := range d.Annotations {
		if a.Name == name {
			return a
		}
	}
	t.Fatalf("annotation %s not found on %s", name, d.QualifiedName())
	return nil
}

const annotatedEntity = `
definitions:
  Books:
    kind: entity
    elements:
      id: {type: Integer, key: true}
      title: String
`

func TestExtensionLayering(t *testing.T) {
	t.Run("extending layer wins silently", func(t *testing.T) {
		m, bag := resolveDocs(t, nil, annotatedEntity, `
extensions:
  - {annotate: Books, layer: base, annotations: {"@title.label": Base}}
`, `
extensions:
  - {annotate: Books, layer: app, extends: base, annotations: {"@title.label": App}}
`)
		expectNoProblems(t, bag)
		a := annotation(t, m.Definition("Books"), "title.label")
		if a.Layer != "app" {
			t.Fatalf("winner comes from layer %s, want app", a.Layer)
		}
		if v := a.Value.(*model.Literal).Value; v != "App" {
			t.Fatalf("winner value %v, want App", v)
		}
	})

	t.Run("unrelated layers conflict", func(t *testing.T) {
		_, bag := resolveDocs(t, nil, annotatedEntity, `
extensions:
  - {annotate: Books, layer: one, annotations: {"@title.label": One}}
`, `
extensions:
  - {annotate: Books, layer: two, annotations: {"@title.label": Two}}
`)
		expectCode(t, bag, "anno-duplicate-unrelated")
	})

	t.Run("same layer twice conflicts", func(t *testing.T) {
		_, bag := resolveDocs(t, nil, annotatedEntity, `
extensions:
  - {annotate: Books, layer: one, annotations: {"@title.label": A}}
  - {annotate: Books, layer: one, annotations: {"@title.label": B}}
`)
		expectCode(t, bag, "anno-duplicate")
	})
}

func TestAnnotationSplice(t *testing.T) {
	t.Run("splices the extended layer's array", func(t *testing.T) {
		m, bag := resolveDocs(t, nil, annotatedEntity, `
extensions:
  - {annotate: Books, layer: base, annotations: {"@readers": [alice, bob]}}
`, `
extensions:
  - {annotate: Books, layer: app, extends: base, annotations: {"@readers": [root, "...", carol]}}
`)
		expectNoProblems(t, bag)
		list := annotation(t, m.Definition("Books"), "readers").Value.(*model.ListExpr)
		var got []string
		for _, it := range list.Items {
			got = append(got, it.(*model.Literal).Value.(string))
		}
		want := []string{"root", "alice", "bob", "carol"}
		if len(got) != len(want) {
			t.Fatalf("spliced list %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("spliced list %v, want %v", got, want)
			}
		}
	})

	t.Run("no base array to splice", func(t *testing.T) {
		_, bag := resolveDocs(t, nil, annotatedEntity, `
extensions:
  - {annotate: Books, layer: app, extends: base, annotations: {"@readers": [root, "..."]}}
`)
		expectCode(t, bag, "anno-missing-splice-value")
	})
}

func TestExtensionTargets(t *testing.T) {
	t.Run("unknown artifact", func(t *testing.T) {
		_, bag := resolveDocs(t, nil, `
extensions:
  - {annotate: Missing, layer: app, annotations: {"@x": 1}}
`)
		expectCode(t, bag, "ref-undefined")
	})

	t.Run("unknown element", func(t *testing.T) {
		_, bag := resolveDocs(t, nil, annotatedEntity, `
extensions:
  - {annotate: Books, layer: app, elements: {nope: {"@x": 1}}}
`)
		expectCode(t, bag, "ref-undefined-element")
	})

	t.Run("annotates inferred view elements", func(t *testing.T) {
		m, bag := resolveDocs(t, nil, annotatedEntity, `
definitions:
  BooksView:
    kind: entity
    query: {from: Books}
extensions:
  - {annotate: BooksView, layer: app, elements: {title: {"@readonly": true}}}
`)
		expectNoProblems(t, bag)
		a := annotation(t, element(t, m, "BooksView", "title"), "readonly")
		if v := a.Value.(*model.Literal).Value; v != true {
			t.Fatalf("annotation value %v, want true", v)
		}
	})
}

func TestAnnotationValueReferences(t *testing.T) {
	t.Run("element reference binds", func(t *testing.T) {
		m, bag := resolveDocs(t, nil, `
definitions:
  Books:
    kind: entity
    "@display.order": {ref: [title]}
    elements:
      id: {type: Integer, key: true}
      title: String
`)
		expectNoProblems(t, bag)
		ref := annotation(t, m.Definition("Books"), "display.order").Value.(*model.RefExpr)
		if ref.Ref.Definition() != element(t, m, "Books", "title") {
			t.Fatal("annotation value reference did not bind to Books.title")
		}
	})

	t.Run("dangling reference reports", func(t *testing.T) {
		_, bag := resolveDocs(t, nil, `
definitions:
  Books:
    kind: entity
    "@display.order": {ref: [nope]}
    elements:
      id: {type: Integer, key: true}
`)
		expectCode(t, bag, "ref-undefined-element")
	})
}
