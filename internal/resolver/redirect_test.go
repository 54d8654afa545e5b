package resolver

import (
	"testing"

	"github.com/cdmlang/cdml/internal/config"
)

const catalogBase = `
definitions:
  Books:
    kind: entity
    elements:
      id: {type: Integer, key: true}
      title: String
  Authors:
    kind: entity
    elements:
      id: {type: Integer, key: true}
      book: {target: Books, keys: [id]}
`

func TestImplicitRedirection(t *testing.T) {
	m, bag := resolveDocs(t, nil, catalogBase, `
definitions:
  S:
    kind: service
  S.BooksView:
    kind: entity
    query: {from: Books}
  S.AuthorsView:
    kind: entity
    query: {from: Authors}
`)
	expectNoProblems(t, bag)

	assoc := element(t, m, "S.AuthorsView", "book")
	rec := m.Redirection(assoc)
	if rec == nil {
		t.Fatal("association exposed in the service was not redirected")
	}
	if rec.NewTarget != m.Definition("S.BooksView") {
		t.Fatalf("redirected to %s, want S.BooksView", rec.NewTarget.QualifiedName())
	}
	if rec.Explicit {
		t.Fatal("search result marked as an explicit redirection")
	}

	// The managed foreign key follows the redirection.
	if len(assoc.ForeignKeys) != 1 {
		t.Fatalf("expected one foreign key, got %d", len(assoc.ForeignKeys))
	}
	if got := assoc.ForeignKeys[0].Ref.Definition(); got != element(t, m, "S.BooksView", "id") {
		t.Fatalf("foreign key points at %s, want S.BooksView.id", got.QualifiedName())
	}
}

func TestExplicitRedirection(t *testing.T) {
	m, bag := resolveDocs(t, nil, catalogBase, `
definitions:
  Writers:
    kind: entity
    elements:
      id: {type: Integer, key: true}
      book: {target: Books, keys: [id], redirected: BooksAlias}
  BooksAlias:
    kind: entity
    query: {from: Books}
`)
	expectNoProblems(t, bag)

	assoc := element(t, m, "Writers", "book")
	rec := m.Redirection(assoc)
	if rec == nil || !rec.Explicit {
		t.Fatal("hand-written redirection was not recorded as explicit")
	}
	if rec.NewTarget != m.Definition("BooksAlias") {
		t.Fatalf("redirected to %s, want BooksAlias", rec.NewTarget.QualifiedName())
	}
}

func TestRedirectionToOriginalTargetIsNoop(t *testing.T) {
	m, bag := resolveDocs(t, nil, catalogBase, `
definitions:
  Writers:
    kind: entity
    elements:
      id: {type: Integer, key: true}
      book: {target: Books, keys: [id], redirected: Books}
`)
	expectCode(t, bag, "redirected-noop")

	// Nothing is rewritten: the key still points into Books.
	assoc := element(t, m, "Writers", "book")
	if m.Redirection(assoc) != nil {
		t.Fatal("noop redirection must not attach a record")
	}
	if got := assoc.ForeignKeys[0].Ref.Definition(); got != element(t, m, "Books", "id") {
		t.Fatalf("foreign key points at %s, want Books.id", got.QualifiedName())
	}
}

func TestRedirectionNoCandidate(t *testing.T) {
	cfg := config.Default()
	cfg.AutoExpose = false
	_, bag := resolveDocs(t, cfg, catalogBase, `
definitions:
  S:
    kind: service
  S.AuthorsView:
    kind: entity
    query: {from: Authors}
`)
	expectCode(t, bag, "redirected-no-candidate")
}

func TestAutoExposure(t *testing.T) {
	m, bag := resolveDocs(t, nil, catalogBase, `
definitions:
  S:
    kind: service
  S.AuthorsView:
    kind: entity
    query: {from: Authors}
`)
	expectNoProblems(t, bag)

	view := m.Definition("S.Books")
	if view == nil {
		t.Fatal("expected S.Books to be generated")
	}
	if !view.AutoExposed {
		t.Fatal("generated projection not marked auto-exposed")
	}
	if !view.Elements.Has("title") {
		t.Fatalf("generated projection has no inferred elements: %v", view.Elements.Names())
	}
	if !element(t, m, "S.Books", "id").Key {
		t.Fatal("generated projection lost the source key")
	}

	assoc := element(t, m, "S.AuthorsView", "book")
	rec := m.Redirection(assoc)
	if rec == nil || rec.NewTarget != view {
		t.Fatal("association was not redirected to the generated projection")
	}
}

func TestAutoExposureOptOut(t *testing.T) {
	_, bag := resolveDocs(t, nil, `
definitions:
  Books:
    kind: entity
    "@cdml.autoexpose": false
    elements:
      id: {type: Integer, key: true}
  Authors:
    kind: entity
    elements:
      id: {type: Integer, key: true}
      book: {target: Books, keys: [id]}
  S:
    kind: service
  S.AuthorsView:
    kind: entity
    query: {from: Authors}
`)
	expectCode(t, bag, "redirected-no-candidate")
}

func TestAutoExposureCollision(t *testing.T) {
	_, bag := resolveDocs(t, nil, catalogBase, `
definitions:
  S:
    kind: service
  S.Books:
    kind: type
    type: String
  S.AuthorsView:
    kind: entity
    query: {from: Authors}
`)
	expectCode(t, bag, "autoexpose-collision")
}

func TestRedirectionAmbiguous(t *testing.T) {
	_, bag := resolveDocs(t, nil, catalogBase, `
definitions:
  S:
    kind: service
  S.BooksA:
    kind: entity
    query: {from: Books}
  S.BooksB:
    kind: entity
    query: {from: Books}
  S.AuthorsView:
    kind: entity
    query: {from: Authors}
`)
	expectCode(t, bag, "redirected-ambiguous")
}

func TestRedirectionPrefersFlaggedCandidate(t *testing.T) {
	m, bag := resolveDocs(t, nil, catalogBase, `
definitions:
  S:
    kind: service
  S.BooksA:
    kind: entity
    query: {from: Books}
  S.BooksB:
    kind: entity
    "@cdml.redirection.target": true
    query: {from: Books}
  S.AuthorsView:
    kind: entity
    query: {from: Authors}
`)
	expectNoProblems(t, bag)
	rec := m.Redirection(element(t, m, "S.AuthorsView", "book"))
	if rec == nil || rec.NewTarget != m.Definition("S.BooksB") {
		t.Fatal("flagged candidate was not preferred")
	}
}

func TestRedirectionPrefersMostGeneralCandidate(t *testing.T) {
	m, bag := resolveDocs(t, nil, catalogBase, `
definitions:
  S:
    kind: service
  S.BooksBase:
    kind: entity
    query: {from: Books}
  S.BooksNarrow:
    kind: entity
    query: {from: S.BooksBase, columns: [id]}
  S.AuthorsView:
    kind: entity
    query: {from: Authors}
`)
	expectNoProblems(t, bag)
	rec := m.Redirection(element(t, m, "S.AuthorsView", "book"))
	if rec == nil || rec.NewTarget != m.Definition("S.BooksBase") {
		t.Fatal("most general candidate was not preferred")
	}
	if len(rec.Chain) == 0 || rec.Chain[0] != m.Definition("S.BooksBase") {
		t.Fatal("projection chain does not start at the chosen target")
	}
}
