package resolver

import (
	"testing"

	"github.com/cdmlang/cdml/internal/model"
)

func TestRewriteForeignKeyNotCoveredByTarget(t *testing.T) {
	_, bag := resolveDocs(t, nil, `
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
  S:
    kind: service
  S.BooksView:
    kind: entity
    query:
      from: Books
      columns: [title]
  S.AuthorsView:
    kind: entity
    query: {from: Authors}
`)
	expectCode(t, bag, "rewrite-key-not-covered-target")
}

func TestRewriteForeignKeyNotCoveredBySource(t *testing.T) {
	_, bag := resolveDocs(t, nil, `
definitions:
  Books:
    kind: entity
    elements:
      id: {type: Integer, key: true}
      isbn: {type: String, key: true}
  Authors:
    kind: entity
    elements:
      id: {type: Integer, key: true}
      book: {target: Books, keys: [id]}
  S:
    kind: service
  S.BooksView:
    kind: entity
    query: {from: Books}
  S.AuthorsView:
    kind: entity
    query: {from: Authors}
`)
	expectCode(t, bag, "rewrite-key-not-covered-source")
}

func TestRewriteOnCondition(t *testing.T) {
	m, bag := resolveDocs(t, nil, `
definitions:
  Books:
    kind: entity
    elements:
      id: {type: Integer, key: true}
      authorId: Integer
  Authors:
    kind: entity
    elements:
      id: {type: Integer, key: true}
      books: {target: Books, many: true, on: [{ref: [books, authorId]}, "=", {ref: [id]}]}
  S:
    kind: service
  S.BooksView:
    kind: entity
    query: {from: Books}
  S.AuthorsView:
    kind: entity
    query:
      from: Authors
      columns: [id, books]
`)
	expectNoProblems(t, bag)

	assoc := element(t, m, "S.AuthorsView", "books")
	if assoc.On == nil {
		t.Fatal("redirected unmanaged association has no rewritten ON condition")
	}
	bin, ok := assoc.On.(*model.BinaryExpr)
	if !ok {
		t.Fatalf("rewritten ON is %T, want a comparison", assoc.On)
	}
	left := bin.Left.(*model.RefExpr)
	if got := left.Ref.Definition(); got != element(t, m, "S.BooksView", "authorId") {
		t.Fatalf("ON path repointed to %s, want S.BooksView.authorId", got.QualifiedName())
	}

	// The original association is untouched.
	orig := element(t, m, "Authors", "books")
	origLeft := orig.On.(*model.BinaryExpr).Left.(*model.RefExpr)
	if got := origLeft.Ref.Definition(); got != element(t, m, "Books", "authorId") {
		t.Fatal("rewrite mutated the original ON condition")
	}
}

func TestRewriteOnElementMissingOnTarget(t *testing.T) {
	_, bag := resolveDocs(t, nil, `
definitions:
  Books:
    kind: entity
    elements:
      id: {type: Integer, key: true}
      authorId: Integer
  Authors:
    kind: entity
    elements:
      id: {type: Integer, key: true}
      books: {target: Books, many: true, on: [{ref: [books, authorId]}, "=", {ref: [id]}]}
  S:
    kind: service
  S.BooksView:
    kind: entity
    query:
      from: Books
      columns: [id]
  S.AuthorsView:
    kind: entity
    query: {from: Authors}
`)
	expectCode(t, bag, "rewrite-undefined-element")
}

func TestRewriteBacklinkCondition(t *testing.T) {
	m, bag := resolveDocs(t, nil, `
definitions:
  Items:
    kind: entity
    elements:
      id: {type: Integer, key: true}
      parent: {target: Headers, keys: [id]}
  Headers:
    kind: entity
    elements:
      id: {type: Integer, key: true}
      items: {target: Items, many: true, on: [{ref: [items, parent]}, "=", {ref: [$self]}]}
  S:
    kind: service
  S.ItemsView:
    kind: entity
    query: {from: Items}
  S.HeadersView:
    kind: entity
    query: {from: Headers}
`)
	expectNoProblems(t, bag)

	assoc := element(t, m, "S.HeadersView", "items")
	if assoc.On == nil {
		t.Fatal("backlink condition was not carried onto the redirected association")
	}
	left := assoc.On.(*model.BinaryExpr).Left.(*model.RefExpr)
	if got := left.Ref.Definition(); got != element(t, m, "S.ItemsView", "parent") {
		t.Fatalf("backlink repointed to %s, want S.ItemsView.parent", got.QualifiedName())
	}
}

func TestRewriteOnNavigationDepthLimit(t *testing.T) {
	// toB's condition navigates three associations past the root; the
	// default limit is two hops.
	_, bag := resolveDocs(t, nil, `
definitions:
  B:
    kind: entity
    elements:
      id: {type: Integer, key: true}
      r1: {target: B, on: [{ref: [r1, id]}, "=", {ref: [id]}]}
      r2: {target: B, on: [{ref: [r2, id]}, "=", {ref: [id]}]}
      r3: {target: B, keys: [id]}
  S:
    kind: service
  S.BView:
    kind: entity
    query: {from: B}
  S.E:
    kind: entity
    elements:
      id: {type: Integer, key: true}
      toB: {target: B, on: [{ref: [toB, r1, r2, r3, id]}, "=", {ref: [$self]}]}
`)
	expectCode(t, bag, "rewrite-on-unsupported")
}
