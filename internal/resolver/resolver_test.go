package resolver

import (
	"fmt"
	"strings"
	"testing"

	"github.com/cdmlang/cdml/internal/builtins"
	"github.com/cdmlang/cdml/internal/config"
	"github.com/cdmlang/cdml/internal/diagnostics"
	"github.com/cdmlang/cdml/internal/model"
	"github.com/cdmlang/cdml/internal/xsn"
)

// resolveDocs loads the given interchange documents and runs the full pass.
func resolveDocs(t *testing.T, cfg *config.Config, docs ...string) (*model.Model, *diagnostics.Bag) {
	t.Helper()
	m := model.New()
	bag := diagnostics.NewBag()
	builtins.Populate(m)
	loader := xsn.NewLoader(m, bag)
	for i, doc := range docs {
		loader.Load(fmt.Sprintf("doc%d.cdml", i+1), []byte(doc))
	}
	New(m, bag, cfg).Resolve()
	return m, bag
}

func countCode(bag *diagnostics.Bag, id string) int {
	n := 0
	for _, d := range bag.Diagnostics() {
		if d.Code.ID == id {
			n++
		}
	}
	return n
}

func expectCode(t *testing.T, bag *diagnostics.Bag, id string) {
	t.Helper()
	if countCode(bag, id) == 0 {
		t.Fatalf("expected diagnostic %s, got:\n%s", id, dumpBag(bag))
	}
}

func expectCodeCount(t *testing.T, bag *diagnostics.Bag, id string, want int) {
	t.Helper()
	if got := countCode(bag, id); got != want {
		t.Fatalf("expected %d diagnostics %s, got %d:\n%s", want, id, got, dumpBag(bag))
	}
}

func expectNoProblems(t *testing.T, bag *diagnostics.Bag) {
	t.Helper()
	if bag.Len() > 0 {
		t.Fatalf("expected no diagnostics, got:\n%s", dumpBag(bag))
	}
}

func dumpBag(bag *diagnostics.Bag) string {
	var lines []string
	for _, d := range bag.Diagnostics() {
		lines = append(lines, d.String())
	}
	if len(lines) == 0 {
		return "(none)"
	}
	return strings.Join(lines, "\n")
}

func element(t *testing.T, m *model.Model, artifact, name string) *model.Definition {
	t.Helper()
	d := m.Definition(artifact)
	if d == nil {
		t.Fatalf("artifact %s not found", artifact)
	}
	e := d.Elements.Get(name)
	if e == nil {
		t.Fatalf("element %s.%s not found, have %v", artifact, name, d.Elements.Names())
	}
	return e
}

func TestBasicModelResolvesCleanly(t *testing.T) {
	_, bag := resolveDocs(t, nil, `
definitions:
  Books:
    kind: entity
    elements:
      id: {type: Integer, key: true}
      title: String
      author:
        target: Authors
        keys: [id]
  Authors:
    kind: entity
    elements:
      id: {type: Integer, key: true}
      name: String
`)
	expectNoProblems(t, bag)
}

func TestUsingImports(t *testing.T) {
	base := `
namespace: base
definitions:
  Books:
    kind: entity
    elements:
      id: {type: Integer, key: true}
`
	t.Run("valid alias", func(t *testing.T) {
		m, bag := resolveDocs(t, nil, base, `
namespace: app
using:
  - {name: base.Books, as: Books}
definitions:
  V:
    kind: entity
    query: {from: Books}
`)
		expectNoProblems(t, bag)
		if m.Definition("app.V").Elements.Get("id") == nil {
			t.Fatal("expected app.V to project base.Books.id")
		}
	})

	t.Run("undefined import", func(t *testing.T) {
		_, bag := resolveDocs(t, nil, base, `
using:
  - base.Missing
definitions:
  T: {type: String}
`)
		expectCode(t, bag, "using-undefined")
	})

	t.Run("duplicate alias", func(t *testing.T) {
		_, bag := resolveDocs(t, nil, base, `
using:
  - {name: base.Books, as: B}
  - {name: base.Books, as: B}
definitions:
  T: {type: String}
`)
		expectCode(t, bag, "using-duplicate")
	})
}

func TestUndefinedReferences(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		code string
	}{
		{
			"unknown type",
			"definitions:\n  T: {type: Missing}\n",
			"ref-undefined",
		},
		{
			"unknown element",
			`
definitions:
  A:
    kind: entity
    elements:
      id: {type: Integer, key: true}
  V:
    kind: entity
    query:
      from: A
      columns:
        - nope
`,
			"ref-undefined-element",
		},
		{
			"non-entity target",
			"definitions:\n  T: {type: String}\n  A:\n    kind: entity\n    elements:\n      rel: {target: T}\n",
			"ref-expected-entity",
		},
		{
			"non-entity query source",
			"definitions:\n  T: {type: String}\n  V:\n    kind: entity\n    query:\n      from: T\n",
			"query-from-expected-entity",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, bag := resolveDocs(t, nil, tt.doc)
			expectCode(t, bag, tt.code)
		})
	}
}

func TestIncludeExpansion(t *testing.T) {
	m, bag := resolveDocs(t, nil, `
definitions:
  managed:
    kind: aspect
    elements:
      createdAt: Timestamp
      createdBy: String
  Books:
    kind: entity
    includes: [managed]
    elements:
      id: {type: Integer, key: true}
      createdBy: {type: Integer}
`)
	expectNoProblems(t, bag)
	books := m.Definition("Books")
	if books.Elements.Get("createdAt") == nil {
		t.Fatal("expected createdAt to be included from the aspect")
	}
	// The local declaration wins over the included one.
	own := books.Elements.Get("createdBy")
	if own.Type == nil || own.Type.String() != "Integer" {
		t.Fatalf("expected local createdBy to win, got type %v", own.Type)
	}
}

func TestResolutionIsIdempotent(t *testing.T) {
	doc := `
definitions:
  A:
    kind: entity
    elements:
      id: {type: Integer, key: true}
      x: String
      broken: Missing
  B:
    kind: entity
    elements:
      id: {type: Integer, key: true}
      x: String
  V:
    kind: entity
    query:
      from: {join: {op: inner, left: {ref: [A], as: a}, right: {ref: [B], as: b}}}
      columns: ["*"]
`
	m := model.New()
	bag := diagnostics.NewBag()
	builtins.Populate(m)
	xsn.NewLoader(m, bag).Load("doc.cdml", []byte(doc))

	New(m, bag, nil).Resolve()
	before := bag.Len()
	if before == 0 {
		t.Fatal("expected some diagnostics from the broken model")
	}

	// A second full pass over the same model must not duplicate anything:
	// every reference cell is already bound or poisoned.
	New(m, bag, nil).Resolve()
	if bag.Len() != before {
		t.Fatalf("re-resolving changed the bag: %d -> %d\n%s", before, bag.Len(), dumpBag(bag))
	}
}
