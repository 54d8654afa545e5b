package model

import (
	"testing"

	"github.com/cdmlang/cdml/internal/location"
)

func TestMembersOrderAndDuplicates(t *testing.T) {
	m := New()
	members := NewMembers()
	for _, n := range []string{"id", "title", "stock"} {
		if !members.Add(m.NewDefinition(KindElement, n, location.Location{})) {
			t.Fatalf("Add(%q) rejected", n)
		}
	}
	if members.Add(m.NewDefinition(KindElement, "title", location.Location{})) {
		t.Fatal("duplicate Add accepted")
	}

	names := members.Names()
	want := []string{"id", "title", "stock"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names %v, want %v", names, want)
		}
	}

	var visited []string
	members.Each(func(n string, _ *Definition) bool {
		visited = append(visited, n)
		return n != "title"
	})
	if len(visited) != 2 {
		t.Fatalf("Each kept going after false: %v", visited)
	}
}

func TestMembersNilReceiver(t *testing.T) {
	var members *Members
	if members.Len() != 0 || members.Get("x") != nil || members.Has("x") {
		t.Fatal("nil Members should behave as empty")
	}
	members.Each(func(string, *Definition) bool {
		t.Fatal("Each on nil Members visited something")
		return false
	})
}

func TestAddDefinitionRejectsDuplicates(t *testing.T) {
	m := New()
	a := m.NewDefinition(KindEntity, "Books", location.Location{})
	a.Absolute = "shop.Books"
	if !m.AddDefinition(a) {
		t.Fatal("first AddDefinition rejected")
	}
	b := m.NewDefinition(KindEntity, "Books", location.Location{})
	b.Absolute = "shop.Books"
	if m.AddDefinition(b) {
		t.Fatal("duplicate absolute name accepted")
	}
	if m.Definition("shop.Books") != a {
		t.Fatal("duplicate displaced the original")
	}
}

func TestSortedDefinitionNames(t *testing.T) {
	m := New()
	for _, n := range []string{"z.Last", "a.First", "m.Mid"} {
		d := m.NewDefinition(KindEntity, n, location.Location{})
		d.Absolute = n
		m.AddDefinition(d)
	}
	got := m.SortedDefinitionNames()
	want := []string{"a.First", "m.Mid", "z.Last"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sorted names %v, want %v", got, want)
		}
	}
	// Insertion order survives alongside.
	if m.DefinitionNames()[0] != "z.Last" {
		t.Fatal("DefinitionNames lost insertion order")
	}
}

func TestReferenceWriteOnce(t *testing.T) {
	m := New()
	d := m.NewDefinition(KindEntity, "Books", location.Location{})
	other := m.NewDefinition(KindEntity, "Authors", location.Location{})

	ref := NewReference(location.At("a.cdml", 1, 1), "shop", "Books")
	if ref.Resolved() {
		t.Fatal("fresh reference claims resolved")
	}
	ref.Bind(d)
	if ref.State() != RefBound || ref.Definition() != d {
		t.Fatalf("Bind did not stick: %s", ref.State())
	}
	ref.Bind(other)
	ref.Poison(RefNotFound)
	if ref.Definition() != d {
		t.Fatal("bound cell was overwritten")
	}

	poisoned := NewReference(location.Location{}, "missing")
	poisoned.Poison(RefAmbiguous)
	poisoned.Bind(d)
	if poisoned.State() != RefAmbiguous || poisoned.Definition() != nil {
		t.Fatal("poisoned cell was rebound")
	}

	// Poisoning to a non-failure state is ignored.
	fresh := NewReference(location.Location{}, "x")
	fresh.Poison(RefBound)
	if fresh.Resolved() {
		t.Fatal("Poison(RefBound) resolved the cell")
	}
}

func TestReferenceCloneResetsState(t *testing.T) {
	m := New()
	d := m.NewDefinition(KindEntity, "Books", location.Location{})

	ref := NewReference(location.At("a.cdml", 2, 3), "Books")
	ref.Path[0].Filter = &BinaryExpr{Op: ">", Left: &RefExpr{Ref: NewReference(location.Location{}, "stock")}, Right: &Literal{Value: int64(0)}}
	ref.Bind(d)

	cp := ref.Clone()
	if cp.Resolved() {
		t.Fatal("clone inherited resolution state")
	}
	if cp.String() != "Books" || cp.Path[0].Filter == nil {
		t.Fatal("clone dropped path payload")
	}
	if cp.Path[0].Filter == ref.Path[0].Filter {
		t.Fatal("clone shares the filter expression")
	}
}

func TestCloneDeepCopiesStructure(t *testing.T) {
	m := New()
	src := m.NewDefinition(KindElement, "amount", location.Location{})
	src.Elements = NewMembers()
	value := m.NewDefinition(KindElement, "value", location.Location{})
	value.Type = NewReference(location.Location{}, "Decimal")
	value.Key = true
	src.Elements.Add(value)
	src.Annotations = append(src.Annotations, &AnnotationAssignment{Name: "title", Layer: "base"})

	parent := m.NewDefinition(KindEntity, "Orders", location.Location{})
	cp := m.Clone(src, "total", parent)

	if cp.Name != "total" || cp.Parent != parent {
		t.Fatalf("clone identity wrong: %s under %v", cp.Name, cp.Parent)
	}
	cpValue := cp.Elements.Get("value")
	if cpValue == nil || cpValue == value {
		t.Fatal("nested element not deep-copied")
	}
	if !cpValue.Key || cpValue.Type == value.Type {
		t.Fatal("nested element payload not carried or shared")
	}
	if cpValue.Type.Resolved() {
		t.Fatal("cloned type reference inherited state")
	}
	if m.Origin(cp) != src || m.Origin(cpValue) != value {
		t.Fatal("origin links not recorded")
	}
	if len(cp.Annotations) != 1 || cp.Annotations[0].Name != "title" {
		t.Fatal("annotations not carried over")
	}
}

func TestSideTablesWriteOnce(t *testing.T) {
	m := New()
	a := m.NewDefinition(KindElement, "a", location.Location{})
	b := m.NewDefinition(KindElement, "b", location.Location{})
	c := m.NewDefinition(KindElement, "c", location.Location{})

	m.SetOrigin(a, b)
	m.SetOrigin(a, c)
	if m.Origin(a) != b {
		t.Fatal("origin was overwritten")
	}

	m.AddProjection(a, b)
	m.AddProjection(a, b)
	m.AddProjection(a, c)
	if got := m.Projections(a); len(got) != 2 {
		t.Fatalf("projections deduped to %d, want 2", len(got))
	}

	rec := &RedirectionRecord{Original: b, NewTarget: c}
	m.SetRedirection(a, rec)
	m.SetRedirection(a, &RedirectionRecord{Original: c, NewTarget: b})
	if m.Redirection(a) != rec {
		t.Fatal("redirection record was overwritten")
	}
}

func TestEffectiveTypeMemo(t *testing.T) {
	m := New()
	d := m.NewDefinition(KindType, "T", location.Location{})
	target := m.NewDefinition(KindBuiltin, "String", location.Location{})

	if state, _, _ := m.EffectiveTypeState(d); state != EffUnvisited {
		t.Fatalf("fresh node state %v", state)
	}
	m.MarkEffectiveTypeInProgress(d)
	if state, _, _ := m.EffectiveTypeState(d); state != EffInProgress {
		t.Fatalf("gray marker state %v", state)
	}
	m.SetEffectiveType(d, target, false)
	m.SetEffectiveType(d, nil, true)
	state, got, cyclic := m.EffectiveTypeState(d)
	if state != EffDone || got != target || cyclic {
		t.Fatal("done entry was overwritten")
	}
}

func TestWalkStopsDescending(t *testing.T) {
	inner := &RefExpr{Ref: NewReference(location.Location{}, "id")}
	expr := &BinaryExpr{
		Op:   "and",
		Left: &CallExpr{Func: "exists", Args: []Expr{inner}},
		Right: &UnaryExpr{Op: "not", Operand: &RefExpr{
			Ref: NewReference(location.Location{}, "archived"),
		}},
	}

	var refs int
	Walk(expr, func(e Expr) bool {
		if _, ok := e.(*RefExpr); ok {
			refs++
		}
		return true
	})
	if refs != 2 {
		t.Fatalf("full walk saw %d refs, want 2", refs)
	}

	refs = 0
	Walk(expr, func(e Expr) bool {
		if _, ok := e.(*CallExpr); ok {
			return false
		}
		if _, ok := e.(*RefExpr); ok {
			refs++
		}
		return true
	})
	if refs != 1 {
		t.Fatalf("pruned walk saw %d refs, want 1", refs)
	}
}

func TestCloneExpr(t *testing.T) {
	src := &BinaryExpr{
		Op:   "=",
		Left: &RefExpr{Ref: NewReference(location.At("a.cdml", 1, 1), "author", "id")},
		Right: &ListExpr{Items: []Expr{
			&Literal{Value: "x"},
			&SpliceExpr{},
		}},
	}
	cp := CloneExpr(src).(*BinaryExpr)
	if cp == src || cp.Left == src.Left || cp.Right == src.Right {
		t.Fatal("clone shares nodes with the source")
	}
	if cp.Left.(*RefExpr).Ref == src.Left.(*RefExpr).Ref {
		t.Fatal("clone shares the reference cell")
	}
	if cp.Left.(*RefExpr).Ref.String() != "author.id" {
		t.Fatal("cloned reference lost its path")
	}
}

func TestQualifiedNameAndMainArtifact(t *testing.T) {
	m := New()
	entity := m.NewDefinition(KindEntity, "Books", location.Location{})
	entity.Absolute = "shop.Books"
	elem := m.NewDefinition(KindElement, "author", location.Location{})
	elem.Parent = entity
	nested := m.NewDefinition(KindElement, "name", location.Location{})
	nested.Parent = elem

	if nested.QualifiedName() != "shop.Books.author.name" {
		t.Fatalf("qualified name %q", nested.QualifiedName())
	}
	if nested.MainArtifact() != entity {
		t.Fatal("MainArtifact did not reach the entity")
	}
}

func TestInService(t *testing.T) {
	m := New()
	svc := m.NewDefinition(KindService, "Srv", location.Location{})
	svc.Absolute = "app.Srv"
	m.AddDefinition(svc)
	view := m.NewDefinition(KindEntity, "Books", location.Location{})
	view.Absolute = "app.Srv.Books"
	m.AddDefinition(view)
	outside := m.NewDefinition(KindEntity, "Books", location.Location{})
	outside.Absolute = "shop.Books"
	m.AddDefinition(outside)

	if view.InService(m) != svc {
		t.Fatal("service member not attributed to its service")
	}
	if outside.InService(m) != nil {
		t.Fatal("non-service artifact attributed to a service")
	}
}
