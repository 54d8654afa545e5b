package xsn

import (
	"gopkg.in/yaml.v3"

	"github.com/cdmlang/cdml/internal/diagnostics"
	"github.com/cdmlang/cdml/internal/model"
)

// parseQuery reads a query mapping: either {union: [...]} or a select with
// from/columns/excluding/mixin/where.
func (l *Loader) parseQuery(n *yaml.Node) *model.Query {
	if !isMapping(n) {
		l.bag.Report(diagnostics.XSNBadShape, l.loc(n), "query", "expected a mapping")
		return nil
	}
	if branches := mapGet(n, "union"); branches != nil {
		q := &model.Query{Op: model.OpUnion, Location: l.loc(n)}
		for _, b := range nodeList(branches) {
			if sub := l.parseQuery(b); sub != nil {
				q.Branches = append(q.Branches, sub)
			}
		}
		if len(q.Branches) == 0 {
			l.bag.Report(diagnostics.XSNBadShape, l.loc(branches), "union", "expected at least one branch")
			return nil
		}
		return q
	}

	q := &model.Query{Op: model.OpSelect, Location: l.loc(n)}
	q.From = l.parseTableRef(mapGet(n, "from"))
	if q.From == nil {
		l.bag.Report(diagnostics.XSNBadShape, l.loc(n), "query", "missing from clause")
		return nil
	}
	if cols := mapGet(n, "columns"); cols != nil {
		q.Columns = l.parseColumns(cols)
	}
	q.Excluding = sequenceStrings(mapGet(n, "excluding"))
	if where := mapGet(n, "where"); where != nil {
		q.Where = l.parseExpr(where)
	}
	if mixins := mapGet(n, "mixin"); mixins != nil {
		q.Mixins = model.NewMembers()
		eachPair(mixins, func(name string, keyNode, body *yaml.Node) {
			m := l.model.NewDefinition(model.KindMixin, name, l.loc(keyNode))
			m.Block = l.block
			if isMapping(body) {
				l.parseBody(m, body)
			}
			if !q.Mixins.Add(m) {
				l.bag.Report(diagnostics.XSNDuplicateDefinition, l.loc(keyNode), name)
			}
		})
	}
	return q
}

// parseTableRef reads one node of the FROM tree.
func (l *Loader) parseTableRef(n *yaml.Node) *model.TableRef {
	switch {
	case n == nil:
		return nil
	case isScalar(n):
		return &model.TableRef{Ref: refFromDotted(n.Value, l.loc(n), false), Location: l.loc(n)}
	case isMapping(n):
	default:
		l.bag.Report(diagnostics.XSNBadShape, l.loc(n), "from", "expected a source name or mapping")
		return nil
	}

	t := &model.TableRef{Location: l.loc(n), Alias: scalarString(mapGet(n, "as"))}
	switch {
	case mapGet(n, "join") != nil:
		join := mapGet(n, "join")
		if !isMapping(join) {
			l.bag.Report(diagnostics.XSNBadShape, l.loc(join), "join", "expected a mapping")
			return nil
		}
		t.JoinOp = scalarString(mapGet(join, "op"))
		if t.JoinOp == "" {
			t.JoinOp = "inner"
		}
		t.Left = l.parseTableRef(mapGet(join, "left"))
		t.Right = l.parseTableRef(mapGet(join, "right"))
		if t.Left == nil || t.Right == nil {
			l.bag.Report(diagnostics.XSNBadShape, l.loc(join), "join", "missing left or right source")
			return nil
		}
		if on := mapGet(join, "on"); on != nil {
			t.On = l.parseExpr(on)
		}
	case mapGet(n, "select") != nil:
		t.SubQuery = l.parseQuery(mapGet(n, "select"))
		if t.SubQuery == nil {
			return nil
		}
	case mapGet(n, "ref") != nil:
		t.Ref = l.parseTypeRef(mapGet(n, "ref"), false)
		if t.Ref == nil {
			return nil
		}
		eachPair(mapGet(n, "args"), func(name string, keyNode, value *yaml.Node) {
			last := &t.Ref.Path[len(t.Ref.Path)-1]
			last.Args = append(last.Args, &model.NamedArg{Name: name, Value: l.parseExpr(value), Location: l.loc(keyNode)})
		})
	default:
		l.bag.Report(diagnostics.XSNBadShape, l.loc(n), "from", "expected ref, join or select")
		return nil
	}
	return t
}

func (l *Loader) parseColumns(n *yaml.Node) []*model.Column {
	var cols []*model.Column
	for _, item := range nodeList(n) {
		if c := l.parseColumn(item); c != nil {
			cols = append(cols, c)
		}
	}
	return cols
}

// parseColumn reads one column: "*", a bare element name, or a mapping with
// ref/val/func plus as/key/expand/inline/excluding.
func (l *Loader) parseColumn(n *yaml.Node) *model.Column {
	switch {
	case isScalar(n):
		if n.Value == "*" {
			return &model.Column{Wildcard: true, Location: l.loc(n)}
		}
		return &model.Column{
			Expr:     &model.RefExpr{Ref: refFromDotted(n.Value, l.loc(n), false)},
			Location: l.loc(n),
		}
	case isMapping(n):
	default:
		l.bag.Report(diagnostics.XSNBadShape, l.loc(n), "column", "expected a name or mapping")
		return nil
	}

	c := &model.Column{Location: l.loc(n), Alias: scalarString(mapGet(n, "as"))}
	if keyNode := mapGet(n, "key"); keyNode != nil {
		key := scalarBool(keyNode, false)
		c.Key = &key
	}
	switch {
	case mapGet(n, "ref") != nil:
		ref := l.parseTypeRef(mapGet(n, "ref"), false)
		if ref == nil {
			return nil
		}
		c.Expr = &model.RefExpr{Ref: ref}
	case mapGet(n, "val") != nil:
		v := mapGet(n, "val")
		c.Expr = &model.Literal{Value: scalarValue(v), Location: l.loc(v)}
	case mapGet(n, "func") != nil:
		c.Expr = l.parseFunc(n)
	case mapGet(n, "expr") != nil:
		c.Expr = l.parseExpr(mapGet(n, "expr"))
	}
	if expand := mapGet(n, "expand"); expand != nil {
		c.Expand = l.parseColumns(expand)
	}
	if inline := mapGet(n, "inline"); inline != nil {
		c.Inline = l.parseColumns(inline)
	}
	c.ExcludingInline = sequenceStrings(mapGet(n, "excluding"))
	if c.Expr == nil && c.Expand == nil && c.Inline == nil {
		l.bag.Report(diagnostics.XSNBadShape, l.loc(n), "column", "expected ref, val, func or expr")
		return nil
	}
	return c
}
