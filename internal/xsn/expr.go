package xsn

import (
	"gopkg.in/yaml.v3"

	"github.com/cdmlang/cdml/internal/diagnostics"
	"github.com/cdmlang/cdml/internal/model"
)

// Expressions arrive as token streams, the way conditions are written in
// the interchange form: operands are mappings ({ref: ...}, {val: ...},
// {func: ...}), operators are bare strings, nested sequences parenthesize.
// parseExpr turns a stream into an expression tree with the conventional
// precedence or < and < not < comparison.

func (l *Loader) parseExpr(n *yaml.Node) model.Expr {
	switch {
	case n == nil:
		return nil
	case isMapping(n), isScalar(n):
		return l.parseOperand(n)
	case isSequence(n):
		p := &exprParser{l: l, tokens: n.Content}
		e := p.parseOr()
		if !p.done() {
			l.bag.Report(diagnostics.XSNBadShape, l.loc(p.peek()), "expression", "unexpected trailing tokens")
		}
		return e
	default:
		l.bag.Report(diagnostics.XSNBadShape, l.loc(n), "expression", "expected a token stream")
		return nil
	}
}

type exprParser struct {
	l      *Loader
	tokens []*yaml.Node
	pos    int
}

func (p *exprParser) done() bool { return p.pos >= len(p.tokens) }

func (p *exprParser) peek() *yaml.Node {
	if p.done() {
		return nil
	}
	return p.tokens[p.pos]
}

// peekOp returns the operator string if the next token is a bare string.
func (p *exprParser) peekOp() string {
	n := p.peek()
	if isScalar(n) && n.Tag == "!!str" {
		return n.Value
	}
	return ""
}

func (p *exprParser) next() *yaml.Node {
	n := p.peek()
	p.pos++
	return n
}

func (p *exprParser) parseOr() model.Expr {
	left := p.parseAnd()
	for p.peekOp() == "or" {
		op := p.next()
		right := p.parseAnd()
		left = &model.BinaryExpr{Op: "or", Left: left, Right: right, Location: p.l.loc(op)}
	}
	return left
}

func (p *exprParser) parseAnd() model.Expr {
	left := p.parseNot()
	for p.peekOp() == "and" {
		op := p.next()
		right := p.parseNot()
		left = &model.BinaryExpr{Op: "and", Left: left, Right: right, Location: p.l.loc(op)}
	}
	return left
}

func (p *exprParser) parseNot() model.Expr {
	if p.peekOp() == "not" {
		op := p.next()
		return &model.UnaryExpr{Op: "not", Operand: p.parseNot(), Location: p.l.loc(op)}
	}
	return p.parseComparison()
}

var comparisonOps = map[string]bool{
	"=": true, "==": true, "!=": true, "<>": true,
	"<": true, "<=": true, ">": true, ">=": true,
	"like": true, "in": true, "||": true,
	"+": true, "-": true, "*": true, "/": true,
}

func (p *exprParser) parseComparison() model.Expr {
	left := p.parsePrimary()
	for comparisonOps[p.peekOp()] {
		op := p.next()
		right := p.parsePrimary()
		left = &model.BinaryExpr{Op: op.Value, Left: left, Right: right, Location: p.l.loc(op)}
	}
	return left
}

func (p *exprParser) parsePrimary() model.Expr {
	n := p.next()
	switch {
	case n == nil:
		p.l.bag.Report(diagnostics.XSNBadShape, p.l.loc(nil), "expression", "expected an operand")
		return nil
	case isSequence(n):
		sub := &exprParser{l: p.l, tokens: n.Content}
		return sub.parseOr()
	default:
		return p.l.parseOperand(n)
	}
}

// parseOperand reads a single expression operand.
func (l *Loader) parseOperand(n *yaml.Node) model.Expr {
	if isScalar(n) {
		if n.Value == "..." {
			return &model.SpliceExpr{Location: l.loc(n)}
		}
		return &model.Literal{Value: scalarValue(n), Location: l.loc(n)}
	}
	if !isMapping(n) {
		l.bag.Report(diagnostics.XSNBadShape, l.loc(n), "expression", "expected an operand")
		return nil
	}
	switch {
	case mapGet(n, "ref") != nil:
		ref := l.parseTypeRef(mapGet(n, "ref"), false)
		if ref == nil {
			return nil
		}
		return &model.RefExpr{Ref: ref}
	case mapGet(n, "val") != nil:
		v := mapGet(n, "val")
		return &model.Literal{Value: scalarValue(v), Location: l.loc(v)}
	case mapGet(n, "func") != nil:
		return l.parseFunc(n)
	case mapGet(n, "select") != nil:
		q := l.parseQuery(mapGet(n, "select"))
		if q == nil {
			return nil
		}
		return &model.QueryExpr{Query: q, Location: l.loc(n)}
	default:
		l.bag.Report(diagnostics.XSNBadShape, l.loc(n), "expression", "expected ref, val, func or select")
		return nil
	}
}

func (l *Loader) parseFunc(n *yaml.Node) model.Expr {
	call := &model.CallExpr{Func: scalarString(mapGet(n, "func")), Location: l.loc(n)}
	for _, arg := range nodeList(mapGet(n, "args")) {
		call.Args = append(call.Args, l.parseOperand(arg))
	}
	return call
}

// parseAnnotationValue reads an annotation value: scalars become literals,
// sequences become lists (with "..." as the splice marker), mappings become
// records unless they carry an explicit expression key.
func (l *Loader) parseAnnotationValue(n *yaml.Node) model.Expr {
	switch {
	case n == nil:
		return &model.Literal{Value: true}
	case isScalar(n):
		if n.Value == "..." {
			return &model.SpliceExpr{Location: l.loc(n)}
		}
		// a bare "@anno:" assignment means true
		if n.Tag == "!!null" {
			return &model.Literal{Value: true, Location: l.loc(n)}
		}
		return &model.Literal{Value: scalarValue(n), Location: l.loc(n)}
	case isSequence(n):
		out := &model.ListExpr{Location: l.loc(n)}
		for _, item := range n.Content {
			out.Items = append(out.Items, l.parseAnnotationValue(item))
		}
		return out
	case isMapping(n):
		if mapGet(n, "ref") != nil || mapGet(n, "func") != nil {
			return l.parseOperand(n)
		}
		out := &model.StructExpr{Location: l.loc(n)}
		eachPair(n, func(key string, keyNode, value *yaml.Node) {
			out.Fields = append(out.Fields, &model.StructField{Name: key, Value: l.parseAnnotationValue(value)})
		})
		return out
	default:
		return nil
	}
}
