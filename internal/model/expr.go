package model

import "github.com/cdmlang/cdml/internal/location"

// Expr is the closed sum of expression nodes appearing in ON conditions,
// filters, annotation values and column definitions. Traversal goes through
// Walk; no other recursion over expressions should be needed.
type Expr interface {
	Loc() location.Location
	exprNode()
}

// RefExpr wraps a reference used as an expression operand.
type RefExpr struct {
	Ref *Reference
}

// Literal is a constant value: string, int64, float64, bool or nil.
type Literal struct {
	Value    interface{}
	Location location.Location
}

// BinaryExpr is "left op right" with op as written ("=", "and", "||", …).
type BinaryExpr struct {
	Op          string
	Left, Right Expr
	Location    location.Location
}

// UnaryExpr is "op operand" ("not", "-").
type UnaryExpr struct {
	Op       string
	Operand  Expr
	Location location.Location
}

// CallExpr is a function application.
type CallExpr struct {
	Func     string
	Args     []Expr
	Location location.Location
}

// ListExpr is an array literal, used mostly in annotation values.
type ListExpr struct {
	Items    []Expr
	Location location.Location
}

// StructExpr is a record literal in an annotation value. Field order is as
// written.
type StructExpr struct {
	Fields   []*StructField
	Location location.Location
}

type StructField struct {
	Name  string
	Value Expr
}

// SpliceExpr is the "..." marker inside an annotation array literal that
// stands for the previous layer's array value.
type SpliceExpr struct {
	Location location.Location
}

// QueryExpr is a sub-query used as an expression.
type QueryExpr struct {
	Query    *Query
	Location location.Location
}

func (e *RefExpr) Loc() location.Location    { return e.Ref.Location }
func (e *Literal) Loc() location.Location    { return e.Location }
func (e *BinaryExpr) Loc() location.Location { return e.Location }
func (e *UnaryExpr) Loc() location.Location  { return e.Location }
func (e *CallExpr) Loc() location.Location   { return e.Location }
func (e *ListExpr) Loc() location.Location   { return e.Location }
func (e *StructExpr) Loc() location.Location { return e.Location }
func (e *SpliceExpr) Loc() location.Location { return e.Location }
func (e *QueryExpr) Loc() location.Location  { return e.Location }

func (*RefExpr) exprNode()    {}
func (*Literal) exprNode()    {}
func (*BinaryExpr) exprNode() {}
func (*UnaryExpr) exprNode()  {}
func (*CallExpr) exprNode()   {}
func (*ListExpr) exprNode()   {}
func (*StructExpr) exprNode() {}
func (*SpliceExpr) exprNode() {}
func (*QueryExpr) exprNode()  {}

// Walk visits e and its sub-expressions in pre-order. It stops descending
// into a node when visit returns false. Sub-queries are not entered; their
// internals are resolved through the query machinery, not expression
// traversal.
func Walk(e Expr, visit func(Expr) bool) {
	if e == nil || !visit(e) {
		return
	}
	switch n := e.(type) {
	case *BinaryExpr:
		Walk(n.Left, visit)
		Walk(n.Right, visit)
	case *UnaryExpr:
		Walk(n.Operand, visit)
	case *CallExpr:
		for _, a := range n.Args {
			Walk(a, visit)
		}
	case *ListExpr:
		for _, it := range n.Items {
			Walk(it, visit)
		}
	case *StructExpr:
		for _, f := range n.Fields {
			Walk(f.Value, visit)
		}
	}
}

// CloneExpr deep-copies an expression tree. Reference cells are reset to
// unresolved: a cloned condition is rewritten and re-resolved in its new
// context, never shares results with its original.
func CloneExpr(e Expr) Expr {
	switch n := e.(type) {
	case nil:
		return nil
	case *RefExpr:
		return &RefExpr{Ref: n.Ref.Clone()}
	case *Literal:
		return &Literal{Value: n.Value, Location: n.Location}
	case *BinaryExpr:
		return &BinaryExpr{Op: n.Op, Left: CloneExpr(n.Left), Right: CloneExpr(n.Right), Location: n.Location}
	case *UnaryExpr:
		return &UnaryExpr{Op: n.Op, Operand: CloneExpr(n.Operand), Location: n.Location}
	case *CallExpr:
		out := &CallExpr{Func: n.Func, Location: n.Location}
		for _, a := range n.Args {
			out.Args = append(out.Args, CloneExpr(a))
		}
		return out
	case *ListExpr:
		out := &ListExpr{Location: n.Location}
		for _, it := range n.Items {
			out.Items = append(out.Items, CloneExpr(it))
		}
		return out
	case *StructExpr:
		out := &StructExpr{Location: n.Location}
		for _, f := range n.Fields {
			out.Fields = append(out.Fields, &StructField{Name: f.Name, Value: CloneExpr(f.Value)})
		}
		return out
	case *SpliceExpr:
		return &SpliceExpr{Location: n.Location}
	case *QueryExpr:
		// Sub-queries are shared, not cloned; cloning a condition never
		// needs to duplicate a whole query tree.
		return &QueryExpr{Query: n.Query, Location: n.Location}
	default:
		return e
	}
}
