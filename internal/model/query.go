package model

import "github.com/cdmlang/cdml/internal/location"

// QueryOp distinguishes the three query tree node shapes.
type QueryOp int

const (
	OpSelect QueryOp = iota
	OpUnion
	OpJoin
)

// Query is one select, join or union node of a view's query tree.
type Query struct {
	Op       QueryOp
	Location location.Location

	// From is the source tree of a select.
	From *TableRef
	// Branches are the arms of a union. Element inference runs on the
	// first branch; the others must match by name.
	Branches []*Query

	Columns   []*Column
	Excluding []string
	Where     Expr
	// Mixins are associations declared inside the query, visible only to
	// it and its ON conditions.
	Mixins *Members

	// TableAliases maps alias name → source, filled during inference.
	TableAliases map[string]*TableAlias
	// AliasOrder lists the aliases in FROM clause order; wildcard
	// expansion walks sources in this order.
	AliasOrder []*TableAlias
	// Combined is the multiset of source elements visible for wildcard
	// expansion and unqualified column references. A name mapping to more
	// than one entry is ambiguous until disambiguated.
	Combined map[string][]*CombinedEntry

	// Elements is the query's inferred output, in column order. Populated
	// once and never re-ordered.
	Elements *Members
}

// TableRef is a node in the FROM tree: a direct source reference, a join of
// two sub-trees, or a nested sub-query.
type TableRef struct {
	// Ref is set for direct sources.
	Ref *Reference
	// Left/Right/JoinOp/On are set for joins.
	Left, Right *TableRef
	JoinOp      string
	On          Expr
	// SubQuery is set for a select used as a source.
	SubQuery *Query

	Alias    string
	Location location.Location
}

// IsJoin reports whether the node joins two sources.
func (t *TableRef) IsJoin() bool { return t.Left != nil && t.Right != nil }

// TableAlias is one named source of a query.
type TableAlias struct {
	Name string
	Ref  *TableRef
	// Artifact is the resolved source: the referenced entity/view, or the
	// synthetic elements holder of a sub-query.
	Artifact *Definition
	Location location.Location
}

// CombinedEntry records that a source element is visible under its name in
// a query, and through which alias.
type CombinedEntry struct {
	Alias   *TableAlias
	Element *Definition
}

// Column is one entry of a query's column list.
type Column struct {
	// Wildcard marks the "*" column.
	Wildcard bool
	Expr     Expr
	// Alias is the explicit output name; "" means the name is derived
	// from the expression's last path step.
	Alias string
	// Key is the explicit primary-key marker; nil means unspecified and
	// eligible for key propagation.
	Key *bool
	// Inline splices the sub-columns into the enclosing element list;
	// Expand nests them under this column's element.
	Inline []*Column
	Expand []*Column
	// ExcludingInline applies to a nested wildcard.
	ExcludingInline []string
	Location        location.Location
}

// Name returns the output element name of a non-wildcard column, or "" when
// the column needs an explicit alias but has none (reported by the loader).
func (c *Column) Name() string {
	if c.Alias != "" {
		return c.Alias
	}
	if ref, ok := c.Expr.(*RefExpr); ok && len(ref.Ref.Path) > 0 {
		return ref.Ref.Path[len(ref.Ref.Path)-1].ID
	}
	return ""
}

// RedirectionRecord is attached to an association whose declared target
// differs from its original target. Computed once, consumed by the
// ON/foreign-key rewrite, never mutated after.
//
// Chain holds the intermediate projections connecting the new target back
// to the original, outermost first. The rewrite itself only needs NewTarget:
// projections keep their source element names, so foreign keys and ON
// references re-resolve directly against the new target's elements without
// walking the lineage. The chain stays available for tooling that reports
// or inspects how a target was reached.
type RedirectionRecord struct {
	Original  *Definition
	NewTarget *Definition
	Chain     []*Definition
	// Explicit is set when the model author redirected by hand rather
	// than the resolver searching for a reachable projection.
	Explicit bool
}
