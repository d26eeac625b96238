// Package rql parses the resource query language used by segmentation
// filters, e.g.
//
//	and(eq(page_name,pricing),in(button_clicked,(buy,subscribe)))
//	eq(location,Berlin)&gt(time_stayed,30)
//
// Parsing only checks syntax and operator arity. Field names and value
// types are checked by whoever compiles the tree.
package rql

import "errors"

// ErrInvalidQuery is wrapped by every parse failure.
var ErrInvalidQuery = errors.New("invalid query")

// Op is an RQL operator name.
type Op string

const (
	OpAnd   Op = "and"
	OpOr    Op = "or"
	OpNot   Op = "not"
	OpEq    Op = "eq"
	OpNe    Op = "ne"
	OpLt    Op = "lt"
	OpLe    Op = "le"
	OpGt    Op = "gt"
	OpGe    Op = "ge"
	OpIn    Op = "in"
	OpOut   Op = "out"
	OpLike  Op = "like"
	OpILike Op = "ilike"
)

// IsLogical reports whether op combines child nodes.
func (op Op) IsLogical() bool {
	return op == OpAnd || op == OpOr || op == OpNot
}

// LiteralKind distinguishes typed literals from plain text values.
type LiteralKind int

const (
	LiteralText LiteralKind = iota
	LiteralNull
	LiteralTrue
	LiteralFalse
)

// Value is a single operand. Text is already unescaped.
type Value struct {
	Text   string
	Kind   LiteralKind
	Quoted bool
}

// IsNull reports whether v is the null() literal.
func (v Value) IsNull() bool { return v.Kind == LiteralNull }

// Node is one operator application. Logical nodes use Children;
// comparison nodes use Field and Values.
type Node struct {
	Op       Op
	Field    string
	Values   []Value
	Children []*Node
}

// Walk visits n and all descendants depth-first.
func (n *Node) Walk(fn func(*Node)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Fields returns every field name referenced by the tree, in order of
// first appearance.
func (n *Node) Fields() []string {
	seen := map[string]bool{}
	var out []string
	n.Walk(func(c *Node) {
		if c.Field != "" && !seen[c.Field] {
			seen[c.Field] = true
			out = append(out, c.Field)
		}
	})
	return out
}
