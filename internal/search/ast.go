// Package search compiles boolean mailbox queries and evaluates them
// against a snapshot, preferring the full-text index and falling back to
// substring matching.
package search

// Expr is a node in a parsed boolean query.
type Expr interface {
	isExpr()
}

// Term is a bare word or quoted phrase to match against subject and body.
type Term struct {
	Text string
}

// Not negates its operand.
type Not struct {
	Expr Expr
}

// And requires both operands.
type And struct {
	Left, Right Expr
}

// Or requires either operand.
type Or struct {
	Left, Right Expr
}

func (Term) isExpr() {}
func (Not) isExpr()  {}
func (And) isExpr()  {}
func (Or) isExpr()   {}
