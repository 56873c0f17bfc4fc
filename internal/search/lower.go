package search

import (
	"strings"
)

// LowerFullText renders the root expressions as an FTS5 MATCH string.
// Terms become bare words, or quoted phrases when they contain whitespace;
// embedded quotes are doubled per FTS5 quoting rules. Roots are joined by a
// space, which FTS5 treats conjunctively — matching how the substring
// lowering joins roots with AND.
func LowerFullText(roots []Expr) string {
	parts := make([]string, 0, len(roots))
	for _, e := range roots {
		if s := lowerFullTextExpr(e); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

func lowerFullTextExpr(e Expr) string {
	switch n := e.(type) {
	case Term:
		term := strings.ReplaceAll(n.Text, `"`, `""`)
		if term == "" {
			return ""
		}
		if strings.ContainsAny(term, " \t") {
			return `"` + term + `"`
		}
		return term
	case Not:
		inner := lowerFullTextExpr(n.Expr)
		if inner == "" {
			return ""
		}
		return "(NOT " + inner + ")"
	case And:
		return lowerFullTextBinary(n.Left, n.Right, "AND")
	case Or:
		return lowerFullTextBinary(n.Left, n.Right, "OR")
	}
	return ""
}

func lowerFullTextBinary(left, right Expr, op string) string {
	l := lowerFullTextExpr(left)
	r := lowerFullTextExpr(right)
	switch {
	case l == "":
		return r
	case r == "":
		return l
	}
	return "(" + l + " " + op + " " + r + ")"
}

// LowerSubstring renders the root expressions as a SQL predicate over a
// normalized subject and the message body, with one %term% argument pair
// per term. The group structure mirrors the AST exactly; roots are joined
// with AND.
func LowerSubstring(roots []Expr) (clause string, args []any) {
	parts := make([]string, 0, len(roots))
	for _, e := range roots {
		part, a := lowerSubstringExpr(e)
		if part == "" {
			continue
		}
		parts = append(parts, part)
		args = append(args, a...)
	}
	return strings.Join(parts, " AND "), args
}

func lowerSubstringExpr(e Expr) (string, []any) {
	switch n := e.(type) {
	case Term:
		if n.Text == "" {
			return "", nil
		}
		pattern := "%" + strings.ToLower(n.Text) + "%"
		return "(LOWER(m.subject) LIKE ? OR LOWER(m.body_md) LIKE ?)", []any{pattern, pattern}
	case Not:
		inner, args := lowerSubstringExpr(n.Expr)
		if inner == "" {
			return "", nil
		}
		return "(NOT " + inner + ")", args
	case And:
		return lowerSubstringBinary(n.Left, n.Right, "AND")
	case Or:
		return lowerSubstringBinary(n.Left, n.Right, "OR")
	}
	return "", nil
}

func lowerSubstringBinary(left, right Expr, op string) (string, []any) {
	l, largs := lowerSubstringExpr(left)
	r, rargs := lowerSubstringExpr(right)
	switch {
	case l == "":
		return r, rargs
	case r == "":
		return l, largs
	}
	return "(" + l + " " + op + " " + r + ")", append(largs, rargs...)
}
