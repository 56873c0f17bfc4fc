package search

import (
	"strings"
)

// tokenKind classifies a query token.
type tokenKind int

const (
	tokTerm tokenKind = iota
	tokAnd
	tokOr
	tokNot
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
}

// tokenize splits a query into terms, operators, and parentheses. Quoted
// phrases keep their spaces and are never classified as operators, so
// searching for the literal word "and" is possible by quoting it.
func tokenize(query string) []token {
	var tokens []token
	var current strings.Builder
	inQuotes := false

	flush := func(quoted bool) {
		if current.Len() == 0 && !quoted {
			return
		}
		text := current.String()
		current.Reset()
		if quoted {
			tokens = append(tokens, token{kind: tokTerm, text: text})
			return
		}
		tokens = append(tokens, classify(text))
	}

	for _, r := range query {
		switch {
		case r == '"':
			if inQuotes {
				inQuotes = false
				flush(true)
			} else {
				flush(false)
				inQuotes = true
			}
		case inQuotes:
			current.WriteRune(r)
		case r == '(' || r == ')':
			flush(false)
			kind := tokLParen
			if r == ')' {
				kind = tokRParen
			}
			tokens = append(tokens, token{kind: kind, text: string(r)})
		case r == ' ' || r == '\t' || r == '\n':
			flush(false)
		default:
			current.WriteRune(r)
		}
	}
	// An unterminated quote is treated as running to end of input.
	flush(inQuotes)

	return tokens
}

// classify maps a bare word to an operator token or a term. Only the exact
// operator spellings (case-insensitive) and the | alias are special; every
// other word, including ones that merely resemble operators, is a term.
func classify(word string) token {
	switch strings.ToUpper(word) {
	case "AND":
		return token{kind: tokAnd, text: word}
	case "OR", "|":
		return token{kind: tokOr, text: word}
	case "NOT":
		return token{kind: tokNot, text: word}
	}
	return token{kind: tokTerm, text: word}
}

// operator precedence; higher binds tighter.
func precedence(kind tokenKind) int {
	switch kind {
	case tokNot:
		return 3
	case tokAnd:
		return 2
	case tokOr:
		return 1
	}
	return 0
}

// Parse compiles a query string into a stream of root expressions via
// shunting-yard. Adjacent terms with no operator between them stay separate
// roots rather than being folded into an implicit AND; evaluation joins
// roots conjunctively in both lowerings, which keeps the two forms
// equivalent.
//
// Parsing is deliberately lenient: stray close-parens are dropped,
// operators missing an operand collapse to whatever operand exists, and
// unclosed groups end at end of input. The query box is interactive, and a
// hard error on every half-typed paren would fight the user.
func Parse(query string) []Expr {
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return nil
	}

	var output []Expr
	var ops []token

	apply := func(op token) {
		switch op.kind {
		case tokNot:
			if len(output) == 0 {
				return // dangling NOT, drop it
			}
			output[len(output)-1] = Not{Expr: output[len(output)-1]}
		case tokAnd, tokOr:
			if len(output) < 2 {
				return // dangling binary operator, keep the lone operand
			}
			right := output[len(output)-1]
			left := output[len(output)-2]
			output = output[:len(output)-2]
			if op.kind == tokAnd {
				output = append(output, And{Left: left, Right: right})
			} else {
				output = append(output, Or{Left: left, Right: right})
			}
		}
	}

	for _, tok := range tokens {
		switch tok.kind {
		case tokTerm:
			output = append(output, Term{Text: tok.text})
		case tokNot:
			// Right-associative: only strictly higher precedence pops.
			for len(ops) > 0 && ops[len(ops)-1].kind != tokLParen &&
				precedence(ops[len(ops)-1].kind) > precedence(tok.kind) {
				apply(ops[len(ops)-1])
				ops = ops[:len(ops)-1]
			}
			ops = append(ops, tok)
		case tokAnd, tokOr:
			for len(ops) > 0 && ops[len(ops)-1].kind != tokLParen &&
				precedence(ops[len(ops)-1].kind) >= precedence(tok.kind) {
				apply(ops[len(ops)-1])
				ops = ops[:len(ops)-1]
			}
			ops = append(ops, tok)
		case tokLParen:
			ops = append(ops, tok)
		case tokRParen:
			for len(ops) > 0 && ops[len(ops)-1].kind != tokLParen {
				apply(ops[len(ops)-1])
				ops = ops[:len(ops)-1]
			}
			if len(ops) > 0 {
				ops = ops[:len(ops)-1] // discard the matching lparen
			}
			// No matching lparen: stray close-paren, ignored.
		}
	}

	for len(ops) > 0 {
		op := ops[len(ops)-1]
		ops = ops[:len(ops)-1]
		if op.kind == tokLParen {
			continue // unclosed group runs to end of input
		}
		apply(op)
	}

	return output
}
