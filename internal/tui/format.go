package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"

	"github.com/amodell/mailsnap/internal/query"
	"github.com/amodell/mailsnap/internal/search"
)

// truncate shortens s to fit width display cells, appending an ellipsis when
// it cuts. Width-aware so CJK subjects do not overflow their column.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return runewidth.Truncate(s, width-1, "") + "…"
}

// truncateStyled shortens a string that may carry ANSI escape sequences.
// Escape bytes have zero display width, so plain rune truncation would cut
// mid-sequence and leak styling into the rest of the row.
func truncateStyled(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if ansi.StringWidth(s) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return ansi.Truncate(s, width-1, "") + "…"
}

// pad right-pads s with spaces to exactly width display cells, truncating
// when it is too long.
func pad(s string, width int) string {
	s = truncate(s, width)
	return s + strings.Repeat(" ", width-runewidth.StringWidth(s))
}

// importanceBadge renders a short marker for non-normal importance levels.
func importanceBadge(importance string) string {
	switch importance {
	case query.ImportanceUrgent:
		return urgentStyle.Render("!!")
	case query.ImportanceHigh:
		return highStyle.Render("! ")
	case query.ImportanceLow:
		return lowStyle.Render("· ")
	default:
		return "  "
	}
}

// shortTimestamp trims an ISO-like timestamp to date plus minutes.
func shortTimestamp(ts string) string {
	if len(ts) >= 16 {
		return strings.Replace(ts[:16], "T", " ", 1)
	}
	return ts
}

// formatCount renders a message count as "N msg"/"N msgs".
func formatCount(n int64) string {
	if n == 1 {
		return "1 msg"
	}
	return fmt.Sprintf("%d msgs", n)
}

// searchTerms extracts the distinct term texts from a parsed query, for
// highlighting matches in rendered rows.
func searchTerms(queryText string) []string {
	var terms []string
	seen := make(map[string]bool)
	var walk func(e search.Expr)
	walk = func(e search.Expr) {
		switch n := e.(type) {
		case search.Term:
			lower := strings.ToLower(n.Text)
			if n.Text != "" && !seen[lower] {
				seen[lower] = true
				terms = append(terms, n.Text)
			}
		case search.Not:
			// Negated terms match nothing on screen.
		case search.And:
			walk(n.Left)
			walk(n.Right)
		case search.Or:
			walk(n.Left)
			walk(n.Right)
		}
	}
	for _, root := range search.Parse(queryText) {
		walk(root)
	}
	return terms
}

// highlightTerms wraps case-insensitive occurrences of the query's terms in
// the highlight style. Operates on runes so multi-byte lowering cannot skew
// offsets.
func highlightTerms(text, queryText string) string {
	terms := searchTerms(queryText)
	if len(terms) == 0 || text == "" {
		return text
	}

	textRunes := []rune(text)
	lowerRunes := []rune(strings.ToLower(text))

	type span struct{ start, end int }
	var spans []span
	for _, term := range terms {
		termRunes := []rune(strings.ToLower(term))
		if len(termRunes) == 0 {
			continue
		}
		for i := 0; i+len(termRunes) <= len(lowerRunes); i++ {
			match := true
			for j := range termRunes {
				if lowerRunes[i+j] != termRunes[j] {
					match = false
					break
				}
			}
			if match {
				spans = append(spans, span{i, i + len(termRunes)})
				i += len(termRunes) - 1
			}
		}
	}
	if len(spans) == 0 {
		return text
	}

	for i := 1; i < len(spans); i++ {
		for j := i; j > 0 && spans[j].start < spans[j-1].start; j-- {
			spans[j], spans[j-1] = spans[j-1], spans[j]
		}
	}
	merged := spans[:1]
	for _, sp := range spans[1:] {
		last := &merged[len(merged)-1]
		if sp.start <= last.end {
			if sp.end > last.end {
				last.end = sp.end
			}
		} else {
			merged = append(merged, sp)
		}
	}

	var sb strings.Builder
	prev := 0
	for _, sp := range merged {
		sb.WriteString(string(textRunes[prev:sp.start]))
		sb.WriteString(highlightStyle.Render(string(textRunes[sp.start:sp.end])))
		prev = sp.end
	}
	sb.WriteString(string(textRunes[prev:]))
	return sb.String()
}
