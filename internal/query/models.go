// Package query provides read-only query operations over a loaded mailbox
// snapshot. It serves the thread synthesizer, the view pipeline, and every
// outward surface (TUI, API, MCP) from the same engine interface.
package query

import "strings"

// Importance levels recognized in snapshots. Anything else normalizes to
// ImportanceNormal.
const (
	ImportanceUrgent = "urgent"
	ImportanceHigh   = "high"
	ImportanceNormal = "normal"
	ImportanceLow    = "low"
)

// NormalizeImportance lowercases v and maps unrecognized or empty values to
// ImportanceNormal.
func NormalizeImportance(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case ImportanceUrgent:
		return ImportanceUrgent
	case ImportanceHigh:
		return ImportanceHigh
	case ImportanceLow:
		return ImportanceLow
	default:
		return ImportanceNormal
	}
}

// Project labels messages in a snapshot.
type Project struct {
	ID       int64
	Slug     string
	HumanKey string
}

// Message is a single snapshot message. ThreadID is nil or empty for
// singleton messages that never joined an explicit thread.
type Message struct {
	ID         int64
	Subject    string
	ThreadID   *string
	CreatedTS  string
	Importance string
	ProjectID  int64
	SenderID   int64
}

// MessageOverview enriches a Message with display fields resolved at query
// time. BodyLen carries the full body length so views can sort by it without
// loading bodies; BodyPrefix holds the leading body text for classification
// and Snippet is its truncated single-line form for list rows.
type MessageOverview struct {
	Message
	SenderName      string
	ProjectSlug     string
	ProjectHumanKey string
	BodyPrefix      string
	Snippet         string
	BodyLen         int64
}

// ThreadRollupRow is one row of the thread roll-up: a distinct thread key
// with its message count and latest-message summary fields.
type ThreadRollupRow struct {
	ThreadKey        string
	MessageCount     int64
	LastCreatedTS    string
	LatestSubject    string
	LatestImportance string
	LatestSnippet    string
}

// snippetLen bounds list-row snippets. Bodies are truncated at the query
// layer so list views never hold full markdown in memory.
const snippetLen = 120

// Snippet truncates body to snippetLen runes, collapsing the cut with an
// ellipsis. Newlines are flattened so snippets stay single-line.
func Snippet(body string) string {
	flat := strings.Join(strings.Fields(body), " ")
	runes := []rune(flat)
	if len(runes) <= snippetLen {
		return flat
	}
	return string(runes[:snippetLen]) + "…"
}
