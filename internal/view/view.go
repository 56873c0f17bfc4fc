// Package view filters and sorts the in-memory message set for display.
// State is an immutable value; Apply is pure and always returns a fresh
// slice, so no view ever mutates another view's backing data.
package view

import (
	"sort"
	"strings"

	"github.com/amodell/mailsnap/internal/query"
	"github.com/amodell/mailsnap/internal/search"
	"github.com/amodell/mailsnap/internal/thread"
)

// Classification selects messages by provenance.
type Classification int

const (
	// ClassificationUser hides administrative messages. The default view.
	ClassificationUser Classification = iota
	// ClassificationAdmin shows only administrative messages.
	ClassificationAdmin
	// ClassificationAll shows everything.
	ClassificationAll
)

func (c Classification) String() string {
	switch c {
	case ClassificationUser:
		return "user"
	case ClassificationAdmin:
		return "admin"
	case ClassificationAll:
		return "all"
	default:
		return "unknown"
	}
}

// Sort selects the display order.
type Sort int

const (
	SortNewest Sort = iota
	SortOldest
	SortSubject
	SortSender
	SortLongest
)

func (s Sort) String() string {
	switch s {
	case SortNewest:
		return "newest"
	case SortOldest:
		return "oldest"
	case SortSubject:
		return "subject"
	case SortSender:
		return "sender"
	case SortLongest:
		return "longest"
	default:
		return "unknown"
	}
}

// State holds the active filters, search query, and sort order. Empty
// string fields mean "no filter". Values are compared exactly; recipient
// matching in particular is exact against each roster entry, never
// substring containment, so "Alice" can never match "Alicia".
type State struct {
	Project        string
	Sender         string
	Recipient      string
	Importance     string
	HasThread      *bool
	Classification Classification
	Query          string
	Sort           Sort
}

// WithQuery returns a copy of s with the search query replaced.
func (s State) WithQuery(q string) State {
	s.Query = q
	return s
}

// Searching reports whether a non-empty search query is active.
func (s State) Searching() bool {
	return strings.TrimSpace(s.Query) != ""
}

// Apply filters and sorts messages per state. roster maps message id to its
// comma-joined recipient names; matches is the id set from the search
// backend and is consulted only when a query is active. The input slice is
// never mutated.
func Apply(state State, messages []query.MessageOverview, roster map[int64]string, matches search.IDSet) []query.MessageOverview {
	searching := state.Searching()

	out := make([]query.MessageOverview, 0, len(messages))
	for _, m := range messages {
		if searching && !matches.Contains(m.ID) {
			continue
		}
		if !matchesFilters(state, m, roster[m.ID]) {
			continue
		}
		out = append(out, m)
	}

	sortView(state.Sort, out)
	return out
}

// RetainSelection returns selected when it is still present in view, else
// zero. Selection never survives a filter change that hides the message.
func RetainSelection(view []query.MessageOverview, selected int64) int64 {
	if selected == 0 {
		return 0
	}
	for _, m := range view {
		if m.ID == selected {
			return selected
		}
	}
	return 0
}

func matchesFilters(state State, m query.MessageOverview, recipients string) bool {
	if state.Project != "" && m.ProjectSlug != state.Project && m.ProjectHumanKey != state.Project {
		return false
	}
	if state.Sender != "" && m.SenderName != state.Sender {
		return false
	}
	if state.Recipient != "" && !recipientMatch(recipients, state.Recipient) {
		return false
	}
	if state.Importance != "" && !strings.EqualFold(state.Importance, m.Importance) {
		return false
	}
	if state.HasThread != nil {
		has := m.ThreadID != nil && *m.ThreadID != ""
		if has != *state.HasThread {
			return false
		}
	}
	switch state.Classification {
	case ClassificationUser:
		if thread.Administrative(m.Subject, m.BodyPrefix) {
			return false
		}
	case ClassificationAdmin:
		if !thread.Administrative(m.Subject, m.BodyPrefix) {
			return false
		}
	}
	return true
}

// recipientMatch splits the joined roster entry and compares each trimmed
// name exactly.
func recipientMatch(recipients, want string) bool {
	for _, name := range strings.Split(recipients, ",") {
		if strings.TrimSpace(name) == want {
			return true
		}
	}
	return false
}

// sortView orders v in place with a stable sort; ties keep the incoming
// (created_ts desc, id desc) order from the overview query.
func sortView(s Sort, v []query.MessageOverview) {
	var less func(a, b query.MessageOverview) bool
	switch s {
	case SortNewest:
		less = func(a, b query.MessageOverview) bool { return a.CreatedTS > b.CreatedTS }
	case SortOldest:
		less = func(a, b query.MessageOverview) bool { return a.CreatedTS < b.CreatedTS }
	case SortSubject:
		less = func(a, b query.MessageOverview) bool { return a.Subject < b.Subject }
	case SortSender:
		less = func(a, b query.MessageOverview) bool { return a.SenderName < b.SenderName }
	case SortLongest:
		less = func(a, b query.MessageOverview) bool { return a.BodyLen > b.BodyLen }
	default:
		return
	}
	sort.SliceStable(v, func(i, j int) bool { return less(v[i], v[j]) })
}
