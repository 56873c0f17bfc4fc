package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/amodell/mailsnap/internal/query"
)

// chromeLines is the fixed vertical chrome around list rows: title, column
// header, and the two-line footer.
const chromeLines = 4

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("243"))
	cursorStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Background(lipgloss.Color("57"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	urgentStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	highStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	lowStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("63"))
	errStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	adminStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))
)

// View implements tea.Model. Byte-identical frames are served from the
// cache so downstream diffing sees a stable pointer-equal string.
func (m Model) View() string {
	out := m.render()
	if out == m.cache.out {
		return m.cache.out
	}
	m.cache.out = out
	return out
}

func (m Model) render() string {
	if m.quitting {
		return ""
	}
	if m.err != nil {
		return errStyle.Render("error: "+m.err.Error()) + "\n\npress q to quit\n"
	}
	if m.loading {
		return titleStyle.Render("mailsnap "+m.version) + "\n\nloading snapshot…\n"
	}

	switch m.level {
	case levelMessages:
		return m.renderMessages()
	case levelThread:
		return m.renderThreadView()
	case levelDetail:
		return m.renderDetail()
	default:
		return m.renderThreads()
	}
}

func (m Model) renderThreads() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(fmt.Sprintf("mailsnap %s — threads (%d)", m.version, len(m.rollup))))
	sb.WriteString("\n")
	sb.WriteString(headerStyle.Render(pad("latest", 17) + "  " + pad("subject", m.subjectWidth()) + "  count"))
	sb.WriteString("\n")

	viewport := m.listHeight()
	end := m.threadScroll + viewport
	if end > len(m.rollup) {
		end = len(m.rollup)
	}
	if len(m.rollup) == 0 {
		sb.WriteString(dimStyle.Render("no threads"))
		sb.WriteString("\n")
	}
	for i := m.threadScroll; i < end; i++ {
		row := m.rollup[i]
		line := pad(shortTimestamp(row.LastCreatedTS), 17) + "  " +
			importanceBadge(row.LatestImportance) +
			pad(row.LatestSubject, m.subjectWidth()-2) + "  " +
			formatCount(row.MessageCount)
		if i == m.threadCursor {
			line = cursorStyle.Render(line)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	sb.WriteString(dimStyle.Render("\nenter: open thread · tab: messages · q: quit"))
	return sb.String()
}

// renderMessages renders the filtered message list through the virtualizer:
// only rows inside the window are materialized, so render cost stays flat
// however large the snapshot is.
func (m Model) renderMessages() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(fmt.Sprintf("mailsnap %s — messages (%d/%d)", m.version, len(m.filtered), len(m.overviews))))
	sb.WriteString("\n")
	sb.WriteString(m.searchLine())
	sb.WriteString("\n")

	window := ComputeWindow(len(m.filtered), m.estimator.Estimate(), m.listHeight(), m.scroll, m.overscan)
	if !window.Contains(m.cursor) && len(m.filtered) > 0 {
		// The cursor must always be materialized; widen toward it.
		window = ComputeWindow(len(m.filtered), m.estimator.Estimate(), m.listHeight(), int(float64(m.cursor)*m.estimator.Estimate()), m.overscan)
	}

	heights := make([]int, 0, window.Len())
	for i := window.Start; i < window.End; i++ {
		row := m.renderMessageRow(m.filtered[i], i == m.cursor)
		heights = append(heights, strings.Count(row, "\n")+1)
		sb.WriteString(row)
		sb.WriteString("\n")
	}
	m.estimator.Observe(heights)

	if len(m.filtered) == 0 {
		sb.WriteString(dimStyle.Render("no messages match the current view"))
		sb.WriteString("\n")
	}

	sb.WriteString(m.footer())
	return sb.String()
}

func (m Model) renderMessageRow(msg query.MessageOverview, selected bool) string {
	header := pad(shortTimestamp(msg.CreatedTS), 17) + "  " +
		importanceBadge(msg.Importance) +
		pad(msg.SenderName, 14) + "  " +
		truncateStyled(highlightTerms(msg.Subject, m.state.Query), m.subjectWidth())
	snippet := "                   " + dimStyle.Render(truncateStyled(highlightTerms(msg.Snippet, m.state.Query), m.bodyWidth()))
	if selected {
		header = cursorStyle.Render(header)
	}
	return header + "\n" + snippet
}

func (m Model) renderThreadView() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(fmt.Sprintf("thread %s (%d messages)", m.openThread, len(m.threadMessages))))
	sb.WriteString("\n\n")

	viewport := m.listHeight()
	lines := make([]string, 0, len(m.threadMessages)*3)
	for _, msg := range m.threadMessages {
		lines = append(lines,
			headerStyle.Render(shortTimestamp(msg.CreatedTS)+"  "+msg.SenderName)+importanceBadge(msg.Importance),
			"  "+truncate(msg.Subject, m.bodyWidth()),
			"  "+dimStyle.Render(truncate(msg.Snippet, m.bodyWidth())),
		)
	}
	start := m.threadScroll
	if start > len(lines) {
		start = len(lines)
	}
	end := start + viewport
	if end > len(lines) {
		end = len(lines)
	}
	sb.WriteString(strings.Join(lines[start:end], "\n"))

	sb.WriteString(dimStyle.Render("\n\nesc: back · j/k: scroll · q: quit"))
	return sb.String()
}

func (m Model) renderDetail() string {
	if m.detail == nil {
		return ""
	}
	msg := m.detail

	var sb strings.Builder
	sb.WriteString(titleStyle.Render(truncate(msg.Subject, m.bodyWidth())))
	sb.WriteString("\n")
	sb.WriteString(headerStyle.Render("from: ") + msg.SenderName)
	if recipients := m.roster[msg.ID]; recipients != "" {
		sb.WriteString(headerStyle.Render("  to: ") + recipients)
	}
	sb.WriteString("\n")
	sb.WriteString(headerStyle.Render("date: ") + msg.CreatedTS)
	sb.WriteString(headerStyle.Render("  project: ") + msg.ProjectSlug)
	sb.WriteString(headerStyle.Render("  importance: ") + msg.Importance)
	sb.WriteString("\n\n")

	body := m.detailBody
	if body == "" {
		body = dimStyle.Render("loading body…")
	}
	lines := strings.Split(body, "\n")
	start := m.detailScroll
	if start > len(lines) {
		start = len(lines)
	}
	end := start + m.listHeight()
	if end > len(lines) {
		end = len(lines)
	}
	sb.WriteString(strings.Join(lines[start:end], "\n"))

	sb.WriteString(dimStyle.Render("\n\nesc: back · j/k: scroll · q: quit"))
	return sb.String()
}

func (m Model) searchLine() string {
	if m.searchActive {
		return "search: " + m.searchInput.View()
	}
	if m.state.Searching() {
		note := ""
		if m.searchBusy {
			note = dimStyle.Render(" (searching…)")
		}
		return "search: " + highlightStyle.Render(m.state.Query) + note + dimStyle.Render("  (/ to edit, esc in bar to clear)")
	}
	return dimStyle.Render("/: search · f: " + m.classificationLabel() + " · s: sort " + m.state.Sort.String() + m.filterSummary())
}

func (m Model) footer() string {
	return dimStyle.Render("enter: open · /: search · f: class · s: sort · i: importance · t: thread · tab: threads · q: quit")
}

func (m Model) classificationLabel() string {
	return "showing " + m.state.Classification.String()
}

func (m Model) filterSummary() string {
	var parts []string
	if m.state.Importance != "" {
		parts = append(parts, "importance="+m.state.Importance)
	}
	if m.state.HasThread != nil {
		if *m.state.HasThread {
			parts = append(parts, "threaded")
		} else {
			parts = append(parts, "singletons")
		}
	}
	if m.state.Project != "" {
		parts = append(parts, "project="+m.state.Project)
	}
	if m.state.Sender != "" {
		parts = append(parts, "sender="+m.state.Sender)
	}
	if len(parts) == 0 {
		return ""
	}
	return " · " + strings.Join(parts, " ")
}

func (m Model) subjectWidth() int {
	w := m.width - 46
	if w < 20 {
		w = 20
	}
	return w
}

func (m Model) bodyWidth() int {
	w := m.width - 21
	if w < 20 {
		w = 20
	}
	return w
}
