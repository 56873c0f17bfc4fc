package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/amodell/mailsnap/internal/thread"
	"github.com/amodell/mailsnap/internal/view"
)

// handleSearchKeys handles input while the search bar is focused.
func (m Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchActive = false
		m.searchInput.Blur()
		return m, nil

	case "esc":
		m.searchActive = false
		m.searchInput.Blur()
		m.searchInput.SetValue("")
		m.debounceID++
		m.searchBusy = false
		m.matches = nil
		m.state = m.state.WithQuery("")
		m.rebuild()
		return m, nil

	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	default:
		var cmd tea.Cmd
		m.searchInput, cmd = m.searchInput.Update(msg)

		// Each keystroke restarts the debounce timer; stale timers are
		// dropped by id.
		queryText := m.searchInput.Value()
		m.debounceID++
		debounceID := m.debounceID
		debounce := tea.Tick(m.debounce, func(time.Time) tea.Msg {
			return searchDebounceMsg{query: queryText, debounceID: debounceID}
		})
		return m, tea.Batch(cmd, debounce)
	}
}

// handleKeys handles navigation keys outside the search bar.
func (m Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	}

	switch m.level {
	case levelThreads:
		return m.handleThreadsKeys(msg)
	case levelMessages:
		return m.handleMessagesKeys(msg)
	case levelThread:
		return m.handleThreadViewKeys(msg)
	case levelDetail:
		return m.handleDetailKeys(msg)
	}
	return m, nil
}

func (m Model) handleThreadsKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "j", "down":
		if m.threadCursor < len(m.rollup)-1 {
			m.threadCursor++
		}
	case "k", "up":
		if m.threadCursor > 0 {
			m.threadCursor--
		}
	case "g", "home":
		m.threadCursor = 0
	case "G", "end":
		if len(m.rollup) > 0 {
			m.threadCursor = len(m.rollup) - 1
		}
	case "enter":
		if m.threadCursor < len(m.rollup) {
			key := thread.ParseKey(m.rollup[m.threadCursor].ThreadKey)
			return m, m.loadThread(key)
		}
	case "tab", "m":
		m.level = levelMessages
	}

	m.clampThreadScroll()
	return m, nil
}

func (m Model) handleMessagesKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "j", "down":
		if m.cursor < len(m.filtered)-1 {
			m.cursor++
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "g", "home":
		m.cursor = 0
	case "G", "end":
		m.cursor = len(m.filtered) - 1
		if m.cursor < 0 {
			m.cursor = 0
		}
	case "enter":
		if m.cursor < len(m.filtered) {
			msg := m.filtered[m.cursor]
			m.detail = &msg
			m.selectedID = msg.ID
			m.detailBody = ""
			m.detailScroll = 0
			m.level = levelDetail
			return m, m.loadBody(msg.ID)
		}
	case "/":
		m.searchActive = true
		m.searchInput.Focus()
		return m, nil
	case "f":
		m.state.Classification = cycleClassification(m.state.Classification)
		m.rebuild()
	case "s":
		m.state.Sort = cycleSort(m.state.Sort)
		m.rebuild()
	case "i":
		m.state.Importance = cycleImportance(m.state.Importance)
		m.rebuild()
	case "t":
		m.state.HasThread = cycleHasThread(m.state.HasThread)
		m.rebuild()
	case "tab", "esc":
		m.level = levelThreads
	}

	m.scroll = m.scrollForCursor()
	return m, nil
}

func (m Model) handleThreadViewKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "j", "down":
		m.threadScroll++
	case "k", "up":
		if m.threadScroll > 0 {
			m.threadScroll--
		}
	case "esc", "backspace":
		m.level = levelThreads
	}
	return m, nil
}

func (m Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "j", "down":
		m.detailScroll++
	case "k", "up":
		if m.detailScroll > 0 {
			m.detailScroll--
		}
	case "g", "home":
		m.detailScroll = 0
	case "esc", "backspace":
		m.level = levelMessages
		m.detail = nil
		m.detailBody = ""
	}
	return m, nil
}

// clampThreadScroll keeps the thread cursor visible in the fixed-height
// roll-up rows. Roll-up rows are always one line, so no estimator is needed.
func (m *Model) clampThreadScroll() {
	viewport := m.listHeight()
	if m.threadCursor < m.threadScroll {
		m.threadScroll = m.threadCursor
	}
	if m.threadCursor >= m.threadScroll+viewport {
		m.threadScroll = m.threadCursor - viewport + 1
	}
}

func cycleClassification(c view.Classification) view.Classification {
	switch c {
	case view.ClassificationUser:
		return view.ClassificationAdmin
	case view.ClassificationAdmin:
		return view.ClassificationAll
	default:
		return view.ClassificationUser
	}
}

func cycleSort(s view.Sort) view.Sort {
	switch s {
	case view.SortNewest:
		return view.SortOldest
	case view.SortOldest:
		return view.SortSubject
	case view.SortSubject:
		return view.SortSender
	case view.SortSender:
		return view.SortLongest
	default:
		return view.SortNewest
	}
}

func cycleImportance(i string) string {
	switch i {
	case "":
		return "urgent"
	case "urgent":
		return "high"
	case "high":
		return "normal"
	case "normal":
		return "low"
	default:
		return ""
	}
}

func cycleHasThread(v *bool) *bool {
	t, f := true, false
	switch {
	case v == nil:
		return &t
	case *v:
		return &f
	default:
		return nil
	}
}
