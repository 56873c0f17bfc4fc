// Package tui provides the terminal interface for browsing a loaded
// mailbox snapshot: thread roll-up, filtered message list, and message
// detail, following the Elm architecture.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/amodell/mailsnap/internal/query"
	"github.com/amodell/mailsnap/internal/search"
	"github.com/amodell/mailsnap/internal/thread"
	"github.com/amodell/mailsnap/internal/view"
)

// searchDebounceDelay is how long after the last keystroke a search query
// is issued. Latency shaping only; a committed query always runs.
const searchDebounceDelay = 300 * time.Millisecond

// level is the current navigation depth.
type level int

const (
	levelThreads level = iota
	levelMessages
	levelThread
	levelDetail
)

// Options configures the TUI. Zero values mean the defaults.
type Options struct {
	Version string
	// Overscan is how many rows beyond the viewport edge to render.
	Overscan int
	// RowHeight seeds the row-height estimate in lines.
	RowHeight int
	// SearchDebounce is how long after the last keystroke a query runs.
	SearchDebounce time.Duration
}

// Model is the main TUI model.
type Model struct {
	engine   query.Engine
	searcher *search.Searcher
	version  string
	overscan int
	debounce time.Duration

	level level

	// Snapshot data, loaded once at startup.
	rollup    []query.ThreadRollupRow
	overviews []query.MessageOverview
	roster    map[int64]string

	// Active filters/sort and the view derived from them.
	state    view.State
	filtered []query.MessageOverview
	matches  search.IDSet

	// Cursor and scroll per level. Message-list scrolling is in lines and
	// is translated to a render window by the virtualizer.
	threadCursor int
	threadScroll int
	cursor       int
	scroll       int
	selectedID   int64

	estimator *HeightEstimator
	cache     *renderCache

	// Thread drill-down.
	openThread     thread.Key
	threadMessages []query.MessageOverview

	// Detail view.
	detail       *query.MessageOverview
	detailBody   string
	detailScroll int

	// Search input.
	searchInput  textinput.Model
	searchActive bool
	debounceID   uint64
	searchBusy   bool

	width  int
	height int

	loading bool
	err     error

	quitting bool
}

// renderCache suppresses byte-identical re-renders. Held by pointer so the
// value-receiver View can update it.
type renderCache struct {
	out string
}

// New creates the TUI model over an already-loaded snapshot.
func New(engine query.Engine, searcher *search.Searcher, opts Options) Model {
	ti := textinput.New()
	ti.Placeholder = "search (AND OR NOT, \"quoted phrases\")"
	ti.CharLimit = 200
	ti.Width = 44

	overscan := opts.Overscan
	if overscan <= 0 {
		overscan = defaultOverscan
	}
	rowHeight := opts.RowHeight
	if rowHeight <= 0 {
		rowHeight = 2
	}
	debounce := opts.SearchDebounce
	if debounce <= 0 {
		debounce = searchDebounceDelay
	}

	return Model{
		engine:      engine,
		searcher:    searcher,
		version:     opts.Version,
		overscan:    overscan,
		debounce:    debounce,
		estimator:   NewHeightEstimator(float64(rowHeight)),
		cache:       &renderCache{},
		searchInput: ti,
		loading:     true,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadRollup(), m.loadOverviews())
}

type rollupLoadedMsg struct {
	rows []query.ThreadRollupRow
	err  error
}

type overviewsLoadedMsg struct {
	messages []query.MessageOverview
	roster   map[int64]string
	err      error
}

type threadLoadedMsg struct {
	key      thread.Key
	messages []query.Message
	err      error
}

type bodyLoadedMsg struct {
	id   int64
	body string
	err  error
}

type searchDebounceMsg struct {
	query      string
	debounceID uint64
}

type searchResultsMsg struct {
	query      string
	ids        search.IDSet
	err        error
	debounceID uint64
}

func (m Model) loadRollup() tea.Cmd {
	return func() tea.Msg {
		rows, err := m.engine.ThreadRollup(context.Background(), query.DefaultRollupLimit)
		return rollupLoadedMsg{rows: rows, err: err}
	}
}

func (m Model) loadOverviews() tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		messages, err := m.engine.MessagesOverview(ctx)
		if err != nil {
			return overviewsLoadedMsg{err: err}
		}
		roster, err := m.engine.RecipientsRoster(ctx)
		if err != nil {
			// The roster degrades to empty; messages still browse fine.
			roster = map[int64]string{}
		}
		return overviewsLoadedMsg{messages: messages, roster: roster}
	}
}

func (m Model) loadThread(key thread.Key) tea.Cmd {
	return func() tea.Msg {
		messages, err := m.engine.MessagesInThread(context.Background(), key.String())
		return threadLoadedMsg{key: key, messages: messages, err: err}
	}
}

func (m Model) loadBody(id int64) tea.Cmd {
	return func() tea.Msg {
		body, err := m.engine.MessageBody(context.Background(), id)
		return bodyLoadedMsg{id: id, body: body, err: err}
	}
}

func (m Model) runSearch(queryText string, debounceID uint64) tea.Cmd {
	return func() tea.Msg {
		ids, err := m.searcher.Search(context.Background(), queryText)
		return searchResultsMsg{query: queryText, ids: ids, err: err, debounceID: debounceID}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case rollupLoadedMsg:
		if msg.err != nil {
			// Degrade to an empty thread list; the message level still works.
			m.rollup = nil
			return m, nil
		}
		m.rollup = msg.rows
		return m, nil

	case overviewsLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.overviews = msg.messages
		m.roster = msg.roster
		m.rebuild()
		return m, nil

	case threadLoadedMsg:
		if msg.err != nil {
			// Degrade to an empty thread rather than killing the view.
			m.threadMessages = nil
			return m, nil
		}
		m.openThread = msg.key
		m.threadMessages = m.overviewsFor(msg.messages)
		m.level = levelThread
		m.threadScroll = 0
		return m, nil

	case bodyLoadedMsg:
		if m.detail == nil || m.detail.ID != msg.id {
			return m, nil
		}
		if msg.err != nil {
			m.detailBody = fmt.Sprintf("failed to load body: %v", msg.err)
			return m, nil
		}
		m.detailBody = msg.body
		return m, nil

	case searchDebounceMsg:
		if msg.debounceID != m.debounceID {
			return m, nil
		}
		m.searchBusy = true
		return m, m.runSearch(msg.query, msg.debounceID)

	case searchResultsMsg:
		if msg.debounceID != m.debounceID {
			return m, nil
		}
		m.searchBusy = false
		if msg.err != nil {
			// A broken search never blocks browsing; show everything.
			m.matches = nil
			m.state = m.state.WithQuery("")
			m.rebuild()
			return m, nil
		}
		m.matches = msg.ids
		m.state = m.state.WithQuery(msg.query)
		m.rebuild()
		return m, nil

	case tea.KeyMsg:
		if m.searchActive {
			return m.handleSearchKeys(msg)
		}
		return m.handleKeys(msg)
	}

	return m, nil
}

// rebuild recomputes the filtered view from the current state and clamps
// cursor, scroll, and selection to it.
func (m *Model) rebuild() {
	m.filtered = view.Apply(m.state, m.overviews, m.roster, m.matches)
	m.selectedID = view.RetainSelection(m.filtered, m.selectedID)
	if m.cursor >= len(m.filtered) {
		m.cursor = len(m.filtered) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.scroll = m.scrollForCursor()
}

// overviewsFor resolves thread messages against the loaded overview set so
// drill-down rows carry sender and project labels.
func (m Model) overviewsFor(messages []query.Message) []query.MessageOverview {
	byID := make(map[int64]query.MessageOverview, len(m.overviews))
	for _, o := range m.overviews {
		byID[o.ID] = o
	}
	out := make([]query.MessageOverview, 0, len(messages))
	for _, msg := range messages {
		if o, ok := byID[msg.ID]; ok {
			out = append(out, o)
		} else {
			out = append(out, query.MessageOverview{Message: msg})
		}
	}
	return out
}

// scrollForCursor keeps the cursor row inside the viewport after cursor
// moves, in estimated lines.
func (m Model) scrollForCursor() int {
	rowHeight := m.estimator.Estimate()
	cursorTop := int(float64(m.cursor) * rowHeight)
	viewport := m.listHeight()

	if cursorTop < m.scroll {
		return cursorTop
	}
	rowBottom := cursorTop + int(rowHeight)
	if rowBottom > m.scroll+viewport {
		return rowBottom - viewport
	}
	return m.scroll
}

// listHeight is the viewport height available to list rows, in lines.
func (m Model) listHeight() int {
	h := m.height - chromeLines
	if h < 1 {
		h = 1
	}
	return h
}
