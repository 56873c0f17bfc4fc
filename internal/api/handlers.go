package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/amodell/mailsnap/internal/query"
)

// StatsResponse represents snapshot statistics.
type StatsResponse struct {
	TotalMessages   int64 `json:"total_messages"`
	TotalProjects   int64 `json:"total_projects"`
	TotalAgents     int64 `json:"total_agents"`
	RecipientRows   int64 `json:"recipient_rows"`
	FullTextEnabled bool  `json:"fulltext_enabled"`
	SnapshotBytes   int64 `json:"snapshot_size_bytes"`
}

// ThreadSummary represents one thread roll-up row in list responses.
type ThreadSummary struct {
	Key           string `json:"key"`
	MessageCount  int64  `json:"message_count"`
	LastCreatedTS string `json:"last_created_ts"`
	Subject       string `json:"subject"`
	Importance    string `json:"importance"`
	Snippet       string `json:"snippet"`
}

// MessageSummary represents a message in list responses.
type MessageSummary struct {
	ID         int64  `json:"id"`
	Subject    string `json:"subject"`
	From       string `json:"from"`
	To         string `json:"to,omitempty"`
	Project    string `json:"project,omitempty"`
	ThreadKey  string `json:"thread_key,omitempty"`
	CreatedTS  string `json:"created_ts"`
	Importance string `json:"importance"`
	Snippet    string `json:"snippet"`
}

// MessageDetail represents a full message response.
type MessageDetail struct {
	MessageSummary
	Body string `json:"body"`
}

// SearchResult represents search results.
type SearchResult struct {
	Query    string           `json:"query"`
	Total    int              `json:"total"`
	Messages []MessageSummary `json:"messages"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, err string, message string) {
	writeJSON(w, status, ErrorResponse{Error: err, Message: message})
}

// handleStats returns snapshot statistics.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats.GetStats()
	if err != nil {
		s.logger.Error("failed to get stats", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to retrieve statistics")
		return
	}

	writeJSON(w, http.StatusOK, StatsResponse{
		TotalMessages:   stats.MessageCount,
		TotalProjects:   stats.ProjectCount,
		TotalAgents:     stats.AgentCount,
		RecipientRows:   stats.RecipientRows,
		FullTextEnabled: stats.FTSAvailable,
		SnapshotBytes:   stats.SnapshotSize,
	})
}

// handleThreads returns the thread roll-up.
func (s *Server) handleThreads(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	rollup, err := s.engine.ThreadRollup(r.Context(), limit)
	if err != nil {
		s.logger.Error("thread rollup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to build thread rollup")
		return
	}

	threads := make([]ThreadSummary, 0, len(rollup))
	for _, row := range rollup {
		threads = append(threads, ThreadSummary{
			Key:           row.ThreadKey,
			MessageCount:  row.MessageCount,
			LastCreatedTS: row.LastCreatedTS,
			Subject:       row.LatestSubject,
			Importance:    row.LatestImportance,
			Snippet:       row.LatestSnippet,
		})
	}
	writeJSON(w, http.StatusOK, threads)
}

// handleThread returns one thread's messages, ascending.
func (s *Server) handleThread(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	messages, err := s.engine.MessagesInThread(r.Context(), key)
	if err != nil {
		s.logger.Error("thread fetch failed", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to load thread")
		return
	}
	if len(messages) == 0 {
		writeError(w, http.StatusNotFound, "not_found", "No such thread")
		return
	}

	roster, err := s.engine.RecipientsRoster(r.Context())
	if err != nil {
		roster = map[int64]string{}
	}

	out := make([]MessageSummary, 0, len(messages))
	for _, m := range messages {
		out = append(out, MessageSummary{
			ID:         m.ID,
			Subject:    m.Subject,
			To:         roster[m.ID],
			ThreadKey:  key,
			CreatedTS:  m.CreatedTS,
			Importance: m.Importance,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleListMessages returns a paginated list of messages, newest first.
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	overviews, roster, err := s.loadOverviews(r)
	if err != nil {
		s.logger.Error("message list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to list messages")
		return
	}

	offset := (page - 1) * pageSize
	if offset > len(overviews) {
		offset = len(overviews)
	}
	end := offset + pageSize
	if end > len(overviews) {
		end = len(overviews)
	}

	writeJSON(w, http.StatusOK, summarize(overviews[offset:end], roster))
}

// handleGetMessage returns one message with its body.
func (s *Server) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Message id must be an integer")
		return
	}

	overviews, roster, err := s.loadOverviews(r)
	if err != nil {
		s.logger.Error("message fetch failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to load message")
		return
	}

	for _, o := range overviews {
		if o.ID != id {
			continue
		}
		body, err := s.engine.MessageBody(r.Context(), id)
		if err != nil {
			s.logger.Error("body fetch failed", "id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "Failed to load message body")
			return
		}
		summary := summarize([]query.MessageOverview{o}, roster)[0]
		writeJSON(w, http.StatusOK, MessageDetail{MessageSummary: summary, Body: body})
		return
	}
	writeError(w, http.StatusNotFound, "not_found", "No such message")
}

// handleSearch evaluates a boolean query and returns matching messages.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	queryText := r.URL.Query().Get("q")

	ids, err := s.searcher.Search(r.Context(), queryText)
	if err != nil {
		s.logger.Error("search failed", "query", queryText, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Search failed")
		return
	}

	var matched []query.MessageOverview
	var roster map[int64]string
	if len(ids) > 0 {
		overviews, ros, err := s.loadOverviews(r)
		if err != nil {
			s.logger.Error("search hydration failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "Search failed")
			return
		}
		roster = ros
		for _, o := range overviews {
			if ids.Contains(o.ID) {
				matched = append(matched, o)
			}
		}
	}

	writeJSON(w, http.StatusOK, SearchResult{
		Query:    queryText,
		Total:    len(matched),
		Messages: summarize(matched, roster),
	})
}

func (s *Server) loadOverviews(r *http.Request) ([]query.MessageOverview, map[int64]string, error) {
	overviews, err := s.engine.MessagesOverview(r.Context())
	if err != nil {
		return nil, nil, err
	}
	roster, err := s.engine.RecipientsRoster(r.Context())
	if err != nil {
		roster = map[int64]string{}
	}
	return overviews, roster, nil
}

func summarize(overviews []query.MessageOverview, roster map[int64]string) []MessageSummary {
	out := make([]MessageSummary, 0, len(overviews))
	for _, o := range overviews {
		threadKey := ""
		if o.ThreadID != nil {
			threadKey = *o.ThreadID
		}
		out = append(out, MessageSummary{
			ID:         o.ID,
			Subject:    o.Subject,
			From:       o.SenderName,
			To:         roster[o.ID],
			Project:    o.ProjectSlug,
			ThreadKey:  threadKey,
			CreatedTS:  o.CreatedTS,
			Importance: o.Importance,
			Snippet:    o.Snippet,
		})
	}
	return out
}
