package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/amodell/mailsnap/internal/config"
	"github.com/amodell/mailsnap/internal/query"
	"github.com/amodell/mailsnap/internal/search"
	"github.com/amodell/mailsnap/internal/store"
	"github.com/amodell/mailsnap/internal/testutil/dbtest"
)

type fakeStats struct {
	stats *store.Stats
}

func (f *fakeStats) GetStats() (*store.Stats, error) {
	return f.stats, nil
}

func testServer(t *testing.T, apiKey string) (*Server, dbtest.SeedIDs) {
	t.Helper()
	tdb := dbtest.NewTestDB(t)
	ids := tdb.SeedMailboxDataSet()

	cfg := &config.Config{}
	cfg.Server.APIPort = 0
	cfg.Server.APIKey = apiKey

	engine := query.NewSQLiteEngine(tdb.DB)
	searcher := search.NewSearcher(tdb.DB, false, nil)
	stats := &fakeStats{stats: &store.Stats{MessageCount: 5, ProjectCount: 2, AgentCount: 3}}
	logger := slog.New(slog.DiscardHandler)

	s := NewServer(cfg, engine, searcher, stats, logger)
	t.Cleanup(func() { s.rateLimiter.Close() })
	return s, ids
}

func get(t *testing.T, s *Server, path string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestHealth(t *testing.T) {
	s, _ := testServer(t, "")
	rec := get(t, s, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if string(body) != `{"status":"ok"}` {
		t.Errorf("body = %s", body)
	}
}

func TestStats(t *testing.T) {
	s, _ := testServer(t, "")
	rec := get(t, s, "/api/v1/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	stats := decode[StatsResponse](t, rec)
	if stats.TotalMessages != 5 || stats.TotalProjects != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestThreads(t *testing.T) {
	s, _ := testServer(t, "")
	rec := get(t, s, "/api/v1/threads", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	threads := decode[[]ThreadSummary](t, rec)
	if len(threads) != 3 {
		t.Fatalf("threads = %d, want 3", len(threads))
	}
	if threads[0].Key != "msg:5" || threads[2].Key != "thread-parser" {
		t.Errorf("thread order = %q .. %q", threads[0].Key, threads[2].Key)
	}
	if threads[2].MessageCount != 3 {
		t.Errorf("parser thread count = %d", threads[2].MessageCount)
	}
}

func TestThreadByKey(t *testing.T) {
	s, ids := testServer(t, "")
	rec := get(t, s, "/api/v1/threads/thread-parser", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	messages := decode[[]MessageSummary](t, rec)
	if len(messages) != 3 {
		t.Fatalf("messages = %d, want 3", len(messages))
	}
	if messages[0].ID != ids.Msg1 {
		t.Errorf("first message = %d, want ascending order", messages[0].ID)
	}
	if messages[0].To != "CoralCrab, GreenHeron" {
		t.Errorf("roster = %q", messages[0].To)
	}
}

func TestThreadNotFound(t *testing.T) {
	s, _ := testServer(t, "")
	rec := get(t, s, "/api/v1/threads/thread-nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestListMessagesPagination(t *testing.T) {
	s, ids := testServer(t, "")
	rec := get(t, s, "/api/v1/messages?page=1&page_size=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	messages := decode[[]MessageSummary](t, rec)
	if len(messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(messages))
	}
	if messages[0].ID != ids.Msg5 || messages[1].ID != ids.Msg4 {
		t.Errorf("page order = %d, %d", messages[0].ID, messages[1].ID)
	}

	rec = get(t, s, "/api/v1/messages?page=3&page_size=2", nil)
	messages = decode[[]MessageSummary](t, rec)
	if len(messages) != 1 {
		t.Errorf("last page = %d messages, want 1", len(messages))
	}
}

func TestGetMessage(t *testing.T) {
	s, ids := testServer(t, "")
	rec := get(t, s, "/api/v1/messages/1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	detail := decode[MessageDetail](t, rec)
	if detail.ID != ids.Msg1 {
		t.Errorf("id = %d", detail.ID)
	}
	if detail.Body != "Proposing we split the tokenizer from the grammar." {
		t.Errorf("body = %q", detail.Body)
	}
}

func TestGetMessageErrors(t *testing.T) {
	s, _ := testServer(t, "")
	if rec := get(t, s, "/api/v1/messages/999", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing id status = %d, want 404", rec.Code)
	}
	if rec := get(t, s, "/api/v1/messages/abc", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", rec.Code)
	}
}

func TestSearch(t *testing.T) {
	s, ids := testServer(t, "")
	rec := get(t, s, "/api/v1/search?q=deploy+AND+NOT+parser", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	result := decode[SearchResult](t, rec)
	if result.Total != 1 || len(result.Messages) != 1 {
		t.Fatalf("result = %+v", result)
	}
	if result.Messages[0].ID != ids.Msg4 {
		t.Errorf("match = %d, want %d", result.Messages[0].ID, ids.Msg4)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	s, _ := testServer(t, "")
	rec := get(t, s, "/api/v1/search?q=", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	result := decode[SearchResult](t, rec)
	if result.Total != 0 {
		t.Errorf("total = %d, want 0", result.Total)
	}
}

func TestAuthRequired(t *testing.T) {
	s, _ := testServer(t, "sekrit")

	if rec := get(t, s, "/api/v1/stats", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("no key status = %d, want 401", rec.Code)
	}
	if rec := get(t, s, "/api/v1/stats", map[string]string{"Authorization": "Bearer wrong"}); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong key status = %d, want 401", rec.Code)
	}
	if rec := get(t, s, "/api/v1/stats", map[string]string{"Authorization": "Bearer sekrit"}); rec.Code != http.StatusOK {
		t.Errorf("bearer status = %d, want 200", rec.Code)
	}
	if rec := get(t, s, "/api/v1/stats", map[string]string{"X-API-Key": "sekrit"}); rec.Code != http.StatusOK {
		t.Errorf("x-api-key status = %d, want 200", rec.Code)
	}
	if rec := get(t, s, "/health", nil); rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want no auth", rec.Code)
	}
}
