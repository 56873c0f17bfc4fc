package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/amodell/mailsnap/internal/query"
	"github.com/amodell/mailsnap/internal/search"
	"github.com/amodell/mailsnap/internal/store"
	"github.com/amodell/mailsnap/internal/testutil/dbtest"
)

// toolHandler is the function signature for MCP tool handler methods.
type toolHandler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

// callToolDirect invokes a handler directly with the given arguments.
func callToolDirect(t *testing.T, name string, fn toolHandler, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	result, err := fn(context.Background(), req)
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return result
}

func resultText(t *testing.T, r *mcp.CallToolResult) string {
	t.Helper()
	if len(r.Content) == 0 {
		t.Fatal("empty content")
	}
	tc, ok := r.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", r.Content[0])
	}
	return tc.Text
}

// runTool invokes a handler, asserts no error, and unmarshals the JSON result into T.
func runTool[T any](t *testing.T, name string, fn toolHandler, args map[string]any) T {
	t.Helper()
	r := callToolDirect(t, name, fn, args)
	if r.IsError {
		t.Fatalf("unexpected error: %s", resultText(t, r))
	}
	var out T
	if err := json.Unmarshal([]byte(resultText(t, r)), &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	return out
}

// runToolExpectError invokes a handler and asserts it returns an error result.
func runToolExpectError(t *testing.T, name string, fn toolHandler, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	r := callToolDirect(t, name, fn, args)
	if !r.IsError {
		t.Fatal("expected error result")
	}
	return r
}

// seededHandlers returns handlers backed by the standard mailbox data set.
func seededHandlers(t *testing.T) (*handlers, dbtest.SeedIDs) {
	t.Helper()
	tdb := dbtest.NewTestDB(t)
	ids := tdb.SeedMailboxDataSet()
	return &handlers{
		engine:   query.NewSQLiteEngine(tdb.DB),
		searcher: search.NewSearcher(tdb.DB, false, nil),
	}, ids
}

func TestSearchMessagesTool(t *testing.T) {
	h, ids := seededHandlers(t)

	t.Run("boolean query", func(t *testing.T) {
		results := runTool[[]searchResult](t, ToolSearchMessages, h.searchMessages, map[string]any{
			"query": "deploy AND NOT parser",
		})
		if len(results) != 1 || results[0].ID != ids.Msg4 {
			t.Fatalf("unexpected results: %+v", results)
		}
		if results[0].From != "CoralCrab" {
			t.Fatalf("unexpected sender: %s", results[0].From)
		}
	})

	t.Run("limit applied", func(t *testing.T) {
		results := runTool[[]searchResult](t, ToolSearchMessages, h.searchMessages, map[string]any{
			"query": "parser OR deploy OR contact",
			"limit": float64(2),
		})
		if len(results) != 2 {
			t.Fatalf("expected 2 results, got %d", len(results))
		}
	})

	t.Run("no matches", func(t *testing.T) {
		results := runTool[[]searchResult](t, ToolSearchMessages, h.searchMessages, map[string]any{
			"query": "zzznothing",
		})
		if len(results) != 0 {
			t.Fatalf("expected no results, got %+v", results)
		}
	})

	t.Run("missing query", func(t *testing.T) {
		runToolExpectError(t, ToolSearchMessages, h.searchMessages, map[string]any{})
	})

	t.Run("malformed query recovers leniently", func(t *testing.T) {
		results := runTool[[]searchResult](t, ToolSearchMessages, h.searchMessages, map[string]any{
			"query": "(deploy",
		})
		if len(results) != 1 || results[0].ID != ids.Msg4 {
			t.Fatalf("unexpected results: %+v", results)
		}
	})
}

func TestGetMessageTool(t *testing.T) {
	h, ids := seededHandlers(t)

	t.Run("found", func(t *testing.T) {
		msg := runTool[messageDetail](t, ToolGetMessage, h.getMessage, map[string]any{
			"id": float64(ids.Msg4),
		})
		if msg.Subject != "Deploy window tonight" {
			t.Fatalf("unexpected subject: %s", msg.Subject)
		}
		if msg.Body == "" {
			t.Fatal("expected full body")
		}
		if msg.To != "BlueJay, GreenHeron" {
			t.Fatalf("unexpected roster: %q", msg.To)
		}
		if msg.Importance != query.ImportanceUrgent {
			t.Fatalf("unexpected importance: %s", msg.Importance)
		}
	})

	errorCases := []struct {
		name string
		args map[string]any
	}{
		{"not found", map[string]any{"id": float64(999)}},
		{"missing id", map[string]any{}},
		{"non-integer id", map[string]any{"id": float64(1.9)}},
		{"negative id", map[string]any{"id": float64(-1)}},
		{"overflow id", map[string]any{"id": float64(1e19)}},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			runToolExpectError(t, ToolGetMessage, h.getMessage, tt.args)
		})
	}
}

func TestListThreadsTool(t *testing.T) {
	h, _ := seededHandlers(t)

	t.Run("all threads", func(t *testing.T) {
		rows := runTool[[]query.ThreadRollupRow](t, ToolListThreads, h.listThreads, map[string]any{})
		if len(rows) != 3 {
			t.Fatalf("expected 3 threads, got %d", len(rows))
		}
		if rows[0].ThreadKey != "msg:5" {
			t.Fatalf("expected newest activity first, got %s", rows[0].ThreadKey)
		}
	})

	t.Run("limit applied", func(t *testing.T) {
		rows := runTool[[]query.ThreadRollupRow](t, ToolListThreads, h.listThreads, map[string]any{
			"limit": float64(1),
		})
		if len(rows) != 1 {
			t.Fatalf("expected 1 thread, got %d", len(rows))
		}
	})
}

func TestGetThreadTool(t *testing.T) {
	h, ids := seededHandlers(t)

	t.Run("explicit key", func(t *testing.T) {
		msgs := runTool[[]query.Message](t, ToolGetThread, h.getThread, map[string]any{
			"key": "thread-parser",
		})
		if len(msgs) != 3 {
			t.Fatalf("expected 3 messages, got %d", len(msgs))
		}
		if msgs[0].ID != ids.Msg1 {
			t.Fatalf("expected oldest first, got id %d", msgs[0].ID)
		}
	})

	t.Run("synthetic key", func(t *testing.T) {
		msgs := runTool[[]query.Message](t, ToolGetThread, h.getThread, map[string]any{
			"key": "msg:4",
		})
		if len(msgs) != 1 || msgs[0].ID != ids.Msg4 {
			t.Fatalf("unexpected messages: %+v", msgs)
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		runToolExpectError(t, ToolGetThread, h.getThread, map[string]any{"key": "no-such-thread"})
	})

	t.Run("missing key", func(t *testing.T) {
		runToolExpectError(t, ToolGetThread, h.getThread, map[string]any{})
	})
}

func TestListProjectsTool(t *testing.T) {
	h, _ := seededHandlers(t)

	projects := runTool[[]query.Project](t, ToolListProjects, h.listProjects, map[string]any{})
	if len(projects) != 2 {
		t.Fatalf("expected 2 projects, got %d", len(projects))
	}
	if projects[0].Slug != "api-server" || projects[1].Slug != "infra" {
		t.Fatalf("unexpected order: %+v", projects)
	}
	if projects[0].HumanKey != "API Server" {
		t.Fatalf("unexpected human key: %s", projects[0].HumanKey)
	}
}

func TestGetStatsTool(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.db")
	db, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(dbtest.Schema); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`INSERT INTO agents (id, name) VALUES (1, 'BlueJay')`); err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	st, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	h := &handlers{store: st}
	stats := runTool[store.Stats](t, ToolGetStats, h.getStats, map[string]any{})
	if stats.AgentCount != 1 {
		t.Fatalf("unexpected agent count: %d", stats.AgentCount)
	}
	if stats.MessageCount != 0 {
		t.Fatalf("unexpected message count: %d", stats.MessageCount)
	}
	if stats.FTSAvailable {
		t.Fatal("snapshot has no FTS table")
	}
}

func TestLimitArgClamping(t *testing.T) {
	tests := []struct {
		name string
		val  float64
		want int
	}{
		{"negative clamped to 0", -5, 0},
		{"zero stays zero", 0, 0},
		{"normal value", 50, 50},
		{"above max clamped", 5000, maxLimit},
		{"huge float clamped", 1e18, maxLimit},
		{"NaN clamped to 0", math.NaN(), 0},
		{"Inf clamped", math.Inf(1), maxLimit},
		{"negative Inf clamped to 0", math.Inf(-1), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := limitArg(map[string]any{"x": tt.val}, "x", 20)
			if got != tt.want {
				t.Fatalf("limitArg(%v) = %d, want %d", tt.val, got, tt.want)
			}
		})
	}
}
