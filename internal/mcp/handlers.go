package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/amodell/mailsnap/internal/query"
	"github.com/amodell/mailsnap/internal/search"
	"github.com/amodell/mailsnap/internal/store"
)

const maxLimit = 1000

type handlers struct {
	engine   query.Engine
	searcher *search.Searcher
	store    *store.Store
}

// getIDArg extracts a required positive integer ID from the arguments map.
func getIDArg(args map[string]any, key string) (int64, error) {
	v, ok := args[key].(float64)
	if !ok {
		return 0, fmt.Errorf("%s parameter is required", key)
	}
	if v != math.Trunc(v) || v < 1 || v > math.MaxInt64 {
		return 0, fmt.Errorf("%s must be a positive integer", key)
	}
	return int64(v), nil
}

func limitArg(args map[string]any, key string, def int) int {
	v, ok := args[key].(float64)
	if !ok {
		return def
	}
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if math.IsInf(v, 1) || v > float64(maxLimit) {
		return maxLimit
	}
	return int(v)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal error: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// searchResult is one search hit with display fields resolved.
type searchResult struct {
	ID         int64  `json:"id"`
	Subject    string `json:"subject"`
	From       string `json:"from"`
	Project    string `json:"project,omitempty"`
	CreatedTS  string `json:"created_ts"`
	Importance string `json:"importance"`
	Snippet    string `json:"snippet"`
}

func (h *handlers) searchMessages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	queryStr, _ := args["query"].(string)
	if queryStr == "" {
		return mcp.NewToolResultError("query parameter is required"), nil
	}
	limit := limitArg(args, "limit", 20)

	ids, err := h.searcher.Search(ctx, queryStr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	var results []searchResult
	if len(ids) > 0 {
		overviews, err := h.engine.MessagesOverview(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}
		for _, o := range overviews {
			if !ids.Contains(o.ID) {
				continue
			}
			results = append(results, searchResult{
				ID:         o.ID,
				Subject:    o.Subject,
				From:       o.SenderName,
				Project:    o.ProjectSlug,
				CreatedTS:  o.CreatedTS,
				Importance: o.Importance,
				Snippet:    o.Snippet,
			})
			if len(results) >= limit {
				break
			}
		}
	}

	return jsonResult(results)
}

// messageDetail is a full message with its body and roster.
type messageDetail struct {
	ID         int64  `json:"id"`
	Subject    string `json:"subject"`
	From       string `json:"from"`
	To         string `json:"to,omitempty"`
	Project    string `json:"project,omitempty"`
	ThreadKey  string `json:"thread_key,omitempty"`
	CreatedTS  string `json:"created_ts"`
	Importance string `json:"importance"`
	Body       string `json:"body"`
}

func (h *handlers) getMessage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	id, err := getIDArg(args, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	overviews, err := h.engine.MessagesOverview(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("message lookup failed: %v", err)), nil
	}
	roster, err := h.engine.RecipientsRoster(ctx)
	if err != nil {
		roster = map[int64]string{}
	}

	for _, o := range overviews {
		if o.ID != id {
			continue
		}
		body, err := h.engine.MessageBody(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("body load failed: %v", err)), nil
		}
		threadKey := ""
		if o.ThreadID != nil {
			threadKey = *o.ThreadID
		}
		return jsonResult(messageDetail{
			ID:         o.ID,
			Subject:    o.Subject,
			From:       o.SenderName,
			To:         roster[o.ID],
			Project:    o.ProjectSlug,
			ThreadKey:  threadKey,
			CreatedTS:  o.CreatedTS,
			Importance: o.Importance,
			Body:       body,
		})
	}
	return mcp.NewToolResultError("message not found"), nil
}

func (h *handlers) listThreads(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := limitArg(req.GetArguments(), "limit", 50)

	rollup, err := h.engine.ThreadRollup(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("thread rollup failed: %v", err)), nil
	}
	return jsonResult(rollup)
}

func (h *handlers) getThread(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	key, _ := args["key"].(string)
	if key == "" {
		return mcp.NewToolResultError("key parameter is required"), nil
	}

	messages, err := h.engine.MessagesInThread(ctx, key)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("thread load failed: %v", err)), nil
	}
	if len(messages) == 0 {
		return mcp.NewToolResultError("thread not found"), nil
	}
	return jsonResult(messages)
}

func (h *handlers) listProjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := h.engine.Projects(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("project list failed: %v", err)), nil
	}

	out := make([]query.Project, 0, len(projects))
	for _, p := range projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return jsonResult(out)
}

func (h *handlers) getStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := h.store.GetStats()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("stats failed: %v", err)), nil
	}
	return jsonResult(stats)
}
