// Package mcp exposes the loaded snapshot to MCP clients over stdio. Every
// tool is read-only; the snapshot never changes underneath a session.
package mcp

import (
	"context"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/amodell/mailsnap/internal/query"
	"github.com/amodell/mailsnap/internal/search"
	"github.com/amodell/mailsnap/internal/store"
)

// Tool name constants.
const (
	ToolSearchMessages = "search_messages"
	ToolGetMessage     = "get_message"
	ToolListThreads    = "list_threads"
	ToolGetThread      = "get_thread"
	ToolListProjects   = "list_projects"
	ToolGetStats       = "get_stats"
)

// Serve creates an MCP server with snapshot tools and serves over stdio.
// It blocks until stdin is closed or the context is cancelled.
func Serve(ctx context.Context, engine query.Engine, searcher *search.Searcher, st *store.Store) error {
	s := server.NewMCPServer(
		"mailsnap",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	h := &handlers{engine: engine, searcher: searcher, store: st}

	s.AddTool(searchMessagesTool(), h.searchMessages)
	s.AddTool(getMessageTool(), h.getMessage)
	s.AddTool(listThreadsTool(), h.listThreads)
	s.AddTool(getThreadTool(), h.getThread)
	s.AddTool(listProjectsTool(), h.listProjects)
	s.AddTool(getStatsTool(), h.getStats)

	stdio := server.NewStdioServer(s)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

func searchMessagesTool() mcp.Tool {
	return mcp.NewTool(ToolSearchMessages,
		mcp.WithDescription("Search messages with a boolean query. Supports AND/OR/NOT, | as OR, parentheses, and double-quoted phrases. Matches subject and body."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Boolean query (e.g. 'deploy AND NOT draft', '\"contact request\" OR handshake')"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results to return (default 20)"),
		),
	)
}

func getMessageTool() mcp.Tool {
	return mcp.NewTool(ToolGetMessage,
		mcp.WithDescription("Get a message's full body plus sender, recipients, project, and importance by message ID."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithNumber("id",
			mcp.Required(),
			mcp.Description("Message ID"),
		),
	)
}

func listThreadsTool() mcp.Tool {
	return mcp.NewTool(ToolListThreads,
		mcp.WithDescription("List thread roll-up rows, newest activity first. Singleton messages appear under synthetic 'msg:<id>' keys."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithNumber("limit",
			mcp.Description("Maximum threads to return (default 50)"),
		),
	)
}

func getThreadTool() mcp.Tool {
	return mcp.NewTool(ToolGetThread,
		mcp.WithDescription("Get all messages in a thread, oldest first, by thread key."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("key",
			mcp.Required(),
			mcp.Description("Thread key (explicit id or synthetic 'msg:<id>')"),
		),
	)
}

func listProjectsTool() mcp.Tool {
	return mcp.NewTool(ToolListProjects,
		mcp.WithDescription("List the projects referenced by the snapshot, with slug and human key."),
		mcp.WithReadOnlyHintAnnotation(true),
	)
}

func getStatsTool() mcp.Tool {
	return mcp.NewTool(ToolGetStats,
		mcp.WithDescription("Get snapshot overview: message, project, and agent counts, plus whether full-text search is available."),
		mcp.WithReadOnlyHintAnnotation(true),
	)
}
