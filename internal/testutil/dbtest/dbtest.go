// Package dbtest provides helpers for building in-memory snapshot databases
// in tests. It mirrors the schema the mail server exports and offers
// builders for seeding projects, agents, messages, and recipients. It is
// importable from any test package (it does not import internal/query).
package dbtest

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// Schema is the snapshot schema as exported by the mail server. Kept as a
// constant so tests fabricate snapshots without reaching outside the module.
const Schema = `
CREATE TABLE projects (
    id INTEGER PRIMARY KEY,
    slug TEXT NOT NULL,
    human_key TEXT NOT NULL
);

CREATE TABLE agents (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL
);

CREATE TABLE messages (
    id INTEGER PRIMARY KEY,
    subject TEXT NOT NULL DEFAULT '',
    body_md TEXT NOT NULL DEFAULT '',
    thread_id TEXT,
    created_ts TEXT NOT NULL,
    importance TEXT DEFAULT 'normal',
    project_id INTEGER REFERENCES projects(id),
    sender_id INTEGER REFERENCES agents(id)
);

CREATE TABLE message_recipients (
    message_id INTEGER NOT NULL REFERENCES messages(id),
    agent_id INTEGER NOT NULL REFERENCES agents(id)
);

CREATE INDEX idx_messages_thread ON messages(thread_id);
CREATE INDEX idx_messages_created ON messages(created_ts);
CREATE INDEX idx_recipients_message ON message_recipients(message_id);
`

// StrPtr returns a pointer to a string (for optional thread ids).
func StrPtr(s string) *string { return &s }

// TestDB wraps a *sql.DB with builder helpers for seeding snapshot data.
type TestDB struct {
	DB *sql.DB
	T  testing.TB

	nextMessageID int64
	nextAgentID   int64
	nextProjectID int64
}

// NewTestDB creates an in-memory SQLite database with the snapshot schema.
func NewTestDB(t testing.TB) *TestDB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(Schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	return &TestDB{
		DB:            db,
		T:             t,
		nextMessageID: 1,
		nextAgentID:   1,
		nextProjectID: 1,
	}
}

// AddProject inserts a project and returns its id.
func (tdb *TestDB) AddProject(slug, humanKey string) int64 {
	tdb.T.Helper()
	id := tdb.nextProjectID
	tdb.nextProjectID++
	_, err := tdb.DB.Exec(`INSERT INTO projects (id, slug, human_key) VALUES (?, ?, ?)`, id, slug, humanKey)
	if err != nil {
		tdb.T.Fatalf("insert project %s: %v", slug, err)
	}
	return id
}

// AddAgent inserts an agent and returns its id.
func (tdb *TestDB) AddAgent(name string) int64 {
	tdb.T.Helper()
	id := tdb.nextAgentID
	tdb.nextAgentID++
	_, err := tdb.DB.Exec(`INSERT INTO agents (id, name) VALUES (?, ?)`, id, name)
	if err != nil {
		tdb.T.Fatalf("insert agent %s: %v", name, err)
	}
	return id
}

// MessageOpts configures an inserted message. Zero values get sensible
// defaults: importance "normal", empty body, no thread.
type MessageOpts struct {
	Subject    string
	Body       string
	ThreadID   *string
	CreatedTS  string
	Importance string
	ProjectID  int64
	SenderID   int64
}

// AddMessage inserts a message and returns its id.
func (tdb *TestDB) AddMessage(opts MessageOpts) int64 {
	tdb.T.Helper()
	id := tdb.nextMessageID
	tdb.nextMessageID++

	if opts.CreatedTS == "" {
		opts.CreatedTS = "2026-01-01T00:00:00Z"
	}
	if opts.Importance == "" {
		opts.Importance = "normal"
	}

	_, err := tdb.DB.Exec(`
		INSERT INTO messages (id, subject, body_md, thread_id, created_ts, importance, project_id, sender_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, opts.Subject, opts.Body, opts.ThreadID, opts.CreatedTS, opts.Importance, opts.ProjectID, opts.SenderID)
	if err != nil {
		tdb.T.Fatalf("insert message %q: %v", opts.Subject, err)
	}
	return id
}

// AddRecipients attaches recipients to a message.
func (tdb *TestDB) AddRecipients(messageID int64, agentIDs ...int64) {
	tdb.T.Helper()
	for _, agentID := range agentIDs {
		_, err := tdb.DB.Exec(`INSERT INTO message_recipients (message_id, agent_id) VALUES (?, ?)`, messageID, agentID)
		if err != nil {
			tdb.T.Fatalf("insert recipient %d -> %d: %v", agentID, messageID, err)
		}
	}
}

// SeedIDs records the ids created by SeedMailboxDataSet for use in
// assertions.
type SeedIDs struct {
	ProjectAPI, ProjectInfra          int64
	AgentBlue, AgentGreen, AgentCoral int64
	Msg1, Msg2, Msg3, Msg4, Msg5      int64
}

// SeedMailboxDataSet inserts the standard data set: 2 projects, 3 agents,
// and 5 messages — three in an explicit thread, two threadless singletons,
// one of which is an administrative contact request.
func (tdb *TestDB) SeedMailboxDataSet() SeedIDs {
	tdb.T.Helper()

	var ids SeedIDs
	ids.ProjectAPI = tdb.AddProject("api-server", "API Server")
	ids.ProjectInfra = tdb.AddProject("infra", "Infrastructure")

	ids.AgentBlue = tdb.AddAgent("BlueJay")
	ids.AgentGreen = tdb.AddAgent("GreenHeron")
	ids.AgentCoral = tdb.AddAgent("CoralCrab")

	ids.Msg1 = tdb.AddMessage(MessageOpts{
		Subject:   "Refactor plan for the parser",
		Body:      "Proposing we split the tokenizer from the grammar.",
		ThreadID:  StrPtr("thread-parser"),
		CreatedTS: "2026-02-01T09:00:00Z",
		ProjectID: ids.ProjectAPI, SenderID: ids.AgentBlue,
	})
	ids.Msg2 = tdb.AddMessage(MessageOpts{
		Subject:   "Re: Refactor plan for the parser",
		Body:      "Agreed, and the grammar tests should move too.",
		ThreadID:  StrPtr("thread-parser"),
		CreatedTS: "2026-02-01T10:30:00Z",
		ProjectID: ids.ProjectAPI, SenderID: ids.AgentGreen,
	})
	ids.Msg3 = tdb.AddMessage(MessageOpts{
		Subject:    "Re: Refactor plan for the parser",
		Body:       "Landed the split in the feature branch.",
		ThreadID:   StrPtr("thread-parser"),
		CreatedTS:  "2026-02-02T08:15:00Z",
		Importance: "high",
		ProjectID:  ids.ProjectAPI, SenderID: ids.AgentBlue,
	})
	ids.Msg4 = tdb.AddMessage(MessageOpts{
		Subject:    "Deploy window tonight",
		Body:       "Infra deploy at 22:00 UTC, expect a short blip.",
		CreatedTS:  "2026-02-03T12:00:00Z",
		Importance: "urgent",
		ProjectID:  ids.ProjectInfra, SenderID: ids.AgentCoral,
	})
	ids.Msg5 = tdb.AddMessage(MessageOpts{
		Subject:   "Contact request: GreenHeron",
		Body:      "Automated contact handshake. Reply to accept.",
		CreatedTS: "2026-02-03T13:00:00Z",
		ProjectID: ids.ProjectInfra, SenderID: ids.AgentGreen,
	})

	tdb.AddRecipients(ids.Msg1, ids.AgentGreen, ids.AgentCoral)
	tdb.AddRecipients(ids.Msg2, ids.AgentBlue)
	tdb.AddRecipients(ids.Msg3, ids.AgentGreen)
	tdb.AddRecipients(ids.Msg4, ids.AgentBlue, ids.AgentGreen)
	tdb.AddRecipients(ids.Msg5, ids.AgentBlue)

	return ids
}

// EnableFTS creates the FTS5 virtual table and populates it from existing
// messages. Skips the test if FTS5 is not available in this SQLite build.
func (tdb *TestDB) EnableFTS() {
	tdb.T.Helper()
	_, _ = tdb.DB.Exec(`DROP TABLE IF EXISTS messages_fts`)

	_, err := tdb.DB.Exec(`
		CREATE VIRTUAL TABLE messages_fts USING fts5(subject, body_md, content='messages', content_rowid='id', tokenize='unicode61 remove_diacritics 1');
	`)
	if err != nil {
		tdb.T.Skipf("FTS5 not available in this SQLite build: %v", err)
	}

	_, err = tdb.DB.Exec(`
		INSERT INTO messages_fts (rowid, subject, body_md)
		SELECT id, subject, body_md FROM messages
	`)
	if err != nil {
		tdb.T.Fatalf("populate FTS: %v", err)
	}
}
