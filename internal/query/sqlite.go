package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// DefaultRollupLimit caps thread roll-ups. Effectively unbounded at snapshot
// scale; it exists to bound memory if a snapshot is ever pathological.
const DefaultRollupLimit = 50000

// bodyPrefixChars is how much body text the overview queries pull per row.
// Large enough that a snippet never runs out of material, small enough that
// list queries stay cheap.
const bodyPrefixChars = 400

// SnapshotError reports a failed query operation against the snapshot. The
// operation name lets callers degrade just the affected feature.
type SnapshotError struct {
	Op  string
	Err error
}

func (e *SnapshotError) Error() string {
	return fmt.Sprintf("snapshot query %s: %v", e.Op, e.Err)
}

func (e *SnapshotError) Unwrap() error { return e.Err }

func snapErr(op string, err error) error {
	return &SnapshotError{Op: op, Err: err}
}

// SQLiteEngine implements Engine over a read-only snapshot connection.
type SQLiteEngine struct {
	db *sql.DB
}

var _ Engine = (*SQLiteEngine)(nil)

// NewSQLiteEngine creates an engine over db. The caller retains ownership of
// the connection; Close on the engine does not close it.
func NewSQLiteEngine(db *sql.DB) *SQLiteEngine {
	return &SQLiteEngine{db: db}
}

// Close implements Engine. The store owns the connection lifecycle.
func (e *SQLiteEngine) Close() error { return nil }

// CountMessages implements Engine.
func (e *SQLiteEngine) CountMessages(ctx context.Context) (int64, error) {
	var count int64
	err := e.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count)
	if err != nil {
		return 0, snapErr("count messages", err)
	}
	return count, nil
}

// Projects implements Engine.
func (e *SQLiteEngine) Projects(ctx context.Context) (map[int64]Project, error) {
	rows, err := e.db.QueryContext(ctx, `SELECT id, slug, human_key FROM projects`)
	if err != nil {
		return nil, snapErr("list projects", err)
	}
	defer rows.Close()

	projects := make(map[int64]Project)
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Slug, &p.HumanKey); err != nil {
			return nil, snapErr("list projects", err)
		}
		projects[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, snapErr("list projects", err)
	}
	return projects, nil
}

// threadKeyExpr derives the grouping key in SQL: the explicit thread_id when
// present and non-empty, else the synthetic singleton key.
const threadKeyExpr = `CASE WHEN m.thread_id IS NOT NULL AND m.thread_id <> '' THEN m.thread_id ELSE 'msg:' || m.id END`

// ThreadRollup implements Engine. The latest-message fields within each
// thread key are chosen by (created_ts desc, id desc).
func (e *SQLiteEngine) ThreadRollup(ctx context.Context, limit int) ([]ThreadRollupRow, error) {
	if limit <= 0 {
		limit = DefaultRollupLimit
	}

	rows, err := e.db.QueryContext(ctx, `
		WITH keyed AS (
			SELECT m.id, m.subject, COALESCE(m.importance, '') AS importance, m.created_ts,
			       substr(m.body_md, 1, `+fmt.Sprint(bodyPrefixChars)+`) AS body_prefix,
			       `+threadKeyExpr+` AS thread_key
			FROM messages m
		),
		ranked AS (
			SELECT keyed.*,
			       COUNT(*) OVER (PARTITION BY thread_key) AS message_count,
			       ROW_NUMBER() OVER (PARTITION BY thread_key ORDER BY created_ts DESC, id DESC) AS rn
			FROM keyed
		)
		SELECT thread_key, message_count, created_ts, subject, importance, body_prefix
		FROM ranked
		WHERE rn = 1
		ORDER BY created_ts DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, snapErr("thread rollup", err)
	}
	defer rows.Close()

	var rollup []ThreadRollupRow
	for rows.Next() {
		var r ThreadRollupRow
		var importance, bodyPrefix string
		if err := rows.Scan(&r.ThreadKey, &r.MessageCount, &r.LastCreatedTS, &r.LatestSubject, &importance, &bodyPrefix); err != nil {
			return nil, snapErr("thread rollup", err)
		}
		r.LatestImportance = NormalizeImportance(importance)
		r.LatestSnippet = Snippet(bodyPrefix)
		rollup = append(rollup, r)
	}
	if err := rows.Err(); err != nil {
		return nil, snapErr("thread rollup", err)
	}
	return rollup, nil
}

// MessagesInThread implements Engine.
func (e *SQLiteEngine) MessagesInThread(ctx context.Context, threadKey string) ([]Message, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT m.id, m.subject, m.thread_id, m.created_ts, COALESCE(m.importance, ''), m.project_id, m.sender_id
		FROM messages m
		WHERE m.thread_id = ?
		   OR ((m.thread_id IS NULL OR m.thread_id = '') AND 'msg:' || m.id = ?)
		ORDER BY m.created_ts ASC, m.id ASC
	`, threadKey, threadKey)
	if err != nil {
		return nil, snapErr("messages in thread", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, snapErr("messages in thread", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, snapErr("messages in thread", err)
	}
	return messages, nil
}

// MessagesOverview implements Engine. Sender and project labels resolve to
// empty strings when the referenced row is missing from the snapshot.
func (e *SQLiteEngine) MessagesOverview(ctx context.Context) ([]MessageOverview, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT m.id, m.subject, m.thread_id, m.created_ts, COALESCE(m.importance, ''), m.project_id, m.sender_id,
		       COALESCE(a.name, ''), COALESCE(p.slug, ''), COALESCE(p.human_key, ''),
		       substr(m.body_md, 1, `+fmt.Sprint(bodyPrefixChars)+`), length(m.body_md)
		FROM messages m
		LEFT JOIN agents a ON a.id = m.sender_id
		LEFT JOIN projects p ON p.id = m.project_id
		ORDER BY m.created_ts DESC, m.id DESC
	`)
	if err != nil {
		return nil, snapErr("messages overview", err)
	}
	defer rows.Close()

	var overviews []MessageOverview
	for rows.Next() {
		var o MessageOverview
		var threadID sql.NullString
		var importance, bodyPrefix string
		err := rows.Scan(&o.ID, &o.Subject, &threadID, &o.CreatedTS, &importance, &o.ProjectID, &o.SenderID,
			&o.SenderName, &o.ProjectSlug, &o.ProjectHumanKey, &bodyPrefix, &o.BodyLen)
		if err != nil {
			return nil, snapErr("messages overview", err)
		}
		if threadID.Valid {
			o.ThreadID = &threadID.String
		}
		o.Importance = NormalizeImportance(importance)
		o.BodyPrefix = bodyPrefix
		o.Snippet = Snippet(bodyPrefix)
		overviews = append(overviews, o)
	}
	if err := rows.Err(); err != nil {
		return nil, snapErr("messages overview", err)
	}
	return overviews, nil
}

// RecipientsRoster implements Engine. The query pre-sorts by
// (message_id, name) so each message's run of rows is contiguous and already
// name-ordered; the roster is assembled in a single pass instead of one
// query per message.
func (e *SQLiteEngine) RecipientsRoster(ctx context.Context) (map[int64]string, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT mr.message_id, a.name
		FROM message_recipients mr
		JOIN agents a ON a.id = mr.agent_id
		ORDER BY mr.message_id, a.name
	`)
	if err != nil {
		return nil, snapErr("recipients roster", err)
	}
	defer rows.Close()

	roster := make(map[int64]string)
	var (
		currentID int64
		names     []string
	)
	flush := func() {
		if len(names) > 0 {
			roster[currentID] = strings.Join(names, ", ")
			names = names[:0]
		}
	}
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, snapErr("recipients roster", err)
		}
		if id != currentID {
			flush()
			currentID = id
		}
		names = append(names, name)
	}
	flush()
	if err := rows.Err(); err != nil {
		return nil, snapErr("recipients roster", err)
	}
	return roster, nil
}

// MessageBody implements Engine.
func (e *SQLiteEngine) MessageBody(ctx context.Context, id int64) (string, error) {
	var body string
	err := e.db.QueryRowContext(ctx, `SELECT body_md FROM messages WHERE id = ?`, id).Scan(&body)
	if err != nil {
		return "", snapErr("message body", err)
	}
	return body, nil
}

// scanMessage scans a Message from the standard column order used by the
// message list queries.
func scanMessage(rows *sql.Rows) (Message, error) {
	var m Message
	var threadID sql.NullString
	var importance string
	err := rows.Scan(&m.ID, &m.Subject, &threadID, &m.CreatedTS, &importance, &m.ProjectID, &m.SenderID)
	if err != nil {
		return Message{}, err
	}
	if threadID.Valid {
		m.ThreadID = &threadID.String
	}
	m.Importance = NormalizeImportance(importance)
	return m, nil
}
