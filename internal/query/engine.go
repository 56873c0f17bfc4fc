package query

import "context"

// Engine provides the read operations every view needs from a snapshot.
// SQLiteEngine is the only production implementation; the interface exists
// so surfaces and tests can swap in fakes.
type Engine interface {
	// CountMessages returns the total message count. A failure here is
	// fatal to the load sequence.
	CountMessages(ctx context.Context) (int64, error)

	// Projects returns all projects keyed by id, loaded once per snapshot.
	Projects(ctx context.Context) (map[int64]Project, error)

	// ThreadRollup returns one row per distinct thread key, ordered by
	// latest message created_ts descending, capped at limit.
	ThreadRollup(ctx context.Context, limit int) ([]ThreadRollupRow, error)

	// MessagesInThread returns a thread's messages ascending by
	// (created_ts, id). Synthetic keys of the form "msg:<id>" resolve to
	// the single message they name.
	MessagesInThread(ctx context.Context, threadKey string) ([]Message, error)

	// MessagesOverview returns every message with display fields resolved,
	// ordered by (created_ts desc, id desc).
	MessagesOverview(ctx context.Context) ([]MessageOverview, error)

	// RecipientsRoster returns a comma-joined, name-sorted recipient list
	// per message id, built in a single pass over the join table.
	RecipientsRoster(ctx context.Context) (map[int64]string, error)

	// MessageBody loads one message body lazily, on open.
	MessageBody(ctx context.Context, id int64) (string, error)

	// Close releases the engine's resources.
	Close() error
}
