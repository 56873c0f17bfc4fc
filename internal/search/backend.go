package search

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/rotisserie/eris"
)

// ErrFullText marks a failure inside the full-text index evaluation. The
// fallback combinator matches on it to distinguish a broken index from a
// query that genuinely matches nothing.
var ErrFullText = eris.New("full-text evaluation failed")

// IDSet is a set of matching message ids.
type IDSet map[int64]struct{}

// Contains reports membership.
func (s IDSet) Contains(id int64) bool {
	_, ok := s[id]
	return ok
}

// Backend evaluates a compiled query against the snapshot and returns the
// matching message ids.
type Backend interface {
	Evaluate(ctx context.Context, roots []Expr) (IDSet, error)
}

// FullTextBackend evaluates queries through the snapshot's FTS5 index.
type FullTextBackend struct {
	db *sql.DB
}

// NewFullTextBackend creates a full-text backend over db.
func NewFullTextBackend(db *sql.DB) *FullTextBackend {
	return &FullTextBackend{db: db}
}

// Evaluate lowers the roots to an FTS5 MATCH string and collects matching
// rowids. An empty compiled string is reported as an ErrFullText so the
// fallback combinator retries with substring matching.
func (b *FullTextBackend) Evaluate(ctx context.Context, roots []Expr) (IDSet, error) {
	if len(roots) == 0 {
		return IDSet{}, nil
	}

	match := LowerFullText(roots)
	if match == "" {
		return nil, eris.Wrap(ErrFullText, "compiled match string is empty")
	}

	rows, err := b.db.QueryContext(ctx, `SELECT rowid FROM messages_fts WHERE messages_fts MATCH ?`, match)
	if err != nil {
		return nil, eris.Wrapf(ErrFullText, "match %q: %v", match, err)
	}
	defer rows.Close()

	ids := IDSet{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrapf(ErrFullText, "scan rowid: %v", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(ErrFullText, "iterate rowids: %v", err)
	}
	return ids, nil
}

// SubstringBackend evaluates queries with LIKE predicates over subject and
// body. Slower than the index but always available and always correct.
type SubstringBackend struct {
	db *sql.DB
}

// NewSubstringBackend creates a substring backend over db.
func NewSubstringBackend(db *sql.DB) *SubstringBackend {
	return &SubstringBackend{db: db}
}

// Evaluate lowers the roots to a LIKE predicate tree and collects matching
// message ids.
func (b *SubstringBackend) Evaluate(ctx context.Context, roots []Expr) (IDSet, error) {
	if len(roots) == 0 {
		return IDSet{}, nil
	}

	clause, args := LowerSubstring(roots)
	if clause == "" {
		return IDSet{}, nil
	}

	rows, err := b.db.QueryContext(ctx, `SELECT m.id FROM messages m WHERE `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("substring search: %w", err)
	}
	defer rows.Close()

	ids := IDSet{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan message id: %w", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message ids: %w", err)
	}
	return ids, nil
}

// FallbackBackend tries a primary backend and retries on the fallback when
// the primary errors or returns zero matches. Zero matches is ambiguous —
// it may mean a correct empty result — so the retry reason is logged for
// diagnosis rather than surfaced as an error.
type FallbackBackend struct {
	Primary  Backend
	Fallback Backend
	Logger   *slog.Logger
}

// Evaluate implements Backend.
func (b *FallbackBackend) Evaluate(ctx context.Context, roots []Expr) (IDSet, error) {
	if len(roots) == 0 {
		return IDSet{}, nil
	}

	ids, err := b.Primary.Evaluate(ctx, roots)
	if err == nil && len(ids) > 0 {
		return ids, nil
	}

	if b.Logger != nil {
		if err != nil {
			b.Logger.Debug("full-text search fell back to substring", "reason", "error", "error", err)
		} else {
			b.Logger.Debug("full-text search fell back to substring", "reason", "zero matches")
		}
	}
	return b.Fallback.Evaluate(ctx, roots)
}

// Searcher ties parsing to a backend. An empty or whitespace-only query
// returns an empty id set without touching the database.
type Searcher struct {
	backend Backend
}

// NewSearcher selects the backend arrangement for the snapshot: fallback
// through the full-text index when it exists, substring-only otherwise.
func NewSearcher(db *sql.DB, ftsAvailable bool, logger *slog.Logger) *Searcher {
	substring := NewSubstringBackend(db)
	if !ftsAvailable {
		return &Searcher{backend: substring}
	}
	return &Searcher{backend: &FallbackBackend{
		Primary:  NewFullTextBackend(db),
		Fallback: substring,
		Logger:   logger,
	}}
}

// Search parses and evaluates query, returning the matching message ids.
func (s *Searcher) Search(ctx context.Context, query string) (IDSet, error) {
	roots := Parse(query)
	if len(roots) == 0 {
		return IDSet{}, nil
	}
	return s.backend.Evaluate(ctx, roots)
}
