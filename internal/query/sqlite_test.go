package query

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/amodell/mailsnap/internal/testutil"
	"github.com/amodell/mailsnap/internal/testutil/dbtest"
)

func seededEngine(t *testing.T) (*SQLiteEngine, dbtest.SeedIDs) {
	t.Helper()
	tdb := dbtest.NewTestDB(t)
	ids := tdb.SeedMailboxDataSet()
	return NewSQLiteEngine(tdb.DB), ids
}

func TestCountMessages(t *testing.T) {
	engine, _ := seededEngine(t)

	count, err := engine.CountMessages(context.Background())
	testutil.MustNoErr(t, err, "count")
	if count != 5 {
		t.Errorf("count = %d, want 5", count)
	}
}

func TestProjects(t *testing.T) {
	engine, ids := seededEngine(t)

	projects, err := engine.Projects(context.Background())
	testutil.MustNoErr(t, err, "projects")

	want := map[int64]Project{
		ids.ProjectAPI:   {ID: ids.ProjectAPI, Slug: "api-server", HumanKey: "API Server"},
		ids.ProjectInfra: {ID: ids.ProjectInfra, Slug: "infra", HumanKey: "Infrastructure"},
	}
	if diff := cmp.Diff(want, projects); diff != "" {
		t.Errorf("projects mismatch (-want +got):\n%s", diff)
	}
}

func TestThreadRollup(t *testing.T) {
	engine, _ := seededEngine(t)

	rollup, err := engine.ThreadRollup(context.Background(), 0)
	testutil.MustNoErr(t, err, "rollup")

	want := []ThreadRollupRow{
		{
			ThreadKey:        "msg:5",
			MessageCount:     1,
			LastCreatedTS:    "2026-02-03T13:00:00Z",
			LatestSubject:    "Contact request: GreenHeron",
			LatestImportance: ImportanceNormal,
			LatestSnippet:    "Automated contact handshake. Reply to accept.",
		},
		{
			ThreadKey:        "msg:4",
			MessageCount:     1,
			LastCreatedTS:    "2026-02-03T12:00:00Z",
			LatestSubject:    "Deploy window tonight",
			LatestImportance: ImportanceUrgent,
			LatestSnippet:    "Infra deploy at 22:00 UTC, expect a short blip.",
		},
		{
			ThreadKey:        "thread-parser",
			MessageCount:     3,
			LastCreatedTS:    "2026-02-02T08:15:00Z",
			LatestSubject:    "Re: Refactor plan for the parser",
			LatestImportance: ImportanceHigh,
			LatestSnippet:    "Landed the split in the feature branch.",
		},
	}
	if diff := cmp.Diff(want, rollup); diff != "" {
		t.Errorf("rollup mismatch (-want +got):\n%s", diff)
	}
}

func TestThreadRollupOrdering(t *testing.T) {
	engine, _ := seededEngine(t)

	rollup, err := engine.ThreadRollup(context.Background(), 0)
	testutil.MustNoErr(t, err, "rollup")
	for i := 1; i < len(rollup); i++ {
		if rollup[i-1].LastCreatedTS < rollup[i].LastCreatedTS {
			t.Errorf("rollup out of order at %d: %q before %q", i, rollup[i-1].LastCreatedTS, rollup[i].LastCreatedTS)
		}
	}
}

func TestThreadRollupLimit(t *testing.T) {
	engine, _ := seededEngine(t)

	rollup, err := engine.ThreadRollup(context.Background(), 2)
	testutil.MustNoErr(t, err, "rollup")
	if len(rollup) != 2 {
		t.Fatalf("rollup rows = %d, want 2", len(rollup))
	}
	testutil.AssertStrings(t, []string{rollup[0].ThreadKey, rollup[1].ThreadKey}, "msg:5", "msg:4")
}

// Messages with no explicit thread id never merge, even when their subjects
// look like a reply chain.
func TestThreadRollupSingletonsStayApart(t *testing.T) {
	tdb := dbtest.NewTestDB(t)
	tdb.AddMessage(dbtest.MessageOpts{Subject: "Hi", CreatedTS: "2026-03-01T09:00:00Z"})
	tdb.AddMessage(dbtest.MessageOpts{Subject: "Re: Hi", CreatedTS: "2026-03-01T10:00:00Z"})
	engine := NewSQLiteEngine(tdb.DB)

	rollup, err := engine.ThreadRollup(context.Background(), 0)
	testutil.MustNoErr(t, err, "rollup")
	if len(rollup) != 2 {
		t.Fatalf("rollup rows = %d, want 2", len(rollup))
	}
	testutil.AssertStrings(t, []string{rollup[0].ThreadKey, rollup[1].ThreadKey}, "msg:2", "msg:1")
}

func TestMessagesInThread(t *testing.T) {
	engine, ids := seededEngine(t)
	ctx := context.Background()

	messages, err := engine.MessagesInThread(ctx, "thread-parser")
	testutil.MustNoErr(t, err, "messages in thread")

	gotIDs := make([]int64, len(messages))
	for i, m := range messages {
		gotIDs[i] = m.ID
	}
	testutil.AssertEqualSlices(t, gotIDs, ids.Msg1, ids.Msg2, ids.Msg3)

	for i := 1; i < len(messages); i++ {
		if messages[i-1].CreatedTS > messages[i].CreatedTS {
			t.Errorf("thread out of order at %d", i)
		}
	}
}

func TestMessagesInThreadSyntheticKey(t *testing.T) {
	engine, ids := seededEngine(t)

	messages, err := engine.MessagesInThread(context.Background(), "msg:4")
	testutil.MustNoErr(t, err, "messages in thread")
	if len(messages) != 1 || messages[0].ID != ids.Msg4 {
		t.Fatalf("messages = %+v, want single message %d", messages, ids.Msg4)
	}
	if messages[0].Importance != ImportanceUrgent {
		t.Errorf("importance = %q, want urgent", messages[0].Importance)
	}
}

// Snapshots from older exporters carry NULL importance. Every list query
// must surface those rows as "normal" rather than failing the scan.
func TestNullImportanceReadsAsNormal(t *testing.T) {
	tdb := dbtest.NewTestDB(t)
	id := tdb.AddMessage(dbtest.MessageOpts{Subject: "legacy row", Body: "body", CreatedTS: "2026-03-01T09:00:00Z"})
	_, err := tdb.DB.Exec(`UPDATE messages SET importance = NULL WHERE id = ?`, id)
	testutil.MustNoErr(t, err, "null importance")
	engine := NewSQLiteEngine(tdb.DB)
	ctx := context.Background()

	rollup, err := engine.ThreadRollup(ctx, 0)
	testutil.MustNoErr(t, err, "rollup")
	if len(rollup) != 1 || rollup[0].LatestImportance != ImportanceNormal {
		t.Errorf("rollup = %+v, want one row with normal importance", rollup)
	}

	overviews, err := engine.MessagesOverview(ctx)
	testutil.MustNoErr(t, err, "overview")
	if len(overviews) != 1 || overviews[0].Importance != ImportanceNormal {
		t.Errorf("overview = %+v, want one row with normal importance", overviews)
	}

	messages, err := engine.MessagesInThread(ctx, "msg:1")
	testutil.MustNoErr(t, err, "messages in thread")
	if len(messages) != 1 || messages[0].Importance != ImportanceNormal {
		t.Errorf("messages = %+v, want one row with normal importance", messages)
	}
}

func TestMessagesInThreadUnknownKey(t *testing.T) {
	engine, _ := seededEngine(t)

	messages, err := engine.MessagesInThread(context.Background(), "thread-nope")
	testutil.MustNoErr(t, err, "messages in thread")
	if len(messages) != 0 {
		t.Errorf("messages = %+v, want none", messages)
	}
}

func TestMessagesOverview(t *testing.T) {
	engine, ids := seededEngine(t)

	overviews, err := engine.MessagesOverview(context.Background())
	testutil.MustNoErr(t, err, "overview")

	gotIDs := make([]int64, len(overviews))
	for i, o := range overviews {
		gotIDs[i] = o.ID
	}
	testutil.AssertEqualSlices(t, gotIDs, ids.Msg5, ids.Msg4, ids.Msg3, ids.Msg2, ids.Msg1)

	latest := overviews[0]
	if latest.SenderName != "GreenHeron" {
		t.Errorf("sender = %q, want GreenHeron", latest.SenderName)
	}
	if latest.ProjectSlug != "infra" || latest.ProjectHumanKey != "Infrastructure" {
		t.Errorf("project = %q/%q, want infra/Infrastructure", latest.ProjectSlug, latest.ProjectHumanKey)
	}
	if latest.Snippet != "Automated contact handshake. Reply to accept." {
		t.Errorf("snippet = %q", latest.Snippet)
	}
	if latest.BodyLen != int64(len("Automated contact handshake. Reply to accept.")) {
		t.Errorf("body len = %d", latest.BodyLen)
	}
	if latest.ThreadID != nil {
		t.Errorf("thread id = %v, want nil", *latest.ThreadID)
	}
}

func TestMessagesOverviewDanglingReferences(t *testing.T) {
	tdb := dbtest.NewTestDB(t)
	tdb.AddMessage(dbtest.MessageOpts{Subject: "orphan", ProjectID: 99, SenderID: 99})
	engine := NewSQLiteEngine(tdb.DB)

	overviews, err := engine.MessagesOverview(context.Background())
	testutil.MustNoErr(t, err, "overview")
	if len(overviews) != 1 {
		t.Fatalf("rows = %d, want 1", len(overviews))
	}
	if overviews[0].SenderName != "" || overviews[0].ProjectSlug != "" {
		t.Errorf("dangling refs resolved to %q/%q, want empty", overviews[0].SenderName, overviews[0].ProjectSlug)
	}
}

func TestRecipientsRoster(t *testing.T) {
	engine, ids := seededEngine(t)

	roster, err := engine.RecipientsRoster(context.Background())
	testutil.MustNoErr(t, err, "roster")

	want := map[int64]string{
		ids.Msg1: "CoralCrab, GreenHeron",
		ids.Msg2: "BlueJay",
		ids.Msg3: "GreenHeron",
		ids.Msg4: "BlueJay, GreenHeron",
		ids.Msg5: "BlueJay",
	}
	if diff := cmp.Diff(want, roster); diff != "" {
		t.Errorf("roster mismatch (-want +got):\n%s", diff)
	}
}

func TestMessageBody(t *testing.T) {
	engine, ids := seededEngine(t)

	body, err := engine.MessageBody(context.Background(), ids.Msg1)
	testutil.MustNoErr(t, err, "body")
	if body != "Proposing we split the tokenizer from the grammar." {
		t.Errorf("body = %q", body)
	}
}

func TestMessageBodyMissing(t *testing.T) {
	engine, _ := seededEngine(t)

	_, err := engine.MessageBody(context.Background(), 999)
	var snapErr *SnapshotError
	if !errors.As(err, &snapErr) {
		t.Fatalf("error = %v, want *SnapshotError", err)
	}
	if snapErr.Op != "message body" {
		t.Errorf("op = %q, want %q", snapErr.Op, "message body")
	}
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("error does not unwrap to sql.ErrNoRows: %v", err)
	}
}

func TestQueryAgainstBrokenSnapshot(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	testutil.MustNoErr(t, err, "open")
	t.Cleanup(func() { db.Close() })
	engine := NewSQLiteEngine(db)

	_, err = engine.ThreadRollup(context.Background(), 0)
	var snapErr *SnapshotError
	if !errors.As(err, &snapErr) {
		t.Fatalf("error = %v, want *SnapshotError", err)
	}
	if snapErr.Op != "thread rollup" {
		t.Errorf("op = %q, want %q", snapErr.Op, "thread rollup")
	}
	if !strings.Contains(err.Error(), "thread rollup") {
		t.Errorf("message %q does not name the operation", err.Error())
	}
}

func TestNormalizeImportance(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"urgent", ImportanceUrgent},
		{"URGENT", ImportanceUrgent},
		{" High ", ImportanceHigh},
		{"low", ImportanceLow},
		{"normal", ImportanceNormal},
		{"", ImportanceNormal},
		{"critical", ImportanceNormal},
	}
	for _, tc := range cases {
		if got := NormalizeImportance(tc.in); got != tc.want {
			t.Errorf("NormalizeImportance(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSnippet(t *testing.T) {
	if got := Snippet("short body"); got != "short body" {
		t.Errorf("short snippet = %q", got)
	}
	if got := Snippet("line one\nline two\t\tspaced"); got != "line one line two spaced" {
		t.Errorf("flattened snippet = %q", got)
	}

	long := strings.Repeat("word ", 60)
	got := Snippet(long)
	if !strings.HasSuffix(got, "…") {
		t.Errorf("long snippet %q not truncated", got)
	}
	if n := len([]rune(strings.TrimSuffix(got, "…"))); n != 120 {
		t.Errorf("truncated length = %d runes, want 120", n)
	}
}
