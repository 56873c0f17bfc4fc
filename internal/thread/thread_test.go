package thread

import (
	"strings"
	"testing"

	"github.com/amodell/mailsnap/internal/query"
	"github.com/amodell/mailsnap/internal/testutil"
	"github.com/amodell/mailsnap/internal/testutil/dbtest"
)

func msg(id int64, threadID *string, createdTS, subject, body string) query.MessageOverview {
	return query.MessageOverview{
		Message: query.Message{
			ID:        id,
			Subject:   subject,
			ThreadID:  threadID,
			CreatedTS: createdTS,
		},
		BodyPrefix: body,
		Snippet:    query.Snippet(body),
	}
}

func threadKeys(threads []Thread) []string {
	keys := make([]string, len(threads))
	for i, t := range threads {
		keys[i] = t.Key.String()
	}
	return keys
}

func TestSynthesizeGroupsAndOrders(t *testing.T) {
	parser := dbtest.StrPtr("thread-parser")
	messages := []query.MessageOverview{
		msg(1, parser, "2026-02-01T09:00:00Z", "Refactor plan", ""),
		msg(2, parser, "2026-02-01T10:30:00Z", "Re: Refactor plan", ""),
		msg(3, parser, "2026-02-02T08:15:00Z", "Re: Refactor plan", ""),
		msg(4, nil, "2026-02-03T12:00:00Z", "Deploy window tonight", ""),
		msg(5, nil, "2026-02-03T13:00:00Z", "Contact request: GreenHeron", "Automated contact handshake."),
	}

	threads := Synthesize(messages)
	testutil.AssertStrings(t, threadKeys(threads), "msg:5", "msg:4", "thread-parser")

	parserThread := threads[2]
	if parserThread.Count() != 3 {
		t.Errorf("count = %d, want 3", parserThread.Count())
	}
	if parserThread.Latest.ID != 3 {
		t.Errorf("latest = %d, want 3", parserThread.Latest.ID)
	}
	for i := 1; i < len(parserThread.Messages); i++ {
		if parserThread.Messages[i-1].CreatedTS > parserThread.Messages[i].CreatedTS {
			t.Errorf("thread messages out of order at %d", i)
		}
	}
}

func TestSynthesizeSingletonsStayApart(t *testing.T) {
	messages := []query.MessageOverview{
		msg(1, nil, "2026-03-01T09:00:00Z", "Hi", ""),
		msg(2, nil, "2026-03-01T10:00:00Z", "Re: Hi", ""),
	}

	threads := Synthesize(messages)
	testutil.AssertStrings(t, threadKeys(threads), "msg:2", "msg:1")
}

func TestSynthesizeLatestTieBreak(t *testing.T) {
	key := dbtest.StrPtr("thread-x")
	ts := "2026-02-01T09:00:00Z"
	threads := Synthesize([]query.MessageOverview{
		msg(2, key, ts, "b", ""),
		msg(1, key, ts, "a", ""),
	})
	if len(threads) != 1 {
		t.Fatalf("threads = %d, want 1", len(threads))
	}
	if threads[0].Latest.ID != 2 {
		t.Errorf("latest = %d, want higher id 2 on equal timestamps", threads[0].Latest.ID)
	}
}

func TestSynthesizeThreadOrderInvariant(t *testing.T) {
	messages := []query.MessageOverview{
		msg(1, nil, "2026-01-03T00:00:00Z", "c", ""),
		msg(2, nil, "2026-01-01T00:00:00Z", "a", ""),
		msg(3, nil, "2026-01-02T00:00:00Z", "b", ""),
	}
	threads := Synthesize(messages)
	for i := 1; i < len(threads); i++ {
		if threads[i-1].Latest.CreatedTS < threads[i].Latest.CreatedTS {
			t.Errorf("threads out of order at %d", i)
		}
	}
}

func TestClassification(t *testing.T) {
	key := dbtest.StrPtr("thread-m")
	cases := []struct {
		name     string
		messages []query.MessageOverview
		want     Class
	}{
		{
			"all user",
			[]query.MessageOverview{
				msg(1, key, "2026-01-01T00:00:00Z", "plan", "notes"),
				msg(2, key, "2026-01-02T00:00:00Z", "re: plan", "more notes"),
			},
			ClassUser,
		},
		{
			"all admin",
			[]query.MessageOverview{
				msg(1, key, "2026-01-01T00:00:00Z", "Contact request: BlueJay", ""),
				msg(2, key, "2026-01-02T00:00:00Z", "", "Automated contact handshake. Reply to accept."),
			},
			ClassAdmin,
		},
		{
			"mixed",
			[]query.MessageOverview{
				msg(1, key, "2026-01-01T00:00:00Z", "Contact request: BlueJay", ""),
				msg(2, key, "2026-01-02T00:00:00Z", "plan", "notes"),
			},
			ClassMixed,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			threads := Synthesize(tc.messages)
			if len(threads) != 1 {
				t.Fatalf("threads = %d, want 1", len(threads))
			}
			if threads[0].Class != tc.want {
				t.Errorf("class = %v, want %v", threads[0].Class, tc.want)
			}
		})
	}
}

// An admin marker past the display snippet cut still classifies: the body
// prefix, not the truncated snippet, feeds the patterns.
func TestClassificationSeesBeyondSnippet(t *testing.T) {
	body := strings.Repeat("Greetings and a long preamble. ", 6) + "Automated contact handshake. Reply to accept."
	m := msg(1, nil, "2026-01-01T00:00:00Z", "Hello", body)
	if strings.Contains(m.Snippet, "handshake") {
		t.Fatalf("snippet %q carries the marker; the fixture body is too short", m.Snippet)
	}

	threads := Synthesize([]query.MessageOverview{m})
	if len(threads) != 1 {
		t.Fatalf("threads = %d, want 1", len(threads))
	}
	if threads[0].Class != ClassAdmin {
		t.Errorf("class = %v, want admin", threads[0].Class)
	}
}

func TestAdministrative(t *testing.T) {
	cases := []struct {
		subject, body string
		want          bool
	}{
		{"Contact request: GreenHeron", "", true},
		{"CONTACT REQUEST", "", true},
		{"", "Automated contact handshake. Reply to accept.", true},
		{"", "auto-handshake complete", true},
		{"Deploy window tonight", "Infra deploy at 22:00 UTC.", false},
		{"", "", false},
	}
	for _, tc := range cases {
		if got := Administrative(tc.subject, tc.body); got != tc.want {
			t.Errorf("Administrative(%q, %q) = %v, want %v", tc.subject, tc.body, got, tc.want)
		}
	}
}

func TestInsertDeepLinkedThread(t *testing.T) {
	threads := Synthesize([]query.MessageOverview{
		msg(1, nil, "2026-02-01T00:00:00Z", "a", ""),
		msg(2, nil, "2026-02-03T00:00:00Z", "b", ""),
	})

	key := ExplicitKey("thread-deep")
	deep := dbtest.StrPtr("thread-deep")
	threads = Insert(threads, key, []query.MessageOverview{
		msg(10, deep, "2026-02-02T00:00:00Z", "deep", ""),
	})

	testutil.AssertStrings(t, threadKeys(threads), "msg:2", "thread-deep", "msg:1")
}

func TestInsertReplacesExistingKey(t *testing.T) {
	key := ExplicitKey("thread-a")
	a := dbtest.StrPtr("thread-a")
	threads := Insert(nil, key, []query.MessageOverview{
		msg(1, a, "2026-02-01T00:00:00Z", "first", ""),
	})
	threads = Insert(threads, key, []query.MessageOverview{
		msg(1, a, "2026-02-01T00:00:00Z", "first", ""),
		msg(2, a, "2026-02-02T00:00:00Z", "second", ""),
	})
	if len(threads) != 1 {
		t.Fatalf("threads = %d, want 1", len(threads))
	}
	if threads[0].Count() != 2 {
		t.Errorf("count = %d, want 2", threads[0].Count())
	}
}

func TestInsertEmptyMessagesIsNoOp(t *testing.T) {
	threads := Synthesize([]query.MessageOverview{msg(1, nil, "2026-02-01T00:00:00Z", "a", "")})
	got := Insert(threads, ExplicitKey("thread-x"), nil)
	if len(got) != 1 {
		t.Errorf("threads = %d, want 1", len(got))
	}
}

func TestSynthesizeDoesNotMutateInput(t *testing.T) {
	key := dbtest.StrPtr("thread-x")
	messages := []query.MessageOverview{
		msg(2, key, "2026-01-02T00:00:00Z", "b", ""),
		msg(1, key, "2026-01-01T00:00:00Z", "a", ""),
	}
	Synthesize(messages)
	testutil.AssertEqualSlices(t, []int64{messages[0].ID, messages[1].ID}, 2, 1)
}
