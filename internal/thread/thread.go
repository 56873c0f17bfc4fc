package thread

import (
	"regexp"
	"sort"

	"github.com/amodell/mailsnap/internal/query"
)

// Class labels a thread by the provenance of its messages.
type Class int

const (
	// ClassUser means no message in the thread is administrative.
	ClassUser Class = iota
	// ClassAdmin means every message in the thread is administrative.
	ClassAdmin
	// ClassMixed means the thread holds both kinds.
	ClassMixed
)

func (c Class) String() string {
	switch c {
	case ClassUser:
		return "user"
	case ClassAdmin:
		return "admin"
	case ClassMixed:
		return "mixed"
	default:
		return "unknown"
	}
}

// The mail server emits a small fixed set of system-generated messages;
// these patterns recognize them. Bodies are matched against the stored
// body prefix, not the display snippet, so a marker past the snippet cut
// still classifies.
var (
	adminSubjectPattern = regexp.MustCompile(`(?i)contact request`)
	adminBodyPattern    = regexp.MustCompile(`(?i)automated contact handshake|auto-?handshake`)
)

// Administrative reports whether a message is system-generated rather than
// user-authored.
func Administrative(subject, body string) bool {
	return adminSubjectPattern.MatchString(subject) || adminBodyPattern.MatchString(body)
}

// Thread is one synthesized thread: its messages ascending by
// (created_ts, id), the latest message, and a classification.
type Thread struct {
	Key      Key
	Messages []query.MessageOverview
	Latest   query.MessageOverview
	Class    Class
}

// Count returns the number of messages in the thread.
func (t Thread) Count() int { return len(t.Messages) }

// Synthesize groups messages into threads and orders the result by latest
// message created_ts descending. The input is not mutated.
func Synthesize(messages []query.MessageOverview) []Thread {
	groups := make(map[Key][]query.MessageOverview)
	var order []Key
	for _, m := range messages {
		key := KeyFor(m.Message)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], m)
	}

	threads := make([]Thread, 0, len(order))
	for _, key := range order {
		threads = append(threads, build(key, groups[key]))
	}
	sortThreads(threads)
	return threads
}

// Insert adds one thread's messages to an already-synthesized list without
// regrouping the whole set; used when a deep-linked thread is fetched on its
// own. A thread under the same key is replaced.
func Insert(threads []Thread, key Key, messages []query.MessageOverview) []Thread {
	if len(messages) == 0 {
		return threads
	}

	out := make([]Thread, 0, len(threads)+1)
	for _, t := range threads {
		if t.Key != key {
			out = append(out, t)
		}
	}
	out = append(out, build(key, messages))
	sortThreads(out)
	return out
}

// build assembles a single thread from its messages.
func build(key Key, messages []query.MessageOverview) Thread {
	msgs := make([]query.MessageOverview, len(messages))
	copy(msgs, messages)
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].CreatedTS != msgs[j].CreatedTS {
			return msgs[i].CreatedTS < msgs[j].CreatedTS
		}
		return msgs[i].ID < msgs[j].ID
	})

	admin := 0
	for _, m := range msgs {
		if Administrative(m.Subject, m.BodyPrefix) {
			admin++
		}
	}
	class := ClassUser
	switch admin {
	case 0:
	case len(msgs):
		class = ClassAdmin
	default:
		class = ClassMixed
	}

	return Thread{
		Key:      key,
		Messages: msgs,
		Latest:   msgs[len(msgs)-1],
		Class:    class,
	}
}

// sortThreads orders by latest created_ts descending, latest id descending
// on ties.
func sortThreads(threads []Thread) {
	sort.SliceStable(threads, func(i, j int) bool {
		if threads[i].Latest.CreatedTS != threads[j].Latest.CreatedTS {
			return threads[i].Latest.CreatedTS > threads[j].Latest.CreatedTS
		}
		return threads[i].Latest.ID > threads[j].Latest.ID
	})
}
