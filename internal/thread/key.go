// Package thread derives thread structure from snapshot messages. Threads
// are never stored; they are synthesized from explicit thread ids, with
// threadless messages grouped into singleton threads under synthetic keys.
package thread

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/amodell/mailsnap/internal/query"
)

// Key is a thread's grouping identity: either the explicit thread id carried
// by the messages, or a synthetic singleton key derived from a message id.
// The tagged form keeps singletons type-distinct from collaborative threads
// instead of relying on sentinel strings.
type Key struct {
	explicit string
	msgID    int64
}

// ExplicitKey returns the key for a stored thread id.
func ExplicitKey(threadID string) Key {
	return Key{explicit: threadID}
}

// SyntheticKey returns the singleton key for a threadless message.
func SyntheticKey(messageID int64) Key {
	return Key{msgID: messageID}
}

// KeyFor derives the key for m: the explicit thread id when present and
// non-empty, else the synthetic singleton key.
func KeyFor(m query.Message) Key {
	if m.ThreadID != nil && *m.ThreadID != "" {
		return ExplicitKey(*m.ThreadID)
	}
	return SyntheticKey(m.ID)
}

// Synthetic reports whether k names a singleton thread.
func (k Key) Synthetic() bool { return k.explicit == "" }

// String renders the key in its wire form, "msg:<id>" for singletons.
func (k Key) String() string {
	if k.explicit != "" {
		return k.explicit
	}
	return fmt.Sprintf("msg:%d", k.msgID)
}

// ParseKey interprets a wire-form key string. It is the inverse of String
// for keys produced by this package; arbitrary strings parse as explicit
// keys unless they carry the synthetic prefix with a numeric id.
func ParseKey(s string) Key {
	if rest, ok := strings.CutPrefix(s, "msg:"); ok {
		if id, err := strconv.ParseInt(rest, 10, 64); err == nil {
			return SyntheticKey(id)
		}
	}
	return ExplicitKey(s)
}
