package chat

import (
	"slices"
	"sort"
	"strings"
	"time"
)

// Message is the canonical chat message, used both as the wire DTO and
// the merged cache unit. Identity is the (Timestamp, Author) pair: two
// messages sharing it are the same logical message, and a later write
// with the same pair overwrites content, metadata and reactions.
type Message struct {
	Timestamp string            `json:"timestamp"`
	Author    string            `json:"author"`
	Content   string            `json:"content"`
	Npub      string            `json:"npub,omitempty"`
	Signature string            `json:"signature,omitempty"`
	Verified  bool              `json:"verified,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Reactions map[string][]string `json:"reactions,omitempty"`
}

// Well-known metadata keys. The map is open: stations may attach keys
// this client does not know about, and they survive merge untouched.
const (
	MetaFileName      = "file_name"
	MetaFileSize      = "file_size"
	MetaVoiceDuration = "voice_duration"
	MetaQuotedMessage = "quoted_message"
)

// Key returns the identity/dedup key. The NUL separator cannot occur in
// a canonical timestamp, so lexicographic key order equals (timestamp,
// author) order.
func (m Message) Key() string {
	return m.Timestamp + "\x00" + m.Author
}

// HasSignature reports whether the message carries a signature.
func (m Message) HasSignature() bool {
	return m.Signature != ""
}

// Time parses the canonical timestamp. The zero time is returned for a
// malformed one.
func (m Message) Time() time.Time {
	t, err := ParseTimestamp(m.Timestamp)
	if err != nil {
		return time.Time{}
	}

	return t
}

// IsAuthoredBy reports whether the message was written by the identity
// with the given callsign or npub. Used for the delete ownership check.
func (m Message) IsAuthoredBy(callsign, npub string) bool {
	if callsign != "" && strings.EqualFold(m.Author, callsign) {
		return true
	}

	return npub != "" && m.Npub == npub
}

// AttachmentName returns the attached file name, or "".
func (m Message) AttachmentName() string {
	return m.Metadata[MetaFileName]
}

// Clone returns a deep copy. Merge and optimistic updates mutate maps,
// so shared references must never leak across the cache boundary.
func (m Message) Clone() Message {
	out := m
	if m.Metadata != nil {
		out.Metadata = make(map[string]string, len(m.Metadata))
		for k, v := range m.Metadata {
			out.Metadata[k] = v
		}
	}

	out.Reactions = CloneReactions(m.Reactions)

	return out
}

// CloneReactions deep-copies a reaction map. Returns nil for nil.
func CloneReactions(reactions map[string][]string) map[string][]string {
	if reactions == nil {
		return nil
	}

	out := make(map[string][]string, len(reactions))
	for symbol, users := range reactions {
		out[symbol] = slices.Clone(users)
	}

	return out
}

// ApplyReaction computes the toggled reaction state for user acting with
// symbol. The user is removed from every bucket first (a user holds at
// most one reaction per message), then added to the target bucket unless
// they were toggling off the reaction they already held. Empty buckets
// are pruned. The input map is not mutated.
func ApplyReaction(reactions map[string][]string, symbol, user string) map[string][]string {
	hadSymbol := false
	out := make(map[string][]string)

	for sym, users := range reactions {
		kept := make([]string, 0, len(users))
		for _, u := range users {
			if u == user {
				if sym == symbol {
					hadSymbol = true
				}

				continue
			}

			kept = append(kept, u)
		}

		if len(kept) > 0 {
			out[sym] = kept
		}
	}

	if !hadSymbol {
		out[symbol] = append(out[symbol], user)
	}

	if len(out) == 0 {
		return nil
	}

	return out
}

// Merge upserts incoming messages into an ascending-by-key log and
// returns the merged log, still ascending. Incoming copies overwrite
// stored copies for the same key (the server is authoritative once a
// message round-trips). Merging the same set twice is a no-op.
func Merge(log []Message, incoming ...Message) []Message {
	if len(incoming) == 0 {
		return log
	}

	byKey := make(map[string]int, len(log))
	for i, m := range log {
		byKey[m.Key()] = i
	}

	appended := false

	for _, m := range incoming {
		if m.Timestamp == "" || m.Author == "" {
			continue
		}

		if i, ok := byKey[m.Key()]; ok {
			log[i] = m.Clone()
			continue
		}

		log = append(log, m.Clone())
		byKey[m.Key()] = len(log) - 1
		appended = true
	}

	if appended {
		sort.Slice(log, func(i, j int) bool { return log[i].Key() < log[j].Key() })
	}

	return log
}

// Tail returns the last limit messages of an ascending log. A limit of
// zero or less returns the whole log.
func Tail(log []Message, limit int) []Message {
	if limit <= 0 || len(log) <= limit {
		return log
	}

	return log[len(log)-limit:]
}

// Latest returns the last message of an ascending log, or a zero Message
// when the log is empty.
func Latest(log []Message) Message {
	if len(log) == 0 {
		return Message{}
	}

	return log[len(log)-1]
}
