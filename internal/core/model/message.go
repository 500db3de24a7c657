package model

import (
	"strconv"
	"strings"
	"time"
)

// Message is the atomic unit of both the private and the shared log.
// JSON names are the wire names of the shared-log service.
type Message struct {
	Author    string `json:"user,omitempty"`
	Question  string `json:"q"`
	Answer    string `json:"a"`
	Timestamp int64  `json:"ts"` // milliseconds since epoch
}

// DedupKey identifies a logical event across logs. There is no server id.
type DedupKey string

// NewMessage builds a message stamped with the current time.
func NewMessage(author, question string, now time.Time) Message {
	return Message{
		Author:    author,
		Question:  question,
		Timestamp: now.UnixMilli(),
	}
}

// Key returns the dedup key: timestamp and question joined by ':'.
func (m Message) Key() DedupKey {
	return DedupKey(strconv.FormatInt(m.Timestamp, 10) + ":" + m.Question)
}

// Time returns the creation time.
func (m Message) Time() time.Time {
	return time.UnixMilli(m.Timestamp)
}

// HasAnswer reports whether a non-blank answer is attached.
func (m Message) HasAnswer() bool {
	return strings.TrimSpace(m.Answer) != ""
}

// WithAuthor returns a copy of m stamped with author when it has none.
func (m Message) WithAuthor(author string) Message {
	if m.Author == "" {
		m.Author = author
	}
	return m
}

// KeySet collects the dedup keys of msgs.
func KeySet(msgs []Message) map[DedupKey]struct{} {
	keys := make(map[DedupKey]struct{}, len(msgs))
	for _, m := range msgs {
		keys[m.Key()] = struct{}{}
	}
	return keys
}

// Missing returns the entries of local whose key is absent from remote, in local
// order. Entries repeated within local are returned once.
func Missing(local, remote []Message) []Message {
	seen := KeySet(remote)
	var missing []Message
	for _, m := range local {
		k := m.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		missing = append(missing, m)
	}
	return missing
}

// StampAuthors returns a copy of msgs where every message lacking an author
// carries author.
func StampAuthors(msgs []Message, author string) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.WithAuthor(author)
	}
	return out
}
