package fixtures

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/penwyp/go-ici-sync/internal/core/model"
)

// CorruptLogs are stored values that cannot be decoded as a message log.
var CorruptLogs = map[string][]byte{
	"truncated": []byte(`[{"q":"x","ts":1`),
	"object":    []byte(`{"not":"an array"}`),
	"text":      []byte(`hello`),
	"wrong ts":  []byte(`[{"q":"x","ts":"yesterday"}]`),
}

// ConversationGenerator produces deterministic message logs for tests and benchmarks.
type ConversationGenerator struct {
	Start   time.Time
	Step    time.Duration
	Authors []string
}

// NewConversationGenerator starts at start, spacing messages by step and
// rotating through authors.
func NewConversationGenerator(start time.Time, step time.Duration, authors ...string) *ConversationGenerator {
	if len(authors) == 0 {
		authors = []string{""}
	}
	return &ConversationGenerator{Start: start, Step: step, Authors: authors}
}

// Generate returns n messages in timestamp order. Every third message is answered.
func (g *ConversationGenerator) Generate(n int) []model.Message {
	msgs := make([]model.Message, n)
	for i := range msgs {
		msgs[i] = model.Message{
			Author:    g.Authors[i%len(g.Authors)],
			Question:  fmt.Sprintf("question %d", i),
			Timestamp: g.Start.Add(time.Duration(i) * g.Step).UnixMilli(),
		}
		if i%3 == 0 {
			msgs[i].Answer = fmt.Sprintf("answer %d", i)
		}
	}
	return msgs
}

// Encode renders msgs the way the private log stores them.
func Encode(msgs []model.Message) []byte {
	if msgs == nil {
		msgs = []model.Message{}
	}
	data, err := sonic.Marshal(msgs)
	if err != nil {
		panic(err)
	}
	return data
}
