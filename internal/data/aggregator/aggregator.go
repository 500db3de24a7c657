package aggregator

import (
	"sort"
	"time"

	"github.com/penwyp/go-ici-sync/internal/core/model"
	"github.com/penwyp/go-ici-sync/internal/util"
)

// Group is a run of consecutive messages by one author within one calendar minute.
type Group struct {
	Author   string          `json:"author"`
	Minute   string          `json:"minute"`
	Bucket   time.Time       `json:"bucket"`
	Messages []model.Message `json:"messages"`
}

// Aggregator groups a log for display.
type Aggregator struct {
	time           *util.TimeProvider
	fallbackAuthor string
}

// NewAggregator buckets minutes in tp's zone. fallbackAuthor labels
// messages without an author; it never changes the messages themselves.
func NewAggregator(tp *util.TimeProvider, fallbackAuthor string) *Aggregator {
	if tp == nil {
		tp = util.GetTimeProvider()
	}
	return &Aggregator{time: tp, fallbackAuthor: fallbackAuthor}
}

// NewPrivateAggregator labels unauthored entries as the local user.
func NewPrivateAggregator(tp *util.TimeProvider) *Aggregator {
	return NewAggregator(tp, model.AuthorYou)
}

// NewSharedAggregator labels unauthored entries as anonymous.
func NewSharedAggregator(tp *util.TimeProvider) *Aggregator {
	return NewAggregator(tp, model.AuthorAnonymous)
}

// Aggregate sorts msgs by timestamp, keeping the input order of equal
// timestamps, and starts a new group whenever the author or the minute
// bucket differs from the previous group. Non-adjacent runs are never merged.
func (a *Aggregator) Aggregate(msgs []model.Message) []Group {
	if len(msgs) == 0 {
		return []Group{}
	}

	sorted := make([]model.Message, len(msgs))
	copy(sorted, msgs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	groups := make([]Group, 0, len(sorted))
	for _, m := range sorted {
		author := m.Author
		if author == "" {
			author = a.fallbackAuthor
		}
		bucket := a.time.MinuteBucket(m.Time())

		if n := len(groups); n > 0 && groups[n-1].Author == author && groups[n-1].Bucket.Equal(bucket) {
			groups[n-1].Messages = append(groups[n-1].Messages, m)
			continue
		}
		groups = append(groups, Group{
			Author:   author,
			Minute:   a.time.MinuteLabel(m.Time()),
			Bucket:   bucket,
			Messages: []model.Message{m},
		})
	}
	return groups
}
