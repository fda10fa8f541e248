package relay

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

const (
	maxTopics     = 5
	maxTopicLen   = 120
	maxInsights   = 3
	maxInsightLen = 240

	noteInterruption = "[User interrupted the coach]"
	noteCoachSpeaks  = "[Coach responded with audio]"
)

// Snapshot is a copy of the buffer taken for one flush.
type Snapshot struct {
	Summary  string
	Topics   []string
	Insights []string
	Entries  int
	TakenAt  time.Time
}

// ActivityBuffer accumulates a readable log of one session. Entries are never
// cleared, so every flush carries the whole history. At most one flush is in
// flight at a time.
type ActivityBuffer struct {
	mu       sync.Mutex
	interval time.Duration

	entries  []string
	topics   []string
	insights []string

	lastFlush     time.Time
	flushing      bool
	agentSpeaking bool
}

// NewActivityBuffer starts the flush timer at start.
func NewActivityBuffer(interval time.Duration, start time.Time) *ActivityBuffer {
	return &ActivityBuffer{interval: interval, lastFlush: start}
}

// Observe records ev if it is of interest and reports whether the buffer changed.
func (b *ActivityBuffer) Observe(ev Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch ev.Kind {
	case KindInterruption:
		b.agentSpeaking = false
		b.entries = append(b.entries, noteInterruption)
		return true

	case KindAudio:
		// one note per coach turn, not per audio frame
		if b.agentSpeaking {
			return false
		}
		b.agentSpeaking = true
		b.entries = append(b.entries, noteCoachSpeaks)
		return true

	case KindUserTranscript:
		text := strings.TrimSpace(ev.Text)
		if text == "" {
			return false
		}
		b.agentSpeaking = false
		b.entries = append(b.entries, "User: "+text)
		b.topics = pushBounded(b.topics, truncate(text, maxTopicLen), maxTopics)
		return true

	case KindAgentResponse:
		text := strings.TrimSpace(ev.Text)
		if text == "" {
			return false
		}
		b.entries = append(b.entries, "Coach: "+text)
		b.insights = pushBounded(b.insights, truncate(text, maxInsightLen), maxInsights)
		return true

	case KindConversationUpdate:
		text := strings.TrimSpace(ev.Text)
		if text == "" {
			return false
		}
		b.entries = append(b.entries, text)
		return true
	}
	return false
}

// MaybeFlush returns a snapshot when the buffer is non-empty, no flush is in
// flight and more than the interval has passed since the last successful flush.
// The caller must report back with MarkFlushed or MarkFailed.
func (b *ActivityBuffer) MaybeFlush(now time.Time) (Snapshot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.flushing || len(b.entries) == 0 || now.Sub(b.lastFlush) <= b.interval {
		return Snapshot{}, false
	}
	b.flushing = true

	return Snapshot{
		Summary:  strings.Join(b.entries, "\n"),
		Topics:   append([]string(nil), b.topics...),
		Insights: append([]string(nil), b.insights...),
		Entries:  len(b.entries),
		TakenAt:  now,
	}, true
}

// MarkFlushed resets the flush timer to the time the flushed snapshot was taken.
func (b *ActivityBuffer) MarkFlushed(at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushing = false
	b.lastFlush = at
}

// MarkFailed keeps the timer as is so the next observed message tries again.
func (b *ActivityBuffer) MarkFailed() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushing = false
}

func (b *ActivityBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

func pushBounded(list []string, item string, max int) []string {
	list = append(list, item)
	if len(list) > max {
		list = append([]string(nil), list[len(list)-max:]...)
	}
	return list
}

// truncate cuts s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-1]) + "…"
}
