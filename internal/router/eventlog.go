package router

import (
	"sync"
	"time"
	"unicode/utf8"
)

const (
	// maxLogSize is the hard cap on retained events.
	maxLogSize = 1000
	// trimLogTo is how many of the newest events survive an overflow.
	trimLogTo = 500
	// previewLen is the number of input characters kept per event.
	previewLen = 200
)

// RoutingEvent records one decision and, once CheckAndPromote has run for it,
// the confidence verdict and any promoted follow-up decision.
type RoutingEvent struct {
	Timestamp        time.Time             `json:"timestamp"`
	SessionID        string                `json:"sessionId,omitempty"`
	InputPreview     string                `json:"inputPreview"`
	Decision         RoutingDecision       `json:"decision"`
	Confidence       *ConfidenceAssessment `json:"confidence,omitempty"`
	PromotedDecision *RoutingDecision      `json:"promotedDecision,omitempty"`
}

// FinalTier is the promoted tier if a promotion happened, else the original.
func (e RoutingEvent) FinalTier() Tier {
	if e.PromotedDecision != nil {
		return e.PromotedDecision.Tier
	}
	return e.Decision.Tier
}

// RoutingStats summarises the event log.
type RoutingStats struct {
	Total        int          `json:"total"`
	ByTier       map[Tier]int `json:"byTier"`
	Promotions   int          `json:"promotions"`
	AverageScore int          `json:"avgScore"`
}

// CheapShare is the fraction of events that ended on the cheap tier.
func (s RoutingStats) CheapShare() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.ByTier[TierCheap]) / float64(s.Total)
}

// EventLog is a bounded, append-only event list indexed by request id.
// It is safe for concurrent use.
type EventLog struct {
	mu     sync.RWMutex
	events []RoutingEvent
	index  map[string]int
}

// NewEventLog creates an empty log.
func NewEventLog() *EventLog {
	return &EventLog{index: make(map[string]int)}
}

// Append adds an event. When the log grows past 1000 entries it is cut back
// to the newest 500 in one step.
func (l *EventLog) Append(e RoutingEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, e)
	if id := e.Decision.RequestID; id != "" {
		l.index[id] = len(l.events) - 1
	}

	if len(l.events) > maxLogSize {
		kept := make([]RoutingEvent, trimLogTo)
		copy(kept, l.events[len(l.events)-trimLogTo:])
		l.events = kept
		l.reindex()
	}
}

func (l *EventLog) reindex() {
	l.index = make(map[string]int, len(l.events))
	for i, e := range l.events {
		if id := e.Decision.RequestID; id != "" {
			l.index[id] = i
		}
	}
}

// Attach records the confidence verdict (and promoted decision, if any) on
// the event for requestID. An empty requestID targets the newest event.
// It reports whether an event was found.
func (l *EventLog) Attach(requestID string, confidence ConfidenceAssessment, promoted *RoutingDecision) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	i, ok := l.locate(requestID)
	if !ok {
		return false
	}
	l.events[i].Confidence = &confidence
	if promoted != nil {
		p := *promoted
		l.events[i].PromotedDecision = &p
	}
	return true
}

func (l *EventLog) locate(requestID string) (int, bool) {
	if requestID == "" {
		if len(l.events) == 0 {
			return 0, false
		}
		return len(l.events) - 1, true
	}
	i, ok := l.index[requestID]
	return i, ok
}

// Lookup returns the event for requestID.
func (l *EventLog) Lookup(requestID string) (RoutingEvent, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if requestID == "" {
		return RoutingEvent{}, false
	}
	i, ok := l.index[requestID]
	if !ok {
		return RoutingEvent{}, false
	}
	return l.events[i], true
}

// Events returns a copy of the log, oldest first.
func (l *EventLog) Events() []RoutingEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]RoutingEvent, len(l.events))
	copy(out, l.events)
	return out
}

// Len returns the number of retained events.
func (l *EventLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Clear drops every event.
func (l *EventLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
	l.index = make(map[string]int)
}

// Stats aggregates the retained events. Tier counts use each event's final tier.
func (l *EventLog) Stats() RoutingStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := RoutingStats{
		Total:  len(l.events),
		ByTier: map[Tier]int{TierCheap: 0, TierMid: 0, TierPremium: 0},
	}
	if len(l.events) == 0 {
		return stats
	}

	total := 0
	for _, e := range l.events {
		stats.ByTier[e.FinalTier()]++
		total += e.Decision.Score.NormalizedScore
		if e.PromotedDecision != nil {
			stats.Promotions++
		}
	}
	stats.AverageScore = int(roundHalfUp(float64(total) / float64(len(l.events))))
	return stats
}

// preview returns at most the first 200 characters of s.
func preview(s string) string {
	if utf8.RuneCountInString(s) <= previewLen {
		return s
	}
	return string([]rune(s)[:previewLen])
}
