package router

import (
	"fmt"
	"strings"
	"testing"
)

func eventFor(id string, tier Tier, score int) RoutingEvent {
	return RoutingEvent{
		Decision: RoutingDecision{
			RequestID: id,
			Tier:      tier,
			Score:     ComplexityScore{NormalizedScore: score, Tier: tier},
		},
	}
}

func TestEventLogTruncatesInOneBatch(t *testing.T) {
	l := NewEventLog()
	for i := 0; i < 1000; i++ {
		l.Append(eventFor(fmt.Sprintf("req-%d", i), TierCheap, 0))
	}
	if l.Len() != 1000 {
		t.Fatalf("expected 1000 events at the cap, got %d", l.Len())
	}

	l.Append(eventFor("req-1000", TierCheap, 0))
	if l.Len() != 500 {
		t.Fatalf("expected 500 events after overflow, got %d", l.Len())
	}

	events := l.Events()
	if events[0].Decision.RequestID != "req-501" {
		t.Errorf("expected oldest retained req-501, got %s", events[0].Decision.RequestID)
	}
	if events[499].Decision.RequestID != "req-1000" {
		t.Errorf("expected newest req-1000, got %s", events[499].Decision.RequestID)
	}

	if _, ok := l.Lookup("req-100"); ok {
		t.Error("evicted request should not be found")
	}
	if e, ok := l.Lookup("req-700"); !ok || e.Decision.RequestID != "req-700" {
		t.Errorf("expected req-700 to be indexed after reindex, got %+v ok=%v", e, ok)
	}

	// Grows again until the next overflow.
	for i := 1001; i < 1501; i++ {
		l.Append(eventFor(fmt.Sprintf("req-%d", i), TierCheap, 0))
	}
	if l.Len() != 1000 {
		t.Errorf("expected 1000 events before the second overflow, got %d", l.Len())
	}
	l.Append(eventFor("req-1501", TierCheap, 0))
	if l.Len() != 500 {
		t.Errorf("expected 500 events after the second overflow, got %d", l.Len())
	}
}

func TestEventLogAttachByRequestID(t *testing.T) {
	l := NewEventLog()
	l.Append(eventFor("a", TierCheap, 10))
	l.Append(eventFor("b", TierCheap, 20))

	promoted := RoutingDecision{RequestID: "a", Tier: TierMid, Promoted: true}
	if !l.Attach("a", ConfidenceAssessment{Score: 0.4}, &promoted) {
		t.Fatal("expected attach to find request a")
	}

	a, _ := l.Lookup("a")
	b, _ := l.Lookup("b")
	if a.PromotedDecision == nil || a.Confidence == nil {
		t.Error("expected request a to carry the promotion")
	}
	if b.PromotedDecision != nil || b.Confidence != nil {
		t.Error("interleaved request b should be untouched")
	}

	if l.Attach("missing", ConfidenceAssessment{}, nil) {
		t.Error("expected attach to report a missing request")
	}
}

func TestEventLogAttachWithoutIDTargetsNewest(t *testing.T) {
	l := NewEventLog()
	if l.Attach("", ConfidenceAssessment{}, nil) {
		t.Error("attach on an empty log should fail")
	}

	l.Append(eventFor("", TierCheap, 0))
	l.Append(eventFor("", TierMid, 0))
	if !l.Attach("", ConfidenceAssessment{Score: 0.9}, nil) {
		t.Fatal("expected attach to the newest event")
	}
	events := l.Events()
	if events[0].Confidence != nil {
		t.Error("older event should be untouched")
	}
	if events[1].Confidence == nil || events[1].Confidence.Score != 0.9 {
		t.Error("newest event should carry the assessment")
	}
}

func TestEventLogStatsUseFinalTier(t *testing.T) {
	l := NewEventLog()
	l.Append(eventFor("a", TierCheap, 10))
	l.Append(eventFor("b", TierCheap, 20))
	l.Append(eventFor("c", TierPremium, 81))

	promoted := RoutingDecision{RequestID: "a", Tier: TierMid, Promoted: true}
	l.Attach("a", ConfidenceAssessment{Score: 0.3}, &promoted)

	s := l.Stats()
	if s.Total != 3 {
		t.Errorf("expected total 3, got %d", s.Total)
	}
	if s.ByTier[TierCheap] != 1 || s.ByTier[TierMid] != 1 || s.ByTier[TierPremium] != 1 {
		t.Errorf("expected one event per final tier, got %v", s.ByTier)
	}
	if s.Promotions != 1 {
		t.Errorf("expected 1 promotion, got %d", s.Promotions)
	}
	if s.AverageScore != 37 {
		t.Errorf("expected average 37, got %d", s.AverageScore)
	}
	if share := s.CheapShare(); !approxEqual(share, 1.0/3) {
		t.Errorf("expected cheap share 1/3, got %f", share)
	}
}

func TestEventLogStatsEmpty(t *testing.T) {
	s := NewEventLog().Stats()
	if s.Total != 0 || s.AverageScore != 0 || s.CheapShare() != 0 {
		t.Errorf("expected zero stats, got %+v", s)
	}
	if len(s.ByTier) != 3 {
		t.Errorf("expected all tiers present, got %v", s.ByTier)
	}
}

func TestEventLogClear(t *testing.T) {
	l := NewEventLog()
	l.Append(eventFor("a", TierCheap, 0))
	l.Clear()
	if l.Len() != 0 {
		t.Errorf("expected empty log, got %d", l.Len())
	}
	if _, ok := l.Lookup("a"); ok {
		t.Error("cleared request should not be found")
	}
}

func TestEventsReturnsCopy(t *testing.T) {
	l := NewEventLog()
	l.Append(eventFor("a", TierCheap, 0))
	events := l.Events()
	events[0].SessionID = "mutated"
	if e, _ := l.Lookup("a"); e.SessionID != "" {
		t.Error("mutating the returned slice should not change the log")
	}
}

func TestPreview(t *testing.T) {
	if got := preview("short"); got != "short" {
		t.Errorf("expected unchanged short input, got %q", got)
	}
	long := strings.Repeat("가", 250)
	if got := preview(long); len([]rune(got)) != 200 {
		t.Errorf("expected 200 characters, got %d", len([]rune(got)))
	}
}
