package router

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// RouteRequest is the input to Route.
type RouteRequest struct {
	Input          string
	HasAttachments bool
	// SessionID is recorded in the event log; it does not affect routing.
	SessionID string
	// RequestID correlates Route with a later CheckAndPromote. A UUID is
	// generated when empty.
	RequestID string
}

// RoutingDecision is the outcome of a routing or promotion step. A promotion
// produces a new value; decisions are never modified in place.
type RoutingDecision struct {
	RequestID    string          `json:"requestId"`
	Model        string          `json:"model"`
	Tier         Tier            `json:"tier"`
	Score        ComplexityScore `json:"score"`
	Reason       string          `json:"reason"`
	Promoted     bool            `json:"promoted"`
	OriginalTier *Tier           `json:"originalTier,omitempty"`
}

// PromotionResult is returned by CheckAndPromote.
type PromotionResult struct {
	Promoted    bool                 `json:"promoted"`
	NewDecision *RoutingDecision     `json:"newDecision,omitempty"`
	Confidence  ConfidenceAssessment `json:"confidence"`
}

// Recorder receives routing observations, typically for metrics.
type Recorder interface {
	ObserveDecision(d RoutingDecision)
	ObserveConfidence(a ConfidenceAssessment)
	ObservePromotion(from, to Tier)
}

type nopRecorder struct{}

func (nopRecorder) ObserveDecision(RoutingDecision)        {}
func (nopRecorder) ObserveConfidence(ConfidenceAssessment) {}
func (nopRecorder) ObservePromotion(Tier, Tier)            {}

// Option configures a Router.
type Option func(*Router)

// WithScorer replaces the scorer built from the embedded corpus.
func WithScorer(s *Scorer) Option {
	return func(r *Router) { r.scorer = s }
}

// WithAssessor replaces the assessor built from the embedded corpus.
func WithAssessor(a *Assessor) Option {
	return func(r *Router) { r.assessor = a }
}

// WithRecorder sends observations to rec.
func WithRecorder(rec Recorder) Option {
	return func(r *Router) { r.recorder = rec }
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

// Router scores requests, picks a tier and model, and escalates decisions
// whose answers look unreliable.
//
// Every call reads the active configuration once, so a concurrent
// UpdateConfig never mixes old and new settings within one computation.
type Router struct {
	writeMu sync.Mutex
	cfg     atomic.Pointer[SmartRoutingConfig]

	scorer   *Scorer
	assessor *Assessor
	events   *EventLog
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Router whose configuration is override merged onto the
// built-in defaults.
func New(override ConfigOverride, logger *slog.Logger, opts ...Option) *Router {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Router{
		events:   NewEventLog(),
		recorder: nopRecorder{},
		logger:   logger.With("component", "smart-router"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.scorer == nil || r.assessor == nil {
		s, a := defaults()
		if r.scorer == nil {
			r.scorer = s
		}
		if r.assessor == nil {
			r.assessor = a
		}
	}
	if r.recorder == nil {
		r.recorder = nopRecorder{}
	}

	cfg := NewConfig(override)
	r.store(cfg)
	return r
}

func (r *Router) store(cfg SmartRoutingConfig) {
	r.cfg.Store(&cfg)
	for _, w := range cfg.Warnings() {
		r.logger.Warn("routing config", "warning", w)
	}
}

// Route scores the request and returns the decision for its tier's primary model.
func (r *Router) Route(req RouteRequest) RoutingDecision {
	cfg := r.cfg.Load()

	score := r.scorer.Score(req.Input, req.HasAttachments, cfg.Weights, cfg.Thresholds)

	id := req.RequestID
	if id == "" {
		id = uuid.NewString()
	}

	decision := RoutingDecision{
		RequestID: id,
		Model:     cfg.Tiers.For(score.Tier).Primary,
		Tier:      score.Tier,
		Score:     score,
		Reason:    buildReason(score, cfg.Tiers),
	}

	r.recorder.ObserveDecision(decision)

	if cfg.Debug {
		r.events.Append(RoutingEvent{
			Timestamp:    r.now(),
			SessionID:    req.SessionID,
			InputPreview: preview(req.Input),
			Decision:     decision,
		})
		r.logger.Info("routing decision",
			"request_id", id,
			"session_id", req.SessionID,
			"tier", score.Tier.String(),
			"model", decision.Model,
			"normalised_score", score.NormalizedScore,
			"raw_score", score.RawScore,
		)
	}

	return decision
}

// CheckAndPromote assesses answer, the output of the model chosen by
// decision, and escalates to a higher tier when confidence is too low.
//
// Assessment is skipped when promotion is disabled or MaxPromotions is below
// one, when the decision is already premium, and when it was itself produced
// by a promotion.
func (r *Router) CheckAndPromote(decision RoutingDecision, answer, sessionID string) PromotionResult {
	cfg := r.cfg.Load()
	policy := cfg.Promotion

	if !policy.Enabled || policy.MaxPromotions < 1 || decision.Tier >= TierPremium || decision.Promoted {
		return PromotionResult{Confidence: perfectConfidence()}
	}

	conf := r.assessor.Assess(answer, decision.Score.Features.TokenCount, policy)
	r.recorder.ObserveConfidence(conf)

	if !conf.NeedsPromotion {
		if cfg.Debug {
			r.attach(decision.RequestID, conf, nil)
		}
		return PromotionResult{Confidence: conf}
	}

	from := decision.Tier
	to := PromoteTier(from, policy.MaxTierJump)
	promoted := RoutingDecision{
		RequestID:    decision.RequestID,
		Model:        cfg.Tiers.For(to).Primary,
		Tier:         to,
		Score:        decision.Score,
		Reason:       fmt.Sprintf("promoted: confidence %.2f < %g → %s → %s", conf.Score, policy.ConfidenceThreshold, from, to),
		Promoted:     true,
		OriginalTier: &from,
	}

	r.recorder.ObservePromotion(from, to)

	if cfg.Debug {
		r.attach(decision.RequestID, conf, &promoted)
		r.logger.Info("routing promotion",
			"request_id", decision.RequestID,
			"session_id", sessionID,
			"from", from.String(),
			"to", to.String(),
			"model", promoted.Model,
			"confidence", conf.Score,
			"signals", len(conf.Signals),
		)
	}

	return PromotionResult{Promoted: true, NewDecision: &promoted, Confidence: conf}
}

func (r *Router) attach(requestID string, conf ConfidenceAssessment, promoted *RoutingDecision) {
	if !r.events.Attach(requestID, conf, promoted) {
		r.logger.Debug("no logged event for request", "request_id", requestID)
	}
}

// buildReason lists the sub-scores that fired and the chosen tier's alias.
func buildReason(score ComplexityScore, tiers TierSet) string {
	fs := score.FeatureScores
	parts := []string{fmt.Sprintf("score %d/100", score.NormalizedScore)}

	if fs.Length > 0 {
		parts = append(parts, fmt.Sprintf("length %dpt", int(roundHalfUp(fs.Length))))
	}
	bonuses := []struct {
		label string
		v     float64
	}{
		{"code", fs.Code},
		{"math", fs.Math},
		{"multi-step", fs.MultiStep},
		{"constraints", fs.Constraints},
		{"ambiguity", fs.Ambiguity},
		{"attachments", fs.Attachments},
	}
	for _, b := range bonuses {
		if b.v > 0 {
			parts = append(parts, fmt.Sprintf("%s +%gpt", b.label, b.v))
		}
	}

	parts = append(parts, fmt.Sprintf("→ %s (%s)", tiers.For(score.Tier).Alias, score.Tier))
	return strings.Join(parts, " | ")
}

// ── Tier registry ────────────────────────────────────────────────────────────

// ModelsForTier returns the tier's primary model followed by its fallbacks.
func (r *Router) ModelsForTier(t Tier) []string {
	return r.cfg.Load().Tiers.For(t).Models()
}

// TierAlias returns the display name of a tier.
func (r *Router) TierAlias(t Tier) string {
	return r.cfg.Load().Tiers.For(t).Alias
}

// ResolveModel returns the first of ModelsForTier(t) that avail accepts.
// A nil avail accepts everything.
func (r *Router) ResolveModel(t Tier, avail Availability) (string, error) {
	if avail == nil {
		avail = AllAvailable
	}
	models := r.ModelsForTier(t)
	for i, m := range models {
		if m == "" || !avail.Available(m) {
			continue
		}
		if i > 0 {
			r.logger.Info("using fallback model", "tier", t.String(), "preferred", models[0], "fallback", m)
		}
		return m, nil
	}
	return "", fmt.Errorf("%w %s (tried %s)", ErrNoAvailableModel, t, strings.Join(models, ", "))
}

// ── Configuration ────────────────────────────────────────────────────────────

// Enabled reports whether smart routing is switched on.
func (r *Router) Enabled() bool {
	return r.cfg.Load().Enabled
}

// Config returns a deep copy of the active configuration.
func (r *Router) Config() SmartRoutingConfig {
	return r.cfg.Load().Clone()
}

// UpdateConfig merges o onto the active configuration. Fields not named in o
// keep their current values, except that naming any tier resets the
// unnamed tiers to their defaults.
func (r *Router) UpdateConfig(o ConfigOverride) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	r.store(r.cfg.Load().Apply(o))
	r.logger.Info("routing config updated")
}

// ReplaceConfig installs cfg wholesale.
func (r *Router) ReplaceConfig(cfg SmartRoutingConfig) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	r.store(cfg.Clone())
	r.logger.Info("routing config replaced")
}

// ── Event log ────────────────────────────────────────────────────────────────

// EventLog returns a copy of the logged events, oldest first. Events are
// only recorded while the debug flag is on.
func (r *Router) EventLog() []RoutingEvent {
	return r.events.Events()
}

// Event returns the logged event for requestID.
func (r *Router) Event(requestID string) (RoutingEvent, bool) {
	return r.events.Lookup(requestID)
}

// ClearEventLog drops every logged event.
func (r *Router) ClearEventLog() {
	r.events.Clear()
}

// Stats summarises the event log.
func (r *Router) Stats() RoutingStats {
	return r.events.Stats()
}
