// ABOUTME: Post-process plugin that maintains a running customer profile.
// ABOUTME: Scores each inbound message and stores the profile in its context namespace by session key.

package builtins

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/chat-relay/internal/analysis"
	"github.com/2389/chat-relay/internal/contextstore"
	"github.com/2389/chat-relay/internal/pipeline"
	"github.com/2389/chat-relay/internal/session"
)

// DefaultProfileTTL is how long an idle customer profile is kept.
const DefaultProfileTTL = 24 * time.Hour

// AnalysisName is the plugin name, and so the context namespace holding profiles.
const AnalysisName = "analysis"

// Analysis is the analysis plugin.
type Analysis struct {
	scorer analysis.Scorer
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// AnalysisOption configures the analysis plugin.
type AnalysisOption func(*Analysis)

// WithProfileTTL overrides DefaultProfileTTL.
func WithProfileTTL(ttl time.Duration) AnalysisOption {
	return func(a *Analysis) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

// WithAnalysisClock sets the time source used for profile timestamps.
func WithAnalysisClock(now func() time.Time) AnalysisOption {
	return func(a *Analysis) { a.now = now }
}

// WithAnalysisLogger sets the logger.
func WithAnalysisLogger(logger *slog.Logger) AnalysisOption {
	return func(a *Analysis) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAnalysis creates the analysis plugin. A nil scorer uses the lexicon scorer.
func NewAnalysis(scorer analysis.Scorer, opts ...AnalysisOption) *Analysis {
	if scorer == nil {
		scorer = analysis.NewLexiconScorer()
	}
	a := &Analysis{
		scorer: scorer,
		ttl:    DefaultProfileTTL,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "analysis")
	return a
}

// Name implements pipeline.Plugin.
func (a *Analysis) Name() string { return AnalysisName }

// Hooks implements pipeline.Plugin.
func (a *Analysis) Hooks() []pipeline.Hook { return []pipeline.Hook{pipeline.PostProcess} }

// Execute implements pipeline.Plugin. A scorer failure is returned so the
// pipeline discards this attempt and the turn proceeds unchanged.
func (a *Analysis) Execute(ctx context.Context, _ pipeline.Hook, bag pipeline.Bag) (pipeline.Bag, error) {
	text := bag.Event.Message
	if orig, ok := bag.Values[ValueOriginalMessage].(string); ok {
		text = orig
	}

	score, err := a.scorer.Score(ctx, text)
	if err != nil {
		return bag, fmt.Errorf("scoring message: %w", err)
	}
	qtype := analysis.ClassifyQuestion(NormalizeText(text))

	key := session.Key(bag.Event.Platform.String(), bag.Event.UserID)
	if bag.Session != nil {
		key = bag.Session.Key
	}

	prev, _ := Profile(bag.Context, key)
	profile := prev.Observe(score, qtype, a.now())
	bag.Context.SetTTL(key, profile, a.ttl)
	if bag.Values == nil {
		bag.Values = map[string]any{}
	}
	bag.Values[ValueCustomerProfile] = profile

	if profile.Action == analysis.ActionPriority && prev.Action != analysis.ActionPriority {
		a.logger.Info("high potential customer",
			"session_key", key,
			"potential_score", profile.PotentialScore,
			"sentiment", profile.Sentiment,
		)
	}
	return bag, nil
}

// Profile reads the stored profile for a session key from the analysis namespace.
func Profile(ns contextstore.Namespace, key string) (analysis.Profile, bool) {
	v, ok := ns.Get(key)
	if !ok {
		return analysis.Profile{}, false
	}
	p, ok := v.(analysis.Profile)
	return p, ok
}
