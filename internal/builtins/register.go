// ABOUTME: Registers the built-in plugins with a pipeline in their fixed order.
// ABOUTME: normalize and dedupe run before the state machine, analysis after it.

package builtins

import (
	"errors"
	"log/slog"
	"time"

	"github.com/2389/chat-relay/internal/analysis"
	"github.com/2389/chat-relay/internal/pipeline"
)

// Options selects and configures the built-in plugins.
type Options struct {
	DedupeTTL       time.Duration
	DisableAnalysis bool
	Scorer          analysis.Scorer // nil uses the lexicon scorer
	Logger          *slog.Logger
}

// Register adds normalize, dedupe and (unless disabled) analysis to p.
// Rejections are logged by the pipeline and joined into the returned error.
func Register(p *pipeline.Pipeline, opts Options) error {
	plugins := []pipeline.Plugin{
		NewNormalize(),
		NewDedupe(opts.DedupeTTL),
	}
	if !opts.DisableAnalysis {
		plugins = append(plugins, NewAnalysis(opts.Scorer, WithAnalysisLogger(opts.Logger)))
	}

	var errs []error
	for _, pl := range plugins {
		if err := p.Register(pl); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
