// ABOUTME: Pre-process plugin that drops redelivered webhooks.
// ABOUTME: Claims platform message ids in its namespace, vetoes repeats and releases the claim when a turn fails.

package builtins

import (
	"context"
	"time"

	"github.com/2389/chat-relay/internal/pipeline"
)

// DefaultDedupeTTL bounds how long a message id is remembered.
const DefaultDedupeTTL = 10 * time.Minute

// Dedupe is the dedupe plugin.
type Dedupe struct {
	ttl time.Duration
}

// NewDedupe creates the dedupe plugin. A non-positive ttl uses DefaultDedupeTTL.
func NewDedupe(ttl time.Duration) *Dedupe {
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}
	return &Dedupe{ttl: ttl}
}

// TTL returns how long message ids are remembered.
func (d *Dedupe) TTL() time.Duration { return d.ttl }

// Name implements pipeline.Plugin.
func (d *Dedupe) Name() string { return "dedupe" }

// Hooks implements pipeline.Plugin.
func (d *Dedupe) Hooks() []pipeline.Hook {
	return []pipeline.Hook{pipeline.PreProcess, pipeline.Abort}
}

// Execute implements pipeline.Plugin. Events without a message id always pass.
// The id is claimed atomically in pre-process, so of two concurrent deliveries
// only one runs. A failed turn forgets the id and the platform's retry is
// handled like a first delivery. The claimed key is left in
// Values[ValueDedupeKey] so the abort hook can tell its own claim apart.
func (d *Dedupe) Execute(_ context.Context, hook pipeline.Hook, bag pipeline.Bag) (pipeline.Bag, error) {
	if bag.Event.MessageID == "" {
		return bag, nil
	}
	key := bag.Event.Platform.String() + ":" + bag.Event.MessageID
	if hook == pipeline.Abort {
		// Only the turn that made the claim may release it.
		if claimed, _ := bag.Values[ValueDedupeKey].(string); claimed == key {
			bag.Context.Delete(key)
		}
		return bag, nil
	}
	if !bag.Context.SetIfAbsent(key, true, d.ttl) {
		bag.Veto = &pipeline.Veto{Plugin: d.Name(), Reason: "duplicate message " + key}
		return bag, nil
	}
	if bag.Values == nil {
		bag.Values = map[string]any{}
	}
	bag.Values[ValueDedupeKey] = key
	return bag, nil
}
