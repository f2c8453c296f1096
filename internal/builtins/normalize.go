// ABOUTME: Pre-process plugin that canonicalizes inbound text.
// ABOUTME: Trims, lowercases and strips a leading bot mention so the state machine sees plain ids.

package builtins

import (
	"context"
	"regexp"
	"strings"

	"github.com/2389/chat-relay/internal/pipeline"
)

// Value keys written by the built-in plugins.
const (
	ValueOriginalMessage = "original_message"
	ValueCustomerProfile = "customer_profile"
	ValueDedupeKey       = "dedupe_key"
)

// leadingMention matches "@bot", "@bot:" or a Matrix "@bot:server" prefix.
var leadingMention = regexp.MustCompile(`^@\S+[:,]?\s+`)

// Normalize is the normalize plugin.
type Normalize struct{}

// NewNormalize creates the normalize plugin.
func NewNormalize() Normalize { return Normalize{} }

// Name implements pipeline.Plugin.
func (Normalize) Name() string { return "normalize" }

// Hooks implements pipeline.Plugin.
func (Normalize) Hooks() []pipeline.Hook { return []pipeline.Hook{pipeline.PreProcess} }

// Execute implements pipeline.Plugin.
func (Normalize) Execute(_ context.Context, _ pipeline.Hook, bag pipeline.Bag) (pipeline.Bag, error) {
	if bag.Values == nil {
		bag.Values = map[string]any{}
	}
	if _, seen := bag.Values[ValueOriginalMessage]; !seen {
		bag.Values[ValueOriginalMessage] = bag.Event.Message
	}
	bag.Event.Message = NormalizeText(bag.Event.Message)
	return bag, nil
}

// NormalizeText applies the normalize plugin's rewrite to s.
func NormalizeText(s string) string {
	s = strings.TrimSpace(s)
	s = leadingMention.ReplaceAllString(s, "")
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
