// ABOUTME: Data bag passed through the plugin pipeline for a single turn.
// ABOUTME: Cloning gives each plugin attempt an isolated copy that can be discarded on failure.

package pipeline

import (
	"maps"
	"slices"

	"github.com/2389/chat-relay/internal/contextstore"
	"github.com/2389/chat-relay/internal/platform"
	"github.com/2389/chat-relay/internal/session"
)

// Veto stops a turn. In pre-process the engine skips the state machine and
// replies with an ignored response.
type Veto struct {
	Plugin string
	Reason string
}

// Bag carries a turn's data through the plugins. Plugins never own the
// session or context store; they see copies and a namespace handle.
type Bag struct {
	Event    platform.Event
	Session  *session.Session   // nil until the engine has loaded the session
	Response *platform.Response // nil in pre-process
	Context  contextstore.Namespace
	Values   map[string]any
	Veto     *Veto
}

// Clone returns a deep copy of b.
func (b Bag) Clone() Bag {
	out := b
	out.Event.RawData = cloneMap(b.Event.RawData)
	if b.Session != nil {
		s := session.Snapshot(b.Session)
		out.Session = &s
	}
	if b.Response != nil {
		r := b.Response.Clone()
		out.Response = &r
	}
	out.Values = cloneMap(b.Values)
	if out.Values == nil {
		out.Values = map[string]any{}
	}
	if b.Veto != nil {
		v := *b.Veto
		out.Veto = &v
	}
	return out
}

// Vetoed reports whether any plugin vetoed the turn.
func (b Bag) Vetoed() bool {
	return b.Veto != nil
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return slices.Clone(val)
	case map[string]string:
		return maps.Clone(val)
	default:
		return v
	}
}
