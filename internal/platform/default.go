// ABOUTME: Best-effort adapter for platforms without a dedicated implementation.
// ABOUTME: Also holds the JSON helpers shared by the per-platform adapters.

package platform

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DefaultAdapter extracts the most generic shape it can find. Missing fields
// yield a partially empty Event rather than an error.
type DefaultAdapter struct {
	Name Platform
}

// DefaultReply is the generic outbound shape.
type DefaultReply struct {
	UserID  string   `json:"userId"`
	Text    string   `json:"text"`
	Type    string   `json:"type,omitempty"`
	Options []Option `json:"options,omitempty"`
}

var (
	defaultUserKeys    = []string{"userId", "user_id", "sender", "from"}
	defaultMessageKeys = []string{"message", "text", "body"}
	defaultIDKeys      = []string{"messageId", "message_id", "id"}
)

// Platform implements Adapter.
func (a DefaultAdapter) Platform() Platform {
	return a.Name
}

// Standardize implements Adapter.
func (a DefaultAdapter) Standardize(payload []byte) (Event, error) {
	raw, err := decodeRaw(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{
		Platform:  a.Name,
		UserID:    firstString(raw, defaultUserKeys),
		MessageID: firstString(raw, defaultIDKeys),
		Message:   firstString(raw, defaultMessageKeys),
		RawData:   raw,
	}, nil
}

// Adapt implements Adapter.
func (a DefaultAdapter) Adapt(msg Message) (any, error) {
	return DefaultReply{
		UserID:  msg.UserID,
		Text:    msg.Text,
		Type:    string(msg.Kind),
		Options: msg.Options,
	}, nil
}

// firstString returns the first key in keys that resolves to a scalar or to
// an object with an "id"/"text" field.
func firstString(raw map[string]any, keys []string) string {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok {
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			for _, inner := range []string{"id", "text"} {
				if s := stringify(nested[inner]); s != "" {
					return s
				}
			}
			continue
		}
		if s := stringify(v); s != "" {
			return s
		}
	}
	return ""
}

// decodeRaw decodes a JSON object, keeping numbers exact.
func decodeRaw(payload []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrInvalidPayload)
	}
	return raw, nil
}

// decodeJSON decodes payload into v and also returns the raw object.
func decodeJSON(payload []byte, v any) (map[string]any, error) {
	raw, err := decodeRaw(payload)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return raw, nil
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// plainText renders a reply with its options as a numbered list, for
// platforms without quick-reply buttons.
func plainText(r Response) string {
	if len(r.Options) == 0 {
		return r.Text
	}
	var b strings.Builder
	b.WriteString(r.Text)
	for i, opt := range r.Options {
		fmt.Fprintf(&b, "\n%d. %s", i+1, opt.Title)
	}
	return b.String()
}

func missingField(p Platform, field string) error {
	return fmt.Errorf("%w: %s payload missing %s", ErrInvalidPayload, p, field)
}
