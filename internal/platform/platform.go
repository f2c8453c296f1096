// ABOUTME: Canonical inbound/outbound message types and the closed set of supported platforms.
// ABOUTME: For selects the adapter that converts between a platform wire format and the canonical shape.

package platform

import (
	"errors"
	"maps"
	"slices"
	"strings"
)

// ErrInvalidPayload indicates the inbound payload could not be decoded or lacks a sender.
var ErrInvalidPayload = errors.New("invalid payload")

// Platform names a messaging platform.
type Platform string

// Known platforms.
const (
	Facebook Platform = "facebook"
	Zalo     Platform = "zalo"
	Telegram Platform = "telegram"
	TikTok   Platform = "tiktok"
	Weibo    Platform = "weibo"
	Matrix   Platform = "matrix"
	WhatsApp Platform = "whatsapp"
)

// Known returns every platform with a dedicated adapter.
func Known() []Platform {
	return []Platform{Facebook, Zalo, Telegram, TikTok, Weibo, Matrix, WhatsApp}
}

// Parse normalizes a platform name from a URL path or config entry.
func Parse(s string) Platform {
	return Platform(strings.ToLower(strings.TrimSpace(s)))
}

// String returns the platform name.
func (p Platform) String() string {
	return string(p)
}

// Event is the canonical inbound message.
type Event struct {
	Platform       Platform       `json:"platform"`
	UserID         string         `json:"user_id"`
	ConversationID string         `json:"conversation_id,omitempty"` // chat/room/thread when distinct from the user
	MessageID      string         `json:"message_id,omitempty"`      // platform message id, may be empty
	Message        string         `json:"message"`
	RawData        map[string]any `json:"raw_data,omitempty"`
	Echo           bool           `json:"echo,omitempty"` // the bot's own outbound message reflected back
}

// ResponseKind classifies a reply produced by the conversation engine.
type ResponseKind string

// Response kinds.
const (
	KindWelcome   ResponseKind = "welcome"
	KindQuestions ResponseKind = "questions"
	KindAnswer    ResponseKind = "answer"
	KindError     ResponseKind = "error"
	KindIgnored   ResponseKind = "ignored"
)

// Option is a selectable quick reply.
type Option struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Response is platform-agnostic reply content.
type Response struct {
	Kind     ResponseKind      `json:"type"`
	Step     string            `json:"step,omitempty"`
	Text     string            `json:"text"`
	Options  []Option          `json:"options,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Clone returns a copy of r that shares no slices or maps with it.
func (r Response) Clone() Response {
	out := r
	out.Options = slices.Clone(r.Options)
	out.Metadata = maps.Clone(r.Metadata)
	return out
}

// Message is the canonical outbound reply: content plus recipient.
type Message struct {
	Platform       Platform
	UserID         string
	ConversationID string
	Response
}

// Raw is a non-JSON platform payload written to the transport as-is.
type Raw struct {
	ContentType string
	Body        []byte
}

// Adapter converts between one platform's wire format and the canonical types.
type Adapter interface {
	Platform() Platform
	// Standardize decodes an inbound webhook body.
	Standardize(payload []byte) (Event, error)
	// Adapt encodes a reply. The result is JSON-marshalable or a Raw.
	Adapt(msg Message) (any, error)
}

// For returns the adapter for p, or Default for platforms without one.
func For(p Platform) Adapter {
	switch p {
	case Facebook:
		return FacebookAdapter{}
	case Zalo:
		return ZaloAdapter{}
	case Telegram:
		return TelegramAdapter{}
	case TikTok:
		return TikTokAdapter{}
	case Weibo:
		return WeiboAdapter{}
	case Matrix:
		return MatrixAdapter{}
	case WhatsApp:
		return WhatsAppAdapter{}
	default:
		return DefaultAdapter{Name: p}
	}
}

// Standardize decodes payload using the adapter for p.
func Standardize(p Platform, payload []byte) (Event, error) {
	return For(p).Standardize(payload)
}

// AdaptToPlatform encodes msg using the adapter for p.
func AdaptToPlatform(p Platform, msg Message) (any, error) {
	return For(p).Adapt(msg)
}
