// ABOUTME: Facebook Messenger adapter for webhook events and Send API replies.
// ABOUTME: Accepts either a single messaging object or the full page entry envelope.

package platform

import "unicode/utf8"

// Messenger limits quick replies to 13 entries with 20-character titles.
const (
	fbMaxQuickReplies = 13
	fbMaxTitleRunes   = 20
)

// FacebookAdapter implements Adapter for Messenger.
type FacebookAdapter struct{}

type fbMessaging struct {
	Sender    fbID  `json:"sender"`
	Recipient fbID  `json:"recipient"`
	Timestamp int64 `json:"timestamp"`
	Message   *struct {
		MID        string `json:"mid"`
		Text       string `json:"text"`
		IsEcho     bool   `json:"is_echo"`
		QuickReply *struct {
			Payload string `json:"payload"`
		} `json:"quick_reply"`
	} `json:"message"`
	Postback *struct {
		MID     string `json:"mid"`
		Title   string `json:"title"`
		Payload string `json:"payload"`
	} `json:"postback"`
}

type fbID struct {
	ID string `json:"id"`
}

type fbEnvelope struct {
	Object string `json:"object"`
	Entry  []struct {
		ID        string        `json:"id"`
		Messaging []fbMessaging `json:"messaging"`
	} `json:"entry"`
	fbMessaging
}

// FacebookReply is the Send API request body.
type FacebookReply struct {
	Recipient     fbID           `json:"recipient"`
	MessagingType string         `json:"messaging_type"`
	Message       FacebookOutMsg `json:"message"`
}

// FacebookOutMsg is the message part of a Send API request.
type FacebookOutMsg struct {
	Text         string               `json:"text"`
	QuickReplies []FacebookQuickReply `json:"quick_replies,omitempty"`
}

// FacebookQuickReply is a Messenger quick reply button.
type FacebookQuickReply struct {
	ContentType string `json:"content_type"`
	Title       string `json:"title"`
	Payload     string `json:"payload"`
}

// Platform implements Adapter.
func (FacebookAdapter) Platform() Platform { return Facebook }

// Standardize implements Adapter. A quick-reply or postback payload takes
// precedence over the typed text. Page echoes of sent replies set Event.Echo.
func (FacebookAdapter) Standardize(payload []byte) (Event, error) {
	var env fbEnvelope
	raw, err := decodeJSON(payload, &env)
	if err != nil {
		return Event{}, err
	}

	m := env.fbMessaging
	if env.Object != "" || len(env.Entry) > 0 {
		found := false
		for _, entry := range env.Entry {
			if len(entry.Messaging) > 0 {
				m = entry.Messaging[0]
				found = true
				break
			}
		}
		if !found {
			return Event{}, missingField(Facebook, "entry[].messaging")
		}
	}

	if m.Sender.ID == "" {
		return Event{}, missingField(Facebook, "sender.id")
	}

	evt := Event{
		Platform: Facebook,
		UserID:   m.Sender.ID,
		RawData:  raw,
	}
	switch {
	case m.Message != nil:
		evt.MessageID = m.Message.MID
		evt.Message = m.Message.Text
		evt.Echo = m.Message.IsEcho
		if m.Message.QuickReply != nil && m.Message.QuickReply.Payload != "" {
			evt.Message = m.Message.QuickReply.Payload
		}
	case m.Postback != nil:
		evt.MessageID = m.Postback.MID
		evt.Message = m.Postback.Payload
		if evt.Message == "" {
			evt.Message = m.Postback.Title
		}
	}
	return evt, nil
}

// Adapt implements Adapter.
func (FacebookAdapter) Adapt(msg Message) (any, error) {
	reply := FacebookReply{
		Recipient:     fbID{ID: msg.UserID},
		MessagingType: "RESPONSE",
		Message:       FacebookOutMsg{Text: msg.Text},
	}

	opts := msg.Options
	if len(opts) > fbMaxQuickReplies {
		// Overflow options stay reachable as text.
		reply.Message.Text = plainText(msg.Response)
		opts = opts[:fbMaxQuickReplies]
	}
	for _, opt := range opts {
		reply.Message.QuickReplies = append(reply.Message.QuickReplies, FacebookQuickReply{
			ContentType: "text",
			Title:       truncateRunes(opt.Title, fbMaxTitleRunes),
			Payload:     opt.ID,
		})
	}
	return reply, nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-1]) + "…"
}
