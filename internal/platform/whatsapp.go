// ABOUTME: WhatsApp adapter for Twilio's form-encoded messaging webhook.
// ABOUTME: Replies are TwiML documents returned directly in the webhook response.

package platform

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/twilio/twilio-go/twiml"
)

const whatsAppPrefix = "whatsapp:"

// WhatsAppAdapter implements Adapter for WhatsApp via Twilio.
type WhatsAppAdapter struct{}

// Platform implements Adapter.
func (WhatsAppAdapter) Platform() Platform { return WhatsApp }

// Standardize implements Adapter. Button replies carry their payload in
// ButtonPayload, which wins over Body.
func (WhatsAppAdapter) Standardize(payload []byte) (Event, error) {
	form, err := url.ParseQuery(string(payload))
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	from := form.Get("From")
	if from == "" {
		return Event{}, missingField(WhatsApp, "From")
	}

	raw := make(map[string]any, len(form))
	for k := range form {
		raw[k] = form.Get(k)
	}

	text := form.Get("Body")
	if bp := form.Get("ButtonPayload"); bp != "" {
		text = bp
	}

	return Event{
		Platform:       WhatsApp,
		UserID:         strings.TrimPrefix(from, whatsAppPrefix),
		ConversationID: strings.TrimPrefix(form.Get("To"), whatsAppPrefix),
		MessageID:      form.Get("MessageSid"),
		Message:        text,
		RawData:        raw,
	}, nil
}

// Adapt implements Adapter.
func (WhatsAppAdapter) Adapt(msg Message) (any, error) {
	doc, err := twiml.Messages([]twiml.Element{
		&twiml.MessagingMessage{Body: plainText(msg.Response)},
	})
	if err != nil {
		return nil, fmt.Errorf("building twiml: %w", err)
	}
	return Raw{ContentType: "text/xml", Body: []byte(doc)}, nil
}
