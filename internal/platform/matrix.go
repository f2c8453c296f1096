// ABOUTME: Matrix adapter for room message events pushed by an application service.
// ABOUTME: Accepts a single event or an appservice transaction and replies with m.text content.

package platform

import (
	"encoding/json"
	"fmt"

	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// MatrixAdapter implements Adapter for Matrix rooms.
type MatrixAdapter struct{}

// MatrixReply is a room message to send into the originating room.
type MatrixReply struct {
	RoomID  id.RoomID                 `json:"room_id"`
	Type    string                    `json:"type"`
	Content event.MessageEventContent `json:"content"`
}

type matrixTransaction struct {
	Events []json.RawMessage `json:"events"`
}

// Platform implements Adapter.
func (MatrixAdapter) Platform() Platform { return Matrix }

// Standardize implements Adapter. From a transaction, the first m.room.message
// event is used.
func (MatrixAdapter) Standardize(payload []byte) (Event, error) {
	raw, err := decodeRaw(payload)
	if err != nil {
		return Event{}, err
	}

	evtJSON := json.RawMessage(payload)
	if _, ok := raw["events"]; ok {
		var txn matrixTransaction
		if err := json.Unmarshal(payload, &txn); err != nil {
			return Event{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		evtJSON = nil
		for _, candidate := range txn.Events {
			var probe struct {
				Type string `json:"type"`
			}
			if json.Unmarshal(candidate, &probe) == nil && probe.Type == event.EventMessage.Type {
				evtJSON = candidate
				break
			}
		}
		if evtJSON == nil {
			return Event{}, missingField(Matrix, "m.room.message event")
		}
	}

	var evt event.Event
	if err := json.Unmarshal(evtJSON, &evt); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if evt.Type.Type != event.EventMessage.Type {
		return Event{}, fmt.Errorf("%w: unsupported matrix event type %q", ErrInvalidPayload, evt.Type.Type)
	}
	if evt.Sender == "" {
		return Event{}, missingField(Matrix, "sender")
	}

	var content event.MessageEventContent
	if len(evt.Content.VeryRaw) > 0 {
		if err := json.Unmarshal(evt.Content.VeryRaw, &content); err != nil {
			return Event{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
	}

	out := Event{
		Platform:       Matrix,
		UserID:         string(evt.Sender),
		ConversationID: string(evt.RoomID),
		MessageID:      string(evt.ID),
		RawData:        raw,
	}
	if content.MsgType == event.MsgText || content.MsgType == event.MsgNotice {
		out.Message = content.Body
	}
	return out, nil
}

// Adapt implements Adapter.
func (MatrixAdapter) Adapt(msg Message) (any, error) {
	return MatrixReply{
		RoomID: id.RoomID(msg.ConversationID),
		Type:   event.EventMessage.Type,
		Content: event.MessageEventContent{
			MsgType: event.MsgText,
			Body:    plainText(msg.Response),
		},
	}, nil
}
