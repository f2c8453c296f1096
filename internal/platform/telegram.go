// ABOUTME: Telegram Bot API adapter for webhook updates.
// ABOUTME: Replies use the webhook-response form of sendMessage with an inline keyboard.

package platform

import "strconv"

// TelegramAdapter implements Adapter for Telegram bots.
type TelegramAdapter struct{}

type tgUser struct {
	ID int64 `json:"id"`
}

type tgChat struct {
	ID int64 `json:"id"`
}

type tgMessage struct {
	MessageID int64  `json:"message_id"`
	From      tgUser `json:"from"`
	Chat      tgChat `json:"chat"`
	Text      string `json:"text"`
}

type tgUpdate struct {
	UpdateID      int64      `json:"update_id"`
	Message       *tgMessage `json:"message"`
	CallbackQuery *struct {
		ID      string     `json:"id"`
		From    tgUser     `json:"from"`
		Message *tgMessage `json:"message"`
		Data    string     `json:"data"`
	} `json:"callback_query"`
}

// TelegramReply is a sendMessage call returned in the webhook response.
type TelegramReply struct {
	Method      string               `json:"method"`
	ChatID      string               `json:"chat_id"`
	Text        string               `json:"text"`
	ReplyMarkup *TelegramReplyMarkup `json:"reply_markup,omitempty"`
}

// TelegramReplyMarkup is an inline keyboard, one button per row.
type TelegramReplyMarkup struct {
	InlineKeyboard [][]TelegramButton `json:"inline_keyboard"`
}

// TelegramButton is an inline keyboard button.
type TelegramButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

// Platform implements Adapter.
func (TelegramAdapter) Platform() Platform { return Telegram }

// Standardize implements Adapter.
func (TelegramAdapter) Standardize(payload []byte) (Event, error) {
	var upd tgUpdate
	raw, err := decodeJSON(payload, &upd)
	if err != nil {
		return Event{}, err
	}

	evt := Event{Platform: Telegram, RawData: raw}
	switch {
	case upd.CallbackQuery != nil:
		cq := upd.CallbackQuery
		evt.UserID = formatID(cq.From.ID)
		evt.MessageID = cq.ID
		evt.Message = cq.Data
		if cq.Message != nil {
			evt.ConversationID = formatID(cq.Message.Chat.ID)
		}
	case upd.Message != nil:
		evt.UserID = formatID(upd.Message.From.ID)
		evt.ConversationID = formatID(upd.Message.Chat.ID)
		evt.MessageID = strconv.FormatInt(upd.UpdateID, 10)
		evt.Message = upd.Message.Text
	default:
		return Event{}, missingField(Telegram, "message")
	}

	if evt.UserID == "" {
		return Event{}, missingField(Telegram, "from.id")
	}
	return evt, nil
}

// Adapt implements Adapter.
func (TelegramAdapter) Adapt(msg Message) (any, error) {
	chatID := msg.ConversationID
	if chatID == "" {
		chatID = msg.UserID
	}

	reply := TelegramReply{
		Method: "sendMessage",
		ChatID: chatID,
		Text:   msg.Text,
	}
	if len(msg.Options) > 0 {
		markup := &TelegramReplyMarkup{}
		for _, opt := range msg.Options {
			markup.InlineKeyboard = append(markup.InlineKeyboard, []TelegramButton{
				{Text: opt.Title, CallbackData: opt.ID},
			})
		}
		reply.ReplyMarkup = markup
	}
	return reply, nil
}

func formatID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
