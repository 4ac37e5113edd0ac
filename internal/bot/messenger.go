package bot

import (
	"context"

	"github.com/mmeshcher/orderbot/internal/service"
	"github.com/mmeshcher/orderbot/internal/telegram"
)

// Messenger адаптирует клиент Bot API к транспортному контракту движка.
type Messenger struct {
	api *telegram.Client
}

// NewMessenger создаёт адаптер поверх клиента Bot API.
func NewMessenger(api *telegram.Client) *Messenger {
	return &Messenger{api: api}
}

// SendMessage отправляет текст в чат и возвращает идентификатор сообщения.
func (m *Messenger) SendMessage(ctx context.Context, chatID int64, text string, replyTo int64) (int64, error) {
	return m.api.SendMessage(ctx, chatID, text, replyTo, nil)
}

// EditMessageText заменяет текст зеркального сообщения.
func (m *Messenger) EditMessageText(ctx context.Context, chatID, messageID int64, text string) error {
	return m.api.EditMessageText(ctx, chatID, messageID, text)
}

// SetMessageReaction ставит реакцию на зеркальное сообщение.
func (m *Messenger) SetMessageReaction(ctx context.Context, chatID, messageID int64, emoji string) error {
	return m.api.SetMessageReaction(ctx, chatID, messageID, emoji)
}

// SendApprovalPrompt отправляет двухкнопочный запрос подтверждения.
func (m *Messenger) SendApprovalPrompt(ctx context.Context, chatID, replyTo int64, text string, approve, reject service.Button) (int64, error) {
	markup := &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{{
			{Text: approve.Label, CallbackData: approve.Data},
			{Text: reject.Label, CallbackData: reject.Data},
		}},
	}
	return m.api.SendMessage(ctx, chatID, text, replyTo, markup)
}
