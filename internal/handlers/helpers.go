package handlers

import (
	"context"
	"log"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/syntaxa/coffeechest/internal/locales"
	botapi "github.com/syntaxa/coffeechest/pkg/telegoapi"
)

// reply sends a localized message to chatID through the delivery gateway.
func (h *MessageHandler) reply(ctx context.Context, chatID int64, msgID string, data map[string]interface{}, opts ...func(*telego.SendMessageParams)) error {
	localizer := locales.NewLocalizer(locales.DefaultLanguage)
	text := locales.GetMessage(localizer, msgID, data)
	if err := h.gateway.Send(ctx, chatID, text, opts...); err != nil {
		log.Printf("Error sending reply %q to chat %d: %v", msgID, chatID, err)
		return err
	}
	return nil
}

// withKeyboard attaches an inline keyboard to an outgoing message.
func withKeyboard(kb *telego.InlineKeyboardMarkup) func(*telego.SendMessageParams) {
	return func(p *telego.SendMessageParams) {
		p.ReplyMarkup = kb
	}
}

// answerCallback sends an ephemeral answer for a callback query.
func answerCallback(ctx context.Context, bot botapi.BotAPI, queryID, msgID string, data map[string]interface{}) {
	localizer := locales.NewLocalizer(locales.DefaultLanguage)
	err := bot.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{
		CallbackQueryID: queryID,
		Text:            locales.GetMessage(localizer, msgID, data),
	})
	if err != nil {
		log.Printf("Error answering callback query %s: %v", queryID, err)
	}
}

// ackCallback answers a callback query with no text, stopping the button
// loading indicator.
func ackCallback(ctx context.Context, bot botapi.BotAPI, queryID string) {
	err := bot.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{CallbackQueryID: queryID})
	if err != nil {
		log.Printf("Error answering callback query %s: %v", queryID, err)
	}
}

// removeKeyboard strips the inline keyboard from the originating message.
func removeKeyboard(ctx context.Context, bot botapi.BotAPI, chatID int64, messageID int) {
	_, err := bot.EditMessageReplyMarkup(ctx, &telego.EditMessageReplyMarkupParams{
		ChatID:      tu.ID(chatID),
		MessageID:   messageID,
		ReplyMarkup: &telego.InlineKeyboardMarkup{InlineKeyboard: [][]telego.InlineKeyboardButton{}},
	})
	if err != nil {
		log.Printf("Error removing keyboard from message %d in chat %d: %v", messageID, chatID, err)
	}
}
