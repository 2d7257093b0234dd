package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/mymmrac/telego"

	"github.com/syntaxa/coffeechest/internal/database"
	"github.com/syntaxa/coffeechest/internal/database/models"
	botapi "github.com/syntaxa/coffeechest/pkg/telegoapi"
)

// HandleMessage routes one inbound text message. The persisted awaiting
// state is consulted before command routing, so a user in the middle of
// manual timezone entry has their next message consumed by that flow.
func (h *MessageHandler) HandleMessage(ctx context.Context, bot botapi.BotAPI, message telego.Message) error {
	chatID := message.Chat.ID
	text := strings.TrimSpace(message.Text)
	if text == "" {
		return nil
	}

	// Registration works without an existing record and always short-circuits.
	if commandName(text) == "start" {
		return h.HandleStart(ctx, bot, message)
	}

	user, err := h.users.FindByChatID(ctx, chatID)
	if errors.Is(err, database.ErrUserNotFound) {
		return h.reply(ctx, chatID, "MsgNotRegistered", nil)
	}
	if err != nil {
		_ = h.reply(ctx, chatID, "MsgErrorGeneral", nil)
		return fmt.Errorf("failed to load user %d: %w", chatID, err)
	}

	if user.Awaiting == models.AwaitingTimezone {
		return h.handleTimezoneInput(ctx, chatID, text)
	}

	if strings.HasPrefix(text, "/") {
		command := commandName(text)
		if handler := h.GetCommandHandler(command); handler != nil {
			log.Printf("[Cmd:%s User:%d] Executing handler", command, chatID)
			return handler(ctx, bot, message)
		}
		log.Printf("[Cmd:%s User:%d] Unknown command", command, chatID)
		return h.reply(ctx, chatID, "MsgUnknownCommand", nil)
	}

	return h.reply(ctx, chatID, "MsgDidNotUnderstand", nil)
}

// handleTimezoneInput consumes a free-text message as a manual timezone
// entry. On failure the awaiting flag stays set so the user can retry.
func (h *MessageHandler) handleTimezoneInput(ctx context.Context, chatID int64, text string) error {
	loc, err := models.ValidateTimeZone(text)
	if err != nil {
		return h.reply(ctx, chatID, "MsgTimezoneUnknown", nil)
	}

	err = h.users.Update(ctx, chatID, map[string]interface{}{
		"time_zone": loc.String(),
		"awaiting":  nil,
	})
	if err != nil {
		_ = h.reply(ctx, chatID, "MsgErrorGeneral", nil)
		return fmt.Errorf("failed to store timezone for %d: %w", chatID, err)
	}
	log.Printf("[User:%d] Timezone set to %s (manual)", chatID, loc.String())
	return h.reply(ctx, chatID, "MsgTimezoneSet", map[string]interface{}{"Zone": loc.String()})
}

// commandName extracts the lowercased command from a message like
// "/SetTime@coffeechest_bot 09:30". Returns "" for non-command text.
func commandName(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	command := strings.Fields(text)[0][1:]
	if at := strings.IndexByte(command, '@'); at >= 0 {
		command = command[:at]
	}
	return strings.ToLower(command)
}
