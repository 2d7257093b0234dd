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

// HandleStart handles the /start registration command. It creates the record
// on first contact and is a no-op reply for already-registered users.
func (h *MessageHandler) HandleStart(ctx context.Context, bot botapi.BotAPI, message telego.Message) error {
	chatID := message.Chat.ID
	log.Printf("[Cmd:start User:%d] Processing registration for %s", chatID, message.From.Username)

	_, err := h.users.FindByChatID(ctx, chatID)
	if err == nil {
		return h.reply(ctx, chatID, "MsgAlreadyRegistered", nil)
	}
	if !errors.Is(err, database.ErrUserNotFound) {
		_ = h.reply(ctx, chatID, "MsgRegistrationError", nil)
		return fmt.Errorf("registration lookup failed: %w", err)
	}

	user := &models.User{
		ChatID:   chatID,
		Username: message.From.Username,
	}
	if err := h.users.Create(ctx, user); err != nil {
		_ = h.reply(ctx, chatID, "MsgRegistrationError", nil)
		return fmt.Errorf("registration failed: %w", err)
	}
	return h.reply(ctx, chatID, "MsgStart", nil)
}

// HandleUnregister deletes the user's record.
func (h *MessageHandler) HandleUnregister(ctx context.Context, bot botapi.BotAPI, message telego.Message) error {
	chatID := message.Chat.ID
	err := h.users.Delete(ctx, chatID)
	if errors.Is(err, database.ErrUserNotFound) {
		return h.reply(ctx, chatID, "MsgUnregisterNotRegistered", nil)
	}
	if err != nil {
		_ = h.reply(ctx, chatID, "MsgErrorGeneral", nil)
		return fmt.Errorf("unregister failed: %w", err)
	}
	log.Printf("[Cmd:unregister User:%d] Unregistered", chatID)
	return h.reply(ctx, chatID, "MsgUnregistered", nil)
}

// HandleSetTimezone shows the timezone choice keyboard. Starting the flow
// resets any other pending input state.
func (h *MessageHandler) HandleSetTimezone(ctx context.Context, bot botapi.BotAPI, message telego.Message) error {
	chatID := message.Chat.ID
	err := h.users.Update(ctx, chatID, map[string]interface{}{
		"awaiting":      nil,
		"selected_hour": nil,
	})
	if err != nil {
		_ = h.reply(ctx, chatID, "MsgErrorGeneral", nil)
		return fmt.Errorf("failed to reset pending state: %w", err)
	}
	return h.reply(ctx, chatID, "MsgChooseTimezone", nil, withKeyboard(timezoneKeyboard()))
}

// HandleSetTime sets the notification time. With an HH:MM argument the value
// is validated and stored directly; without one the two-step hour/minute
// picker starts.
func (h *MessageHandler) HandleSetTime(ctx context.Context, bot botapi.BotAPI, message telego.Message) error {
	chatID := message.Chat.ID
	args := strings.Fields(message.Text)

	if len(args) >= 2 {
		hour, minute, err := models.ParseNotificationTime(args[1])
		if err != nil {
			return h.reply(ctx, chatID, "MsgTimeInvalid", nil)
		}
		value := models.FormatNotificationTime(hour, minute)
		err = h.users.Update(ctx, chatID, map[string]interface{}{
			"notification_time": value,
			"awaiting":          nil,
			"selected_hour":     nil,
		})
		if err != nil {
			_ = h.reply(ctx, chatID, "MsgErrorGeneral", nil)
			return fmt.Errorf("failed to set notification time: %w", err)
		}
		return h.reply(ctx, chatID, "MsgTimeSet", map[string]interface{}{"Time": value})
	}

	// Picker start (or restart) clears the staged hour.
	err := h.users.Update(ctx, chatID, map[string]interface{}{
		"awaiting":      models.AwaitingHour,
		"selected_hour": nil,
	})
	if err != nil {
		_ = h.reply(ctx, chatID, "MsgErrorGeneral", nil)
		return fmt.Errorf("failed to start time picker: %w", err)
	}
	return h.reply(ctx, chatID, "MsgChooseHour", nil, withKeyboard(hourKeyboard()))
}

// HandleSendHaiku shows the current bonus-text setting with a toggle button.
func (h *MessageHandler) HandleSendHaiku(ctx context.Context, bot botapi.BotAPI, message telego.Message) error {
	chatID := message.Chat.ID
	user, err := h.users.FindByChatID(ctx, chatID)
	if err != nil {
		_ = h.reply(ctx, chatID, "MsgErrorGeneral", nil)
		return fmt.Errorf("failed to load user for /sendhaiku: %w", err)
	}

	msgID := "MsgHaikuStatusOff"
	if user.HaikuEnabled() {
		msgID = "MsgHaikuStatusOn"
	}
	return h.reply(ctx, chatID, msgID, nil, withKeyboard(haikuKeyboard()))
}

// HandleSetCookie shows the bonus-item settings keyboard.
func (h *MessageHandler) HandleSetCookie(ctx context.Context, bot botapi.BotAPI, message telego.Message) error {
	chatID := message.Chat.ID
	user, err := h.users.FindByChatID(ctx, chatID)
	if err != nil {
		_ = h.reply(ctx, chatID, "MsgErrorGeneral", nil)
		return fmt.Errorf("failed to load user for /setcookie: %w", err)
	}
	return h.reply(ctx, chatID, "MsgCookieSettings", nil, withKeyboard(cookieKeyboard(user.Cookie)))
}

// HandleBroadcast fans a message out to every user. Admin only.
func (h *MessageHandler) HandleBroadcast(ctx context.Context, bot botapi.BotAPI, message telego.Message) error {
	chatID := message.Chat.ID
	if !h.adminChecker.IsAdmin(chatID) {
		log.Printf("[Cmd:broadcast User:%d] Denied, not an admin", chatID)
		return h.reply(ctx, chatID, "MsgErrorRequiresAdmin", nil)
	}

	text := strings.TrimSpace(strings.TrimPrefix(message.Text, "/broadcast"))
	if text == "" {
		return h.reply(ctx, chatID, "MsgBroadcastUsage", nil)
	}

	sent, err := h.gateway.Broadcast(ctx, text)
	if err != nil {
		_ = h.reply(ctx, chatID, "MsgErrorGeneral", nil)
		return fmt.Errorf("broadcast failed: %w", err)
	}
	return h.reply(ctx, chatID, "MsgBroadcastDone", map[string]interface{}{"Count": sent})
}
