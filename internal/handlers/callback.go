package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/syntaxa/coffeechest/internal/database"
	"github.com/syntaxa/coffeechest/internal/database/models"
	botapi "github.com/syntaxa/coffeechest/pkg/telegoapi"
)

// HandleCallbackQuery routes one inline keyboard callback. Handlers must
// tolerate duplicate delivery of the same callback: Telegram may redeliver,
// and a re-applied update must leave the record in a valid state.
func (h *MessageHandler) HandleCallbackQuery(ctx context.Context, bot botapi.BotAPI, query telego.CallbackQuery) error {
	data := query.Data
	logPrefix := fmt.Sprintf("[Callback User:%d]", query.From.ID)

	msg, ok := query.Message.(*telego.Message)
	if !ok || msg == nil {
		log.Printf("%s Originating message inaccessible, data: %q", logPrefix, data)
		answerCallback(ctx, bot, query.ID, "MsgErrorGeneral", nil)
		return nil
	}
	chatID := msg.Chat.ID
	messageID := msg.MessageID

	user, err := h.users.FindByChatID(ctx, chatID)
	if errors.Is(err, database.ErrUserNotFound) {
		answerCallback(ctx, bot, query.ID, "MsgNotRegistered", nil)
		return nil
	}
	if err != nil {
		answerCallback(ctx, bot, query.ID, "MsgErrorGeneral", nil)
		return fmt.Errorf("failed to load user %d for callback: %w", chatID, err)
	}

	switch {
	case strings.HasPrefix(data, cbTimezonePrefix):
		return h.handleTimezoneChoice(ctx, bot, query, chatID, messageID, strings.TrimPrefix(data, cbTimezonePrefix))
	case data == cbTimezoneManual:
		return h.handleTimezoneManual(ctx, bot, query, chatID, messageID)
	case strings.HasPrefix(data, cbHourPrefix):
		return h.handleHourChoice(ctx, bot, query, chatID, strings.TrimPrefix(data, cbHourPrefix))
	case strings.HasPrefix(data, cbMinutePrefix):
		return h.handleMinuteChoice(ctx, bot, query, chatID, user, strings.TrimPrefix(data, cbMinutePrefix))
	case data == cbToggleBonusText:
		return h.handleHaikuToggle(ctx, bot, query, chatID, user)
	case data == cbToggleDessert:
		return h.handleCookieToggle(ctx, bot, query, chatID, messageID, user)
	case strings.HasPrefix(data, cbProbPrefix):
		return h.handleCookieProbability(ctx, bot, query, chatID, messageID, user, strings.TrimPrefix(data, cbProbPrefix))
	case data == cbCloseDessert:
		removeKeyboard(ctx, bot, chatID, messageID)
		ackCallback(ctx, bot, query.ID)
		return nil
	default:
		log.Printf("%s Unknown callback data: %q", logPrefix, data)
		answerCallback(ctx, bot, query.ID, "MsgErrorGeneral", nil)
		return nil
	}
}

// handleTimezoneChoice persists a zone picked from the fixed keyboard. An
// invalid zone gets an ephemeral error and the keyboard stays up for another
// try.
func (h *MessageHandler) handleTimezoneChoice(ctx context.Context, bot botapi.BotAPI, query telego.CallbackQuery, chatID int64, messageID int, zone string) error {
	loc, err := models.ValidateTimeZone(zone)
	if err != nil {
		answerCallback(ctx, bot, query.ID, "MsgTimezoneUnknownCallback", nil)
		return nil
	}

	err = h.users.Update(ctx, chatID, map[string]interface{}{
		"time_zone": loc.String(),
		"awaiting":  nil,
	})
	if err != nil {
		answerCallback(ctx, bot, query.ID, "MsgErrorGeneral", nil)
		return fmt.Errorf("failed to store timezone for %d: %w", chatID, err)
	}

	removeKeyboard(ctx, bot, chatID, messageID)
	ackCallback(ctx, bot, query.ID)
	log.Printf("[Callback User:%d] Timezone set to %s", chatID, loc.String())
	return h.reply(ctx, chatID, "MsgTimezoneSet", map[string]interface{}{"Zone": loc.String()})
}

// handleTimezoneManual switches the user to free-text timezone entry.
func (h *MessageHandler) handleTimezoneManual(ctx context.Context, bot botapi.BotAPI, query telego.CallbackQuery, chatID int64, messageID int) error {
	err := h.users.Update(ctx, chatID, map[string]interface{}{
		"awaiting":      models.AwaitingTimezone,
		"selected_hour": nil,
	})
	if err != nil {
		answerCallback(ctx, bot, query.ID, "MsgErrorGeneral", nil)
		return fmt.Errorf("failed to start manual timezone entry for %d: %w", chatID, err)
	}

	removeKeyboard(ctx, bot, chatID, messageID)
	ackCallback(ctx, bot, query.ID)
	return h.reply(ctx, chatID, "MsgTimezoneManualPrompt", nil)
}

// handleHourChoice stages the picked hour and presents the minute keyboard.
func (h *MessageHandler) handleHourChoice(ctx context.Context, bot botapi.BotAPI, query telego.CallbackQuery, chatID int64, raw string) error {
	hour, err := strconv.Atoi(raw)
	if err != nil || hour < 0 || hour > 23 {
		answerCallback(ctx, bot, query.ID, "MsgErrorGeneral", nil)
		return nil
	}

	err = h.users.Update(ctx, chatID, map[string]interface{}{
		"awaiting":      models.AwaitingMinute,
		"selected_hour": hour,
	})
	if err != nil {
		answerCallback(ctx, bot, query.ID, "MsgErrorGeneral", nil)
		return fmt.Errorf("failed to stage hour for %d: %w", chatID, err)
	}

	ackCallback(ctx, bot, query.ID)
	return h.reply(ctx, chatID, "MsgChooseMinute",
		map[string]interface{}{"Hour": fmt.Sprintf("%02d", hour)},
		withKeyboard(minuteKeyboard()))
}

// handleMinuteChoice completes the picker. A minute callback with no staged
// hour (stale or duplicate delivery) reports an error instead of writing a
// malformed time.
func (h *MessageHandler) handleMinuteChoice(ctx context.Context, bot botapi.BotAPI, query telego.CallbackQuery, chatID int64, user *models.User, raw string) error {
	minute, err := strconv.Atoi(raw)
	if err != nil || minute < 0 || minute > 59 {
		answerCallback(ctx, bot, query.ID, "MsgErrorGeneral", nil)
		return nil
	}

	if user.Awaiting != models.AwaitingMinute || user.SelectedHour == nil {
		log.Printf("[Callback User:%d] Stale minute callback, no staged hour", chatID)
		answerCallback(ctx, bot, query.ID, "MsgTimePickerStale", nil)
		return nil
	}

	value := models.FormatNotificationTime(*user.SelectedHour, minute)
	err = h.users.Update(ctx, chatID, map[string]interface{}{
		"notification_time": value,
		"awaiting":          nil,
		"selected_hour":     nil,
	})
	if err != nil {
		answerCallback(ctx, bot, query.ID, "MsgErrorGeneral", nil)
		return fmt.Errorf("failed to store notification time for %d: %w", chatID, err)
	}

	ackCallback(ctx, bot, query.ID)
	log.Printf("[Callback User:%d] Notification time set to %s", chatID, value)
	return h.reply(ctx, chatID, "MsgTimeSet", map[string]interface{}{"Time": value})
}

// handleHaikuToggle flips the tri-state bonus-text flag. The unset state
// reads as enabled, so the first ever toggle turns the haiku off.
func (h *MessageHandler) handleHaikuToggle(ctx context.Context, bot botapi.BotAPI, query telego.CallbackQuery, chatID int64, user *models.User) error {
	next := models.HaikuOn
	answerID := "MsgHaikuOn"
	if user.HaikuEnabled() {
		next = models.HaikuOff
		answerID = "MsgHaikuOff"
	}

	if err := h.users.Update(ctx, chatID, map[string]interface{}{"haiku": next}); err != nil {
		answerCallback(ctx, bot, query.ID, "MsgErrorGeneral", nil)
		return fmt.Errorf("failed to toggle haiku for %d: %w", chatID, err)
	}
	answerCallback(ctx, bot, query.ID, answerID, nil)
	return nil
}

// handleCookieToggle flips the bonus item and redraws the settings keyboard.
func (h *MessageHandler) handleCookieToggle(ctx context.Context, bot botapi.BotAPI, query telego.CallbackQuery, chatID int64, messageID int, user *models.User) error {
	settings := user.Cookie
	settings.Enabled = !settings.Enabled

	if err := h.users.Update(ctx, chatID, map[string]interface{}{"cookie.enabled": settings.Enabled}); err != nil {
		answerCallback(ctx, bot, query.ID, "MsgErrorGeneral", nil)
		return fmt.Errorf("failed to toggle cookie for %d: %w", chatID, err)
	}

	h.redrawCookieKeyboard(ctx, bot, chatID, messageID, settings)
	ackCallback(ctx, bot, query.ID)
	return nil
}

// handleCookieProbability stores the picked percentage and redraws the
// settings keyboard with the new choice marked.
func (h *MessageHandler) handleCookieProbability(ctx context.Context, bot botapi.BotAPI, query telego.CallbackQuery, chatID int64, messageID int, user *models.User, raw string) error {
	prob, err := strconv.Atoi(raw)
	if err != nil || prob <= 0 || prob > 100 {
		answerCallback(ctx, bot, query.ID, "MsgErrorGeneral", nil)
		return nil
	}

	settings := user.Cookie
	settings.Probability = prob

	if err := h.users.Update(ctx, chatID, map[string]interface{}{"cookie.probability": prob}); err != nil {
		answerCallback(ctx, bot, query.ID, "MsgErrorGeneral", nil)
		return fmt.Errorf("failed to set cookie probability for %d: %w", chatID, err)
	}

	h.redrawCookieKeyboard(ctx, bot, chatID, messageID, settings)
	ackCallback(ctx, bot, query.ID)
	return nil
}

func (h *MessageHandler) redrawCookieKeyboard(ctx context.Context, bot botapi.BotAPI, chatID int64, messageID int, settings models.CookieSettings) {
	_, err := bot.EditMessageReplyMarkup(ctx, &telego.EditMessageReplyMarkupParams{
		ChatID:      tu.ID(chatID),
		MessageID:   messageID,
		ReplyMarkup: cookieKeyboard(settings),
	})
	if err != nil {
		log.Printf("Error redrawing cookie keyboard in chat %d: %v", chatID, err)
	}
}
