// Package messenger is the single gate for outbound Telegram messages.
// It enforces the environment restriction (outside production the bot only
// ever messages the configured test chat) and translates the transport's
// blocked-recipient rejection into ErrRecipientBlocked so callers can clean
// up the user directory.
package messenger

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/mymmrac/telego"
	"github.com/mymmrac/telego/telegoapi"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/syntaxa/coffeechest/internal/database"
	botapi "github.com/syntaxa/coffeechest/pkg/telegoapi"
)

// ErrRecipientBlocked is returned when the recipient has blocked the bot.
// The record for that chat should be deleted; the send is never retried.
var ErrRecipientBlocked = errors.New("recipient has blocked the bot")

// Messenger wraps the transport's send primitive. It never mutates the user
// directory itself; blocked-user cleanup is the caller's decision, except in
// Broadcast which applies the shared cleanup policy.
type Messenger struct {
	bot        botapi.BotAPI
	users      database.UserRepository
	production bool
	testChatID int64
}

// New creates a Messenger. In non-production mode only testChatID is
// reachable; sends to any other chat are suppressed without error.
func New(bot botapi.BotAPI, users database.UserRepository, production bool, testChatID int64) *Messenger {
	return &Messenger{
		bot:        bot,
		users:      users,
		production: production,
		testChatID: testChatID,
	}
}

// Send delivers text to chatID. Returns ErrRecipientBlocked when the
// recipient has severed the relationship; other transport errors are wrapped
// and returned for the caller to decide on. Suppressed sends return nil.
func (m *Messenger) Send(ctx context.Context, chatID int64, text string, opts ...func(*telego.SendMessageParams)) error {
	if !m.production && chatID != m.testChatID {
		log.Printf("[Messenger] Suppressed message to chat %d (non-production mode)", chatID)
		return nil
	}

	params := tu.Message(tu.ID(chatID), text)
	for _, opt := range opts {
		opt(params)
	}

	_, err := m.bot.SendMessage(ctx, params)
	if err != nil {
		if isBlockedErr(err) {
			return fmt.Errorf("%w: chat %d", ErrRecipientBlocked, chatID)
		}
		log.Printf("[Messenger] Error sending message to chat %d: %v", chatID, err)
		return fmt.Errorf("failed to send message to chat %d: %w", chatID, err)
	}
	return nil
}

// Broadcast fans text out to every registered user. Recipients who blocked
// the bot are unregistered on the spot; any other per-recipient failure is
// logged and skipped. Returns the number of confirmed sends.
func (m *Messenger) Broadcast(ctx context.Context, text string) (int, error) {
	users, err := m.users.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load users for broadcast: %w", err)
	}
	log.Printf("[Broadcast] Sending to %d users", len(users))

	sent := 0
	for _, user := range users {
		err := m.Send(ctx, user.ChatID, text)
		switch {
		case errors.Is(err, ErrRecipientBlocked):
			if delErr := m.users.Delete(ctx, user.ChatID); delErr != nil {
				log.Printf("[Broadcast] Failed to unregister blocked user %d: %v", user.ChatID, delErr)
			} else {
				log.Printf("[Broadcast] User %s (%d) blocked the bot and was unregistered", user.Username, user.ChatID)
			}
		case err != nil:
			log.Printf("[Broadcast] Error sending to user %d: %v", user.ChatID, err)
		default:
			sent++
		}
	}
	log.Printf("[Broadcast] Complete, delivered to %d users", sent)
	return sent, nil
}

// isBlockedErr reports whether err is the transport's permanent "recipient
// unreachable" rejection (HTTP 403 from the Bot API).
func isBlockedErr(err error) bool {
	var apiErr *telegoapi.Error
	return errors.As(err, &apiErr) && apiErr.ErrorCode == 403
}
