package handlers

import (
	"context"
	"fmt"
	"log"

	"github.com/mymmrac/telego"

	"github.com/syntaxa/coffeechest/internal/auth"
	"github.com/syntaxa/coffeechest/internal/database"
	"github.com/syntaxa/coffeechest/internal/locales"
	botapi "github.com/syntaxa/coffeechest/pkg/telegoapi"
)

// Deliverer is the outbound side of the handler: every prompt and reply goes
// through the delivery gateway so the environment restriction applies to
// configuration traffic too.
type Deliverer interface {
	Send(ctx context.Context, chatID int64, text string, opts ...func(*telego.SendMessageParams)) error
	Broadcast(ctx context.Context, text string) (int, error)
}

// Command represents a bot command, mapping the command string to its
// description locale key and handler function.
type Command struct {
	Command     string
	Description string
	Handler     func(ctx context.Context, bot botapi.BotAPI, message telego.Message) error
}

// MessageHandler routes incoming Telegram messages and callback queries
// against the per-user configuration record. The persisted awaiting state is
// the primary dispatch key; the command name is secondary.
type MessageHandler struct {
	users        database.UserRepository
	gateway      Deliverer
	adminChecker *auth.AdminChecker

	commands []Command
}

// NewMessageHandler creates and initializes a new MessageHandler instance.
func NewMessageHandler(users database.UserRepository, gateway Deliverer, adminChecker *auth.AdminChecker) *MessageHandler {
	if users == nil || gateway == nil || adminChecker == nil {
		log.Fatal("MessageHandler: nil dependency")
	}
	h := &MessageHandler{
		users:        users,
		gateway:      gateway,
		adminChecker: adminChecker,
	}
	h.commands = []Command{
		{Command: "start", Description: "CmdStartDesc", Handler: h.HandleStart},
		{Command: "unregister", Description: "CmdUnregisterDesc", Handler: h.HandleUnregister},
		{Command: "settimezone", Description: "CmdSetTimezoneDesc", Handler: h.HandleSetTimezone},
		{Command: "settime", Description: "CmdSetTimeDesc", Handler: h.HandleSetTime},
		{Command: "sendhaiku", Description: "CmdSendHaikuDesc", Handler: h.HandleSendHaiku},
		{Command: "setcookie", Description: "CmdSetCookieDesc", Handler: h.HandleSetCookie},
		// /broadcast is admin-only and deliberately absent from the menu.
		{Command: "broadcast", Description: "", Handler: h.HandleBroadcast},
	}
	return h
}

// GetCommandHandler retrieves the handler function for a command string.
// It returns nil if the command is not found.
func (h *MessageHandler) GetCommandHandler(command string) func(context.Context, botapi.BotAPI, telego.Message) error {
	for _, cmd := range h.commands {
		if cmd.Command == command {
			return cmd.Handler
		}
	}
	return nil
}

// SetupCommands registers the user-visible command menu with Telegram.
func (h *MessageHandler) SetupCommands(ctx context.Context, bot botapi.BotAPI) error {
	localizer := locales.NewLocalizer(locales.DefaultLanguage)

	commands := make([]telego.BotCommand, 0, len(h.commands))
	for _, cmd := range h.commands {
		if cmd.Description == "" {
			continue
		}
		commands = append(commands, telego.BotCommand{
			Command:     cmd.Command,
			Description: locales.GetMessage(localizer, cmd.Description, nil),
		})
	}

	err := bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{Commands: commands})
	if err != nil {
		return fmt.Errorf("failed to set bot commands: %w", err)
	}
	log.Printf("Successfully set %d bot commands.", len(commands))
	return nil
}
