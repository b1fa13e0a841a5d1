package bot

import (
	"Solvextra/entity"
	"Solvextra/internal/lib/sl"
	"context"
	"fmt"
	"log"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers/filters/message"
)

// ChannelName is the canonical channel identifier for telegram customers.
const ChannelName = "telegram"

// Engine receives canonical inbound customer messages.
type Engine interface {
	OnCustomerMessage(ctx context.Context, channel, externalUserID, name, text string) (*entity.Conversation, error)
}

// TgBot is the telegram channel adapter: it translates updates into
// canonical inbound calls and delivers outbound text. It holds no routing
// logic. It doubles as the admin sink for the logger.
type TgBot struct {
	log         *slog.Logger
	api         *tgbotapi.Bot
	engine      Engine
	botUsername string
	adminId     int64
}

func NewTgBot(botName, apiKey string, adminId int64, log *slog.Logger) (*TgBot, error) {
	tgBot := &TgBot{
		log:         log.With(sl.Module("tgbot")),
		adminId:     adminId,
		botUsername: botName,
	}

	api, err := tgbotapi.NewBot(apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating api instance: %v", err)
	}
	tgBot.api = api

	return tgBot, nil
}

func (t *TgBot) SetEngine(engine Engine) {
	t.engine = engine
}

// Start begins long polling. Blocks until the updater stops.
func (t *TgBot) Start() error {

	dispatcher := ext.NewDispatcher(&ext.DispatcherOpts{
		// If an error is returned by a handler, log it and continue going.
		Error: func(b *tgbotapi.Bot, ctx *ext.Context, err error) ext.DispatcherAction {
			log.Println("an error occurred while handling update:", err.Error())
			return ext.DispatcherActionNoop
		},
		MaxRoutines: ext.DefaultMaxRoutines,
	})
	dispatcher.AddHandler(handlers.NewMessage(message.Text, t.handleMessage))

	updater := ext.NewUpdater(dispatcher, nil)

	err := updater.StartPolling(t.api, &ext.PollingOpts{
		DropPendingUpdates: true,
		GetUpdatesOpts: &tgbotapi.GetUpdatesOpts{
			Timeout: 9,
			RequestOpts: &tgbotapi.RequestOpts{
				Timeout: time.Second * 10,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("starting polling: %w", err)
	}

	updater.Idle()
	return nil
}

func (t *TgBot) handleMessage(b *tgbotapi.Bot, ctx *ext.Context) error {
	msg := ctx.EffectiveMessage
	if msg == nil || msg.From == nil || t.engine == nil {
		return nil
	}
	if msg.From.Id == t.adminId {
		return nil
	}

	userID := strconv.FormatInt(msg.From.Id, 10)
	name := strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)

	_, err := t.engine.OnCustomerMessage(context.Background(), ChannelName, userID, name, msg.Text)
	if err != nil {
		t.log.With(
			slog.String("user_id", userID),
			sl.Err(err),
		).Error("handling inbound message")
	}
	return nil
}

// Deliver pushes outbound text to a telegram customer.
func (t *TgBot) Deliver(ctx context.Context, externalUserID, text string) error {
	chatId, err := strconv.ParseInt(externalUserID, 10, 64)
	if err != nil {
		return fmt.Errorf("bad telegram user id %q: %w", externalUserID, err)
	}
	_, err = t.api.SendMessage(chatId, text, nil)
	if err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}
	return nil
}

// SendMessage pushes a plain message to the admin chat (logger sink).
func (t *TgBot) SendMessage(msg string) {
	if t.adminId == 0 {
		return
	}
	_, err := t.api.SendMessage(t.adminId, msg, nil)
	if err != nil {
		t.log.With(
			slog.Int64("id", t.adminId),
			sl.Err(err),
		).Error("sending admin message")
	}
}
