package bot

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"

	"InboxGate/internal/config"
	"InboxGate/internal/lib/sl"
)

// TgBot delivers operational alerts to the admin chat.
type TgBot struct {
	log         *slog.Logger
	api         *tgbotapi.Bot
	botUsername string
	adminId     int64
	updater     *ext.Updater
}

func NewTgBot(conf *config.Config, log *slog.Logger) (*TgBot, error) {
	tgBot := &TgBot{
		log:         log.With(sl.Module("tgbot")),
		adminId:     conf.Telegram.AdminId,
		botUsername: conf.Telegram.BotName,
	}

	api, err := tgbotapi.NewBot(conf.Telegram.ApiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating api instance: %v", err)
	}
	tgBot.api = api

	return tgBot, nil
}

// Start polls for updates so the bot answers /start with the admin chat id.
func (t *TgBot) Start() error {
	dispatcher := ext.NewDispatcher(&ext.DispatcherOpts{
		Error: func(b *tgbotapi.Bot, ctx *ext.Context, err error) ext.DispatcherAction {
			t.log.Warn("handling update", sl.Err(err))
			return ext.DispatcherActionNoop
		},
		MaxRoutines: ext.DefaultMaxRoutines,
	})
	dispatcher.AddHandler(startHandler{})
	t.updater = ext.NewUpdater(dispatcher, nil)

	err := t.updater.StartPolling(t.api, &ext.PollingOpts{
		DropPendingUpdates: true,
		GetUpdatesOpts: &tgbotapi.GetUpdatesOpts{
			Timeout: 9,
			RequestOpts: &tgbotapi.RequestOpts{
				Timeout: time.Second * 10,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("start polling: %w", err)
	}

	t.updater.Idle()
	return nil
}

func (t *TgBot) Stop() {
	if t.updater != nil {
		_ = t.updater.Stop()
	}
}

// SendMessage implements the logger's and the refresh worker's notifier.
func (t *TgBot) SendMessage(msg string) {
	if t.adminId == 0 {
		return
	}
	t.plainResponse(t.adminId, msg)
}

func (t *TgBot) plainResponse(chatId int64, text string) {
	sanitized := sanitize(text)
	if sanitized == "" {
		t.log.With(slog.Int64("id", chatId)).Debug("empty message")
		return
	}

	_, err := t.api.SendMessage(chatId, sanitized, &tgbotapi.SendMessageOpts{
		ParseMode: "MarkdownV2",
	})
	if err != nil {
		t.log.With(slog.Int64("id", chatId)).Warn("sending message", sl.Err(err))
		_, err = t.api.SendMessage(chatId, text, &tgbotapi.SendMessageOpts{})
		if err != nil {
			t.log.With(slog.Int64("id", chatId)).Error("sending plain message", sl.Err(err))
		}
	}
}

type startHandler struct{}

func (startHandler) CheckUpdate(_ *tgbotapi.Bot, ctx *ext.Context) bool {
	return ctx.EffectiveMessage != nil && strings.HasPrefix(ctx.EffectiveMessage.Text, "/start")
}

func (startHandler) HandleUpdate(b *tgbotapi.Bot, ctx *ext.Context) error {
	reply := fmt.Sprintf("Your chat id: %d", ctx.EffectiveChat.Id)
	_, err := b.SendMessage(ctx.EffectiveChat.Id, reply, nil)
	return err
}

func (startHandler) Name() string {
	return "start"
}

// sanitize escapes the characters MarkdownV2 reserves.
func sanitize(input string) string {
	const reserved = "\\`_*[]()~>#+-=|{}.!"
	var b strings.Builder
	b.Grow(len(input))
	for _, char := range input {
		if strings.ContainsRune(reserved, char) {
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
