package tgbot

import (
	"context"
	"log/slog"

	"github.com/KotFed0t/copytrade_backoffice/config"
	"github.com/KotFed0t/copytrade_backoffice/internal/converter/telebotConverter"
	"github.com/KotFed0t/copytrade_backoffice/internal/model"
	"github.com/KotFed0t/copytrade_backoffice/utils"
	tele "gopkg.in/telebot.v4"
)

// TGBot delivers back-office notifications to the admin chat. It only sends, so no poller is started.
type TGBot struct {
	bot       *tele.Bot
	adminChat *tele.Chat
}

func New(cfg *config.Config) *TGBot {
	settings := tele.Settings{
		Token:   cfg.Telegram.Token,
		Offline: cfg.Telegram.Token == "",
	}

	b, err := tele.NewBot(settings)
	if err != nil {
		slog.Error("error while tele.NewBot", slog.String("err", err.Error()))
		panic(err)
	}

	return &TGBot{bot: b, adminChat: &tele.Chat{ID: cfg.Telegram.AdminChatID}}
}

func (b *TGBot) SendToAdmins(ctx context.Context, notification model.Notification) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TGBot.SendToAdmins"

	_, err := b.bot.Send(b.adminChat, telebotConverter.NotificationMessage(notification))
	if err != nil {
		slog.Error("failed on bot.Send", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	slog.Debug("notification sent to admins", slog.String("rqID", rqID), slog.String("op", op), slog.String("action", notification.Action))

	return nil
}
