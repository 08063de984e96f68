package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const pollTimeout = 60

// runUpdates крутит long polling до отмены контекста, передавая апдейты в handle.
func runUpdates(ctx context.Context, api *tgbotapi.BotAPI, logger *zap.Logger, handle func(ctx context.Context, update tgbotapi.Update)) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updates := api.GetUpdatesChan(u)

	logger.Info("bot started", zap.String("username", api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			handle(ctx, update)
		}
	}
}

func send(api *tgbotapi.BotAPI, logger *zap.Logger, chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if keyboard != nil {
		msg.ReplyMarkup = *keyboard
	}
	if _, err := api.Send(msg); err != nil {
		logger.Error("send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func answerCallback(api *tgbotapi.BotAPI, logger *zap.Logger, callbackID string) {
	if _, err := api.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		logger.Error("answer callback", zap.Error(err))
	}
}
