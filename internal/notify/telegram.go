// Package notify отправляет уведомления покупателям и администраторам через Telegram.
package notify

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Sender — минимальный контракт Telegram-клиента, нужный для отправки.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier доставляет сообщения через два бота: покупательского и админского.
// Доставка best-effort: ошибки логируются и не влияют на вызвавшую операцию.
type TelegramNotifier struct {
	customerBot  Sender
	adminBot     Sender
	adminChatIDs []int64
	logger       *zap.Logger
}

// NewTelegramNotifier создаёт нотификатор поверх двух ботов.
func NewTelegramNotifier(customerBot, adminBot Sender, adminChatIDs []int64, logger *zap.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		customerBot:  customerBot,
		adminBot:     adminBot,
		adminChatIDs: adminChatIDs,
		logger:       logger,
	}
}

// NotifyCustomer отправляет сообщение покупателю.
func (n *TelegramNotifier) NotifyCustomer(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := n.customerBot.Send(msg); err != nil {
		n.logger.Error("send customer message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// NotifyAdmins рассылает сообщение всем настроенным администраторам.
func (n *TelegramNotifier) NotifyAdmins(text string) {
	for _, chatID := range n.adminChatIDs {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = tgbotapi.ModeMarkdown
		if _, err := n.adminBot.Send(msg); err != nil {
			n.logger.Error("send admin message", zap.Int64("chat_id", chatID), zap.Error(err))
		}
	}
}
