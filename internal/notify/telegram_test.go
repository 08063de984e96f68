package notify

import (
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type recordingSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (s *recordingSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		s.sent = append(s.sent, msg)
	}
	return tgbotapi.Message{}, s.err
}

func TestNotifyCustomer(t *testing.T) {
	customer := &recordingSender{}
	n := NewTelegramNotifier(customer, &recordingSender{}, nil, zap.NewNop())

	n.NotifyCustomer(100, "hello")

	if len(customer.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(customer.sent))
	}
	if customer.sent[0].ChatID != 100 || customer.sent[0].Text != "hello" {
		t.Fatalf("unexpected message: %+v", customer.sent[0])
	}
}

func TestNotifyAdmins_FanOut(t *testing.T) {
	admin := &recordingSender{}
	n := NewTelegramNotifier(&recordingSender{}, admin, []int64{1, 2, 3}, zap.NewNop())

	n.NotifyAdmins("stock low")

	if len(admin.sent) != 3 {
		t.Fatalf("expected fan-out to 3 admins, got %d", len(admin.sent))
	}
	for i, want := range []int64{1, 2, 3} {
		if admin.sent[i].ChatID != want {
			t.Fatalf("message %d sent to %d, want %d", i, admin.sent[i].ChatID, want)
		}
	}
}

func TestNotify_SendErrorsAreSwallowed(t *testing.T) {
	customer := &recordingSender{err: errors.New("blocked by user")}
	n := NewTelegramNotifier(customer, customer, []int64{1}, zap.NewNop())

	// Ошибки доставки не должны приводить к панике или возврату ошибки.
	n.NotifyCustomer(100, "hello")
	n.NotifyAdmins("hello")
}
