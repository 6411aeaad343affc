// Package notify pushes payment events to the administrator's Telegram chat.
package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/DenisKhanov/DispenserAdmin/internal/dashboard/models"
)

// TelegramNotifier sends a short message to the owner chat whenever the poller
// observes a newly approved payment. Errors are logged and never propagated.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramNotifier creates the notifier. Returns an error when the token is
// rejected by the Telegram API.
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("can't make telegram bot: %w", err)
	}
	logrus.Infof("Bot API created successfully for %s", bot.Self.UserName)
	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

// NotifyPayment reports one approved payment to the owner chat.
func (n *TelegramNotifier) NotifyPayment(pago models.Payment) {
	text := fmt.Sprintf("Pago aprobado 💧\n%s — $%.2f\nSlot %d, equipo %s",
		pago.Producto, pago.Monto, pago.SlotID, pago.DeviceID)
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		logrus.Errorf("telegram notify failed: %v", err)
	}
}
