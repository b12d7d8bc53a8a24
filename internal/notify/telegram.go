// Package notify delivers operational notifications to the admin Telegram
// chat: new ticket purchases awaiting proof review and completed
// verifications. Ticket email dispatch to attendees is handled by an
// external collaborator and is not this package's concern.
package notify

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"

	"gatepass/entity"
	"gatepass/lib/sl"
)

type Telegram struct {
	log    *slog.Logger
	api    *tgbotapi.Bot
	chatId int64
}

func NewTelegram(apiKey string, chatId int64, log *slog.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBot(apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &Telegram{
		log:    log.With(sl.Module("notify.telegram")),
		api:    api,
		chatId: chatId,
	}, nil
}

// TicketPurchased announces a new unverified ticket to the admin chat.
func (t *Telegram) TicketPurchased(ticket *entity.Ticket) {
	msg := fmt.Sprintf("New %s ticket from %s <%s> via %s, awaiting verification",
		ticket.TicketType, ticket.Name, ticket.Email, ticket.PaymentMethod)
	t.send(msg)
}

// TicketVerified announces a verified ticket and the code minted for it.
func (t *Telegram) TicketVerified(ticket *entity.Ticket, attendee *entity.Attendee) {
	msg := fmt.Sprintf("Ticket for %s <%s> verified, code %s issued",
		ticket.Name, ticket.Email, attendee.Code)
	t.send(msg)
}

func (t *Telegram) send(msg string) {
	_, err := t.api.SendMessage(t.chatId, msg, nil)
	if err != nil {
		t.log.Error("send notification", sl.Err(err))
	}
}
