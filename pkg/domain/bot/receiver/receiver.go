// Package receiver is the Telegram surface of the booking wizard: it routes
// updates to per-user sessions and draws each step as one edited message.
package receiver

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

type Receiver struct {
	bot    BotAPI
	store  *Store
	logger zerolog.Logger
}

func NewReceiver(bot BotAPI, store *Store, logger zerolog.Logger) *Receiver {
	return &Receiver{bot: bot, store: store, logger: logger.With().Str("component", "receiver").Logger()}
}

// Run dispatches updates until ctx is done or the channel closes.
func (r *Receiver) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			r.Handle(u)
		}
	}
}

func (r *Receiver) Handle(update tgbotapi.Update) {
	if m := update.Message; m != nil {
		if m.From == nil || m.Chat == nil {
			return
		}
		sess := r.store.Get(m.From.ID, m.Chat.ID)

		if m.IsCommand() && m.Command() == "start" {
			if _, err := r.bot.Request(tgbotapi.NewDeleteMessage(m.Chat.ID, m.MessageID)); err != nil {
				r.logger.Warn().Err(err).Msg("delete /start failed")
			}
			sess.post(event{kind: evStart, firstName: m.From.FirstName})
			return
		}
		// Free text goes to the session: it fills an armed field or is deleted.
		sess.post(event{kind: evText, data: m.Text, messageID: m.MessageID})
		return
	}

	// Inline button presses
	if cq := update.CallbackQuery; cq != nil {
		if cq.From == nil || cq.Message == nil || cq.Message.Chat == nil {
			_, _ = r.bot.Request(tgbotapi.NewCallback(cq.ID, ""))
			return
		}
		sess := r.store.Get(cq.From.ID, cq.Message.Chat.ID)
		ev := event{kind: evCallback, data: cq.Data, callbackID: cq.ID, messageID: cq.Message.MessageID}
		if !sess.post(ev) {
			_, _ = r.bot.Request(tgbotapi.NewCallback(cq.ID, "Busy, try again"))
		}
	}
}
