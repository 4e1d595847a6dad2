package sender

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/anthonyagughasi/haircut-website/pkg/utils/errs"
)

// BotAPI is the part of *tgbotapi.BotAPI the senders need.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Processor posts booking notices to the shop's Telegram channel.
type Processor struct {
	config ProcessorConfig
	logger zerolog.Logger

	bot BotAPI
}

var _ Notifier = (*Processor)(nil)

func New(config ProcessorConfig, logger zerolog.Logger, bot BotAPI) *Processor {
	return &Processor{
		config: config.withDefaults(),
		logger: logger.With().Str("component", "channel_sender").Logger(),
		bot:    bot,
	}
}

func (p *Processor) Notify(ctx context.Context, n Notice) error {
	_, err := p.Send(ctx, channelText(n))
	return err
}

// Send retries with exponential backoff and returns the posted message id.
func (p *Processor) Send(ctx context.Context, text string) (int, error) {
	p.logger.Trace().Msg("In")
	defer p.logger.Trace().Msg("Out")

	msgToSend := tgbotapi.NewMessageToChannel(p.config.ChannelID, text)
	msgToSend.ParseMode = tgbotapi.ModeHTML

	var (
		err error
		msg tgbotapi.Message
	)
	for i := 0; i < p.config.Attempts; i++ {
		msg, err = p.bot.Send(msgToSend)
		if err == nil {
			return msg.MessageID, nil
		}
		p.logger.Warn().Err(err).Int("retry", i+1).Msg("send failed, retrying")

		if i == p.config.Attempts-1 {
			break
		}
		select {
		case <-time.After(p.config.Backoff << i):
		case <-ctx.Done():
			return 0, errs.New("failed to send message").Kind(errs.KindTransport).Wrap(ctx.Err())
		}
	}
	p.logger.Error().Err(err).Msg("send permanently failed")

	return 0, errs.New("failed to send message").Kind(errs.KindTransport).Arg("attempts", p.config.Attempts).Wrap(err)
}

func channelText(n Notice) string {
	text := fmt.Sprintf("<b>New booking</b> %s\n"+
		"Service: %s\nBarber: %s\nDate: %s %s\n"+
		"Client: %s, %s",
		esc(n.ConfirmationID), esc(n.Service), esc(n.StaffOrAny()), n.Date, n.Time,
		esc(n.Customer.Name), esc(n.Customer.Phone))
	if n.Customer.Notes != "" {
		text += "\nNotes: " + esc(n.Customer.Notes)
	}
	return text
}
