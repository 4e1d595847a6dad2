package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/anthonyagughasi/haircut-website/pkg/config"
	"github.com/anthonyagughasi/haircut-website/pkg/domain/booking"
	"github.com/anthonyagughasi/haircut-website/pkg/domain/bot/receiver"
	"github.com/anthonyagughasi/haircut-website/pkg/provider"
	"github.com/anthonyagughasi/haircut-website/pkg/utils/errs"
)

func main() {
	cfgPath := flag.String("config", "cmd/bot/etc/app.yml", "path to the config file")
	debug := flag.Bool("debug", false, "verbose logging")
	flag.Parse()

	// 1) Logger
	level := zerolog.InfoLevel
	if *debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).Level(level).With().Timestamp().Logger()

	// 2) Config
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Err(errs.New("failed to load config").Wrap(err)).Msg("config init")
		return
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Err(errs.New("bad timezone").Arg("timezone", cfg.Timezone).Wrap(err)).Msg("config init")
		return
	}
	if cfg.BotToken == "" {
		logger.Error().Msg("TG_TOKEN is not set")
		return
	}

	// 3) Bot
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		logger.Error().Err(err).Msg("create bot api")
		return
	}
	bot.Debug = false
	logger.Info().Str("bot", bot.Self.UserName).Msg("authorized")

	// 4) Providers: the booking API, with the static catalog behind it when enabled
	client := provider.NewClient(cfg.APIBaseURL, cfg.Booking.RequestTimeout, logger)
	var (
		catalog provider.Catalog      = provider.NewShared(client)
		avail   provider.Availability = client
	)
	if cfg.Booking.FetchFallback {
		fb := provider.NewFallback(catalog, client, logger)
		catalog, avail = fb, fb
	}
	deps := booking.Deps{Catalog: catalog, Availability: avail, Submitter: client}
	policy := booking.Policy{
		RequireEmail:  cfg.Booking.RequireEmail,
		SubmitTimeout: cfg.Booking.SubmitTimeout,
		Location:      loc,
	}
	newWizard := func(ctx context.Context) *booking.Wizard {
		return booking.New(ctx, deps, policy, logger)
	}

	// Context cancelled on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := receiver.NewStore(ctx, bot, newWizard, receiver.Options{Location: loc}, logger)
	recv := receiver.NewReceiver(bot, store, logger)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 10
	updates := bot.GetUpdatesChan(u)

	go func() {
		<-ctx.Done()
		logger.Info().Msg("shutting down bot")
		// Stops long polling; the updates channel closes and Run returns.
		bot.StopReceivingUpdates()
	}()

	recv.Run(ctx, updates)
	stop()
	store.Wait()
	logger.Info().Msg("bot stopped")
}
