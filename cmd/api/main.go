package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/anthonyagughasi/haircut-website/pkg/api"
	"github.com/anthonyagughasi/haircut-website/pkg/config"
	"github.com/anthonyagughasi/haircut-website/pkg/domain/bot/sender"
	"github.com/anthonyagughasi/haircut-website/pkg/repository/store"
	"github.com/anthonyagughasi/haircut-website/pkg/utils/errs"
)

const notifyTimeout = 20 * time.Second

func main() {
	cfgPath := flag.String("config", "cmd/api/etc/app.yml", "path to the config file")
	migrate := flag.Bool("migrate", true, "apply the schema on startup")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage
	repo, err := store.NewRepo(ctx, cfg.PostgreAddr, logger)
	if err != nil {
		logger.Err(errs.New("failed to connect to postgres").Wrap(err)).Msg("storage init")
		return
	}
	defer repo.Close()
	if *migrate {
		if err := repo.Migrate(ctx); err != nil {
			logger.Err(errs.New("failed to apply schema").Wrap(err)).Msg("storage init")
			return
		}
	}

	// Notifications: every configured channel gets each confirmed booking.
	fanout := sender.NewFanout(logger, notifyTimeout, notifiers(cfg, logger)...)
	logger.Info().Int("notifiers", fanout.Len()).Msg("notifications ready")

	open, closeAt := cfg.OpenClose()
	svc := api.NewBookingService(repo, api.Options{
		Location:     loc,
		Open:         open,
		Close:        closeAt,
		Step:         time.Duration(cfg.Schedule.SlotMinutes) * time.Minute,
		RequireEmail: cfg.Booking.RequireEmail,
	}, fanout, logger)

	jobs, err := api.StartHousekeeping(svc, loc, logger)
	if err != nil {
		logger.Err(errs.New("failed to schedule housekeeping").Wrap(err)).Msg("jobs init")
		return
	}

	router := api.NewRouter(api.NewHandler(svc, logger), cfg.Origins, logger)
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server failed")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("server is shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	<-jobs.Stop().Done()
	fanout.Wait()
	logger.Info().Msg("server stopped gracefully")
}

func notifiers(cfg *config.Config, logger zerolog.Logger) []sender.Notifier {
	var out []sender.Notifier
	n := cfg.Notify

	if cfg.BotToken != "" && cfg.ChannelID != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram channel notifications disabled")
		} else {
			out = append(out, sender.New(sender.ProcessorConfig{ChannelID: cfg.ChannelID}, logger, bot))
		}
	}
	if n.SendGridKey != "" && n.NotificationEmail != "" {
		out = append(out, sender.NewEmail(n.SendGridKey, n.SendGridFrom, n.NotificationEmail, logger))
	}
	if n.TwilioSID != "" && n.TwilioToken != "" && n.TwilioFrom != "" {
		out = append(out, sender.NewSMS(n.TwilioSID, n.TwilioToken, n.TwilioFrom, logger))
	}
	return out
}
