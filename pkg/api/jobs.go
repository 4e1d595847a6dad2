package api

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// HousekeepingSpec is how often finished appointments are closed.
const HousekeepingSpec = "@every 15m"

type cronLogger struct{ logger zerolog.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

// StartHousekeeping schedules FinishPast. Stop the returned cron on shutdown.
func StartHousekeeping(svc *BookingService, loc *time.Location, logger zerolog.Logger) (*cron.Cron, error) {
	logger = logger.With().Str("component", "housekeeping").Logger()
	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(HousekeepingSpec, func() { runHousekeeping(svc, logger) }); err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}

func runHousekeeping(svc *BookingService, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := svc.FinishPast(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to close finished appointments")
		return
	}
	if n > 0 {
		logger.Info().Int64("count", n).Msg("appointments marked done")
	}
}
