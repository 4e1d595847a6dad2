package sender

import (
	"context"
	"fmt"
	"html"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/anthonyagughasi/haircut-website/pkg/repository/model"
)

// Notice is what every notifier learns about a confirmed booking.
type Notice struct {
	ConfirmationID string
	Service        string
	Staff          string // empty when the customer had no preference
	Date           string
	Time           string
	Customer       model.CustomerDetails
}

func (n Notice) StaffOrAny() string {
	if n.Staff == "" {
		return "Any"
	}
	return n.Staff
}

type Notifier interface {
	Notify(ctx context.Context, n Notice) error
}

// Fanout delivers a notice to every notifier on its own goroutine. Failures
// are logged and never reported to the caller.
type Fanout struct {
	notifiers []Notifier
	timeout   time.Duration
	logger    zerolog.Logger
	wg        sync.WaitGroup
}

func NewFanout(logger zerolog.Logger, timeout time.Duration, notifiers ...Notifier) *Fanout {
	return &Fanout{
		notifiers: notifiers,
		timeout:   timeout,
		logger:    logger.With().Str("component", "notify_fanout").Logger(),
	}
}

func (f *Fanout) Len() int { return len(f.notifiers) }

func (f *Fanout) Dispatch(n Notice) {
	for _, nt := range f.notifiers {
		f.wg.Add(1)
		go func(nt Notifier) {
			defer f.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
			defer cancel()
			if err := nt.Notify(ctx, n); err != nil {
				f.logger.Error().Err(err).
					Str("notifier", fmt.Sprintf("%T", nt)).
					Str("booking_id", n.ConfirmationID).
					Msg("notification failed")
			}
		}(nt)
	}
}

// Wait blocks until every dispatched notification has finished.
func (f *Fanout) Wait() {
	f.wg.Wait()
}

func esc(s string) string { return html.EscapeString(s) }
