package receiver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/anthonyagughasi/haircut-website/pkg/domain/booking"
)

// BotAPI is the part of *tgbotapi.BotAPI a session uses.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// WizardFactory builds a fresh wizard bound to ctx.
type WizardFactory func(ctx context.Context) *booking.Wizard

type eventKind int

const (
	evCallback eventKind = iota
	evText
	evStart
)

type event struct {
	kind       eventKind
	data       string
	callbackID string
	messageID  int
	firstName  string
}

// Session is one user's conversation. All of its state, the wizard included,
// is touched only by the goroutine in run.
type Session struct {
	userID int64
	chatID int64

	bot       BotAPI
	newWizard WizardFactory
	opts      Options
	logger    zerolog.Logger

	ctx   context.Context
	inbox chan event

	wizard    *booking.Wizard
	messageID int
	armed     string
	greeting  string
}

func newSession(ctx context.Context, userID, chatID int64, bot BotAPI, newWizard WizardFactory, opts Options, logger zerolog.Logger) *Session {
	return &Session{
		userID:    userID,
		chatID:    chatID,
		bot:       bot,
		newWizard: newWizard,
		opts:      opts,
		logger:    logger.With().Int64("user_id", userID).Logger(),
		ctx:       ctx,
		inbox:     make(chan event, 32),
	}
}

// post queues an update for the session. It never blocks the update loop: a
// session that is this far behind drops the update.
func (s *Session) post(ev event) bool {
	select {
	case s.inbox <- ev:
		return true
	default:
		s.logger.Warn().Msg("session inbox full, dropping update")
		return false
	}
}

func (s *Session) completions() <-chan booking.Completion {
	if s.wizard == nil {
		return nil
	}
	return s.wizard.Completions()
}

func (s *Session) run() {
	defer func() {
		if s.wizard != nil {
			s.wizard.Close()
		}
	}()
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev := <-s.inbox:
			s.handle(ev)
		case c := <-s.completions():
			if s.wizard.Apply(c) {
				s.redraw()
			}
		}
	}
}

func (s *Session) handle(ev event) {
	// First contact after a restart may be a press on an old message; adopt it.
	if s.wizard == nil && ev.kind == evCallback {
		s.reset(ev.messageID)
	} else if s.wizard == nil && ev.kind == evText {
		s.reset(0)
	}
	switch ev.kind {
	case evStart:
		if ev.firstName != "" {
			s.greeting = ev.firstName
		}
		s.reset(0)
		s.redraw()
	case evText:
		s.handleText(ev)
	case evCallback:
		if s.messageID == 0 {
			s.messageID = ev.messageID
		}
		hint := s.handleCallback(ev.data)
		if ev.callbackID != "" {
			if _, err := s.bot.Request(tgbotapi.NewCallback(ev.callbackID, hint)); err != nil {
				s.logger.Debug().Err(err).Msg("answer callback failed")
			}
		}
		s.redraw()
	}
}

// reset replaces the wizard. messageID 0 makes the next redraw post a new message.
func (s *Session) reset(messageID int) {
	if s.wizard != nil {
		s.wizard.Close()
	}
	s.wizard = s.newWizard(s.ctx)
	s.wizard.Start()
	s.messageID = messageID
	s.armed = ""
}

func (s *Session) handleText(ev event) {
	text := strings.TrimSpace(ev.data)
	if s.armed == "" || s.wizard.Step() != booking.StepDetails || text == "" {
		s.deleteMessage(ev.messageID)
		s.remind("Please use the buttons 👆")
		return
	}

	var err error
	switch s.armed {
	case FieldName:
		err = s.wizard.SetName(text)
	case FieldPhone:
		err = s.wizard.SetPhone(text)
	case FieldEmail:
		err = s.wizard.SetEmail(text)
	case FieldNotes:
		err = s.wizard.SetNotes(text)
	}
	if err != nil {
		s.logger.Debug().Err(err).Str("field", s.armed).Msg("detail rejected")
	}
	s.armed = ""
	s.deleteMessage(ev.messageID)
	s.redraw()
}

// handleCallback applies one button press and returns the toast to show, if any.
func (s *Session) handleCallback(data string) string {
	w := s.wizard
	var err error

	switch {
	case data == CbNoop:
		return ""
	case data == CbStart || data == CbBook:
		s.reset(s.messageID)
		return ""
	case data == CbNext:
		err = w.Next()
	case data == CbBack:
		s.armed = ""
		err = w.Back()
	case data == CbOk:
		s.armed = ""
		err = w.Submit()
	case data == CbDismiss:
		w.DismissError()
	case data == CbRetry:
		err = w.Retry()
	default:
		if v, ok := Is(data, PSvc); ok {
			id, perr := strconv.ParseInt(v, 10, 64)
			if perr != nil {
				return ""
			}
			err = w.SelectService(id)
			break
		}
		if v, ok := Is(data, PM); ok {
			if v == AnyStaff {
				err = w.SelectNoPreference()
				break
			}
			id, perr := strconv.ParseInt(v, 10, 64)
			if perr != nil {
				return ""
			}
			err = w.SelectStaff(id)
			break
		}
		if v, ok := Is(data, PD); ok {
			err = w.SelectDate(v)
			break
		}
		if v, ok := Is(data, PT); ok {
			err = w.SelectTime(v)
			break
		}
		if v, ok := Is(data, PF); ok {
			if _, known := fieldPrompts[v]; !known || w.Step() != booking.StepDetails {
				return ""
			}
			s.armed = v
			return ""
		}
		s.logger.Warn().Str("data", data).Msg("unknown callback")
		return ""
	}
	return s.hint(err)
}

func (s *Session) hint(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, booking.ErrBusy):
		return "Still working on it…"
	case errors.Is(err, booking.ErrStepIncomplete):
		if s.wizard.Step() == booking.StepDetails {
			missing := booking.MissingFields(s.wizard.Selection().Customer, s.wizard.RequireEmail())
			return "Please fill in: " + strings.Join(missing, ", ")
		}
		return "Please make a choice first."
	case errors.Is(err, booking.ErrSlotUnavailable):
		return "That time is not available."
	case errors.Is(err, booking.ErrInvalidDate):
		return "Please pick today or a later date."
	case errors.Is(err, booking.ErrCompleted):
		return "This booking is done. Tap “Book another” to start over."
	case errors.Is(err, booking.ErrWrongStep):
		return ""
	}
	s.logger.Warn().Err(err).Msg("unexpected wizard error")
	return "Something went wrong."
}

func (s *Session) view() view {
	now := s.opts.Now().In(s.opts.Location)
	return view{
		w:        s.wizard,
		armed:    s.armed,
		greeting: s.greeting,
		today:    time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.opts.Location),
		days:     s.opts.Days,
	}
}

// redraw shows the current step, editing the session's message in place.
func (s *Session) redraw() {
	text, kb := render(s.view())

	if s.messageID == 0 {
		msg := tgbotapi.NewMessage(s.chatID, text)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.ReplyMarkup = kb
		sent, err := s.bot.Send(msg)
		if err != nil {
			s.logger.Error().Err(err).Msg("send screen failed")
			return
		}
		s.messageID = sent.MessageID
		return
	}

	edit := tgbotapi.NewEditMessageTextAndMarkup(s.chatID, s.messageID, text, kb)
	edit.ParseMode = tgbotapi.ModeHTML
	if _, err := s.bot.Send(edit); err != nil {
		if notModified(err) {
			return
		}
		// The message may be gone (deleted, too old to edit); start a new one.
		s.logger.Warn().Err(err).Msg("edit screen failed, posting a new one")
		s.messageID = 0
		s.redraw()
	}
}

// notModified reports Telegram's rejection of an edit that changes nothing.
func notModified(err error) bool {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusBadRequest && strings.Contains(apiErr.Message, "message is not modified")
}

func (s *Session) deleteMessage(id int) {
	if id == 0 {
		return
	}
	if _, err := s.bot.Request(tgbotapi.NewDeleteMessage(s.chatID, id)); err != nil {
		s.logger.Debug().Err(err).Msg("delete message failed")
	}
}

// remind posts a short-lived notice.
func (s *Session) remind(text string) {
	sent, err := s.bot.Send(tgbotapi.NewMessage(s.chatID, text))
	if err != nil {
		return
	}
	time.AfterFunc(s.opts.ReminderTTL, func() {
		_, _ = s.bot.Request(tgbotapi.NewDeleteMessage(s.chatID, sent.MessageID))
	})
}
