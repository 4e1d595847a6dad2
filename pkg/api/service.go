package api

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/anthonyagughasi/haircut-website/pkg/domain/bot/sender"
	"github.com/anthonyagughasi/haircut-website/pkg/domain/schedule"
	"github.com/anthonyagughasi/haircut-website/pkg/repository/model"
	"github.com/anthonyagughasi/haircut-website/pkg/repository/store"
	"github.com/anthonyagughasi/haircut-website/pkg/utils/errs"
)

// SlotTakenMessage is returned when the chosen slot was booked by someone else.
const SlotTakenMessage = "Sorry, that time was just taken. Please pick another slot."

type Dispatcher interface {
	Dispatch(n sender.Notice)
}

type Options struct {
	Location     *time.Location
	Open         time.Duration
	Close        time.Duration
	Step         time.Duration
	RequireEmail bool
	Now          func() time.Time
}

// BookingService computes availability and books appointments on top of a Repo.
type BookingService struct {
	repo   model.Repo
	opts   Options
	notify Dispatcher
	logger zerolog.Logger
}

func NewBookingService(repo model.Repo, opts Options, notify Dispatcher, logger zerolog.Logger) *BookingService {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &BookingService{
		repo:   repo,
		opts:   opts,
		notify: notify,
		logger: logger.With().Str("component", "booking_service").Logger(),
	}
}

func (s *BookingService) Services(ctx context.Context) ([]model.Service, error) {
	return s.repo.ListServices(ctx)
}

func (s *BookingService) Staff(ctx context.Context) ([]model.StaffMember, error) {
	return s.repo.ListStaff(ctx)
}

func (s *BookingService) Availability(ctx context.Context, q model.AvailabilityQuery) ([]model.TimeSlot, error) {
	d, _, err := s.day(ctx, q.Date, q.ServiceID, q.AssistantID)
	if err != nil {
		return nil, err
	}
	return schedule.Grid(d), nil
}

// Book validates the payload against the live grid and stores the
// appointment. A slot taken in the meantime is a KindConflict error carrying
// SlotTakenMessage.
func (s *BookingService) Book(ctx context.Context, p model.BookingPayload) (model.BookingOutcome, error) {
	if s.opts.RequireEmail && p.CustomerEmail == "" {
		return model.BookingOutcome{}, errs.New("email is required").Kind(errs.KindValidation)
	}
	d, svc, err := s.day(ctx, p.Date, p.ServiceID, p.AssistantID)
	if err != nil {
		return model.BookingOutcome{}, err
	}
	off, err := schedule.ParseLabel(p.Time)
	if err != nil || !d.OnGrid(off) {
		return model.BookingOutcome{}, errs.New("time is not a bookable slot").Kind(errs.KindValidation).Arg("time", p.Time)
	}
	if d.At(off).Before(d.Now) {
		return model.BookingOutcome{}, errs.New("time is in the past").Kind(errs.KindValidation).Arg("time", p.Time)
	}

	candidates := schedule.Free(d, off)
	if len(candidates) == 0 {
		return model.BookingOutcome{}, errs.New(SlotTakenMessage).Kind(errs.KindConflict)
	}

	appt := model.Appointment{
		ConfirmationID: uuid.NewString(),
		ServiceID:      svc.ID,
		StartAt:        d.At(off),
		EndAt:          d.At(off).Add(d.Duration),
		Notes:          p.Notes,
	}
	customer := model.CustomerDetails{Name: p.CustomerName, Phone: p.CustomerPhone, Email: p.CustomerEmail, Notes: p.Notes}

	booked, err := s.repo.CreateBooking(ctx, appt, customer, candidates)
	if errors.Is(err, store.ErrSlotTaken) {
		return model.BookingOutcome{}, errs.New(SlotTakenMessage).Kind(errs.KindConflict).Wrap(err)
	}
	if err != nil {
		return model.BookingOutcome{}, errs.New("failed to store booking").Wrap(err)
	}

	out := model.BookingOutcome{
		Success:        true,
		ConfirmationID: booked.ConfirmationID,
		Message:        "Booking confirmed",
		ServiceName:    svc.Name,
		StaffName:      s.staffName(ctx, booked.StaffID),
		Date:           p.Date,
		Time:           p.Time,
	}
	s.logger.Info().
		Str("booking_id", out.ConfirmationID).
		Int64("staff_id", booked.StaffID).
		Str("date", p.Date).Str("time", p.Time).
		Msg("booking created")

	if s.notify != nil {
		s.notify.Dispatch(sender.Notice{
			ConfirmationID: out.ConfirmationID,
			Service:        out.ServiceName,
			Staff:          out.StaffName,
			Date:           out.Date,
			Time:           out.Time,
			Customer:       customer,
		})
	}
	return out, nil
}

// FinishPast marks appointments that already ended as done.
func (s *BookingService) FinishPast(ctx context.Context) (int64, error) {
	return s.repo.MarkFinished(ctx, s.opts.Now())
}

// day loads everything the grid needs for one date and service. staffID
// narrows the barbers considered; nil means any active barber.
func (s *BookingService) day(ctx context.Context, date string, serviceID int64, staffID *int64) (schedule.Day, *model.Service, error) {
	midnight, err := time.ParseInLocation("2006-01-02", date, s.opts.Location)
	if err != nil {
		return schedule.Day{}, nil, errs.New("invalid date").Kind(errs.KindValidation).Arg("date", date).Wrap(err)
	}
	svc, err := s.repo.GetService(ctx, serviceID)
	if errors.Is(err, store.ErrNotFound) {
		return schedule.Day{}, nil, errs.New("unknown service").Kind(errs.KindValidation).Arg("service_id", serviceID)
	}
	if err != nil {
		return schedule.Day{}, nil, errs.New("failed to load service").Wrap(err)
	}
	hours, err := s.repo.WorkingHours(ctx, midnight, staffID)
	if err != nil {
		return schedule.Day{}, nil, errs.New("failed to load working hours").Wrap(err)
	}
	busy, err := s.repo.BusyIntervals(ctx, midnight, midnight.AddDate(0, 0, 1), staffID)
	if err != nil {
		return schedule.Day{}, nil, errs.New("failed to load bookings").Wrap(err)
	}
	return schedule.Day{
		Date:     midnight,
		Open:     s.opts.Open,
		Close:    s.opts.Close,
		Step:     s.opts.Step,
		Duration: time.Duration(svc.Duration) * time.Minute,
		Hours:    hours,
		Busy:     busy,
		Now:      s.opts.Now().In(s.opts.Location),
	}, svc, nil
}

func (s *BookingService) staffName(ctx context.Context, id int64) string {
	staff, err := s.repo.ListStaff(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("staff lookup failed")
		return ""
	}
	for _, m := range staff {
		if m.ID == id {
			return m.Name
		}
	}
	return ""
}
