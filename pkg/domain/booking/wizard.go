// Package booking implements the appointment wizard: service, barber, date and
// time, then contact details and submission.
//
// A Wizard belongs to one goroutine. Provider calls run on their own
// goroutines and come back as Completion values on Completions(); the owner
// hands each one to Apply. Every role (services, staff, slots, submit) has at
// most one live call: starting a new one cancels the previous call, and Apply
// drops any completion that is not the latest for its role or whose slot
// query no longer matches the current selection.
package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/anthonyagughasi/haircut-website/pkg/provider"
	"github.com/anthonyagughasi/haircut-website/pkg/repository/model"
)

type Deps struct {
	Catalog      provider.Catalog
	Availability provider.Availability
	Submitter    provider.Submitter
}

type call struct {
	seq    uint64
	query  SlotQuery
	cancel context.CancelFunc
}

type Wizard struct {
	deps   Deps
	policy Policy
	logger zerolog.Logger

	step        Step
	sel         Selection
	services    []model.Service
	staff       []model.StaffMember
	staffLoaded bool
	slots       []model.TimeSlot
	slotsFor    SlotQuery
	errMsg      string
	outcome     *model.BookingOutcome

	seq      uint64
	inflight [roleCount]*call
	failed   [roleCount]bool
	done     chan Completion
	ctx      context.Context
	cancel   context.CancelFunc
}

// New returns a wizard at StepService. ctx bounds every provider call; Close
// cancels it as well.
func New(ctx context.Context, deps Deps, policy Policy, logger zerolog.Logger) *Wizard {
	ctx, cancel := context.WithCancel(ctx)
	return &Wizard{
		deps:   deps,
		policy: policy.withDefaults(),
		logger: logger.With().Str("component", "booking_wizard").Logger(),
		step:   StepService,
		done:   make(chan Completion, int(roleCount)*2),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Completions delivers finished provider calls. The owner must pass each to Apply.
func (w *Wizard) Completions() <-chan Completion {
	return w.done
}

// Close cancels outstanding calls. The wizard must not be used afterwards.
func (w *Wizard) Close() {
	w.cancel()
}

// Start issues the one catalog fetch of the session.
func (w *Wizard) Start() {
	if w.services != nil || w.inflight[RoleServices] != nil {
		return
	}
	w.launch(RoleServices, SlotQuery{}, 0, func(ctx context.Context) Completion {
		services, err := w.deps.Catalog.ListServices(ctx)
		return Completion{services: services, err: err}
	})
}

// ---------- queries ----------

func (w *Wizard) Step() Step { return w.step }
func (w *Wizard) Selection() Selection { return w.sel }
func (w *Wizard) Services() []model.Service { return w.services }
func (w *Wizard) Staff() []model.StaffMember { return w.staff }
func (w *Wizard) Slots() []model.TimeSlot { return w.slots }
func (w *Wizard) Error() string { return w.errMsg }
func (w *Wizard) Loading(role Role) bool { return w.inflight[role] != nil }

// FetchFailed reports that the last call for role ended in an error. Retry
// reissues it.
func (w *Wizard) FetchFailed(role Role) bool { return w.failed[role] }
func (w *Wizard) RequireEmail() bool { return w.policy.RequireEmail }
func (w *Wizard) Confirmation() *model.BookingOutcome { return w.outcome }

// CanGoBack is true on every step after the first one until submission starts.
func (w *Wizard) CanGoBack() bool {
	switch w.step {
	case StepStaff, StepDateTime, StepDetails:
		return true
	}
	return false
}

// CanAdvance reports whether the current step's completion guard holds and no
// fetch for the step is outstanding. On StepDetails it is the submission guard.
func (w *Wizard) CanAdvance() bool {
	switch w.step {
	case StepService:
		return w.sel.Service != nil && !w.Loading(RoleServices)
	case StepStaff:
		return !w.Loading(RoleStaff)
	case StepDateTime:
		return w.sel.Date != "" && w.sel.Time != "" && !w.Loading(RoleSlots)
	case StepDetails:
		return w.CanSubmit()
	}
	return false
}

// CanSubmit is false while a submission is running.
func (w *Wizard) CanSubmit() bool {
	if w.step != StepDetails {
		return false
	}
	if w.sel.Service == nil || w.sel.Date == "" || w.sel.Time == "" {
		return false
	}
	return len(MissingFields(w.sel.Customer, w.policy.RequireEmail)) == 0
}

func (w *Wizard) currentQuery() SlotQuery {
	q := SlotQuery{Date: w.sel.Date}
	if w.sel.Service != nil {
		q.ServiceID = w.sel.Service.ID
	}
	if id := w.sel.Staff.ID(); id != nil {
		q.StaffID = *id
	}
	return q
}

// ---------- navigation ----------

func (w *Wizard) Next() error {
	switch w.step {
	case StepSubmitting:
		return ErrBusy
	case StepCompleted:
		return ErrCompleted
	case StepDetails:
		return ErrWrongStep
	}
	if !w.CanAdvance() {
		if w.stepLoading() {
			return ErrBusy
		}
		return ErrStepIncomplete
	}

	w.step++
	switch w.step {
	case StepStaff:
		if !w.staffLoaded && !w.Loading(RoleStaff) {
			w.fetchStaff()
		}
	case StepDateTime:
		if w.sel.Date != "" && w.slotsFor != w.currentQuery() && !w.Loading(RoleSlots) {
			w.fetchSlots()
		}
	}
	w.logger.Debug().Stringer("step", w.step).Msg("advanced")
	return nil
}

// Back never clears what was entered.
func (w *Wizard) Back() error {
	switch w.step {
	case StepService:
		return ErrWrongStep
	case StepSubmitting:
		return ErrBusy
	case StepCompleted:
		return ErrCompleted
	}
	w.step--
	w.errMsg = ""
	return nil
}

func (w *Wizard) stepLoading() bool {
	switch w.step {
	case StepService:
		return w.Loading(RoleServices)
	case StepStaff:
		return w.Loading(RoleStaff)
	case StepDateTime:
		return w.Loading(RoleSlots)
	}
	return false
}

// ---------- selections ----------

func (w *Wizard) SelectService(id int64) error {
	if w.step != StepService {
		return ErrWrongStep
	}
	if w.Loading(RoleServices) {
		return ErrBusy
	}
	var found *model.Service
	for i := range w.services {
		if w.services[i].ID == id {
			s := w.services[i]
			found = &s
			break
		}
	}
	if found == nil {
		return ErrUnknownService
	}
	if w.sel.Service != nil && w.sel.Service.ID == id {
		return nil
	}
	w.sel.Service = found
	w.contextChanged()
	return nil
}

func (w *Wizard) SelectStaff(id int64) error {
	if w.step != StepStaff {
		return ErrWrongStep
	}
	if w.Loading(RoleStaff) {
		return ErrBusy
	}
	for _, m := range w.staff {
		if m.ID == id {
			return w.setStaff(ChooseStaff(m))
		}
	}
	return ErrUnknownStaff
}

func (w *Wizard) SelectNoPreference() error {
	if w.step != StepStaff {
		return ErrWrongStep
	}
	if w.Loading(RoleStaff) {
		return ErrBusy
	}
	return w.setStaff(NoPreference())
}

func (w *Wizard) setStaff(c StaffChoice) error {
	if w.sel.Staff.same(c) {
		return nil
	}
	w.sel.Staff = c
	w.contextChanged()
	return nil
}

func (w *Wizard) SelectDate(date string) error {
	if w.step != StepDateTime {
		return ErrWrongStep
	}
	day, err := time.ParseInLocation("2006-01-02", date, w.policy.Location)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	now := w.policy.Now().In(w.policy.Location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, w.policy.Location)
	if day.Before(today) {
		return fmt.Errorf("%w: %s is in the past", ErrInvalidDate, date)
	}
	if w.sel.Date == date && !w.failed[RoleSlots] {
		return nil
	}
	w.sel.Date = date
	w.contextChanged()
	return nil
}

// SelectTime accepts only a label of the current grid that is marked available.
func (w *Wizard) SelectTime(label string) error {
	if w.step != StepDateTime {
		return ErrWrongStep
	}
	if w.Loading(RoleSlots) {
		return ErrBusy
	}
	for _, s := range w.slots {
		if s.Time == label {
			if !s.Available {
				return ErrSlotUnavailable
			}
			w.sel.Time = label
			return nil
		}
	}
	return ErrSlotUnavailable
}

// contextChanged runs after the service, staff or date changed: the chosen
// time no longer applies and the grid is refetched for the new triple.
func (w *Wizard) contextChanged() {
	w.sel.Time = ""
	if w.sel.Date == "" || w.sel.Service == nil {
		w.abort(RoleSlots)
		w.slots = nil
		w.slotsFor = SlotQuery{}
		w.failed[RoleSlots] = false
		return
	}
	w.fetchSlots()
}

// ---------- details ----------

func (w *Wizard) SetName(v string) error { return w.setDetail(func(d *model.CustomerDetails) { d.Name = v }) }
func (w *Wizard) SetPhone(v string) error { return w.setDetail(func(d *model.CustomerDetails) { d.Phone = v }) }
func (w *Wizard) SetEmail(v string) error { return w.setDetail(func(d *model.CustomerDetails) { d.Email = v }) }
func (w *Wizard) SetNotes(v string) error { return w.setDetail(func(d *model.CustomerDetails) { d.Notes = v }) }

func (w *Wizard) setDetail(set func(*model.CustomerDetails)) error {
	if w.step != StepDetails {
		return ErrWrongStep
	}
	set(&w.sel.Customer)
	c := &w.sel.Customer
	c.Name = strings.TrimSpace(c.Name)
	c.Phone = strings.TrimSpace(c.Phone)
	c.Email = strings.TrimSpace(c.Email)
	c.Notes = strings.TrimSpace(c.Notes)
	return nil
}

// ---------- submission ----------

// Submit issues exactly one booking call. A second Submit while the first is
// running returns ErrBusy.
func (w *Wizard) Submit() error {
	switch w.step {
	case StepSubmitting:
		return ErrBusy
	case StepCompleted:
		return ErrCompleted
	case StepDetails:
	default:
		return ErrWrongStep
	}
	if !w.CanSubmit() {
		return ErrStepIncomplete
	}

	req := model.BookingRequest{
		Service:  *w.sel.Service,
		Staff:    w.sel.Staff.Member(),
		Date:     w.sel.Date,
		Time:     w.sel.Time,
		Customer: w.sel.Customer,
	}
	w.step = StepSubmitting
	w.errMsg = ""
	w.launch(RoleSubmit, SlotQuery{}, w.policy.SubmitTimeout, func(ctx context.Context) Completion {
		out, err := w.deps.Submitter.CreateBooking(ctx, req)
		return Completion{outcome: out, err: err}
	})
	w.logger.Info().Int64("service_id", req.Service.ID).Str("date", req.Date).Str("time", req.Time).Msg("submitting booking")
	return nil
}

// Retry reissues the current step's failed fetch.
func (w *Wizard) Retry() error {
	var role Role
	switch w.step {
	case StepService:
		role = RoleServices
	case StepStaff:
		role = RoleStaff
	case StepDateTime:
		role = RoleSlots
	default:
		return ErrWrongStep
	}
	if !w.failed[role] {
		return ErrWrongStep
	}

	switch role {
	case RoleServices:
		w.services = nil
		w.Start()
	case RoleStaff:
		w.fetchStaff()
	case RoleSlots:
		if w.sel.Date == "" || w.sel.Service == nil {
			return ErrStepIncomplete
		}
		w.fetchSlots()
	}
	w.logger.Info().Stringer("role", role).Msg("retrying fetch")
	return nil
}

func (w *Wizard) DismissError() {
	w.errMsg = ""
}

// ---------- async plumbing ----------

func (w *Wizard) fetchStaff() {
	w.launch(RoleStaff, SlotQuery{}, 0, func(ctx context.Context) Completion {
		staff, err := w.deps.Catalog.ListStaff(ctx)
		return Completion{staff: staff, err: err}
	})
}

func (w *Wizard) fetchSlots() {
	q := w.currentQuery()
	staffID := w.sel.Staff.ID()
	w.slots = nil
	w.launch(RoleSlots, q, 0, func(ctx context.Context) Completion {
		slots, err := w.deps.Availability.GetAvailability(ctx, q.Date, q.ServiceID, staffID)
		return Completion{slots: slots, err: err}
	})
}

func (w *Wizard) abort(role Role) {
	if c := w.inflight[role]; c != nil {
		c.cancel()
		w.inflight[role] = nil
	}
}

// launch supersedes any live call of the same role and runs fn on its own
// goroutine. A panicking provider is turned into an error completion.
func (w *Wizard) launch(role Role, q SlotQuery, timeout time.Duration, fn func(ctx context.Context) Completion) {
	w.abort(role)
	w.seq++
	seq := w.seq

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(w.ctx, timeout)
	} else {
		ctx, cancel = context.WithCancel(w.ctx)
	}
	w.inflight[role] = &call{seq: seq, query: q, cancel: cancel}
	w.failed[role] = false

	go func() {
		defer cancel()
		c := run(ctx, fn)
		c.Role, c.seq, c.query = role, seq, q
		select {
		case w.done <- c:
		case <-w.ctx.Done():
		}
	}()
}

// run returns when fn does or when ctx ends, whichever comes first, so a
// provider that ignores its context cannot hold a role forever.
func run(ctx context.Context, fn func(ctx context.Context) Completion) Completion {
	res := make(chan Completion, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				res <- Completion{err: fmt.Errorf("provider panic: %v", r)}
			}
		}()
		res <- fn(ctx)
	}()

	select {
	case c := <-res:
		return c
	case <-ctx.Done():
		return Completion{err: ctx.Err()}
	}
}

// Apply folds a completion into the wizard. It returns false when the
// completion was superseded and has been discarded.
func (w *Wizard) Apply(c Completion) bool {
	cur := w.inflight[c.Role]
	if cur == nil || cur.seq != c.seq {
		w.logger.Debug().Stringer("role", c.Role).Uint64("seq", c.seq).Msg("discarding superseded result")
		return false
	}
	if c.Role == RoleSlots && c.query != w.currentQuery() {
		w.logger.Debug().Str("date", c.query.Date).Msg("discarding stale slots")
		w.abort(RoleSlots)
		return false
	}
	w.inflight[c.Role] = nil
	cur.cancel()

	switch c.Role {
	case RoleServices:
		if c.err != nil {
			w.logger.Warn().Err(c.err).Msg("services fetch failed")
			w.services = []model.Service{}
			w.failed[RoleServices] = true
			return true
		}
		w.services = c.services

	case RoleStaff:
		if c.err != nil {
			w.logger.Warn().Err(c.err).Msg("staff fetch failed")
			w.staff = nil
			w.failed[RoleStaff] = true
			return true
		}
		w.staffLoaded = true
		w.staff = c.staff

	case RoleSlots:
		if c.err != nil {
			// slotsFor stays unset so Next or Retry can reissue the query.
			w.logger.Warn().Err(c.err).Str("date", c.query.Date).Msg("availability fetch failed")
			w.slots = nil
			w.slotsFor = SlotQuery{}
			w.failed[RoleSlots] = true
			return true
		}
		w.slotsFor = c.query
		w.slots = c.slots

	case RoleSubmit:
		w.finishSubmit(c)
	}
	return true
}

func (w *Wizard) finishSubmit(c Completion) {
	if c.err != nil {
		w.logger.Error().Err(c.err).Msg("booking submission failed")
		w.step = StepDetails
		w.errMsg = DefaultFailureMessage
		return
	}
	if !c.outcome.Success {
		w.step = StepDetails
		w.errMsg = c.outcome.Message
		if w.errMsg == "" {
			w.errMsg = DefaultFailureMessage
		}
		w.logger.Warn().Str("message", w.errMsg).Msg("booking rejected")
		return
	}

	out := c.outcome
	if out.ServiceName == "" && w.sel.Service != nil {
		out.ServiceName = w.sel.Service.Name
	}
	if out.Date == "" {
		out.Date = w.sel.Date
	}
	if out.Time == "" {
		out.Time = w.sel.Time
	}
	if out.StaffName == "" && w.sel.Staff.Member() != nil {
		out.StaffName = w.sel.Staff.Member().Name
	}
	w.outcome = &out
	w.step = StepCompleted
	w.logger.Info().Str("confirmation_id", out.ConfirmationID).Msg("booking completed")
}
