package booking

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/anthonyagughasi/haircut-website/pkg/repository/model"
)

type fakeProviders struct {
	services     []model.Service
	servicesDown atomic.Bool
	staff        []model.StaffMember
	staffDown    atomic.Bool
	staffCalls   atomic.Int32

	slotFn      func(ctx context.Context, date string, serviceID int64, staffID *int64) ([]model.TimeSlot, error)
	slotCalls   atomic.Int32
	submitFn    func(ctx context.Context, req model.BookingRequest) (model.BookingOutcome, error)
	submitCalls atomic.Int32
}

var errBackendDown = errors.New("backend down")

func (f *fakeProviders) ListServices(context.Context) ([]model.Service, error) {
	if f.servicesDown.Load() {
		return nil, errBackendDown
	}
	return f.services, nil
}

func (f *fakeProviders) ListStaff(context.Context) ([]model.StaffMember, error) {
	f.staffCalls.Add(1)
	if f.staffDown.Load() {
		return nil, errBackendDown
	}
	return f.staff, nil
}

func (f *fakeProviders) GetAvailability(ctx context.Context, date string, serviceID int64, staffID *int64) ([]model.TimeSlot, error) {
	f.slotCalls.Add(1)
	return f.slotFn(ctx, date, serviceID, staffID)
}

func (f *fakeProviders) CreateBooking(ctx context.Context, req model.BookingRequest) (model.BookingOutcome, error) {
	f.submitCalls.Add(1)
	return f.submitFn(ctx, req)
}

func defaultGrid(context.Context, string, int64, *int64) ([]model.TimeSlot, error) {
	return []model.TimeSlot{
		{Time: "09:00", Available: true},
		{Time: "10:00", Available: true},
		{Time: "10:30", Available: false},
	}, nil
}

func newFakes() *fakeProviders {
	return &fakeProviders{
		services: []model.Service{
			{ID: 1, Name: "Classic Haircut", Price: 35, Duration: 30},
			{ID: 2, Name: "Executive Fade", Price: 45, Duration: 45},
		},
		staff: []model.StaffMember{
			{ID: 1, Name: "Marcus Cole"},
			{ID: 2, Name: "James Wright"},
		},
		slotFn: defaultGrid,
		submitFn: func(_ context.Context, req model.BookingRequest) (model.BookingOutcome, error) {
			return model.BookingOutcome{Success: true, ConfirmationID: "CONF-1", Message: "Booking confirmed"}, nil
		},
	}
}

func newTestWizard(t *testing.T, f *fakeProviders, policy Policy) *Wizard {
	t.Helper()
	policy.Location = time.UTC
	policy.Now = func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) }
	w := New(context.Background(), Deps{Catalog: f, Availability: f, Submitter: f}, policy, zerolog.Nop())
	t.Cleanup(w.Close)
	return w
}

func busy(w *Wizard) bool {
	for r := Role(0); r < roleCount; r++ {
		if w.Loading(r) {
			return true
		}
	}
	return false
}

// settle applies completions until no call is outstanding.
func settle(t *testing.T, w *Wizard) {
	t.Helper()
	for busy(w) {
		select {
		case c := <-w.Completions():
			w.Apply(c)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for a completion")
		}
	}
}

func mustOK(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// toDetails walks the happy path up to the details step.
func toDetails(t *testing.T, w *Wizard) {
	t.Helper()
	w.Start()
	settle(t, w)
	mustOK(t, w.SelectService(2))
	mustOK(t, w.Next())
	settle(t, w)
	mustOK(t, w.SelectNoPreference())
	mustOK(t, w.Next())
	mustOK(t, w.SelectDate("2025-03-11"))
	settle(t, w)
	mustOK(t, w.SelectTime("10:00"))
	mustOK(t, w.Next())
	if w.Step() != StepDetails {
		t.Fatalf("expected details step, got %s", w.Step())
	}
}

func fillDetails(t *testing.T, w *Wizard) {
	t.Helper()
	mustOK(t, w.SetName("John Smith"))
	mustOK(t, w.SetPhone("5551234567"))
	mustOK(t, w.SetEmail("john@x.com"))
}

func TestWizard_HappyPath(t *testing.T) {
	f := newFakes()
	var sent model.BookingRequest
	f.submitFn = func(_ context.Context, req model.BookingRequest) (model.BookingOutcome, error) {
		sent = req
		return model.BookingOutcome{Success: true, ConfirmationID: "CONF-1"}, nil
	}
	w := newTestWizard(t, f, Policy{RequireEmail: true})

	toDetails(t, w)
	fillDetails(t, w)
	if !w.CanSubmit() {
		t.Fatalf("submission should be enabled once details are filled")
	}
	mustOK(t, w.Submit())
	if w.Step() != StepSubmitting || w.CanSubmit() {
		t.Fatalf("expected submitting with submit disabled, got %s", w.Step())
	}
	settle(t, w)

	if w.Step() != StepCompleted {
		t.Fatalf("expected completed, got %s (error %q)", w.Step(), w.Error())
	}
	if sent.Staff != nil || sent.Service.ID != 2 || sent.Date != "2025-03-11" || sent.Time != "10:00" {
		t.Fatalf("unexpected request %+v", sent)
	}
	conf := w.Confirmation()
	if conf == nil || conf.ConfirmationID != "CONF-1" {
		t.Fatalf("missing confirmation: %+v", conf)
	}
	if conf.ServiceName != "Executive Fade" || conf.Date != "2025-03-11" || conf.Time != "10:00" {
		t.Fatalf("confirmation does not echo the booking: %+v", conf)
	}
	if err := w.Back(); !errors.Is(err, ErrCompleted) {
		t.Fatalf("completed is terminal, Back returned %v", err)
	}
	if err := w.Submit(); !errors.Is(err, ErrCompleted) {
		t.Fatalf("completed is terminal, Submit returned %v", err)
	}
}

func TestWizard_RejectedSubmissionReturnsToDetails(t *testing.T) {
	f := newFakes()
	f.submitFn = func(context.Context, model.BookingRequest) (model.BookingOutcome, error) {
		return model.BookingOutcome{Success: false, Message: "Booking failed..."}, nil
	}
	w := newTestWizard(t, f, Policy{RequireEmail: true})
	toDetails(t, w)
	fillDetails(t, w)
	mustOK(t, w.Submit())
	settle(t, w)

	if w.Step() != StepDetails {
		t.Fatalf("expected details step, got %s", w.Step())
	}
	if w.Error() != "Booking failed..." {
		t.Fatalf("banner should carry the exact message, got %q", w.Error())
	}
	if !w.CanSubmit() {
		t.Fatalf("submit should be enabled again")
	}
	if w.Confirmation() != nil {
		t.Fatalf("no confirmation expected on failure")
	}
	w.DismissError()
	if w.Error() != "" {
		t.Fatalf("error should be dismissable")
	}
	if f.submitCalls.Load() != 1 {
		t.Fatalf("no automatic retry expected, got %d calls", f.submitCalls.Load())
	}
}

func TestWizard_TransportFailureIsNormalized(t *testing.T) {
	f := newFakes()
	f.submitFn = func(context.Context, model.BookingRequest) (model.BookingOutcome, error) {
		return model.BookingOutcome{}, errors.New("connection reset")
	}
	w := newTestWizard(t, f, Policy{RequireEmail: true})
	toDetails(t, w)
	fillDetails(t, w)
	mustOK(t, w.Submit())
	settle(t, w)

	if w.Step() != StepDetails || w.Error() != DefaultFailureMessage {
		t.Fatalf("expected details with default message, got %s %q", w.Step(), w.Error())
	}
}

func TestWizard_ProviderPanicIsNormalized(t *testing.T) {
	f := newFakes()
	f.submitFn = func(context.Context, model.BookingRequest) (model.BookingOutcome, error) {
		panic("nil map")
	}
	w := newTestWizard(t, f, Policy{RequireEmail: true})
	toDetails(t, w)
	fillDetails(t, w)
	mustOK(t, w.Submit())
	settle(t, w)

	if w.Step() != StepDetails || w.Error() != DefaultFailureMessage {
		t.Fatalf("expected details with default message, got %s %q", w.Step(), w.Error())
	}
}

func TestWizard_SubmitLeavesSubmittingOnTimeout(t *testing.T) {
	f := newFakes()
	hang := make(chan struct{})
	defer close(hang)
	f.submitFn = func(context.Context, model.BookingRequest) (model.BookingOutcome, error) {
		<-hang // ignores its context
		return model.BookingOutcome{Success: true}, nil
	}
	w := newTestWizard(t, f, Policy{RequireEmail: true, SubmitTimeout: 50 * time.Millisecond})
	toDetails(t, w)
	fillDetails(t, w)
	mustOK(t, w.Submit())
	settle(t, w)

	if w.Step() != StepDetails || w.Error() == "" {
		t.Fatalf("expected details with an error after timeout, got %s %q", w.Step(), w.Error())
	}
}

func TestWizard_DuplicateSubmitIsRefused(t *testing.T) {
	f := newFakes()
	release := make(chan struct{})
	f.submitFn = func(context.Context, model.BookingRequest) (model.BookingOutcome, error) {
		<-release
		return model.BookingOutcome{Success: true, ConfirmationID: "CONF-9"}, nil
	}
	w := newTestWizard(t, f, Policy{RequireEmail: true})
	toDetails(t, w)
	fillDetails(t, w)

	mustOK(t, w.Submit())
	if err := w.Submit(); !errors.Is(err, ErrBusy) {
		t.Fatalf("second submit should be refused, got %v", err)
	}
	if err := w.Back(); !errors.Is(err, ErrBusy) {
		t.Fatalf("back is disabled while submitting, got %v", err)
	}
	close(release)
	settle(t, w)

	if n := f.submitCalls.Load(); n != 1 {
		t.Fatalf("expected exactly one booking call, got %d", n)
	}
	if w.Step() != StepCompleted {
		t.Fatalf("expected completed, got %s", w.Step())
	}
}

func TestWizard_UnavailableSlotHasNoEffect(t *testing.T) {
	w := newTestWizard(t, newFakes(), Policy{})
	w.Start()
	settle(t, w)
	mustOK(t, w.SelectService(2))
	mustOK(t, w.Next())
	settle(t, w)
	mustOK(t, w.Next())
	mustOK(t, w.SelectDate("2025-03-11"))
	settle(t, w)

	if err := w.SelectTime("10:30"); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}
	if w.Selection().Time != "" {
		t.Fatalf("selection must not change, got %q", w.Selection().Time)
	}

	mustOK(t, w.SelectTime("10:00"))
	if err := w.SelectTime("10:30"); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}
	if w.Selection().Time != "10:00" {
		t.Fatalf("previous selection must survive, got %q", w.Selection().Time)
	}
	if err := w.SelectTime("23:00"); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("labels outside the grid are not selectable, got %v", err)
	}
}

func TestWizard_ForwardGuards(t *testing.T) {
	w := newTestWizard(t, newFakes(), Policy{RequireEmail: true})
	w.Start()
	if err := w.Next(); !errors.Is(err, ErrBusy) {
		t.Fatalf("next must wait for the catalog, got %v", err)
	}
	settle(t, w)
	if w.CanAdvance() {
		t.Fatalf("service step needs a service")
	}
	if err := w.Next(); !errors.Is(err, ErrStepIncomplete) {
		t.Fatalf("expected ErrStepIncomplete, got %v", err)
	}
	if err := w.SelectService(99); !errors.Is(err, ErrUnknownService) {
		t.Fatalf("expected ErrUnknownService, got %v", err)
	}
	mustOK(t, w.SelectService(1))
	mustOK(t, w.Next())
	if w.CanAdvance() {
		t.Fatalf("next is disabled while staff are loading")
	}
	settle(t, w)
	if !w.CanAdvance() {
		t.Fatalf("staff step is always satisfiable")
	}
	mustOK(t, w.Next())

	if w.CanAdvance() {
		t.Fatalf("date/time step needs date and time")
	}
	mustOK(t, w.SelectDate("2025-03-12"))
	if w.CanAdvance() {
		t.Fatalf("next is disabled while slots are loading")
	}
	if err := w.SelectTime("09:00"); !errors.Is(err, ErrBusy) {
		t.Fatalf("time selection waits for the grid, got %v", err)
	}
	settle(t, w)
	if err := w.Next(); !errors.Is(err, ErrStepIncomplete) {
		t.Fatalf("time is still missing, got %v", err)
	}
	mustOK(t, w.SelectTime("09:00"))
	mustOK(t, w.Next())

	if w.CanSubmit() {
		t.Fatalf("empty details must not be submittable")
	}
	mustOK(t, w.SetName("John Smith"))
	mustOK(t, w.SetPhone("5551234567"))
	if w.CanSubmit() {
		t.Fatalf("email is required by policy")
	}
	mustOK(t, w.SetEmail("not-an-email"))
	if w.CanSubmit() {
		t.Fatalf("malformed email must block submission")
	}
	mustOK(t, w.SetEmail("john@x.com"))
	if !w.CanSubmit() {
		t.Fatalf("complete details should be submittable")
	}
	mustOK(t, w.SetName("   "))
	if w.CanSubmit() {
		t.Fatalf("blank name must block submission")
	}
	if err := w.Submit(); !errors.Is(err, ErrStepIncomplete) {
		t.Fatalf("expected ErrStepIncomplete, got %v", err)
	}
	if err := w.Next(); !errors.Is(err, ErrWrongStep) {
		t.Fatalf("details is left through Submit, got %v", err)
	}
}

func TestWizard_OptionalEmailPolicy(t *testing.T) {
	w := newTestWizard(t, newFakes(), Policy{RequireEmail: false})
	toDetails(t, w)
	mustOK(t, w.SetName("John Smith"))
	mustOK(t, w.SetPhone("5551234567"))
	if !w.CanSubmit() {
		t.Fatalf("email is optional under this policy")
	}
}

func TestWizard_BackKeepsSelections(t *testing.T) {
	w := newTestWizard(t, newFakes(), Policy{RequireEmail: true})
	toDetails(t, w)
	fillDetails(t, w)

	for _, want := range []Step{StepDateTime, StepStaff, StepService} {
		if !w.CanGoBack() {
			t.Fatalf("back should be enabled at %s", w.Step())
		}
		mustOK(t, w.Back())
		if w.Step() != want {
			t.Fatalf("expected %s, got %s", want, w.Step())
		}
		sel := w.Selection()
		if sel.Service == nil || sel.Service.ID != 2 || !sel.Staff.NoPreference() || sel.Date != "2025-03-11" || sel.Time != "10:00" {
			t.Fatalf("back must not clear selections: %+v", sel)
		}
	}
	if w.CanGoBack() {
		t.Fatalf("back is disabled on the first step")
	}
	if err := w.Back(); !errors.Is(err, ErrWrongStep) {
		t.Fatalf("expected ErrWrongStep, got %v", err)
	}

	// Forward again without changes: the details survive and nothing is refetched.
	slotCalls := w.deps.Availability.(*fakeProviders).slotCalls.Load()
	mustOK(t, w.Next())
	mustOK(t, w.Next())
	mustOK(t, w.Next())
	if w.Step() != StepDetails || w.Selection().Customer.Name != "John Smith" {
		t.Fatalf("details lost after round trip: %s %+v", w.Step(), w.Selection().Customer)
	}
	if got := w.deps.Availability.(*fakeProviders).slotCalls.Load(); got != slotCalls {
		t.Fatalf("unchanged query must not be refetched (%d -> %d)", slotCalls, got)
	}
}

func TestWizard_StaffFetchedOnce(t *testing.T) {
	f := newFakes()
	w := newTestWizard(t, f, Policy{})
	w.Start()
	settle(t, w)
	mustOK(t, w.SelectService(1))
	mustOK(t, w.Next())
	settle(t, w)
	mustOK(t, w.Back())
	mustOK(t, w.Next())
	settle(t, w)
	if n := f.staffCalls.Load(); n != 1 {
		t.Fatalf("staff should be fetched once per session, got %d", n)
	}
	if err := w.SelectStaff(42); !errors.Is(err, ErrUnknownStaff) {
		t.Fatalf("expected ErrUnknownStaff, got %v", err)
	}
	mustOK(t, w.SelectStaff(2))
	if m := w.Selection().Staff.Member(); m == nil || m.Name != "James Wright" {
		t.Fatalf("unexpected staff selection %+v", m)
	}
}

func TestWizard_ContextChangeClearsTime(t *testing.T) {
	f := newFakes()
	var lastStaff *int64
	f.slotFn = func(ctx context.Context, date string, serviceID int64, staffID *int64) ([]model.TimeSlot, error) {
		lastStaff = staffID
		return defaultGrid(ctx, date, serviceID, staffID)
	}
	w := newTestWizard(t, f, Policy{})
	toDetails(t, w)

	// Staff change from the staff step.
	mustOK(t, w.Back())
	mustOK(t, w.Back())
	mustOK(t, w.SelectStaff(1))
	if w.Selection().Time != "" {
		t.Fatalf("time must be cleared as soon as staff changes")
	}
	if !w.Loading(RoleSlots) {
		t.Fatalf("a staff change should refetch slots")
	}
	settle(t, w)
	if lastStaff == nil || *lastStaff != 1 {
		t.Fatalf("slots should be fetched for the chosen barber, got %v", lastStaff)
	}

	// Date change from the date/time step.
	mustOK(t, w.Next())
	mustOK(t, w.SelectTime("09:00"))
	mustOK(t, w.SelectDate("2025-03-14"))
	if w.Selection().Time != "" {
		t.Fatalf("time must be cleared as soon as the date changes")
	}
	settle(t, w)

	// Service change from the service step.
	mustOK(t, w.SelectTime("09:00"))
	mustOK(t, w.Back())
	mustOK(t, w.Back())
	mustOK(t, w.SelectService(1))
	if w.Selection().Time != "" {
		t.Fatalf("time must be cleared as soon as the service changes")
	}
	if w.Selection().Date != "2025-03-14" {
		t.Fatalf("date survives a service change")
	}
}

func TestWizard_StaleAvailabilityIsDiscarded(t *testing.T) {
	f := newFakes()
	gate := make(chan struct{})
	defer close(gate)
	f.slotFn = func(_ context.Context, date string, _ int64, _ *int64) ([]model.TimeSlot, error) {
		if date == "2025-03-11" {
			<-gate // a slow backend that ignores cancellation
			return []model.TimeSlot{{Time: "09:00", Available: true}}, nil
		}
		return []model.TimeSlot{{Time: "15:00", Available: true}}, nil
	}
	w := newTestWizard(t, f, Policy{})
	w.Start()
	settle(t, w)
	mustOK(t, w.SelectService(2))
	mustOK(t, w.Next())
	settle(t, w)
	mustOK(t, w.Next())

	mustOK(t, w.SelectDate("2025-03-11"))
	mustOK(t, w.SelectDate("2025-03-12"))

	var applied, discarded int
	for applied == 0 {
		select {
		case c := <-w.Completions():
			if w.Apply(c) {
				applied++
			} else {
				discarded++
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out")
		}
	}
	slots := w.Slots()
	if len(slots) != 1 || slots[0].Time != "15:00" {
		t.Fatalf("grid must belong to the current date, got %+v", slots)
	}
	if w.Loading(RoleSlots) {
		t.Fatalf("no slot fetch should remain outstanding")
	}

	// The superseded call's completion, however late, never lands.
	select {
	case c := <-w.Completions():
		if w.Apply(c) {
			t.Fatalf("superseded completion was applied")
		}
	case <-time.After(100 * time.Millisecond):
		if discarded == 0 {
			t.Fatalf("expected the superseded call to report back")
		}
	}
	if slots := w.Slots(); slots[0].Time != "15:00" {
		t.Fatalf("grid changed after a stale completion: %+v", slots)
	}
}

func TestWizard_RejectsPastAndMalformedDates(t *testing.T) {
	w := newTestWizard(t, newFakes(), Policy{})
	w.Start()
	settle(t, w)
	mustOK(t, w.SelectService(1))
	mustOK(t, w.Next())
	settle(t, w)
	mustOK(t, w.Next())

	for _, d := range []string{"2025-03-09", "11/03/2025", ""} {
		if err := w.SelectDate(d); !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("%q: expected ErrInvalidDate, got %v", d, err)
		}
	}
	mustOK(t, w.SelectDate("2025-03-10"))
	if w.Selection().Date != "2025-03-10" {
		t.Fatalf("today is bookable")
	}
}

func TestWizard_ActionsOutsideTheirStep(t *testing.T) {
	w := newTestWizard(t, newFakes(), Policy{})
	w.Start()
	settle(t, w)

	if err := w.SelectDate("2025-03-11"); !errors.Is(err, ErrWrongStep) {
		t.Fatalf("expected ErrWrongStep, got %v", err)
	}
	if err := w.SelectNoPreference(); !errors.Is(err, ErrWrongStep) {
		t.Fatalf("expected ErrWrongStep, got %v", err)
	}
	if err := w.SetName("x"); !errors.Is(err, ErrWrongStep) {
		t.Fatalf("expected ErrWrongStep, got %v", err)
	}
	if err := w.Submit(); !errors.Is(err, ErrWrongStep) {
		t.Fatalf("expected ErrWrongStep, got %v", err)
	}
}

func TestMissingFields(t *testing.T) {
	d := model.CustomerDetails{Name: "John", Phone: "", Email: "bad"}
	got := MissingFields(d, false)
	if len(got) != 2 || got[0] != "phone" || got[1] != "email" {
		t.Fatalf("unexpected missing fields %v", got)
	}
	if err := ValidateDetails(model.CustomerDetails{Name: "John", Phone: "1"}, false); err != nil {
		t.Fatalf("expected valid details, got %v", err)
	}
	if err := ValidateDetails(model.CustomerDetails{Name: "John", Phone: "1"}, true); err == nil {
		t.Fatalf("email required by policy")
	}
}

func TestWizard_FailedFetchesCanBeRetried(t *testing.T) {
	f := newFakes()
	var slotsDown atomic.Bool
	f.slotFn = func(ctx context.Context, date string, serviceID int64, staffID *int64) ([]model.TimeSlot, error) {
		if slotsDown.Load() {
			return nil, errBackendDown
		}
		return defaultGrid(ctx, date, serviceID, staffID)
	}
	w := newTestWizard(t, f, Policy{})

	f.servicesDown.Store(true)
	w.Start()
	settle(t, w)
	if !w.FetchFailed(RoleServices) || len(w.Services()) != 0 {
		t.Fatalf("services failure must be visible")
	}
	f.servicesDown.Store(false)
	mustOK(t, w.Retry())
	settle(t, w)
	if w.FetchFailed(RoleServices) || len(w.Services()) != 2 {
		t.Fatalf("services retry did not recover: %+v", w.Services())
	}
	if err := w.Retry(); !errors.Is(err, ErrWrongStep) {
		t.Fatalf("nothing to retry, got %v", err)
	}

	mustOK(t, w.SelectService(2))
	f.staffDown.Store(true)
	mustOK(t, w.Next())
	settle(t, w)
	if !w.FetchFailed(RoleStaff) || len(w.Staff()) != 0 {
		t.Fatalf("staff failure must be visible")
	}
	f.staffDown.Store(false)
	mustOK(t, w.Retry())
	settle(t, w)
	if w.FetchFailed(RoleStaff) || len(w.Staff()) != 2 {
		t.Fatalf("staff retry did not recover: %+v", w.Staff())
	}
	mustOK(t, w.SelectNoPreference())
	mustOK(t, w.Next())

	// An outage is not an empty day, and reselecting the day asks again.
	slotsDown.Store(true)
	mustOK(t, w.SelectDate("2025-03-11"))
	settle(t, w)
	if !w.FetchFailed(RoleSlots) || len(w.Slots()) != 0 {
		t.Fatalf("availability failure must be visible")
	}
	if err := w.SelectTime("10:00"); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("no time is selectable without a grid, got %v", err)
	}
	slotsDown.Store(false)
	mustOK(t, w.SelectDate("2025-03-11"))
	settle(t, w)
	if w.FetchFailed(RoleSlots) || len(w.Slots()) != 3 {
		t.Fatalf("same date should refetch after a failure, got %d slots", len(w.Slots()))
	}
	if n := f.slotCalls.Load(); n != 2 {
		t.Fatalf("expected 2 availability calls, got %d", n)
	}

	// Back then Next reissues a failed query.
	slotsDown.Store(true)
	mustOK(t, w.SelectDate("2025-03-12"))
	settle(t, w)
	slotsDown.Store(false)
	mustOK(t, w.Back())
	mustOK(t, w.Next())
	settle(t, w)
	if w.FetchFailed(RoleSlots) || len(w.Slots()) != 3 {
		t.Fatalf("Next should refetch a failed grid")
	}

	slotsDown.Store(true)
	mustOK(t, w.SelectDate("2025-03-13"))
	settle(t, w)
	slotsDown.Store(false)
	mustOK(t, w.Retry())
	settle(t, w)
	if w.FetchFailed(RoleSlots) || len(w.Slots()) != 3 {
		t.Fatalf("Retry should refetch a failed grid")
	}
	mustOK(t, w.SelectTime("10:00"))
	mustOK(t, w.Next())
	if w.Step() != StepDetails {
		t.Fatalf("expected details step, got %s", w.Step())
	}
}
