package booking

import (
	"errors"
	"time"

	"github.com/anthonyagughasi/haircut-website/pkg/provider"
	"github.com/anthonyagughasi/haircut-website/pkg/repository/model"
)

// Step is the wizard's position. A failed submission is StepDetails with Error() set.
type Step int

const (
	StepService Step = iota
	StepStaff
	StepDateTime
	StepDetails
	StepSubmitting
	StepCompleted
)

func (s Step) String() string {
	switch s {
	case StepService:
		return "service"
	case StepStaff:
		return "staff"
	case StepDateTime:
		return "datetime"
	case StepDetails:
		return "details"
	case StepSubmitting:
		return "submitting"
	case StepCompleted:
		return "completed"
	}
	return "unknown"
}

// Role names a provider call kind. At most one call per role is outstanding.
type Role int

const (
	RoleServices Role = iota
	RoleStaff
	RoleSlots
	RoleSubmit

	roleCount
)

func (r Role) String() string {
	switch r {
	case RoleServices:
		return "services"
	case RoleStaff:
		return "staff"
	case RoleSlots:
		return "slots"
	case RoleSubmit:
		return "submit"
	}
	return "unknown"
}

var (
	ErrWrongStep       = errors.New("action not allowed at this step")
	ErrStepIncomplete  = errors.New("step is incomplete")
	ErrBusy            = errors.New("a request for this step is still running")
	ErrUnknownService  = errors.New("unknown service")
	ErrUnknownStaff    = errors.New("unknown staff member")
	ErrSlotUnavailable = errors.New("time slot is not available")
	ErrInvalidDate     = errors.New("invalid date")
	ErrCompleted       = errors.New("booking already completed")
)

// DefaultFailureMessage is shown when a submission fails without a backend message.
const DefaultFailureMessage = provider.DefaultFailureMessage

// StaffChoice separates "not chosen yet" from the explicit "no preference".
type StaffChoice struct {
	chosen bool
	member *model.StaffMember
}

func NoPreference() StaffChoice {
	return StaffChoice{chosen: true}
}

func ChooseStaff(m model.StaffMember) StaffChoice {
	return StaffChoice{chosen: true, member: &m}
}

func (c StaffChoice) Chosen() bool { return c.chosen }
func (c StaffChoice) NoPreference() bool { return c.chosen && c.member == nil }
func (c StaffChoice) Member() *model.StaffMember { return c.member }

// ID is the staff id to send to providers; nil when no specific member is chosen.
func (c StaffChoice) ID() *int64 {
	if c.member == nil {
		return nil
	}
	id := c.member.ID
	return &id
}

func (c StaffChoice) same(o StaffChoice) bool {
	if c.chosen != o.chosen || (c.member == nil) != (o.member == nil) {
		return false
	}
	return c.member == nil || c.member.ID == o.member.ID
}

// SlotQuery is the triple a slot grid belongs to. StaffID 0 means no specific member.
type SlotQuery struct {
	Date      string
	ServiceID int64
	StaffID   int64
}

// Selection is everything the user has picked so far.
type Selection struct {
	Service  *model.Service
	Staff    StaffChoice
	Date     string // YYYY-MM-DD
	Time     string // HH:MM
	Customer model.CustomerDetails
}

type Policy struct {
	RequireEmail  bool
	SubmitTimeout time.Duration
	Location      *time.Location
	Now           func() time.Time
}

func (p Policy) withDefaults() Policy {
	if p.SubmitTimeout <= 0 {
		p.SubmitTimeout = 15 * time.Second
	}
	if p.Location == nil {
		p.Location = time.Local
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return p
}

// Completion is the result of one provider call, delivered on Wizard.Completions.
type Completion struct {
	Role Role

	seq      uint64
	query    SlotQuery
	services []model.Service
	staff    []model.StaffMember
	slots    []model.TimeSlot
	outcome  model.BookingOutcome
	err      error
}
