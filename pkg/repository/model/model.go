package model

import (
	"context"
	"time"
)

// Service is a bookable item of the catalog. Price is in the shop's currency units.
type Service struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Duration    int     `json:"duration"` // minutes
	Description string  `json:"description,omitempty"`
	Image       string  `json:"image,omitempty"`
}

// StaffMember is a barber a customer may ask for.
type StaffMember struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
}

// TimeSlot is one label of a day's grid, e.g. "09:30".
type TimeSlot struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

type CustomerDetails struct {
	Name  string
	Phone string
	Email string
	Notes string
}

// BookingRequest is assembled by the wizard once every step is complete.
// Staff is nil for "no preference".
type BookingRequest struct {
	Service  Service
	Staff    *StaffMember
	Date     string // YYYY-MM-DD
	Time     string // HH:MM
	Customer CustomerDetails
}

// BookingPayload is the wire form of a BookingRequest.
type BookingPayload struct {
	ServiceID     int64  `json:"service_id" binding:"required,gt=0"`
	AssistantID   *int64 `json:"assistant_id,omitempty" binding:"omitempty,gt=0"`
	Date          string `json:"date" binding:"required,datetime=2006-01-02"`
	Time          string `json:"time" binding:"required,datetime=15:04"`
	CustomerName  string `json:"customer_name" binding:"required"`
	CustomerEmail string `json:"customer_email" binding:"omitempty,email"`
	CustomerPhone string `json:"customer_phone" binding:"required"`
	Notes         string `json:"notes,omitempty"`
}

func (r BookingRequest) Payload() BookingPayload {
	p := BookingPayload{
		ServiceID:     r.Service.ID,
		Date:          r.Date,
		Time:          r.Time,
		CustomerName:  r.Customer.Name,
		CustomerEmail: r.Customer.Email,
		CustomerPhone: r.Customer.Phone,
		Notes:         r.Customer.Notes,
	}
	if r.Staff != nil {
		id := r.Staff.ID
		p.AssistantID = &id
	}
	return p
}

// AvailabilityQuery is the wire form of an availability lookup.
type AvailabilityQuery struct {
	Date        string `json:"date" binding:"required,datetime=2006-01-02"`
	ServiceID   int64  `json:"service_id" binding:"required,gt=0"`
	AssistantID *int64 `json:"assistant_id,omitempty" binding:"omitempty,gt=0"`
}

// BookingOutcome is the result of a submission. ConfirmationID is set only on success.
// The echoed fields let a confirmation be shown without another lookup.
type BookingOutcome struct {
	Success        bool   `json:"success"`
	ConfirmationID string `json:"booking_id,omitempty"`
	Message        string `json:"message,omitempty"`
	ServiceName    string `json:"service,omitempty"`
	StaffName      string `json:"assistant,omitempty"`
	Date           string `json:"date,omitempty"`
	Time           string `json:"time,omitempty"`
}

// WorkingHours is one barber's shift on one weekday, in the shop's location.
type WorkingHours struct {
	StaffID int64
	Start   time.Duration // offset from midnight
	End     time.Duration
}

// Interval is a booked span of a barber's day.
type Interval struct {
	StaffID int64
	Start   time.Time
	End     time.Time
}

type Appointment struct {
	ID             int64
	ConfirmationID string
	CustomerID     int64
	StaffID        int64
	ServiceID      int64
	StartAt        time.Time // UTC
	EndAt          time.Time // UTC
	Status         string    // booked|canceled|done
	Notes          string
}

type Repo interface {
	// Catalog
	ListServices(ctx context.Context) ([]Service, error)
	ListStaff(ctx context.Context) ([]StaffMember, error)
	GetService(ctx context.Context, id int64) (*Service, error)

	// Schedule inputs for the slot grid
	WorkingHours(ctx context.Context, day time.Time, staffID *int64) ([]WorkingHours, error)
	BusyIntervals(ctx context.Context, from, to time.Time, staffID *int64) ([]Interval, error)

	// Bookings
	CreateBooking(ctx context.Context, a Appointment, c CustomerDetails, candidates []int64) (*Appointment, error)
	MarkFinished(ctx context.Context, before time.Time) (int64, error)
}
